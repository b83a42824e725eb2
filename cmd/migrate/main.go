package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"dutybot/internal/config"
	"dutybot/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/lib/pq"
)

const defaultTable = "session_archive"

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to the config file")
	file := flag.String("file", "migrations/001_session_archive.sql", "migration to apply")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), db.ConnString(cfg.Database))
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	// Read and execute migration file
	migration, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("Error reading migration file: %v", err)
	}

	_, err = pool.Exec(context.Background(), forTable(string(migration), cfg.Database.Table))
	if err != nil {
		log.Fatalf("Error executing migration: %v", err)
	}

	log.Printf("Migration completed successfully (table %s)", cfg.Database.Table)
}

// forTable rewrites the migration for a table name other than the default.
func forTable(migration, table string) string {
	if table == "" || table == defaultTable {
		return migration
	}
	return strings.NewReplacer(
		defaultTable+"_user_id_idx", pq.QuoteIdentifier(table+"_user_id_idx"),
		defaultTable, pq.QuoteIdentifier(table),
	).Replace(migration)
}
