package db

import (
	"context"
	"fmt"
	"time"

	"dutybot/internal/attendance"
	"dutybot/internal/config"
	"dutybot/internal/db/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// DB appends completed sessions to a Postgres table. It is write-only: the
// bot never restores state from it.
type DB struct {
	*pgxpool.Pool
	table string
}

// ConnString builds the Postgres URL for cfg.
func ConnString(cfg config.Database) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName, cfg.SSLMode,
	)
}

func New(cfg config.Database) (*DB, error) {
	// Create a configuration object
	poolCfg, err := pgxpool.ParseConfig(ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	// Configure connection pool and statement cache
	poolCfg.MaxConns = 4
	poolCfg.MinConns = 1
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("error creating connection pool: %w", err)
	}

	return &DB{Pool: pool, table: cfg.Table}, nil
}

// RecordSession implements attendance.Archive.
func (db *DB) RecordSession(ctx context.Context, rec attendance.Record) error {
	return db.InsertSession(ctx, ToModel(rec))
}

// InsertSession stores one archived session.
func (db *DB) InsertSession(ctx context.Context, s *models.Session) error {
	_, err := db.Exec(ctx, insertSessionQuery(db.table),
		s.ID.String(),
		s.UserID,
		s.Username,
		s.ClockIn,
		s.ClockOut,
		int64(s.Duration/time.Second),
		s.Reason,
		s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error inserting session %s: %w", s.ID, err)
	}
	return nil
}

// ToModel converts a completed session into its archive row.
func ToModel(rec attendance.Record) *models.Session {
	return &models.Session{
		ID:        rec.SessionID,
		UserID:    string(rec.User.ID),
		Username:  rec.User.Name,
		ClockIn:   rec.ClockIn,
		ClockOut:  rec.ClockOut,
		Duration:  rec.Duration,
		Reason:    rec.Reason.String(),
		CreatedAt: time.Now(),
	}
}

func insertSessionQuery(table string) string {
	return fmt.Sprintf(`
		INSERT INTO %s (id, user_id, username, clock_in, clock_out, duration_seconds, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, pq.QuoteIdentifier(table))
}
