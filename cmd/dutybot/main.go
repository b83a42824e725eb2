package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"dutybot/internal/bot"
	"dutybot/internal/config"
	"dutybot/internal/db"
	"dutybot/internal/keepalive"

	"github.com/joho/godotenv"
)

func main() {
	log.Println("Starting dutybot application...")

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfgPath := os.Getenv("DUTYBOT_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// The archive is optional; without it sessions live in memory only
	var database *db.DB
	if cfg.Database.Enabled {
		database, err = db.New(cfg.Database)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
	}

	discordBot, err := bot.New(cfg, database)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	go func() {
		s := <-signals
		log.Printf("Received signal: %v", s)
		cancel()
	}()

	if cfg.KeepAlive.Enabled {
		go func() {
			if err := keepalive.Serve(ctx, cfg.KeepAlive.Addr); err != nil {
				log.Printf("Keep-alive server stopped: %v", err)
			}
		}()
	}

	// Start the bot
	go func() {
		if err := discordBot.Start(ctx); err != nil {
			log.Printf("Error running bot: %v", err)
			cancel()
		}
	}()

	// Wait for shutdown
	<-ctx.Done()
	log.Println("Shutdown signal received")

	if err := discordBot.Shutdown(); err != nil {
		log.Printf("Error during shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Application shutdown complete")
}
