package main

import (
	"context"
	"flag"
	"log"
	"os"

	"team-ingest/internal/config"
	"team-ingest/internal/db"
	"team-ingest/internal/logging"
)

func main() {
	reset := flag.Bool("reset", false, "Drop and recreate matches, participants and teams")
	flag.Parse()

	config.LoadDotEnv()

	cfg, err := config.LoadStore()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat).Named("initdb")
	defer logger.Sync()

	ctx := context.Background()

	// Open creates missing tables.
	store, err := db.Open(ctx, cfg.DatabaseURL, db.Options{AuthToken: cfg.TursoAuthToken})
	if err != nil {
		logger.Error("failed to open database", "url", cfg.DatabaseURL, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if *reset {
		if err := store.ResetTables(ctx); err != nil {
			logger.Error("failed to reset tables", "error", err)
			store.Close()
			os.Exit(1)
		}
		logger.Warn("tables dropped and recreated", "backend", store.Backend())
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		logger.Error("failed to count rows", "error", err)
		store.Close()
		os.Exit(1)
	}

	logger.Info("database initialized",
		"backend", store.Backend(),
		"matches", counts.Matches,
		"participants", counts.Participants,
		"teams", counts.Teams)
}
