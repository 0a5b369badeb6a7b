package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/cockroachdb/errors"

	"team-ingest/internal/collector"
	"team-ingest/internal/config"
	"team-ingest/internal/db"
	"team-ingest/internal/discord"
	"team-ingest/internal/logging"
	"team-ingest/internal/riot"
	"team-ingest/internal/schema"
	"team-ingest/internal/storage"
)

func main() {
	matchCount := flag.Int("count", 0, "Match IDs to fetch per player, 1-100 (overrides MATCH_COUNT)")
	minShared := flag.Int("min-shared", 0, "Roster members needed for a shared match (overrides MIN_SHARED_PLAYERS)")
	schedule := flag.String("schedule", "", "Cron expression, e.g. '0 */6 * * *', to repeat runs (overrides SCHEDULE)")
	skipExisting := flag.Bool("skip-existing", false, "Do not re-fetch matches that are already stored")
	flag.Parse()

	envPath := config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *matchCount > 0 {
		cfg.MatchCount = *matchCount
	}
	if *minShared > 0 {
		cfg.MinSharedPlayers = *minShared
	}
	if *schedule != "" {
		cfg.Schedule = *schedule
	}
	if *skipExisting {
		cfg.SkipExisting = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid flags: %v", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	defer logger.Sync()

	if envPath != "" {
		logger.Info("loaded .env", "path", envPath)
	} else {
		logger.Info("no .env file found, using environment variables")
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("ingest failed", "error", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, stop := collector.WithSignals(context.Background(), logger)
	defer stop()

	var webhook *discord.WebhookClient
	if cfg.DiscordWebhookURL != "" {
		webhook = discord.NewWebhookClient(cfg.DiscordWebhookURL)
	}

	if cfg.Preflight {
		validator := riot.NewKeyValidator(riot.WithBaseURL(cfg.PlatformURL))
		err := validator.Preflight(ctx, cfg.APIKey)
		switch {
		case errors.Is(err, riot.ErrInvalidKey):
			if webhook != nil {
				if nerr := webhook.NotifyKeyRejected(ctx, cfg.APIKey); nerr != nil {
					logger.Warn("failed to send key notification", "error", nerr)
				}
			}
			return errors.Wrapf(err, "key %s", riot.MaskKey(cfg.APIKey))
		case err != nil:
			logger.Warn("could not verify API key, continuing", "error", err)
		default:
			logger.Info("API key accepted", "key", riot.MaskKey(cfg.APIKey))
		}
	}

	client, err := riot.NewClient(cfg.APIKey,
		riot.WithRegionURL(cfg.RegionURL),
		riot.WithRequestTimeout(cfg.RequestTimeout),
		riot.WithRateLimitDelay(cfg.RateLimitDelay),
		riot.WithRetryCooldown(cfg.RetryCooldown),
		riot.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	store, err := db.Open(ctx, cfg.DatabaseURL, db.Options{AuthToken: cfg.TursoAuthToken})
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer store.Close()
	logger.Info("database ready", "backend", store.Backend())

	pipeline := &collector.Pipeline{
		API:      client,
		Store:    store,
		Detector: schema.NewDetector(schema.NewReferenceFile(cfg.SchemaReferencePath), logger),
		Logger:   logger,
		Settings: collector.Settings{
			Roster:           cfg.Roster,
			QueueType:        cfg.QueueType,
			MatchCount:       cfg.MatchCount,
			MinSharedPlayers: cfg.MinSharedPlayers,
			SkipExisting:     cfg.SkipExisting,
		},
	}
	if webhook != nil {
		pipeline.Notifier = webhook
	}

	if cfg.RawArchivePath != "" {
		archive, err := storage.NewFileRotator(cfg.RawArchivePath, storage.WithLogger(logger))
		if err != nil {
			return errors.Wrap(err, "failed to open raw archive")
		}
		defer func() {
			if err := archive.Close(); err != nil {
				logger.Error("failed to close raw archive", "error", err)
			}
		}()
		pipeline.Archive = archive
	}

	runOnce := func(ctx context.Context) error {
		_, err := pipeline.Run(ctx)
		return err
	}

	if cfg.Schedule == "" {
		return runOnce(ctx)
	}

	sched, err := collector.NewScheduler(ctx, cfg.Schedule, runOnce, logger)
	if err != nil {
		return err
	}
	sched.Start()
	if err := sched.RunNow(); err != nil {
		logger.Warn("failed to start first run", "error", err)
	}

	<-ctx.Done()
	logger.Info("shutting down scheduler")
	if err := sched.Shutdown(); err != nil {
		return errors.Wrap(err, "scheduler shutdown")
	}
	started, failed := sched.Runs()
	logger.Info("scheduler stopped", "runs", started, "failed", failed)
	return nil
}
