package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/storypress/storypress/internal/config"
	"github.com/storypress/storypress/internal/crypto"
	"github.com/storypress/storypress/internal/database"
	"github.com/storypress/storypress/internal/dedup"
	"github.com/storypress/storypress/internal/events"
	"github.com/storypress/storypress/internal/generator"
	"github.com/storypress/storypress/internal/streams"
	"github.com/storypress/storypress/internal/worker"
)

// Standalone worker mode: runs the generation handlers and sweeps without
// the HTTP surface, for deployments that scale workers separately.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	slog.SetDefault(worker.NewLogger(cfg.LogLevel, cfg.LogFormat))

	db, err := database.Init(cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close(db)

	if err := worker.InitClient(cfg.RedisURL); err != nil {
		slog.Error("Failed to init task client", "error", err)
		os.Exit(1)
	}
	defer worker.CloseClient()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to parse Redis URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	var signer *crypto.RequestSigner
	if cfg.GeneratorSecret != "" {
		if signer, err = crypto.NewRequestSigner(cfg.GeneratorSecret); err != nil {
			slog.Error("Failed to create generator signer", "error", err)
			os.Exit(1)
		}
	}

	var notifySigner *crypto.RequestSigner
	if cfg.NotifierSecret != "" {
		if notifySigner, err = crypto.NewRequestSigner(cfg.NotifierSecret); err != nil {
			slog.Error("Failed to create notifier signer", "error", err)
			os.Exit(1)
		}
	}
	notifier := events.NewNotifier(cfg.NotifierURL, notifySigner)

	publisher, err := streams.NewPublisher(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to create streams publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	stopScheduler, err := worker.StartScheduler(cfg)
	if err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer stopScheduler()

	stopConsumer, err := streams.StartResultConsumer(cfg.RedisURL, db)
	if err != nil {
		slog.Error("Failed to start illustration result consumer", "error", err)
		os.Exit(1)
	}
	defer stopConsumer()

	dispatcher := events.NewDispatcher()
	worker.RegisterEventHandlers(db, dispatcher, notifier)

	deps := worker.Deps{
		DB:         db,
		Generator:  generator.NewHTTPClient(cfg.GeneratorURL, signer, cfg.GeneratorStubMode),
		Publisher:  publisher,
		Detector:   dedup.NewDetector(db, rdb, cfg.Gate.DedupWindowSize, cfg.Gate.SimilarityThreshold),
		Dispatcher: dispatcher,
	}

	// Run blocks and handles its own signal interception
	if err := worker.Run(cfg, deps); err != nil {
		slog.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
}
