package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/storypress/storypress/internal/api"
	"github.com/storypress/storypress/internal/config"
	"github.com/storypress/storypress/internal/crypto"
	"github.com/storypress/storypress/internal/database"
	"github.com/storypress/storypress/internal/dedup"
	"github.com/storypress/storypress/internal/events"
	"github.com/storypress/storypress/internal/generator"
	"github.com/storypress/storypress/internal/ingest"
	"github.com/storypress/storypress/internal/streams"
	"github.com/storypress/storypress/internal/worker"

	"github.com/redis/go-redis/v9"
)

func main() {
	// .env is optional; real deployments configure through the environment.
	_ = godotenv.Load()

	cfg := config.Load()
	slog.SetDefault(worker.NewLogger(cfg.LogLevel, cfg.LogFormat))

	db, err := database.Init(cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close(db)

	if err := database.RunMigrations(db); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	if cfg.Env == "development" {
		if err := database.SeedDevData(db); err != nil {
			slog.Warn("Failed to seed dev data", "error", err)
		}
	}

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

	detector := dedup.NewDetector(db, rdb, cfg.Gate.DedupWindowSize, cfg.Gate.SimilarityThreshold)

	var genSigner *crypto.RequestSigner
	if cfg.GeneratorSecret != "" {
		if genSigner, err = crypto.NewRequestSigner(cfg.GeneratorSecret); err != nil {
			slog.Error("Failed to create generator signer", "error", err)
			os.Exit(1)
		}
	}
	gen := generator.NewHTTPClient(cfg.GeneratorURL, genSigner, cfg.GeneratorStubMode)

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

	dispatcher := events.NewDispatcher()
	worker.RegisterEventHandlers(db, dispatcher, notifier)

	ingestSvc := ingest.NewService(db, detector, cfg.Gate, dispatcher)

	// Embedded worker mode: API, worker and scheduler share the process.
	stopWorker, err := worker.Start(cfg, worker.Deps{
		DB:         db,
		Generator:  gen,
		Publisher:  publisher,
		Detector:   detector,
		Dispatcher: dispatcher,
	})
	if err != nil {
		slog.Error("Failed to start worker", "error", err)
		os.Exit(1)
	}
	defer stopWorker()

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

	router := api.SetupRouter(cfg, db, ingestSvc, dispatcher)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		slog.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
}
