package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/axillles/BezShuma/app/api"
	"github.com/axillles/BezShuma/app/cfg"
	"github.com/axillles/BezShuma/app/config"
	"github.com/axillles/BezShuma/app/content"
	"github.com/axillles/BezShuma/app/database"
	"github.com/axillles/BezShuma/app/feed"
	"github.com/axillles/BezShuma/app/lock"
	"github.com/axillles/BezShuma/app/pipeline"
	"github.com/axillles/BezShuma/app/tasks"
	"github.com/axillles/BezShuma/app/telegram"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting channel curation pipeline", "version", appCfg.Version)

	// Database connection
	db, err := database.NewConnection(
		appCfg.DBHost, appCfg.DBPort, appCfg.DBUser,
		appCfg.DBPassword, appCfg.DBName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Migrations applied", "version", version, "dirty", dirty)

	// Singleton coordination: a second instance must not consume the same
	// external update stream
	coordinator := lock.NewCoordinator(db.DB)
	held, err := coordinator.Acquire(context.Background())
	if err != nil {
		log.Fatalf("Failed to acquire singleton lock: %v", err)
	}
	if !held {
		log.Fatal("Another instance is already running, exiting")
	}
	defer coordinator.Release()

	// Repositories
	channelRepo := database.NewChannelRepository(db)
	sourceRepo := database.NewSourceRepository(db)
	postRepo := database.NewPostRepository(db)

	// Register channel seeds
	seeds, err := config.NewLoader(appCfg.SeedDir).LoadAll()
	if err != nil {
		log.Fatalf("Failed to load channel seeds: %v", err)
	}
	registerSeeds(seeds, channelRepo, sourceRepo)

	// Core components
	httpClient := &http.Client{}
	fetcher := feed.NewFetcher(httpClient, appCfg.UserAgent)
	generator := content.NewHTTPGenerator(httpClient, appCfg.GenerateURL, appCfg.GenerateKey)
	processor := content.NewProcessor(generator, time.Duration(appCfg.GenerateTimeout)*time.Second)
	publisher := telegram.NewPublisher(httpClient, appCfg.BotToken)

	dedup := pipeline.NewDedup(postRepo)
	queue := pipeline.NewQueue(postRepo)
	ingestor := pipeline.NewIngestor(channelRepo, sourceRepo, fetcher, processor, dedup, queue)
	cycle := pipeline.NewCycle(channelRepo, postRepo, publisher)

	// Background scheduler: coarse ingestion ticks, fine publish ticks
	scheduler := tasks.NewScheduler(ingestor, cycle,
		time.Duration(appCfg.IngestInterval)*time.Second,
		time.Duration(appCfg.PublishInterval)*time.Second)
	scheduler.Start()
	defer scheduler.Stop()

	// Operator HTTP surface
	handler := api.NewHandler(channelRepo, sourceRepo, postRepo, ingestor, cycle)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP server shutdown error", "error", err)
	}

	// Scheduler stop and lock release run via defer
	slog.Info("Shutdown complete")
}

// registerSeeds upserts channels and sources declared in the seed directory.
// A broken seed is logged and skipped; startup continues.
func registerSeeds(seeds map[string]*config.ChannelSeed,
	channelRepo database.ChannelRepository, sourceRepo database.SourceRepository) {
	for file, seed := range seeds {
		id, existed, err := channelRepo.UpsertChannel(database.Channel{
			ChatID:         seed.Channel.ChatID,
			Name:           seed.Channel.Name,
			Topic:          seed.Channel.Topic,
			IsActive:       true,
			ModerationMode: seed.Channel.ModerationMode,
			PostInterval:   seed.Channel.PostInterval,
			Model:          seed.Channel.Model,
			Prompt:         seed.Channel.Prompt,
		})
		if err != nil {
			slog.Warn("Failed to register channel seed", "file", file, "error", err)
			continue
		}

		for _, source := range seed.Sources {
			name := source.Name
			if name == "" {
				name = source.URL
			}
			if _, err := sourceRepo.UpsertSource(id, source.URL, name); err != nil {
				slog.Warn("Failed to register source", "file", file, "url", source.URL, "error", err)
			}
		}

		slog.Info("Channel seed registered", "chat_id", seed.Channel.ChatID, "existed", existed)
	}
}
