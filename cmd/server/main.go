package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/hai-surveillance-server/internal/api"
	"github.com/hai-surveillance-server/internal/config"
	"github.com/hai-surveillance-server/internal/database"
	"github.com/hai-surveillance-server/internal/detector"
	"github.com/hai-surveillance-server/internal/domain"
	"github.com/hai-surveillance-server/internal/metrics"
	"github.com/hai-surveillance-server/internal/orchestrator"
	"github.com/hai-surveillance-server/internal/repository"
	"github.com/hai-surveillance-server/internal/review"
	"github.com/hai-surveillance-server/internal/rules"
	"github.com/hai-surveillance-server/internal/scheduler"
	"github.com/hai-surveillance-server/pkg/clinical"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := newLogger(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting HAI surveillance server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Surveillance store
	db, err := database.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	migrator, err := database.NewMigrationRunner(configManager.GetDatabaseURL(), cfg.Database.MigrationsPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create migration runner")
	}
	if err := migrator.Up(); err != nil {
		logger.WithError(err).Fatal("Failed to apply migrations")
	}
	migrator.Close()

	candidates := repository.NewCandidateRepository(db.Pool, logger)
	extractions := repository.NewExtractionRepository(db.Pool, logger)
	classifications := repository.NewClassificationRepository(db.Pool, logger)

	// Extraction cache is optional; a missing Redis degrades to misses.
	var cache *clinical.CacheClient
	if cfg.Cache.Enabled {
		cache, err = clinical.NewCacheClient(cfg.Cache)
		if err != nil {
			logger.WithError(err).Warn("Extraction cache unavailable; continuing without it")
			cache = nil
		}
	}

	source := clinical.NewSourceClient(cfg.Source)
	notes := clinical.NewNotesClient(cfg.Notes)
	extractor := clinical.NewExtractionClient(cfg.Extraction, cache, logger)

	m := metrics.New()

	orch := orchestrator.New(orchestrator.Config{
		Notes:           notes,
		Extractor:       extractor,
		Engines:         rules.NewRegistry(cfg.Surveillance),
		Candidates:      candidates,
		Extractions:     extractions,
		Classifications: classifications,
		Surveillance:    cfg.Surveillance,
		NoteTypes:       cfg.Notes.NoteTypes,
		MaxAttempts:     cfg.Extraction.MaxAttempts,
		WorkerCount:     cfg.Scheduler.WorkerCount,
		Metrics:         m,
	}, logger)

	detectors := []detector.Detector{
		detector.NewCLABSIDetector(source, cfg.Surveillance.CLABSI, logger),
		detector.NewCAUTIDetector(source, cfg.Surveillance.CAUTI, logger),
		detector.NewVAEDetector(source, cfg.Surveillance.VAE, logger),
		detector.NewSSIDetector(source, cfg.Surveillance.SSI, logger),
	}
	sched := scheduler.New(cfg.Scheduler, detectors, candidates, orch, m, logger)
	sched.Start(ctx)

	reviewStore, err := newReviewStore(cfg, configManager)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open review store")
	}
	defer reviewStore.Close()

	reviews := review.NewService(reviewStore, classifications, candidates, logger)

	server := api.NewServer(api.Config{
		Server:          cfg.Server,
		Candidates:      candidates,
		Classifications: classifications,
		Reviews:         reviews,
		Health:          db,
		Metrics:         m,
		LogLevel:        cfg.Logging.Level,
	}, logger)

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	sched.Wait()
	logger.Info("HAI surveillance server stopped")
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func newReviewStore(cfg *domain.Config, configManager *config.Manager) (review.Store, error) {
	switch cfg.Review.Backend {
	case "sqlite":
		return review.NewSQLiteStore(cfg.Review.SQLitePath)
	case "postgres":
		return review.NewPostgresStoreFromURL(configManager.GetDatabaseURL())
	}
	return nil, fmt.Errorf("unsupported review backend: %s", cfg.Review.Backend)
}
