// Command scanner runs a single detection-and-classification cycle and
// exits. Useful for backfills and cron-style deployments where the
// long-running scheduler is not wanted.
package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hai-surveillance-server/internal/config"
	"github.com/hai-surveillance-server/internal/database"
	"github.com/hai-surveillance-server/internal/detector"
	"github.com/hai-surveillance-server/internal/metrics"
	"github.com/hai-surveillance-server/internal/orchestrator"
	"github.com/hai-surveillance-server/internal/repository"
	"github.com/hai-surveillance-server/internal/rules"
	"github.com/hai-surveillance-server/internal/scheduler"
	"github.com/hai-surveillance-server/pkg/clinical"
)

func main() {
	lookback := flag.Duration("lookback", 0, "scan window (defaults to the configured scheduler lookback)")
	types := flag.String("types", "", "comma-separated HAI types to scan (defaults to the configured set)")
	timeout := flag.Duration("timeout", 30*time.Minute, "overall run timeout")
	flag.Parse()

	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := logrus.New()
	if level, err := logrus.ParseLevel(strings.ToLower(cfg.Logging.Level)); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

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

	var cache *clinical.CacheClient
	if cfg.Cache.Enabled {
		if cache, err = clinical.NewCacheClient(cfg.Cache); err != nil {
			logger.WithError(err).Warn("Extraction cache unavailable; continuing without it")
			cache = nil
		}
	}

	source := clinical.NewSourceClient(cfg.Source)

	orch := orchestrator.New(orchestrator.Config{
		Notes:           clinical.NewNotesClient(cfg.Notes),
		Extractor:       clinical.NewExtractionClient(cfg.Extraction, cache, logger),
		Engines:         rules.NewRegistry(cfg.Surveillance),
		Candidates:      candidates,
		Extractions:     extractions,
		Classifications: classifications,
		Surveillance:    cfg.Surveillance,
		NoteTypes:       cfg.Notes.NoteTypes,
		MaxAttempts:     cfg.Extraction.MaxAttempts,
		WorkerCount:     cfg.Scheduler.WorkerCount,
		Metrics:         metrics.New(),
	}, logger)

	schedulerCfg := cfg.Scheduler
	if *lookback > 0 {
		schedulerCfg.ScanLookback = *lookback
	}
	if *types != "" {
		schedulerCfg.EnabledTypes = strings.Split(*types, ",")
	}

	detectors := []detector.Detector{
		detector.NewCLABSIDetector(source, cfg.Surveillance.CLABSI, logger),
		detector.NewCAUTIDetector(source, cfg.Surveillance.CAUTI, logger),
		detector.NewVAEDetector(source, cfg.Surveillance.VAE, logger),
		detector.NewSSIDetector(source, cfg.Surveillance.SSI, logger),
	}

	sched := scheduler.New(schedulerCfg, detectors, candidates, orch, nil, logger)
	if err := sched.RunOnce(ctx); err != nil {
		logger.WithError(err).Fatal("Surveillance scan finished with errors")
	}
	logger.Info("Surveillance scan completed")
}
