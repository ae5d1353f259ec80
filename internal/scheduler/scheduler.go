// Package scheduler runs the periodic surveillance cycle: each enabled
// HAI type is scanned for new candidates, then the pending backlog is
// pushed through classification.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hai-surveillance-server/internal/detector"
	"github.com/hai-surveillance-server/internal/domain"
	"github.com/hai-surveillance-server/internal/metrics"
)

// BatchClassifier drains pending candidates of one type. Satisfied by
// orchestrator.Orchestrator.
type BatchClassifier interface {
	RunBatch(ctx context.Context, haiType domain.HAIType, batchSize int) (int, error)
}

// Scheduler owns the scan ticker and the per-type detectors.
type Scheduler struct {
	detectors  []detector.Detector
	candidates domain.CandidateRepository
	classifier BatchClassifier
	cfg        domain.SchedulerConfig
	metrics    *metrics.Metrics
	log        *logrus.Logger

	done chan struct{}
}

// New builds a scheduler over the detectors enabled by configuration.
// An empty EnabledTypes list enables every detector.
func New(cfg domain.SchedulerConfig, detectors []detector.Detector, candidates domain.CandidateRepository, classifier BatchClassifier, m *metrics.Metrics, logger *logrus.Logger) *Scheduler {
	enabled := make(map[domain.HAIType]bool, len(cfg.EnabledTypes))
	for _, t := range cfg.EnabledTypes {
		enabled[domain.HAIType(t)] = true
	}

	var active []detector.Detector
	for _, d := range detectors {
		if len(enabled) == 0 || enabled[d.HAIType()] {
			active = append(active, d)
		}
	}

	return &Scheduler{
		detectors:  active,
		candidates: candidates,
		classifier: classifier,
		cfg:        cfg,
		metrics:    m,
		log:        logger,
		done:       make(chan struct{}),
	}
}

// Start runs the scan loop until ctx is cancelled. The first cycle runs
// immediately; later cycles follow the configured interval.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.cfg.ScanInterval)
		defer ticker.Stop()

		s.log.WithFields(logrus.Fields{
			"interval":  s.cfg.ScanInterval,
			"lookback":  s.cfg.ScanLookback,
			"detectors": len(s.detectors),
		}).Info("Surveillance scheduler started")

		s.runCycle(ctx)
		for {
			select {
			case <-ctx.Done():
				s.log.Info("Surveillance scheduler stopping")
				return
			case <-ticker.C:
				s.runCycle(ctx)
			}
		}
	}()
}

// Wait blocks until the scan loop has exited.
func (s *Scheduler) Wait() {
	<-s.done
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if err := s.RunOnce(ctx); err != nil {
		s.log.WithError(err).Error("Surveillance cycle finished with errors")
	}
}

// RunOnce performs a single scan-and-classify cycle over every enabled
// detector. A failing type is logged and skipped so the rest of the
// cycle still runs; the per-type errors are joined into the return.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	now := time.Now().UTC()
	start := now.Add(-s.cfg.ScanLookback)

	var failures []error
	for _, d := range s.detectors {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.scanType(ctx, d, start, now); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", d.HAIType(), err))
		}
	}
	return errors.Join(failures...)
}

// scanType detects candidates for one type over [start, end), persists
// the new ones, and drains the type's pending backlog.
func (s *Scheduler) scanType(ctx context.Context, d detector.Detector, start, end time.Time) error {
	scanStarted := time.Now()
	haiType := d.HAIType()

	candidates, err := d.DetectCandidates(ctx, start, end)
	if err != nil {
		return fmt.Errorf("detecting candidates: %w", err)
	}

	// A candidate that fails to persist is recorded and skipped; its
	// siblings and the backlog drain still run.
	created, duplicates := 0, 0
	var failures []error
	for _, c := range candidates {
		inserted, err := s.candidates.CreateIfAbsent(ctx, c)
		if err != nil {
			failures = append(failures, fmt.Errorf("persisting candidate %s: %w", c.EventRef, err))
			continue
		}
		if inserted {
			created++
		} else {
			duplicates++
		}
	}

	if s.metrics != nil {
		s.metrics.CandidatesDetected.WithLabelValues(string(haiType)).Add(float64(created))
		s.metrics.DuplicatesSkipped.WithLabelValues(string(haiType)).Add(float64(duplicates))
		s.metrics.ObserveScan(string(haiType), scanStarted)
	}

	s.log.WithFields(logrus.Fields{
		"hai_type":   haiType,
		"detected":   len(candidates),
		"created":    created,
		"duplicates": duplicates,
		"window":     fmt.Sprintf("%s/%s", start.Format(time.RFC3339), end.Format(time.RFC3339)),
	}).Info("Detection scan completed")

	processed, err := s.classifier.RunBatch(ctx, haiType, s.cfg.BatchSize)
	if err != nil {
		failures = append(failures, fmt.Errorf("classifying backlog (%d processed): %w", processed, err))
	}
	return errors.Join(failures...)
}
