// Package orchestrator drives a candidate through the classification
// pipeline: note retrieval, fact extraction, rules evaluation, and
// persistence. Batch runs fan candidates out over a bounded worker pool.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hai-surveillance-server/internal/domain"
	"github.com/hai-surveillance-server/internal/metrics"
	"github.com/hai-surveillance-server/internal/rules"
)

const insufficientDocReasoning = "insufficient documentation"

// fallbackConfidence is the confidence assigned to the terminal
// insufficient-documentation classification.
const fallbackConfidence = 0.50

// Orchestrator coordinates the classify pipeline for all HAI types.
type Orchestrator struct {
	notes           domain.NoteRetriever
	extractor       domain.FactExtractor
	engines         *rules.Registry
	candidates      domain.CandidateRepository
	extractions     domain.ExtractionRepository
	classifications domain.ClassificationRepository
	surveillance    domain.SurveillanceConfig
	noteTypes       []string
	maxAttempts     int
	workerCount     int
	metrics         *metrics.Metrics
	log             *logrus.Logger
}

// Config bundles the orchestrator collaborators.
type Config struct {
	Notes           domain.NoteRetriever
	Extractor       domain.FactExtractor
	Engines         *rules.Registry
	Candidates      domain.CandidateRepository
	Extractions     domain.ExtractionRepository
	Classifications domain.ClassificationRepository
	Surveillance    domain.SurveillanceConfig
	NoteTypes       []string
	MaxAttempts     int
	WorkerCount     int
	Metrics         *metrics.Metrics
}

// New creates an orchestrator.
func New(cfg Config, logger *logrus.Logger) *Orchestrator {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	workerCount := cfg.WorkerCount
	if workerCount < 1 {
		workerCount = 1
	}

	return &Orchestrator{
		notes:           cfg.Notes,
		extractor:       cfg.Extractor,
		engines:         cfg.Engines,
		candidates:      cfg.Candidates,
		extractions:     cfg.Extractions,
		classifications: cfg.Classifications,
		surveillance:    cfg.Surveillance,
		noteTypes:       cfg.NoteTypes,
		maxAttempts:     maxAttempts,
		workerCount:     workerCount,
		metrics:         cfg.Metrics,
		log:             logger,
	}
}

// Classify runs one candidate through notes, extraction, and the rules
// engine, persisting the resulting classification. Missing documentation
// and repeated extraction failures resolve to a terminal low-confidence
// insufficient-documentation classification rather than an error.
func (o *Orchestrator) Classify(ctx context.Context, candidate *domain.Candidate) (*domain.Classification, error) {
	started := time.Now()
	defer o.observeClassify(candidate.HAIType, started)

	windowDays := o.surveillance.NoteWindowDaysFor(candidate.HAIType)
	text, err := o.notes.GetNotes(ctx, candidate.PatientID, candidate.EventTime, windowDays, o.noteTypes)
	if err != nil {
		o.log.WithFields(logrus.Fields{
			"candidate_id": candidate.ID,
			"error":        err,
		}).Warn("Note retrieval failed; treating documentation as missing")
		text = ""
	}
	if text == "" {
		return o.classifyInsufficientDoc(ctx, candidate, nil)
	}

	extraction, err := o.obtainExtraction(ctx, candidate, text)
	if err != nil {
		o.log.WithFields(logrus.Fields{
			"candidate_id": candidate.ID,
			"attempts":     o.maxAttempts,
			"error":        err,
		}).Warn("Fact extraction exhausted retries; falling back")
		return o.classifyInsufficientDoc(ctx, candidate, nil)
	}

	engine, err := o.engines.EngineFor(candidate.HAIType)
	if err != nil {
		return nil, err
	}

	result, err := engine.Evaluate(candidate, extraction)
	if err != nil {
		// Facts did not match the candidate's type; the extraction is
		// unusable and the candidate lands in the terminal fallback.
		o.log.WithFields(logrus.Fields{
			"candidate_id":  candidate.ID,
			"extraction_id": extraction.ID,
			"error":         err,
		}).Warn("Rules evaluation rejected extraction; falling back")
		return o.classifyInsufficientDoc(ctx, candidate, &extraction.ID)
	}

	classification := &domain.Classification{
		ID:           uuid.New(),
		CandidateID:  candidate.ID,
		ExtractionID: &extraction.ID,
		HAIType:      candidate.HAIType,
		Category:     result.Category,
		Confidence:   result.Confidence,
		Reasoning:    result.Reasoning,
		Trace:        result.Trace,
		CreatedAt:    time.Now().UTC(),
	}
	return classification, o.persistClassification(ctx, candidate, classification)
}

// obtainExtraction reuses a persisted extraction when one exists (a
// re-classification must not re-pay the model call) and otherwise calls
// the extraction port with bounded retries.
func (o *Orchestrator) obtainExtraction(ctx context.Context, candidate *domain.Candidate, text string) (*domain.Extraction, error) {
	existing, err := o.extractions.GetByCandidate(ctx, candidate.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("loading prior extraction: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		extraction, err := o.extractor.Extract(ctx, candidate, text)
		if err == nil {
			if err := o.extractions.Create(ctx, extraction); err != nil {
				return nil, fmt.Errorf("persisting extraction: %w", err)
			}
			// A re-classified candidate may already be past extracted;
			// only advance, never regress.
			if candidate.Status.CanTransition(domain.StatusExtracted) {
				if err := o.candidates.UpdateStatus(ctx, candidate.ID, domain.StatusExtracted, domain.OutcomeNone); err != nil {
					return nil, fmt.Errorf("advancing candidate after extraction: %w", err)
				}
			}
			return extraction, nil
		}

		lastErr = err
		if o.metrics != nil {
			o.metrics.ExtractionFailures.WithLabelValues(string(candidate.HAIType)).Inc()
		}
		o.log.WithFields(logrus.Fields{
			"candidate_id": candidate.ID,
			"attempt":      attempt,
			"error":        err,
		}).Warn("Fact extraction attempt failed")

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// classifyInsufficientDoc records the terminal fallback classification.
// It is pending review, not an error.
func (o *Orchestrator) classifyInsufficientDoc(ctx context.Context, candidate *domain.Candidate, extractionID *uuid.UUID) (*domain.Classification, error) {
	classification := &domain.Classification{
		ID:           uuid.New(),
		CandidateID:  candidate.ID,
		ExtractionID: extractionID,
		HAIType:      candidate.HAIType,
		Category:     domain.CategoryInsufficientDoc,
		Confidence:   fallbackConfidence,
		Reasoning:    insufficientDocReasoning,
		CreatedAt:    time.Now().UTC(),
	}
	return classification, o.persistClassification(ctx, candidate, classification)
}

// persistClassification stores the classification and moves the candidate
// to classified with its terminal outcome where one is already known.
func (o *Orchestrator) persistClassification(ctx context.Context, candidate *domain.Candidate, classification *domain.Classification) error {
	if err := o.classifications.Create(ctx, classification); err != nil {
		return fmt.Errorf("persisting classification: %w", err)
	}

	outcome := domain.OutcomeNone
	if classification.Category == domain.CategoryNotEligible {
		outcome = domain.OutcomeNotEligible
	}
	if err := o.candidates.UpdateStatus(ctx, candidate.ID, domain.StatusClassified, outcome); err != nil {
		return fmt.Errorf("advancing candidate after classification: %w", err)
	}

	if o.metrics != nil {
		o.metrics.Classifications.WithLabelValues(string(candidate.HAIType), string(classification.Category)).Inc()
	}

	o.log.WithFields(logrus.Fields{
		"candidate_id":      candidate.ID,
		"classification_id": classification.ID,
		"hai_type":          candidate.HAIType,
		"category":          classification.Category,
		"confidence":        classification.Confidence,
	}).Info("Candidate classified")

	return nil
}

// RunBatch classifies up to batchSize pending candidates of one type over
// the bounded worker pool. A failing candidate is recorded and skipped;
// it never aborts the rest of the batch.
func (o *Orchestrator) RunBatch(ctx context.Context, haiType domain.HAIType, batchSize int) (int, error) {
	pending, err := o.candidates.ListByStatus(ctx, haiType, domain.StatusPending, batchSize)
	if err != nil {
		return 0, fmt.Errorf("listing pending candidates: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	var (
		mu        sync.Mutex
		failures  []error
		processed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workerCount)

	for _, candidate := range pending {
		candidate := candidate
		g.Go(func() error {
			if _, err := o.Classify(gctx, candidate); err != nil {
				mu.Lock()
				failures = append(failures, fmt.Errorf("candidate %s: %w", candidate.ID, err))
				mu.Unlock()
				return nil // keep the batch going
			}
			mu.Lock()
			processed++
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors, so this only propagates ctx cancellation.
	if err := g.Wait(); err != nil {
		return processed, err
	}

	o.log.WithFields(logrus.Fields{
		"hai_type":  haiType,
		"batch":     len(pending),
		"processed": processed,
		"failed":    len(failures),
	}).Info("Classification batch completed")

	return processed, errors.Join(failures...)
}

func (o *Orchestrator) observeClassify(haiType domain.HAIType, started time.Time) {
	if o.metrics != nil {
		o.metrics.ObserveClassify(string(haiType), started)
	}
}
