package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/hai-surveillance-server/internal/domain"
)

// ClassificationRepository handles classification persistence.
// Classifications are append-only; a re-classification produces a new row
// and the latest one per candidate is current.
type ClassificationRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewClassificationRepository creates a classification repository.
func NewClassificationRepository(db *pgxpool.Pool, logger *logrus.Logger) *ClassificationRepository {
	return &ClassificationRepository{
		db:  db,
		log: logger,
	}
}

// Create inserts a classification with its ordered rule trace.
func (r *ClassificationRepository) Create(ctx context.Context, c *domain.Classification) error {
	trace, err := json.Marshal(c.Trace)
	if err != nil {
		return fmt.Errorf("encoding rule trace: %w", err)
	}

	query := `
		INSERT INTO classifications (
			id, candidate_id, extraction_id, hai_type, category,
			confidence, reasoning, trace, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`

	_, err = r.db.Exec(ctx, query,
		c.ID,
		c.CandidateID,
		c.ExtractionID,
		c.HAIType,
		c.Category,
		c.Confidence,
		c.Reasoning,
		trace,
		c.CreatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"classification_id": c.ID,
			"candidate_id":      c.CandidateID,
			"error":             err,
		}).Error("Failed to create classification")
		return fmt.Errorf("creating classification: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"classification_id": c.ID,
		"candidate_id":      c.CandidateID,
		"category":          c.Category,
		"confidence":        c.Confidence,
	}).Info("Classification created")

	return nil
}

// GetByID retrieves a classification.
func (r *ClassificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Classification, error) {
	query := `
		SELECT id, candidate_id, extraction_id, hai_type, category,
			   confidence, reasoning, trace, created_at
		FROM classifications
		WHERE id = $1`

	return r.scanClassification(r.db.QueryRow(ctx, query, id))
}

// GetLatestByCandidate retrieves the current classification for a candidate.
func (r *ClassificationRepository) GetLatestByCandidate(ctx context.Context, candidateID uuid.UUID) (*domain.Classification, error) {
	query := `
		SELECT id, candidate_id, extraction_id, hai_type, category,
			   confidence, reasoning, trace, created_at
		FROM classifications
		WHERE candidate_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	return r.scanClassification(r.db.QueryRow(ctx, query, candidateID))
}

func (r *ClassificationRepository) scanClassification(row pgx.Row) (*domain.Classification, error) {
	var c domain.Classification
	var trace []byte

	err := row.Scan(
		&c.ID,
		&c.CandidateID,
		&c.ExtractionID,
		&c.HAIType,
		&c.Category,
		&c.Confidence,
		&c.Reasoning,
		&trace,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("classification not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting classification: %w", err)
	}

	if len(trace) > 0 {
		if err := json.Unmarshal(trace, &c.Trace); err != nil {
			return nil, fmt.Errorf("decoding rule trace: %w", err)
		}
	}
	return &c, nil
}
