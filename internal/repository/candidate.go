// Package repository implements the PostgreSQL persistence for
// candidates, extractions, and classifications.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/hai-surveillance-server/internal/domain"
)

// CandidateRepository handles candidate persistence.
type CandidateRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewCandidateRepository creates a candidate repository.
func NewCandidateRepository(db *pgxpool.Pool, logger *logrus.Logger) *CandidateRepository {
	return &CandidateRepository{
		db:  db,
		log: logger,
	}
}

// CreateIfAbsent inserts the candidate unless one already exists for the
// same (hai_type, event_ref). Returns false on the duplicate no-op, so
// repeated detection scans stay idempotent.
func (r *CandidateRepository) CreateIfAbsent(ctx context.Context, c *domain.Candidate) (bool, error) {
	measurements, err := json.Marshal(c.Measurements)
	if err != nil {
		return false, fmt.Errorf("encoding measurements: %w", err)
	}

	query := `
		INSERT INTO candidates (
			id, hai_type, patient_id, encounter_id, event_ref, event_time,
			status, outcome, measurements, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		ON CONFLICT (hai_type, event_ref) DO NOTHING`

	tag, err := r.db.Exec(ctx, query,
		c.ID,
		c.HAIType,
		c.PatientID,
		c.EncounterID,
		c.EventRef,
		c.EventTime,
		c.Status,
		c.Outcome,
		measurements,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"candidate_id": c.ID,
			"hai_type":     c.HAIType,
			"event_ref":    c.EventRef,
			"error":        err,
		}).Error("Failed to create candidate")
		return false, fmt.Errorf("creating candidate: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return false, nil
	}

	r.log.WithFields(logrus.Fields{
		"candidate_id": c.ID,
		"hai_type":     c.HAIType,
		"event_ref":    c.EventRef,
	}).Info("Candidate created")

	return true, nil
}

// GetByID retrieves a candidate.
func (r *CandidateRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Candidate, error) {
	query := `
		SELECT id, hai_type, patient_id, encounter_id, event_ref, event_time,
			   status, outcome, measurements, created_at, updated_at
		FROM candidates
		WHERE id = $1`

	candidate, err := scanCandidate(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("candidate not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"candidate_id": id,
			"error":        err,
		}).Error("Failed to get candidate by ID")
		return nil, fmt.Errorf("getting candidate by ID: %w", err)
	}
	return candidate, nil
}

// UpdateStatus advances the candidate lifecycle and records the terminal
// outcome. Regressions against the monotonic status order are rejected
// with ErrStatusRegression.
func (r *CandidateRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CandidateStatus, outcome domain.CandidateOutcome) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning status update: %w", err)
	}
	defer tx.Rollback(ctx)

	var current domain.CandidateStatus
	err = tx.QueryRow(ctx, `SELECT status FROM candidates WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("candidate not found: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("locking candidate for status update: %w", err)
	}

	if !current.CanTransition(status) {
		return fmt.Errorf("candidate %s cannot move from %s to %s: %w", id, current, status, domain.ErrStatusRegression)
	}

	_, err = tx.Exec(ctx, `
		UPDATE candidates
		SET status = $2, outcome = $3, updated_at = $4
		WHERE id = $1`,
		id, status, outcome, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("updating candidate status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing status update: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"candidate_id": id,
		"status":       status,
		"outcome":      outcome,
	}).Info("Candidate status updated")

	return nil
}

// ListByStatus returns candidates of one type in a given status, oldest
// first, for batch classification runs.
func (r *CandidateRepository) ListByStatus(ctx context.Context, haiType domain.HAIType, status domain.CandidateStatus, limit int) ([]*domain.Candidate, error) {
	query := `
		SELECT id, hai_type, patient_id, encounter_id, event_ref, event_time,
			   status, outcome, measurements, created_at, updated_at
		FROM candidates
		WHERE hai_type = $1 AND status = $2
		ORDER BY created_at ASC
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, haiType, status, limit)
	if err != nil {
		return nil, fmt.Errorf("listing candidates: %w", err)
	}
	defer rows.Close()

	var candidates []*domain.Candidate
	for rows.Next() {
		candidate, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning candidate row: %w", err)
		}
		candidates = append(candidates, candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating candidate rows: %w", err)
	}
	return candidates, nil
}

// scanCandidate decodes one candidate row.
func scanCandidate(row pgx.Row) (*domain.Candidate, error) {
	var c domain.Candidate
	var measurements []byte

	err := row.Scan(
		&c.ID,
		&c.HAIType,
		&c.PatientID,
		&c.EncounterID,
		&c.EventRef,
		&c.EventTime,
		&c.Status,
		&c.Outcome,
		&measurements,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(measurements) > 0 {
		if err := json.Unmarshal(measurements, &c.Measurements); err != nil {
			return nil, fmt.Errorf("decoding measurements: %w", err)
		}
	}
	return &c, nil
}
