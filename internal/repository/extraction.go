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

// ExtractionRepository handles extraction persistence. Extractions are
// append-only; the latest row per candidate is the current one.
type ExtractionRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewExtractionRepository creates an extraction repository.
func NewExtractionRepository(db *pgxpool.Pool, logger *logrus.Logger) *ExtractionRepository {
	return &ExtractionRepository{
		db:  db,
		log: logger,
	}
}

// Create inserts an extraction. The typed facts and citations are stored
// as JSONB alongside the row.
func (r *ExtractionRepository) Create(ctx context.Context, e *domain.Extraction) error {
	facts, err := marshalFacts(e)
	if err != nil {
		return err
	}
	citations, err := json.Marshal(e.Citations)
	if err != nil {
		return fmt.Errorf("encoding citations: %w", err)
	}

	query := `
		INSERT INTO extractions (
			id, candidate_id, hai_type, quality, citations, facts, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)`

	_, err = r.db.Exec(ctx, query,
		e.ID,
		e.CandidateID,
		e.HAIType,
		e.Quality,
		citations,
		facts,
		e.CreatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"extraction_id": e.ID,
			"candidate_id":  e.CandidateID,
			"error":         err,
		}).Error("Failed to create extraction")
		return fmt.Errorf("creating extraction: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"extraction_id": e.ID,
		"candidate_id":  e.CandidateID,
		"quality":       e.Quality,
	}).Info("Extraction created")

	return nil
}

// GetByCandidate retrieves the latest extraction for a candidate.
func (r *ExtractionRepository) GetByCandidate(ctx context.Context, candidateID uuid.UUID) (*domain.Extraction, error) {
	query := `
		SELECT id, candidate_id, hai_type, quality, citations, facts, created_at
		FROM extractions
		WHERE candidate_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var e domain.Extraction
	var citations, facts []byte

	err := r.db.QueryRow(ctx, query, candidateID).Scan(
		&e.ID,
		&e.CandidateID,
		&e.HAIType,
		&e.Quality,
		&citations,
		&facts,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("extraction not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting extraction by candidate: %w", err)
	}

	if len(citations) > 0 {
		if err := json.Unmarshal(citations, &e.Citations); err != nil {
			return nil, fmt.Errorf("decoding citations: %w", err)
		}
	}
	if err := unmarshalFacts(&e, facts); err != nil {
		return nil, err
	}
	return &e, nil
}

// marshalFacts encodes the HAI-type-specific fact struct.
func marshalFacts(e *domain.Extraction) ([]byte, error) {
	var facts interface{}
	switch e.HAIType {
	case domain.HAITypeCLABSI:
		facts = e.CLABSI
	case domain.HAITypeCAUTI:
		facts = e.CAUTI
	case domain.HAITypeVAE:
		facts = e.VAE
	case domain.HAITypeSSI:
		facts = e.SSI
	default:
		return nil, fmt.Errorf("unsupported HAI type %q", e.HAIType)
	}
	data, err := json.Marshal(facts)
	if err != nil {
		return nil, fmt.Errorf("encoding facts: %w", err)
	}
	return data, nil
}

// unmarshalFacts decodes facts into the struct matching the HAI type.
func unmarshalFacts(e *domain.Extraction, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var err error
	switch e.HAIType {
	case domain.HAITypeCLABSI:
		e.CLABSI = &domain.CLABSIFacts{}
		err = json.Unmarshal(data, e.CLABSI)
	case domain.HAITypeCAUTI:
		e.CAUTI = &domain.CAUTIFacts{}
		err = json.Unmarshal(data, e.CAUTI)
	case domain.HAITypeVAE:
		e.VAE = &domain.VAEFacts{}
		err = json.Unmarshal(data, e.VAE)
	case domain.HAITypeSSI:
		e.SSI = &domain.SSIFacts{}
		err = json.Unmarshal(data, e.SSI)
	default:
		return fmt.Errorf("unsupported HAI type %q", e.HAIType)
	}
	if err != nil {
		return fmt.Errorf("decoding facts: %w", err)
	}
	return nil
}
