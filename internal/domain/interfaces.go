package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DataSource is the read interface detectors consume. Concrete adapters
// (FHIR, HL7 feed, tabular warehouse) live outside this module.
type DataSource interface {
	// GetEvents returns raw events of the given kind in [start, end).
	GetEvents(ctx context.Context, kind EventKind, start, end time.Time) ([]RawEvent, error)

	// GetCentralLine returns the central line episode covering asOf, or
	// ErrNotFound when the patient had no line.
	GetCentralLine(ctx context.Context, patientID string, asOf time.Time) (*DeviceEpisode, error)

	// GetUrinaryCatheter returns the most recent indwelling urinary
	// catheter episode at or before asOf, or ErrNotFound.
	GetUrinaryCatheter(ctx context.Context, patientID string, asOf time.Time) (*DeviceEpisode, error)

	// GetVentilatorDailyValues returns per-day minimum FiO2/PEEP values
	// for a ventilation episode, ordered by date.
	GetVentilatorDailyValues(ctx context.Context, patientID string, start, end time.Time) ([]VentilatorDay, error)

	// GetProcedure resolves a procedure reference.
	GetProcedure(ctx context.Context, procedureID string) (*Procedure, error)
}

// NoteRetriever fetches clinical note text for a patient window.
type NoteRetriever interface {
	GetNotes(ctx context.Context, patientID string, center time.Time, windowDays int, noteTypes []string) (string, error)
}

// FactExtractor is the fact extraction port. The concrete implementation
// is an external language-model service; the core only depends on this
// interface so tests substitute a deterministic stub.
type FactExtractor interface {
	Extract(ctx context.Context, candidate *Candidate, text string) (*Extraction, error)
}

// CandidateRepository persists candidates. Candidates are append-mostly:
// creation is insert-if-absent on (HAI type, event reference) and the only
// mutation is the monotonic status pointer.
type CandidateRepository interface {
	// CreateIfAbsent inserts the candidate unless one already exists for
	// the same (HAIType, EventRef). Returns false on the duplicate no-op.
	CreateIfAbsent(ctx context.Context, c *Candidate) (bool, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Candidate, error)

	// UpdateStatus advances the candidate lifecycle. Implementations
	// reject regressions with ErrStatusRegression.
	UpdateStatus(ctx context.Context, id uuid.UUID, status CandidateStatus, outcome CandidateOutcome) error

	// ListByStatus returns candidates of one type in a given status,
	// oldest first, for batch classification runs.
	ListByStatus(ctx context.Context, haiType HAIType, status CandidateStatus, limit int) ([]*Candidate, error)
}

// ExtractionRepository persists extractions, append-only per candidate.
type ExtractionRepository interface {
	Create(ctx context.Context, e *Extraction) error
	GetByCandidate(ctx context.Context, candidateID uuid.UUID) (*Extraction, error)
}

// ClassificationRepository persists classifications, append-only; the
// latest row per candidate is the current classification.
type ClassificationRepository interface {
	Create(ctx context.Context, c *Classification) error
	GetByID(ctx context.Context, id uuid.UUID) (*Classification, error)
	GetLatestByCandidate(ctx context.Context, candidateID uuid.UUID) (*Classification, error)
}
