// Package review implements the human-review workflow: the append-only
// review log, override derivation, and the aggregate acceptance and
// override views computed on read.
package review

import (
	"context"

	"github.com/google/uuid"

	"github.com/hai-surveillance-server/internal/domain"
)

// Store is the review log persistence interface. Two implementations
// exist: an embedded SQLite store for single-node deployments and a
// PostgreSQL store for shared ones.
type Store interface {
	// Save appends a review to the log.
	Save(ctx context.Context, review *domain.Review) error

	// GetByClassification returns the reviews for one classification,
	// oldest first.
	GetByClassification(ctx context.Context, classificationID uuid.UUID) ([]*domain.Review, error)

	// List returns reviews with pagination, newest first.
	List(ctx context.Context, limit, offset int) ([]*domain.Review, error)

	// Count returns the total number of reviews.
	Count(ctx context.Context) (int64, error)

	// Stats recomputes the aggregate acceptance/override view. Derived,
	// never stored.
	Stats(ctx context.Context) (*OverrideStats, error)

	// Close releases store resources.
	Close() error
}

// CategoryStats is the completed/override tally for one prior category.
type CategoryStats struct {
	Completed int64 `json:"completed"`
	Overrides int64 `json:"overrides"`
}

// OverrideStats is the aggregate review view. Completed counts only
// confirmed/rejected decisions; needs_more_info rows are excluded.
type OverrideStats struct {
	Completed       int64                             `json:"completed"`
	Overrides       int64                             `json:"overrides"`
	AcceptanceRate  float64                           `json:"acceptance_rate"`
	OverrideRate    float64                           `json:"override_rate"`
	ByPriorCategory map[domain.Category]CategoryStats `json:"by_prior_category"`
}

// computeRates fills the derived rate fields from the tallies.
func (s *OverrideStats) computeRates() {
	if s.Completed == 0 {
		return
	}
	s.OverrideRate = float64(s.Overrides) / float64(s.Completed)
	s.AcceptanceRate = float64(s.Completed-s.Overrides) / float64(s.Completed)
}
