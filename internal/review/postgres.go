package review

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/hai-surveillance-server/internal/domain"
)

// PostgresStore implements Store on PostgreSQL for shared deployments.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL review store over an existing
// connection and ensures the review schema exists.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createPostgresSchema(db); err != nil {
		return nil, fmt.Errorf("failed to create review schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a PostgreSQL review store from a
// connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func createPostgresSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS reviews (
		id UUID PRIMARY KEY,
		classification_id UUID NOT NULL,
		reviewer TEXT NOT NULL,
		decision TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		prior_category TEXT NOT NULL,
		is_override BOOLEAN NOT NULL DEFAULT FALSE,
		override_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reviews_classification ON reviews(classification_id);
	CREATE INDEX IF NOT EXISTS idx_reviews_created_at ON reviews(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save appends a review to the log.
func (s *PostgresStore) Save(ctx context.Context, review *domain.Review) error {
	query := `
		INSERT INTO reviews (
			id, classification_id, reviewer, decision, notes,
			prior_category, is_override, override_reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.ExecContext(ctx, query,
		review.ID,
		review.ClassificationID,
		review.Reviewer,
		string(review.Decision),
		review.Notes,
		string(review.PriorCategory),
		review.IsOverride,
		review.OverrideReason,
		review.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save review: %w", err)
	}
	return nil
}

// GetByClassification returns the reviews for one classification, oldest first.
func (s *PostgresStore) GetByClassification(ctx context.Context, classificationID uuid.UUID) ([]*domain.Review, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, classification_id, reviewer, decision, notes,
			   prior_category, is_override, override_reason, created_at
		FROM reviews
		WHERE classification_id = $1
		ORDER BY created_at ASC`,
		classificationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	return collectPostgresReviews(rows)
}

// List returns reviews with pagination, newest first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*domain.Review, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, classification_id, reviewer, decision, notes,
			   prior_category, is_override, override_reason, created_at
		FROM reviews
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	return collectPostgresReviews(rows)
}

func collectPostgresReviews(rows *sql.Rows) ([]*domain.Review, error) {
	var reviews []*domain.Review
	for rows.Next() {
		r := &domain.Review{}
		err := rows.Scan(
			&r.ID, &r.ClassificationID, &r.Reviewer, &r.Decision,
			&r.Notes, &r.PriorCategory, &r.IsOverride, &r.OverrideReason, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating reviews: %w", err)
	}
	return reviews, nil
}

// Count returns the total number of reviews.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reviews").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return count, nil
}

// Stats recomputes the aggregate acceptance/override view on read.
func (s *PostgresStore) Stats(ctx context.Context) (*OverrideStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT prior_category,
			   COUNT(*),
			   COUNT(*) FILTER (WHERE is_override)
		FROM reviews
		WHERE decision != $1
		GROUP BY prior_category`,
		string(domain.DecisionNeedsMoreInfo),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute review stats: %w", err)
	}
	defer rows.Close()

	stats := &OverrideStats{ByPriorCategory: make(map[domain.Category]CategoryStats)}
	for rows.Next() {
		var category string
		var cs CategoryStats
		if err := rows.Scan(&category, &cs.Completed, &cs.Overrides); err != nil {
			return nil, fmt.Errorf("failed to scan review stats: %w", err)
		}
		stats.ByPriorCategory[domain.Category(category)] = cs
		stats.Completed += cs.Completed
		stats.Overrides += cs.Overrides
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating review stats: %w", err)
	}

	stats.computeRates()
	return stats, nil
}

// Close closes the store.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
