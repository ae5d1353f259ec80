package review

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hai-surveillance-server/internal/domain"
)

// SQLiteStore implements Store on an embedded SQLite database for
// single-node deployments.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (or creates) the review database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSQLiteSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS reviews (
		id TEXT PRIMARY KEY,
		classification_id TEXT NOT NULL,
		reviewer TEXT NOT NULL,
		decision TEXT NOT NULL,
		notes TEXT DEFAULT '',
		prior_category TEXT NOT NULL,
		is_override INTEGER NOT NULL DEFAULT 0,
		override_reason TEXT DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reviews_classification ON reviews(classification_id);
	CREATE INDEX IF NOT EXISTS idx_reviews_created_at ON reviews(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// scanner is an interface for sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReview(s scanner) (*domain.Review, error) {
	r := &domain.Review{}
	var id, classificationID string

	err := s.Scan(
		&id, &classificationID, &r.Reviewer, &r.Decision,
		&r.Notes, &r.PriorCategory, &r.IsOverride, &r.OverrideReason, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if r.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid review id %q: %w", id, err)
	}
	if r.ClassificationID, err = uuid.Parse(classificationID); err != nil {
		return nil, fmt.Errorf("invalid classification id %q: %w", classificationID, err)
	}
	return r, nil
}

// Save appends a review to the log.
func (s *SQLiteStore) Save(ctx context.Context, review *domain.Review) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reviews (
			id, classification_id, reviewer, decision, notes,
			prior_category, is_override, override_reason, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		review.ID.String(),
		review.ClassificationID.String(),
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
func (s *SQLiteStore) GetByClassification(ctx context.Context, classificationID uuid.UUID) ([]*domain.Review, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, classification_id, reviewer, decision, notes,
			   prior_category, is_override, override_reason, created_at
		FROM reviews
		WHERE classification_id = ?
		ORDER BY created_at ASC`,
		classificationID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	return collectReviews(rows)
}

// List returns reviews with pagination, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*domain.Review, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, classification_id, reviewer, decision, notes,
			   prior_category, is_override, override_reason, created_at
		FROM reviews
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	return collectReviews(rows)
}

func collectReviews(rows *sql.Rows) ([]*domain.Review, error) {
	var reviews []*domain.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating reviews: %w", err)
	}
	return reviews, nil
}

// Count returns the total number of reviews.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reviews").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return count, nil
}

// Stats recomputes the aggregate acceptance/override view on read.
func (s *SQLiteStore) Stats(ctx context.Context) (*OverrideStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT prior_category,
			   COUNT(*),
			   COALESCE(SUM(is_override), 0)
		FROM reviews
		WHERE decision != ?
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
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
