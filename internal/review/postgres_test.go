package review

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hai-surveillance-server/internal/domain"
)

// Skip unless TEST_DATABASE_URL points at a PostgreSQL instance.
func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL tests")
	}

	store, err := NewPostgresStoreFromURL(dbURL)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.db.Exec("DELETE FROM reviews")
		store.Close()
	})
	return store
}

func TestPostgresStore_SaveAndStats(t *testing.T) {
	store := newTestPostgresStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	reviews := []*domain.Review{
		sampleReview(domain.DecisionConfirmed, domain.CategoryVAC, false, now),
		sampleReview(domain.DecisionRejected, domain.CategoryVAC, true, now),
		sampleReview(domain.DecisionNeedsMoreInfo, domain.CategoryVAC, false, now),
	}
	for _, r := range reviews {
		require.NoError(t, store.Save(ctx, r))
	}

	got, err := store.GetByClassification(ctx, reviews[0].ClassificationID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, reviews[0].ID, got[0].ID)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Completed)
	assert.Equal(t, int64(1), stats.Overrides)
	assert.InDelta(t, 0.5, stats.OverrideRate, 1e-9)

	listed, err := store.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, listed, 3)
}

func TestPostgresStore_GetByClassificationEmpty(t *testing.T) {
	store := newTestPostgresStore(t)

	got, err := store.GetByClassification(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, got)
}
