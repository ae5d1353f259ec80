package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hai-surveillance-server/internal/database"
	"github.com/hai-surveillance-server/internal/domain"
)

func generateTestPassword() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(bytes)
}

func setupTestDB(t *testing.T) (*database.DB, func()) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	testPassword := generateTestPassword()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	config := domain.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		Database:        "testdb",
		Username:        "testuser",
		Password:        testPassword,
		SSLMode:         "disable",
		MaxConns:        10,
		MinConns:        2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := database.NewConnection(ctx, config, logger)
	if err != nil {
		t.Fatalf("Failed to create database connection: %v", err)
	}

	databaseURL := "postgres://testuser:" + testPassword + "@" + host + ":" + port.Port() + "/testdb?sslmode=disable"
	migrationRunner, err := database.NewMigrationRunner(databaseURL, "../../migrations", logger)
	if err != nil {
		t.Fatalf("Failed to create migration runner: %v", err)
	}
	if err := migrationRunner.Up(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		migrationRunner.Close()
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}

	return db, cleanup
}

func testCandidate(haiType domain.HAIType, eventRef string) *domain.Candidate {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Candidate{
		ID:          uuid.New(),
		HAIType:     haiType,
		PatientID:   "p1",
		EncounterID: "e1",
		EventRef:    eventRef,
		EventTime:   now.AddDate(0, 0, -1),
		Status:      domain.StatusPending,
		Measurements: domain.EligibilityMeasurements{
			DeviceDays:     3,
			ColonyCountCFU: 120_000,
			OrganismCount:  1,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCandidateRepository_CreateIfAbsent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewCandidateRepository(db.Pool, logger)
	ctx := context.Background()

	candidate := testCandidate(domain.HAITypeCAUTI, "uc-1")
	created, err := repo.CreateIfAbsent(ctx, candidate)
	require.NoError(t, err)
	assert.True(t, created)

	// A second detection scan produces the same (hai_type, event_ref);
	// the insert is a silent no-op.
	duplicate := testCandidate(domain.HAITypeCAUTI, "uc-1")
	created, err = repo.CreateIfAbsent(ctx, duplicate)
	require.NoError(t, err)
	assert.False(t, created)

	// The same event ref under a different HAI type is a new candidate.
	other := testCandidate(domain.HAITypeCLABSI, "uc-1")
	created, err = repo.CreateIfAbsent(ctx, other)
	require.NoError(t, err)
	assert.True(t, created)

	got, err := repo.GetByID(ctx, candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, candidate.EventRef, got.EventRef)
	assert.Equal(t, candidate.Measurements, got.Measurements)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestCandidateRepository_UpdateStatus(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewCandidateRepository(db.Pool, logger)
	ctx := context.Background()

	candidate := testCandidate(domain.HAITypeCAUTI, "uc-2")
	_, err := repo.CreateIfAbsent(ctx, candidate)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, candidate.ID, domain.StatusExtracted, domain.OutcomeNone))
	require.NoError(t, repo.UpdateStatus(ctx, candidate.ID, domain.StatusClassified, domain.OutcomeNone))
	require.NoError(t, repo.UpdateStatus(ctx, candidate.ID, domain.StatusReviewed, domain.OutcomeConfirmed))

	// Regressions are rejected and leave the row untouched.
	err = repo.UpdateStatus(ctx, candidate.ID, domain.StatusPending, domain.OutcomeNone)
	assert.ErrorIs(t, err, domain.ErrStatusRegression)

	got, err := repo.GetByID(ctx, candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReviewed, got.Status)
	assert.Equal(t, domain.OutcomeConfirmed, got.Outcome)

	err = repo.UpdateStatus(ctx, uuid.New(), domain.StatusExtracted, domain.OutcomeNone)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCandidateRepository_ListByStatus(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewCandidateRepository(db.Pool, logger)
	ctx := context.Background()

	older := testCandidate(domain.HAITypeVAE, "vae-1")
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	newer := testCandidate(domain.HAITypeVAE, "vae-2")

	for _, c := range []*domain.Candidate{newer, older} {
		_, err := repo.CreateIfAbsent(ctx, c)
		require.NoError(t, err)
	}

	got, err := repo.ListByStatus(ctx, domain.HAITypeVAE, domain.StatusPending, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "vae-1", got[0].EventRef, "oldest candidate first")
	assert.Equal(t, "vae-2", got[1].EventRef)

	got, err = repo.ListByStatus(ctx, domain.HAITypeVAE, domain.StatusPending, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = repo.ListByStatus(ctx, domain.HAITypeSSI, domain.StatusPending, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExtractionAndClassificationRoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	candidates := NewCandidateRepository(db.Pool, logger)
	extractions := NewExtractionRepository(db.Pool, logger)
	classifications := NewClassificationRepository(db.Pool, logger)
	ctx := context.Background()

	candidate := testCandidate(domain.HAITypeCAUTI, "uc-3")
	_, err := candidates.CreateIfAbsent(ctx, candidate)
	require.NoError(t, err)

	extraction := &domain.Extraction{
		ID:          uuid.New(),
		CandidateID: candidate.ID,
		HAIType:     domain.HAITypeCAUTI,
		Quality:     domain.QualityDetailed,
		Citations:   []domain.FactCitation{{Fact: "fever", Excerpt: "febrile to 38.9C overnight"}},
		CAUTI:       &domain.CAUTIFacts{Fever: true, Dysuria: true},
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, extractions.Create(ctx, extraction))

	gotExtraction, err := extractions.GetByCandidate(ctx, candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, extraction.ID, gotExtraction.ID)
	assert.Equal(t, extraction.Quality, gotExtraction.Quality)
	assert.Equal(t, extraction.Citations, gotExtraction.Citations)
	require.NotNil(t, gotExtraction.CAUTI)
	assert.True(t, gotExtraction.CAUTI.Fever)

	classification := &domain.Classification{
		ID:           uuid.New(),
		CandidateID:  candidate.ID,
		ExtractionID: &extraction.ID,
		HAIType:      domain.HAITypeCAUTI,
		Category:     domain.CategoryCAUTI,
		Confidence:   0.95,
		Reasoning:    "Catheter-associated urinary tract infection meets NHSN criteria",
		Trace: []domain.RuleTraceEntry{
			{Rule: "eligibility", Passed: true},
			{Rule: "symptoms", Passed: true, Detail: "documented symptoms: fever, dysuria"},
			{Rule: "alternate_source", Passed: true},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, classifications.Create(ctx, classification))

	got, err := classifications.GetLatestByCandidate(ctx, candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, classification.ID, got.ID)
	assert.Equal(t, domain.CategoryCAUTI, got.Category)
	assert.InDelta(t, 0.95, got.Confidence, 1e-9)
	assert.Equal(t, classification.Trace, got.Trace)

	// A re-classification becomes the latest.
	second := &domain.Classification{
		ID:          uuid.New(),
		CandidateID: candidate.ID,
		HAIType:     domain.HAITypeCAUTI,
		Category:    domain.CategorySecondaryUTI,
		Confidence:  0.85,
		Reasoning:   "UTI attributed to a documented alternate source",
		CreatedAt:   classification.CreatedAt.Add(time.Minute),
	}
	require.NoError(t, classifications.Create(ctx, second))

	got, err = classifications.GetLatestByCandidate(ctx, candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	_, err = classifications.GetLatestByCandidate(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
