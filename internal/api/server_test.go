package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hai-surveillance-server/internal/domain"
	"github.com/hai-surveillance-server/internal/review"
)

type fakeCandidates struct {
	byID   map[uuid.UUID]*domain.Candidate
	listed []*domain.Candidate
}

func (f *fakeCandidates) CreateIfAbsent(_ context.Context, _ *domain.Candidate) (bool, error) {
	return false, errors.New("not used")
}

func (f *fakeCandidates) GetByID(_ context.Context, id uuid.UUID) (*domain.Candidate, error) {
	if c, ok := f.byID[id]; ok {
		return c, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCandidates) UpdateStatus(_ context.Context, _ uuid.UUID, _ domain.CandidateStatus, _ domain.CandidateOutcome) error {
	return nil
}

func (f *fakeCandidates) ListByStatus(_ context.Context, _ domain.HAIType, _ domain.CandidateStatus, limit int) ([]*domain.Candidate, error) {
	if len(f.listed) > limit {
		return f.listed[:limit], nil
	}
	return f.listed, nil
}

type fakeClassifications struct {
	latest map[uuid.UUID]*domain.Classification
}

func (f *fakeClassifications) Create(_ context.Context, _ *domain.Classification) error {
	return errors.New("not used")
}

func (f *fakeClassifications) GetByID(_ context.Context, _ uuid.UUID) (*domain.Classification, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeClassifications) GetLatestByCandidate(_ context.Context, candidateID uuid.UUID) (*domain.Classification, error) {
	if c, ok := f.latest[candidateID]; ok {
		return c, nil
	}
	return nil, domain.ErrNotFound
}

type fakeReviews struct {
	submitted  *domain.Review
	submitErr  error
	history    []*domain.Review
	stats      *review.OverrideStats
	lastLimit  int
	lastOffset int
}

func (f *fakeReviews) SubmitReview(_ context.Context, classificationID uuid.UUID, reviewer string, decision domain.ReviewDecision, notes, overrideReason string) (*domain.Review, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = &domain.Review{
		ID:               uuid.New(),
		ClassificationID: classificationID,
		Reviewer:         reviewer,
		Decision:         decision,
		Notes:            notes,
		OverrideReason:   overrideReason,
		CreatedAt:        time.Now().UTC(),
	}
	return f.submitted, nil
}

func (f *fakeReviews) GetByClassification(_ context.Context, _ uuid.UUID) ([]*domain.Review, error) {
	return f.history, nil
}

func (f *fakeReviews) List(_ context.Context, limit, offset int) ([]*domain.Review, error) {
	f.lastLimit, f.lastOffset = limit, offset
	return f.history, nil
}

func (f *fakeReviews) Stats(_ context.Context) (*review.OverrideStats, error) {
	return f.stats, nil
}

type fakeHealth struct{ err error }

func (f *fakeHealth) Health(_ context.Context) error { return f.err }

func newTestServer(candidates *fakeCandidates, classifications *fakeClassifications, reviews *fakeReviews, health *fakeHealth) *Server {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewServer(Config{
		Server:          domain.ServerConfig{Host: "127.0.0.1", Port: 0},
		Candidates:      candidates,
		Classifications: classifications,
		Reviews:         reviews,
		Health:          health,
	}, log)
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(&fakeCandidates{}, &fakeClassifications{}, &fakeReviews{}, &fakeHealth{})
	rec := doRequest(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	s = newTestServer(&fakeCandidates{}, &fakeClassifications{}, &fakeReviews{}, &fakeHealth{err: errors.New("pool exhausted")})
	rec = doRequest(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleListCandidates(t *testing.T) {
	candidate := &domain.Candidate{ID: uuid.New(), HAIType: domain.HAITypeCAUTI, EventRef: "uc-1", Status: domain.StatusClassified}
	candidates := &fakeCandidates{listed: []*domain.Candidate{candidate}}
	s := newTestServer(candidates, &fakeClassifications{}, &fakeReviews{}, &fakeHealth{})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/candidates?hai_type=CAUTI", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Candidates []*domain.Candidate `json:"candidates"`
		Count      int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "uc-1", resp.Candidates[0].EventRef)
}

func TestHandleListCandidates_Validation(t *testing.T) {
	s := newTestServer(&fakeCandidates{}, &fakeClassifications{}, &fakeReviews{}, &fakeHealth{})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/candidates", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "hai_type is required")

	rec = doRequest(t, s, http.MethodGet, "/api/v1/candidates?hai_type=MRSA", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/candidates?hai_type=CAUTI&status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetCandidate(t *testing.T) {
	candidate := &domain.Candidate{ID: uuid.New(), HAIType: domain.HAITypeCLABSI, EventRef: "bc-1"}
	candidates := &fakeCandidates{byID: map[uuid.UUID]*domain.Candidate{candidate.ID: candidate}}
	s := newTestServer(candidates, &fakeClassifications{}, &fakeReviews{}, &fakeHealth{})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/candidates/"+candidate.ID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/candidates/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/candidates/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetClassification(t *testing.T) {
	candidateID := uuid.New()
	classification := &domain.Classification{
		ID:          uuid.New(),
		CandidateID: candidateID,
		HAIType:     domain.HAITypeCAUTI,
		Category:    domain.CategoryCAUTI,
		Confidence:  0.85,
	}
	classifications := &fakeClassifications{latest: map[uuid.UUID]*domain.Classification{candidateID: classification}}
	s := newTestServer(&fakeCandidates{}, classifications, &fakeReviews{}, &fakeHealth{})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/candidates/"+candidateID.String()+"/classification", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.Classification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, domain.CategoryCAUTI, got.Category)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/candidates/"+uuid.NewString()+"/classification", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSubmitReview(t *testing.T) {
	reviews := &fakeReviews{}
	s := newTestServer(&fakeCandidates{}, &fakeClassifications{}, reviews, &fakeHealth{})

	classificationID := uuid.New()
	rec := doRequest(t, s, http.MethodPost, "/api/v1/reviews", map[string]any{
		"classification_id": classificationID,
		"reviewer":          "jdoe",
		"decision":          "confirmed",
		"notes":             "meets criteria",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, reviews.submitted)
	assert.Equal(t, classificationID, reviews.submitted.ClassificationID)
	assert.Equal(t, domain.DecisionConfirmed, reviews.submitted.Decision)
}

func TestHandleSubmitReview_Errors(t *testing.T) {
	tests := []struct {
		name       string
		submitErr  error
		body       map[string]any
		wantStatus int
	}{
		{
			name:       "missing reviewer rejected by binding",
			body:       map[string]any{"classification_id": uuid.New(), "decision": "confirmed"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "validation error from service",
			submitErr:  domain.NewValidationError("decision", "unknown decision"),
			body:       map[string]any{"classification_id": uuid.New(), "reviewer": "jdoe", "decision": "maybe"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown classification",
			submitErr:  domain.ErrNotFound,
			body:       map[string]any{"classification_id": uuid.New(), "reviewer": "jdoe", "decision": "confirmed"},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "status regression",
			submitErr:  domain.ErrStatusRegression,
			body:       map[string]any{"classification_id": uuid.New(), "reviewer": "jdoe", "decision": "confirmed"},
			wantStatus: http.StatusConflict,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(&fakeCandidates{}, &fakeClassifications{}, &fakeReviews{submitErr: tc.submitErr}, &fakeHealth{})
			rec := doRequest(t, s, http.MethodPost, "/api/v1/reviews", tc.body)
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestHandleListReviews_Pagination(t *testing.T) {
	reviews := &fakeReviews{history: []*domain.Review{{ID: uuid.New(), Reviewer: "jdoe"}}}
	s := newTestServer(&fakeCandidates{}, &fakeClassifications{}, reviews, &fakeHealth{})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/reviews?limit=10&offset=20", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, reviews.lastLimit)
	assert.Equal(t, 20, reviews.lastOffset)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/reviews?limit=junk", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultListLimit, reviews.lastLimit, "bad limit falls back to default")
}

func TestHandleReviewStats(t *testing.T) {
	stats := &review.OverrideStats{
		Completed:      4,
		Overrides:      1,
		AcceptanceRate: 0.75,
		OverrideRate:   0.25,
		ByPriorCategory: map[domain.Category]review.CategoryStats{
			domain.CategoryCAUTI: {Completed: 4, Overrides: 1},
		},
	}
	s := newTestServer(&fakeCandidates{}, &fakeClassifications{}, &fakeReviews{stats: stats}, &fakeHealth{})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/reviews/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got review.OverrideStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(4), got.Completed)
	assert.InDelta(t, 0.25, got.OverrideRate, 1e-9)
}
