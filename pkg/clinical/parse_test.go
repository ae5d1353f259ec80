package clinical

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hai-surveillance-server/internal/domain"
)

func TestParseExtractionResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		quality string
		wantErr bool
	}{
		{
			name:    "plain JSON",
			raw:     `{"quality":"adequate","facts":{"fever":true}}`,
			quality: "adequate",
		},
		{
			name:    "json code fence",
			raw:     "```json\n{\"quality\":\"detailed\",\"facts\":{\"fever\":true}}\n```",
			quality: "detailed",
		},
		{
			name:    "bare code fence",
			raw:     "```\n{\"quality\":\"limited\",\"facts\":{}}\n```",
			quality: "limited",
		},
		{
			name:    "leading prose",
			raw:     "Here are the extracted facts:\n{\"quality\":\"poor\",\"facts\":{\"fever\":false}}",
			quality: "poor",
		},
		{
			name:    "no JSON object",
			raw:     "the model refused",
			wantErr: true,
		},
		{
			name:    "invalid quality",
			raw:     `{"quality":"excellent","facts":{"fever":true}}`,
			wantErr: true,
		},
		{
			name:    "missing facts",
			raw:     `{"quality":"adequate"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := parseExtractionResponse(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrExtractionFailed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.quality, payload.Quality)
		})
	}
}

func TestParseExtractionResponse_EmptyFactsObjectAccepted(t *testing.T) {
	// An explicit empty facts object is valid wire data; the typed facts
	// simply default to all-negative.
	payload, err := parseExtractionResponse(`{"quality":"limited","facts":{}}`)
	require.NoError(t, err)
	assert.Equal(t, "limited", payload.Quality)
}

func TestBuildExtraction_TypedFacts(t *testing.T) {
	candidate := &domain.Candidate{ID: uuid.New(), HAIType: domain.HAITypeCAUTI}
	payload, err := parseExtractionResponse(`{"quality":"adequate","facts":{"fever":true,"dysuria":true}}`)
	require.NoError(t, err)

	extraction, err := buildExtraction(candidate, payload)
	require.NoError(t, err)

	assert.Equal(t, candidate.ID, extraction.CandidateID)
	assert.Equal(t, domain.QualityAdequate, extraction.Quality)
	require.NotNil(t, extraction.CAUTI)
	assert.True(t, extraction.CAUTI.Fever)
	assert.True(t, extraction.CAUTI.Dysuria)
	assert.Nil(t, extraction.CLABSI)
}

func TestBuildExtraction_MalformedFacts(t *testing.T) {
	candidate := &domain.Candidate{ID: uuid.New(), HAIType: domain.HAITypeVAE}
	payload, err := parseExtractionResponse(`{"quality":"adequate","facts":{"new_antimicrobial_days":"four"}}`)
	require.NoError(t, err)

	_, err = buildExtraction(candidate, payload)
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
}
