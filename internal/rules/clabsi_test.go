package rules

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hai-surveillance-server/internal/domain"
)

func clabsiEvaluate(t *testing.T, deviceDays int, facts domain.CLABSIFacts) Result {
	t.Helper()
	engine := NewCLABSIEngine(surveillanceConfig().CLABSI)
	candidate := &domain.Candidate{
		ID:           uuid.New(),
		HAIType:      domain.HAITypeCLABSI,
		PatientID:    "p1",
		EventRef:     "bc-1",
		Measurements: domain.EligibilityMeasurements{DeviceDays: deviceDays},
	}
	extraction := &domain.Extraction{
		ID:      uuid.New(),
		HAIType: domain.HAITypeCLABSI,
		Quality: domain.QualityAdequate,
		CLABSI:  &facts,
	}
	result, err := engine.Evaluate(candidate, extraction)
	require.NoError(t, err)
	return result
}

func TestCLABSIEngine_RecognizedPathogen(t *testing.T) {
	result := clabsiEvaluate(t, 3, domain.CLABSIFacts{RecognizedPathogen: true})

	assert.Equal(t, domain.CategoryCLABSI, result.Category)
	require.Len(t, result.Trace, 3)
	assert.Equal(t, "organism", result.Trace[1].Rule)
}

func TestCLABSIEngine_InsufficientLineDays(t *testing.T) {
	result := clabsiEvaluate(t, 1, domain.CLABSIFacts{RecognizedPathogen: true})

	assert.Equal(t, domain.CategoryNotEligible, result.Category)
	assert.Len(t, result.Trace, 1)
}

func TestCLABSIEngine_CommensalPaths(t *testing.T) {
	tests := []struct {
		name     string
		facts    domain.CLABSIFacts
		category domain.Category
	}{
		{
			name:     "single commensal culture is contaminant",
			facts:    domain.CLABSIFacts{CommonCommensal: true, MatchingCultureCount: 1, Fever: true},
			category: domain.CategoryContaminant,
		},
		{
			name:     "two cultures without symptoms is contaminant",
			facts:    domain.CLABSIFacts{CommonCommensal: true, MatchingCultureCount: 2},
			category: domain.CategoryContaminant,
		},
		{
			name:     "two cultures with symptoms qualifies",
			facts:    domain.CLABSIFacts{CommonCommensal: true, MatchingCultureCount: 2, Chills: true},
			category: domain.CategoryCLABSI,
		},
		{
			name:     "organism undocumented is contaminant",
			facts:    domain.CLABSIFacts{},
			category: domain.CategoryContaminant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := clabsiEvaluate(t, 3, tt.facts)
			assert.Equal(t, tt.category, result.Category)
		})
	}
}

func TestCLABSIEngine_SecondaryBSI(t *testing.T) {
	result := clabsiEvaluate(t, 3, domain.CLABSIFacts{RecognizedPathogen: true, AlternateInfectionSource: true})

	assert.Equal(t, domain.CategorySecondaryBSI, result.Category)
	require.Len(t, result.Trace, 3)
	assert.False(t, result.Trace[2].Passed)
}
