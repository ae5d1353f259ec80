package detector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hai-surveillance-server/internal/domain"
)

func clabsiConfig() domain.CLABSIConfig {
	return domain.CLABSIConfig{MinLineDays: 2, NoteWindowDays: 7}
}

func TestCLABSIDetector_DetectCandidates(t *testing.T) {
	source := &fakeSource{
		events: []domain.RawEvent{
			{ID: "bc-1", Kind: domain.EventBloodCulture, PatientID: "p1", EncounterID: "e1", Time: day(3), OrganismCount: 1},
			{ID: "bc-2", Kind: domain.EventBloodCulture, PatientID: "p2", Time: day(3)}, // no central line
			{ID: "bc-3", Kind: domain.EventBloodCulture, PatientID: "p3", Time: day(1)}, // line day 1, below minimum
			{ID: "", Kind: domain.EventBloodCulture, PatientID: "p1", Time: day(4)},     // malformed, skipped
		},
		lines: map[string]*domain.DeviceEpisode{
			"p1": {PatientID: "p1", InsertedAt: day(0)},
			"p3": {PatientID: "p3", InsertedAt: day(0)},
		},
	}

	d := NewCLABSIDetector(source, clabsiConfig(), testLogger())
	candidates, err := d.DetectCandidates(context.Background(), day(0), day(10))
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, domain.HAITypeCLABSI, c.HAIType)
	assert.Equal(t, "bc-1", c.EventRef)
	assert.Equal(t, "p1", c.PatientID)
	assert.Equal(t, "e1", c.EncounterID)
	assert.Equal(t, domain.StatusPending, c.Status)
	assert.Equal(t, 3, c.Measurements.DeviceDays)
	assert.False(t, c.CreatedAt.IsZero())
}

func TestCLABSIDetector_ValidateDeviceEligibility(t *testing.T) {
	d := NewCLABSIDetector(&fakeSource{}, clabsiConfig(), testLogger())
	removed := day(1)

	assert.True(t, d.ValidateDeviceEligibility(day(0), nil, day(2)))
	assert.False(t, d.ValidateDeviceEligibility(day(0), nil, day(1)))
	assert.False(t, d.ValidateDeviceEligibility(day(0), &removed, day(5)))
}
