package detector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hai-surveillance-server/internal/domain"
)

func cautiConfig() domain.CAUTIConfig {
	return domain.CAUTIConfig{
		MinCatheterDays:       2,
		MinColonyCountCFU:     100_000,
		MaxOrganisms:          2,
		PostRemovalWindowDays: 1,
		NoteWindowDays:        7,
	}
}

func TestCAUTIDetector_DetectCandidates(t *testing.T) {
	source := &fakeSource{
		events: []domain.RawEvent{
			{ID: "uc-1", Kind: domain.EventUrineCulture, PatientID: "p1", Time: day(3), ColonyCountCFU: 100_000, OrganismCount: 1},
			{ID: "uc-2", Kind: domain.EventUrineCulture, PatientID: "p1", Time: day(3), ColonyCountCFU: 99_999, OrganismCount: 1},  // below CFU threshold
			{ID: "uc-3", Kind: domain.EventUrineCulture, PatientID: "p1", Time: day(3), ColonyCountCFU: 200_000, OrganismCount: 3}, // mixed flora
			{ID: "uc-4", Kind: domain.EventUrineCulture, PatientID: "p2", Time: day(3), ColonyCountCFU: 100_000, OrganismCount: 1}, // no catheter
			{ID: "uc-5", Kind: domain.EventUrineCulture, PatientID: "p1", Time: day(4), ColonyCountCFU: -5, OrganismCount: 1},      // malformed
		},
		catheters: map[string]*domain.DeviceEpisode{
			"p1": {PatientID: "p1", InsertedAt: day(0)},
		},
	}

	d := NewCAUTIDetector(source, cautiConfig(), testLogger())
	candidates, err := d.DetectCandidates(context.Background(), day(0), day(10))
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, "uc-1", c.EventRef)
	assert.Equal(t, int64(100_000), c.Measurements.ColonyCountCFU)
	assert.Equal(t, 1, c.Measurements.OrganismCount)
	assert.Equal(t, 3, c.Measurements.DeviceDays)
}

func TestCAUTIDetector_PostRemovalWindow(t *testing.T) {
	removed := day(3)
	d := NewCAUTIDetector(&fakeSource{}, cautiConfig(), testLogger())

	// Culture on the day after removal is still in the window; two days
	// after is not.
	assert.True(t, d.ValidateDeviceEligibility(day(0), &removed, day(4)))
	assert.False(t, d.ValidateDeviceEligibility(day(0), &removed, day(5)))

	// Removal before enough catheter days accrued disqualifies regardless
	// of the window.
	earlyRemoval := day(1)
	assert.False(t, d.ValidateDeviceEligibility(day(0), &earlyRemoval, day(2)))
}
