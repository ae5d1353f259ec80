package detector

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/hai-surveillance-server/internal/domain"
)

// fakeSource is an in-memory DataSource for detector tests.
type fakeSource struct {
	events     []domain.RawEvent
	lines      map[string]*domain.DeviceEpisode
	catheters  map[string]*domain.DeviceEpisode
	ventDays   map[string][]domain.VentilatorDay
	procedures map[string]*domain.Procedure

	procedureLookups int
}

func (f *fakeSource) GetEvents(_ context.Context, kind domain.EventKind, start, end time.Time) ([]domain.RawEvent, error) {
	var out []domain.RawEvent
	for _, e := range f.events {
		if e.Kind != kind {
			continue
		}
		if e.Time.Before(start) || !e.Time.Before(end) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeSource) GetCentralLine(_ context.Context, patientID string, _ time.Time) (*domain.DeviceEpisode, error) {
	if ep, ok := f.lines[patientID]; ok {
		return ep, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeSource) GetUrinaryCatheter(_ context.Context, patientID string, _ time.Time) (*domain.DeviceEpisode, error) {
	if ep, ok := f.catheters[patientID]; ok {
		return ep, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeSource) GetVentilatorDailyValues(_ context.Context, patientID string, _, _ time.Time) ([]domain.VentilatorDay, error) {
	return f.ventDays[patientID], nil
}

func (f *fakeSource) GetProcedure(_ context.Context, procedureID string) (*domain.Procedure, error) {
	f.procedureLookups++
	if p, ok := f.procedures[procedureID]; ok {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func day(offset int) time.Time {
	return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func TestDeviceDays(t *testing.T) {
	removed := day(3)

	tests := []struct {
		name       string
		start      time.Time
		end        *time.Time
		asOf       time.Time
		expected   int
	}{
		{name: "still in place", start: day(0), end: nil, asOf: day(4), expected: 4},
		{name: "removed before asOf caps at removal", start: day(0), end: &removed, asOf: day(10), expected: 3},
		{name: "removed after asOf uses asOf", start: day(0), end: &removed, asOf: day(2), expected: 2},
		{name: "asOf before insertion clamps to zero", start: day(5), end: nil, asOf: day(2), expected: 0},
		{name: "same day is zero device days", start: day(1), end: nil, asOf: day(1), expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeviceDays(tt.start, tt.end, tt.asOf))
		})
	}
}
