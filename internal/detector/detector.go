// Package detector implements the per-HAI-type candidate screeners. Each
// detector scans a raw event range and emits Candidate records for events
// that satisfy the NHSN timing and threshold eligibility rules.
package detector

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hai-surveillance-server/internal/domain"
)

// Detector is the shared per-type screening contract.
type Detector interface {
	HAIType() domain.HAIType

	// MinDeviceDays is the minimum device-day count for eligibility.
	MinDeviceDays() int

	// SurveillanceWindowDays is the post-event (or post-removal) window
	// the type surveils.
	SurveillanceWindowDays() int

	// DetectCandidates scans [start, end) and returns qualifying
	// candidates. Malformed source records are logged and skipped.
	DetectCandidates(ctx context.Context, start, end time.Time) ([]*domain.Candidate, error)

	// ValidateDeviceEligibility reports whether a device placement
	// interval makes an event on eventDate eligible.
	ValidateDeviceEligibility(deviceStart time.Time, deviceEnd *time.Time, eventDate time.Time) bool
}

// DeviceDays computes calendar device days as of a reference date:
// max(0, (min(deviceEnd, asOf) - deviceStart).days). A nil deviceEnd means
// the device is still in place.
func DeviceDays(deviceStart time.Time, deviceEnd *time.Time, asOf time.Time) int {
	effectiveEnd := asOf
	if deviceEnd != nil && deviceEnd.Before(asOf) {
		effectiveEnd = *deviceEnd
	}
	days := int(effectiveEnd.Sub(deviceStart).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// newCandidate assembles a pending candidate with a fresh id.
func newCandidate(t domain.HAIType, event *domain.RawEvent, m domain.EligibilityMeasurements) *domain.Candidate {
	now := time.Now().UTC()
	return &domain.Candidate{
		ID:           uuid.New(),
		HAIType:      t,
		PatientID:    event.PatientID,
		EncounterID:  event.EncounterID,
		EventRef:     event.ID,
		EventTime:    event.Time,
		Status:       domain.StatusPending,
		Measurements: m,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// skipMalformed logs a source record that cannot be parsed into detector
// inputs. The scan continues with the remaining records.
func skipMalformed(log *logrus.Logger, t domain.HAIType, event *domain.RawEvent, err error) {
	log.WithFields(logrus.Fields{
		"hai_type": t,
		"event_id": event.ID,
		"error":    err,
	}).Warn("Skipping malformed source record")
}
