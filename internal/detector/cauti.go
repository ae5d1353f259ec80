package detector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hai-surveillance-server/internal/domain"
)

// CAUTIDetector screens positive urine cultures for catheter association.
// An event qualifies when the indwelling catheter accumulated at least
// MinCatheterDays as of the culture date (or the culture falls within the
// post-removal window), the colony count meets the CFU threshold, and no
// more than MaxOrganisms species were isolated.
type CAUTIDetector struct {
	source domain.DataSource
	cfg    domain.CAUTIConfig
	log    *logrus.Logger
}

// NewCAUTIDetector creates a CAUTI candidate detector.
func NewCAUTIDetector(source domain.DataSource, cfg domain.CAUTIConfig, logger *logrus.Logger) *CAUTIDetector {
	return &CAUTIDetector{source: source, cfg: cfg, log: logger}
}

func (d *CAUTIDetector) HAIType() domain.HAIType { return domain.HAITypeCAUTI }

func (d *CAUTIDetector) MinDeviceDays() int { return d.cfg.MinCatheterDays }

func (d *CAUTIDetector) SurveillanceWindowDays() int { return d.cfg.PostRemovalWindowDays }

// ValidateDeviceEligibility requires MinCatheterDays accumulated by the
// event date and, when the catheter was already removed, that the event
// falls within the post-removal surveillance window.
func (d *CAUTIDetector) ValidateDeviceEligibility(deviceStart time.Time, deviceEnd *time.Time, eventDate time.Time) bool {
	if DeviceDays(deviceStart, deviceEnd, eventDate) < d.cfg.MinCatheterDays {
		return false
	}
	if deviceEnd != nil && eventDate.After(*deviceEnd) {
		windowEnd := deviceEnd.AddDate(0, 0, d.cfg.PostRemovalWindowDays)
		if eventDate.After(windowEnd) {
			return false
		}
	}
	return true
}

// DetectCandidates scans positive urine cultures in [start, end).
func (d *CAUTIDetector) DetectCandidates(ctx context.Context, start, end time.Time) ([]*domain.Candidate, error) {
	events, err := d.source.GetEvents(ctx, domain.EventUrineCulture, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetching urine culture events: %w", err)
	}

	var candidates []*domain.Candidate
	for i := range events {
		event := &events[i]
		if err := event.Validate(); err != nil {
			skipMalformed(d.log, domain.HAITypeCAUTI, event, err)
			continue
		}
		if event.ColonyCountCFU < 0 {
			skipMalformed(d.log, domain.HAITypeCAUTI, event, domain.NewValidationError("colony_count_cfu", "negative colony count"))
			continue
		}

		if event.ColonyCountCFU < d.cfg.MinColonyCountCFU {
			continue
		}
		if event.OrganismCount > d.cfg.MaxOrganisms {
			continue
		}

		catheter, err := d.source.GetUrinaryCatheter(ctx, event.PatientID, event.Time)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			skipMalformed(d.log, domain.HAITypeCAUTI, event, err)
			continue
		}

		if !d.ValidateDeviceEligibility(catheter.InsertedAt, catheter.RemovedAt, event.Time) {
			continue
		}

		candidates = append(candidates, newCandidate(domain.HAITypeCAUTI, event, domain.EligibilityMeasurements{
			DeviceDays:     DeviceDays(catheter.InsertedAt, catheter.RemovedAt, event.Time),
			ColonyCountCFU: event.ColonyCountCFU,
			OrganismCount:  event.OrganismCount,
		}))
	}

	d.log.WithFields(logrus.Fields{
		"hai_type":   domain.HAITypeCAUTI,
		"events":     len(events),
		"candidates": len(candidates),
	}).Info("Completed CAUTI detection scan")

	return candidates, nil
}
