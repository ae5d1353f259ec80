package detector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hai-surveillance-server/internal/domain"
)

// CLABSIDetector screens positive blood cultures for central-line
// association: the line must have been in place for at least
// MinLineDays calendar days as of the culture date.
type CLABSIDetector struct {
	source domain.DataSource
	cfg    domain.CLABSIConfig
	log    *logrus.Logger
}

// NewCLABSIDetector creates a CLABSI candidate detector.
func NewCLABSIDetector(source domain.DataSource, cfg domain.CLABSIConfig, logger *logrus.Logger) *CLABSIDetector {
	return &CLABSIDetector{source: source, cfg: cfg, log: logger}
}

func (d *CLABSIDetector) HAIType() domain.HAIType { return domain.HAITypeCLABSI }

func (d *CLABSIDetector) MinDeviceDays() int { return d.cfg.MinLineDays }

// SurveillanceWindowDays: CLABSI attributes cultures on the day of removal
// or the next day, matching the device-day calculation itself.
func (d *CLABSIDetector) SurveillanceWindowDays() int { return 1 }

func (d *CLABSIDetector) ValidateDeviceEligibility(deviceStart time.Time, deviceEnd *time.Time, eventDate time.Time) bool {
	return DeviceDays(deviceStart, deviceEnd, eventDate) >= d.cfg.MinLineDays
}

// DetectCandidates scans positive blood cultures in [start, end).
func (d *CLABSIDetector) DetectCandidates(ctx context.Context, start, end time.Time) ([]*domain.Candidate, error) {
	events, err := d.source.GetEvents(ctx, domain.EventBloodCulture, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetching blood culture events: %w", err)
	}

	var candidates []*domain.Candidate
	for i := range events {
		event := &events[i]
		if err := event.Validate(); err != nil {
			skipMalformed(d.log, domain.HAITypeCLABSI, event, err)
			continue
		}

		line, err := d.source.GetCentralLine(ctx, event.PatientID, event.Time)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue // no central line, not surveillance-eligible
			}
			skipMalformed(d.log, domain.HAITypeCLABSI, event, err)
			continue
		}

		if !d.ValidateDeviceEligibility(line.InsertedAt, line.RemovedAt, event.Time) {
			continue
		}

		candidates = append(candidates, newCandidate(domain.HAITypeCLABSI, event, domain.EligibilityMeasurements{
			DeviceDays:    DeviceDays(line.InsertedAt, line.RemovedAt, event.Time),
			OrganismCount: event.OrganismCount,
		}))
	}

	d.log.WithFields(logrus.Fields{
		"hai_type":   domain.HAITypeCLABSI,
		"events":     len(events),
		"candidates": len(candidates),
	}).Info("Completed CLABSI detection scan")

	return candidates, nil
}
