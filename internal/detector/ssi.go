package detector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/hai-surveillance-server/internal/domain"
)

const procedureCacheSize = 1024

// SSIDetector screens wound events against their originating operative
// procedure. An event qualifies when the procedure maps to a surveilled
// NHSN operative category and the event falls within the post-operative
// window: DefaultWindowDays for most categories, ImplantWindowDays when an
// implant was left in place and the category is implant-window eligible.
type SSIDetector struct {
	source domain.DataSource
	cfg    domain.SSIConfig
	log    *logrus.Logger

	// procedures caches lookups so a batch of wound events for the same
	// operation hits the source once.
	procedures *expirable.LRU[string, *domain.Procedure]
}

// NewSSIDetector creates an SSI candidate detector.
func NewSSIDetector(source domain.DataSource, cfg domain.SSIConfig, logger *logrus.Logger) *SSIDetector {
	return &SSIDetector{
		source:     source,
		cfg:        cfg,
		log:        logger,
		procedures: expirable.NewLRU[string, *domain.Procedure](procedureCacheSize, nil, time.Hour),
	}
}

func (d *SSIDetector) HAIType() domain.HAIType { return domain.HAITypeSSI }

// MinDeviceDays is zero: SSI eligibility is window-based, not device-based.
func (d *SSIDetector) MinDeviceDays() int { return 0 }

func (d *SSIDetector) SurveillanceWindowDays() int { return d.cfg.DefaultWindowDays }

// ValidateDeviceEligibility treats the procedure time as the device start
// and applies the default surveillance window. The implant-extended window
// needs the procedure record and is handled in DetectCandidates.
func (d *SSIDetector) ValidateDeviceEligibility(deviceStart time.Time, _ *time.Time, eventDate time.Time) bool {
	return d.withinWindow(deviceStart, eventDate, d.cfg.DefaultWindowDays)
}

func (d *SSIDetector) withinWindow(performedAt, eventDate time.Time, windowDays int) bool {
	if eventDate.Before(performedAt) {
		return false
	}
	return !eventDate.After(performedAt.AddDate(0, 0, windowDays))
}

// getProcedure resolves a procedure reference through the LRU cache.
func (d *SSIDetector) getProcedure(ctx context.Context, procedureID string) (*domain.Procedure, error) {
	if proc, ok := d.procedures.Get(procedureID); ok {
		return proc, nil
	}
	proc, err := d.source.GetProcedure(ctx, procedureID)
	if err != nil {
		return nil, err
	}
	d.procedures.Add(procedureID, proc)
	return proc, nil
}

// DetectCandidates scans wound events in [start, end).
func (d *SSIDetector) DetectCandidates(ctx context.Context, start, end time.Time) ([]*domain.Candidate, error) {
	events, err := d.source.GetEvents(ctx, domain.EventWound, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetching wound events: %w", err)
	}

	var candidates []*domain.Candidate
	for i := range events {
		event := &events[i]
		if err := event.Validate(); err != nil {
			skipMalformed(d.log, domain.HAITypeSSI, event, err)
			continue
		}
		if event.ProcedureID == "" {
			skipMalformed(d.log, domain.HAITypeSSI, event, domain.NewValidationError("procedure_id", "missing procedure reference"))
			continue
		}

		proc, err := d.getProcedure(ctx, event.ProcedureID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			skipMalformed(d.log, domain.HAITypeSSI, event, err)
			continue
		}

		category, ok := lookupProcedureCategory(proc.Code)
		if !ok {
			continue
		}

		windowDays := d.cfg.DefaultWindowDays
		if proc.ImplantPresent && category.ImplantWindowEligible {
			windowDays = d.cfg.ImplantWindowDays
		}
		if !d.withinWindow(proc.PerformedAt, event.Time, windowDays) {
			continue
		}

		windowDay := int(event.Time.Sub(proc.PerformedAt).Hours()/24) + 1

		candidates = append(candidates, newCandidate(domain.HAITypeSSI, event, domain.EligibilityMeasurements{
			WindowDay:             windowDay,
			ImplantPresent:        proc.ImplantPresent,
			ImplantWindowEligible: category.ImplantWindowEligible,
			ProcedureCategory:     category.Code,
		}))
	}

	d.log.WithFields(logrus.Fields{
		"hai_type":   domain.HAITypeSSI,
		"events":     len(events),
		"candidates": len(candidates),
	}).Info("Completed SSI detection scan")

	return candidates, nil
}
