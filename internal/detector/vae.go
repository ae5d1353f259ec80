package detector

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hai-surveillance-server/internal/domain"
)

// VAEDetector implements the multi-day sliding-window deterioration
// detector for ventilator-associated events. For each candidate event day
// it requires a stable baseline window (daily-minimum FiO2 and PEEP each
// non-increasing day-over-day) immediately followed by a deterioration
// window in which daily-minimum PEEP stays at least PEEPRiseCmH2O above
// the baseline minimum on every day, or daily-minimum FiO2 stays at least
// FiO2RisePoints above the baseline minimum on every day. Every valid
// window pair in the series is scanned; one ventilation episode can yield
// multiple events.
//
// The baseline-stability test is a simplified day-over-day non-increase
// check, not a statistical stability test; noisy but clinically stable
// settings can under- or over-trigger.
type VAEDetector struct {
	source domain.DataSource
	cfg    domain.VAEConfig
	log    *logrus.Logger
}

// NewVAEDetector creates a VAE candidate detector.
func NewVAEDetector(source domain.DataSource, cfg domain.VAEConfig, logger *logrus.Logger) *VAEDetector {
	return &VAEDetector{source: source, cfg: cfg, log: logger}
}

func (d *VAEDetector) HAIType() domain.HAIType { return domain.HAITypeVAE }

func (d *VAEDetector) MinDeviceDays() int { return d.cfg.MinVentilationDays }

func (d *VAEDetector) SurveillanceWindowDays() int { return d.cfg.DeteriorationDays }

func (d *VAEDetector) ValidateDeviceEligibility(deviceStart time.Time, deviceEnd *time.Time, eventDate time.Time) bool {
	return DeviceDays(deviceStart, deviceEnd, eventDate) >= d.cfg.MinVentilationDays
}

// vaeEvent is one deterioration onset found in a daily-values series.
type vaeEvent struct {
	day           int // zero-based index of the first deterioration day
	date          time.Time
	peepSustained bool
	fio2Sustained bool
}

// DetectCandidates scans ventilation episodes that started in [start, end).
func (d *VAEDetector) DetectCandidates(ctx context.Context, start, end time.Time) ([]*domain.Candidate, error) {
	episodes, err := d.source.GetEvents(ctx, domain.EventVentilation, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetching ventilation episodes: %w", err)
	}

	var candidates []*domain.Candidate
	for i := range episodes {
		episode := &episodes[i]
		if err := episode.Validate(); err != nil {
			skipMalformed(d.log, domain.HAITypeVAE, episode, err)
			continue
		}

		days, err := d.source.GetVentilatorDailyValues(ctx, episode.PatientID, episode.Time, end)
		if err != nil {
			skipMalformed(d.log, domain.HAITypeVAE, episode, err)
			continue
		}

		// Gaps in the daily series break continuity; each consecutive
		// run is evaluated as its own episode.
		for _, run := range splitConsecutiveRuns(days) {
			for _, ev := range d.findDeteriorationEvents(run) {
				event := domain.RawEvent{
					ID:          fmt.Sprintf("%s:vae:%s", episode.PatientID, ev.date.Format("2006-01-02")),
					Kind:        domain.EventVentilation,
					PatientID:   episode.PatientID,
					EncounterID: episode.EncounterID,
					Time:        ev.date,
				}
				candidates = append(candidates, newCandidate(domain.HAITypeVAE, &event, domain.EligibilityMeasurements{
					DeviceDays:        ev.day + 1,
					WindowDay:         ev.day + 1,
					PEEPRiseSustained: ev.peepSustained,
					FiO2RiseSustained: ev.fio2Sustained,
				}))
			}
		}
	}

	d.log.WithFields(logrus.Fields{
		"hai_type":   domain.HAITypeVAE,
		"episodes":   len(episodes),
		"candidates": len(candidates),
	}).Info("Completed VAE detection scan")

	return candidates, nil
}

// findDeteriorationEvents scans every baseline/deterioration window pair
// in one continuous run of daily values.
func (d *VAEDetector) findDeteriorationEvents(days []domain.VentilatorDay) []vaeEvent {
	baseline := d.cfg.BaselinePeriodDays
	deterioration := d.cfg.DeteriorationDays

	minDays := baseline + deterioration
	if minDays < d.cfg.MinVentilationDays {
		minDays = d.cfg.MinVentilationDays
	}
	if len(days) < minDays {
		return nil
	}

	var events []vaeEvent
	for onset := baseline; onset+deterioration <= len(days); onset++ {
		base := days[onset-baseline : onset]
		if !baselineStable(base) {
			continue
		}

		basePEEP, baseFiO2 := windowMinimums(base)
		det := days[onset : onset+deterioration]

		peep := sustainedRise(det, basePEEP, d.cfg.PEEPRiseCmH2O, func(v domain.VentilatorDay) float64 { return v.MinPEEP })
		fio2 := sustainedRise(det, baseFiO2, d.cfg.FiO2RisePoints, func(v domain.VentilatorDay) float64 { return v.MinFiO2 })
		if !peep && !fio2 {
			continue
		}

		events = append(events, vaeEvent{
			day:           onset,
			date:          days[onset].Date,
			peepSustained: peep,
			fio2Sustained: fio2,
		})
	}
	return events
}

// baselineStable reports whether daily-minimum FiO2 and PEEP are each
// non-increasing day-over-day across the window.
func baselineStable(window []domain.VentilatorDay) bool {
	for i := 1; i < len(window); i++ {
		if window[i].MinFiO2 > window[i-1].MinFiO2 {
			return false
		}
		if window[i].MinPEEP > window[i-1].MinPEEP {
			return false
		}
	}
	return true
}

// windowMinimums returns the minimum daily-minimum PEEP and FiO2 over a window.
func windowMinimums(window []domain.VentilatorDay) (peep, fio2 float64) {
	peep, fio2 = window[0].MinPEEP, window[0].MinFiO2
	for _, day := range window[1:] {
		if day.MinPEEP < peep {
			peep = day.MinPEEP
		}
		if day.MinFiO2 < fio2 {
			fio2 = day.MinFiO2
		}
	}
	return peep, fio2
}

// sustainedRise reports whether value(day) >= baseline+rise on every day
// of the window.
func sustainedRise(window []domain.VentilatorDay, baseline, rise float64, value func(domain.VentilatorDay) float64) bool {
	for _, day := range window {
		if value(day) < baseline+rise {
			return false
		}
	}
	return true
}

// splitConsecutiveRuns partitions a date-ordered daily series into runs of
// consecutive calendar days.
func splitConsecutiveRuns(days []domain.VentilatorDay) [][]domain.VentilatorDay {
	if len(days) == 0 {
		return nil
	}
	var runs [][]domain.VentilatorDay
	runStart := 0
	for i := 1; i < len(days); i++ {
		gap := days[i].Date.Sub(days[i-1].Date)
		if gap > 36*time.Hour || gap <= 0 {
			runs = append(runs, days[runStart:i])
			runStart = i
		}
	}
	return append(runs, days[runStart:])
}
