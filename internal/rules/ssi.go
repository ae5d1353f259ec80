package rules

import (
	"fmt"

	"github.com/hai-surveillance-server/internal/domain"
)

// SSIEngine encodes the NHSN SSI decision tree: post-operative window
// gate, infection criteria, alternate-source exclusion, then depth grading
// from most specific (organ/space) to least (superficial).
type SSIEngine struct {
	cfg domain.SSIConfig
}

// NewSSIEngine creates the SSI rules engine.
func NewSSIEngine(cfg domain.SSIConfig) *SSIEngine {
	return &SSIEngine{cfg: cfg}
}

func (e *SSIEngine) HAIType() domain.HAIType { return domain.HAITypeSSI }

// Evaluate classifies an SSI candidate from its extracted facts.
func (e *SSIEngine) Evaluate(candidate *domain.Candidate, extraction *domain.Extraction) (Result, error) {
	facts := extraction.SSI
	if facts == nil {
		return Result{}, fmt.Errorf("extraction %s carries no SSI facts", extraction.ID)
	}

	m := candidate.Measurements
	tr := &trace{}

	// Rule 1: post-operative surveillance window. The 90-day window
	// applies only when the procedure category is implant-window
	// eligible, matching the detector's gate.
	windowDays := e.cfg.DefaultWindowDays
	if m.ImplantPresent && m.ImplantWindowEligible {
		windowDays = e.cfg.ImplantWindowDays
	}
	if m.WindowDay < 1 || m.WindowDay > windowDays {
		tr.record("window", false, fmt.Sprintf("post-operative day %d outside the %d-day window", m.WindowDay, windowDays))
		return tr.terminate(domain.CategoryNotEligible, extraction.Quality, "Event outside the post-operative surveillance window"), nil
	}
	tr.record("window", true, fmt.Sprintf("post-operative day %d of %d (%s)", m.WindowDay, windowDays, m.ProcedureCategory))

	// Rule 2: infection criteria in NHSN order. Purulent drainage or a
	// positive wound culture stand alone; a deliberately reopened wound
	// qualifies only with a localized sign.
	switch {
	case facts.PurulentDrainage:
		tr.record("infection_criteria", true, "purulent drainage documented")
	case facts.PositiveWoundCulture:
		tr.record("infection_criteria", true, "positive wound culture documented")
	case facts.WoundReopened && facts.AnyLocalSign():
		tr.record("infection_criteria", true, "wound deliberately reopened with localized signs")
	default:
		tr.record("infection_criteria", false, "no qualifying infection criteria documented")
		return tr.terminate(domain.CategoryNotSSI, extraction.Quality, "Wound event does not meet SSI infection criteria"), nil
	}

	// Rule 3: a documented alternate source attributes the infection
	// away from the surgical site.
	if facts.AlternateSource {
		tr.record("alternate_source", false, "alternate infection source documented")
		return tr.terminate(domain.CategoryNotSSI, extraction.Quality, "Infection attributed to a documented alternate source"), nil
	}
	tr.record("alternate_source", true, "no alternate source documented")

	// Rule 4: depth grading, most specific tier first.
	switch {
	case facts.OrganSpaceInvolvement:
		tr.record("depth", true, "organ/space involvement documented")
		return tr.terminate(domain.CategorySSIOrganSpace, extraction.Quality, "Organ/space surgical site infection meets NHSN criteria"), nil
	case facts.DeepInvolvement:
		tr.record("depth", true, "deep incisional involvement documented")
		return tr.terminate(domain.CategorySSIDeep, extraction.Quality, "Deep incisional surgical site infection meets NHSN criteria"), nil
	}
	tr.record("depth", true, "superficial incisional involvement")
	return tr.terminate(domain.CategorySSISuperficial, extraction.Quality, "Superficial incisional surgical site infection meets NHSN criteria"), nil
}
