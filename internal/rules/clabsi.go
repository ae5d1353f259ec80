package rules

import (
	"fmt"

	"github.com/hai-surveillance-server/internal/domain"
)

// CLABSIEngine encodes the NHSN LCBI decision tree: line-day eligibility,
// organism/contamination screen, secondary-BSI exclusion, then CLABSI.
type CLABSIEngine struct {
	cfg domain.CLABSIConfig
}

// NewCLABSIEngine creates the CLABSI rules engine.
func NewCLABSIEngine(cfg domain.CLABSIConfig) *CLABSIEngine {
	return &CLABSIEngine{cfg: cfg}
}

func (e *CLABSIEngine) HAIType() domain.HAIType { return domain.HAITypeCLABSI }

// Evaluate classifies a CLABSI candidate from its extracted facts.
func (e *CLABSIEngine) Evaluate(candidate *domain.Candidate, extraction *domain.Extraction) (Result, error) {
	facts := extraction.CLABSI
	if facts == nil {
		return Result{}, fmt.Errorf("extraction %s carries no CLABSI facts", extraction.ID)
	}

	m := candidate.Measurements
	tr := &trace{}

	// Rule 1: central-line day eligibility.
	if m.DeviceDays < e.cfg.MinLineDays {
		tr.record("eligibility", false, fmt.Sprintf("central line in place %d days, minimum %d", m.DeviceDays, e.cfg.MinLineDays))
		return tr.terminate(domain.CategoryNotEligible, extraction.Quality, "Central line not in place long enough for line association"), nil
	}
	tr.record("eligibility", true, fmt.Sprintf("central line days %d", m.DeviceDays))

	// Rule 2: organism screen. A recognized pathogen qualifies on one
	// culture; a common commensal needs two matching cultures plus at
	// least one qualifying symptom, otherwise it is a contaminant.
	switch {
	case facts.RecognizedPathogen:
		tr.record("organism", true, "recognized pathogen isolated")
	case facts.CommonCommensal:
		if facts.MatchingCultureCount < 2 {
			tr.record("organism", false, fmt.Sprintf("common commensal with %d matching culture(s), 2 required", facts.MatchingCultureCount))
			return tr.terminate(domain.CategoryContaminant, extraction.Quality, "Single common-commensal culture is treated as a contaminant"), nil
		}
		if !facts.AnySymptom() {
			tr.record("organism", false, "common commensal without fever, chills, or hypotension")
			return tr.terminate(domain.CategoryContaminant, extraction.Quality, "Common commensal without qualifying symptoms is treated as a contaminant"), nil
		}
		tr.record("organism", true, fmt.Sprintf("common commensal, %d matching cultures with qualifying symptoms", facts.MatchingCultureCount))
	default:
		tr.record("organism", false, "organism not documented as pathogen or common commensal")
		return tr.terminate(domain.CategoryContaminant, extraction.Quality, "Organism identity not documented; treated as a contaminant"), nil
	}

	// Rule 3: a documented alternate infection source makes the
	// bacteremia secondary, not line-associated.
	if facts.AlternateInfectionSource {
		tr.record("alternate_source", false, "alternate infection source documented")
		return tr.terminate(domain.CategorySecondaryBSI, extraction.Quality, "Bloodstream infection attributed to a documented alternate source"), nil
	}
	tr.record("alternate_source", true, "no alternate source documented")

	return tr.terminate(domain.CategoryCLABSI, extraction.Quality, "Central line-associated bloodstream infection meets NHSN criteria"), nil
}
