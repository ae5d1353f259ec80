package rules

import (
	"fmt"

	"github.com/hai-surveillance-server/internal/domain"
)

// CAUTIEngine encodes the NHSN CAUTI decision tree: eligibility gate,
// symptom requirement, alternate-source exclusion, then CAUTI.
type CAUTIEngine struct {
	cfg domain.CAUTIConfig
}

// NewCAUTIEngine creates the CAUTI rules engine.
func NewCAUTIEngine(cfg domain.CAUTIConfig) *CAUTIEngine {
	return &CAUTIEngine{cfg: cfg}
}

func (e *CAUTIEngine) HAIType() domain.HAIType { return domain.HAITypeCAUTI }

// Evaluate classifies a CAUTI candidate from its extracted facts.
func (e *CAUTIEngine) Evaluate(candidate *domain.Candidate, extraction *domain.Extraction) (Result, error) {
	facts := extraction.CAUTI
	if facts == nil {
		return Result{}, fmt.Errorf("extraction %s carries no CAUTI facts", extraction.ID)
	}

	m := candidate.Measurements
	tr := &trace{}

	// Rule 1: eligibility. Catheter days, colony count, organism count,
	// and the removed-before-culture exclusion documented in the notes.
	switch {
	case m.DeviceDays < e.cfg.MinCatheterDays:
		tr.record("eligibility", false, fmt.Sprintf("catheter in place %d days, minimum %d", m.DeviceDays, e.cfg.MinCatheterDays))
		return tr.terminate(domain.CategoryNotEligible, extraction.Quality, "Catheter not in place long enough for catheter association"), nil
	case m.ColonyCountCFU < e.cfg.MinColonyCountCFU:
		tr.record("eligibility", false, fmt.Sprintf("colony count %d CFU/mL below threshold %d", m.ColonyCountCFU, e.cfg.MinColonyCountCFU))
		return tr.terminate(domain.CategoryNotEligible, extraction.Quality, "Colony count below the CAUTI threshold"), nil
	case m.OrganismCount > e.cfg.MaxOrganisms:
		tr.record("eligibility", false, fmt.Sprintf("%d organisms isolated, maximum %d", m.OrganismCount, e.cfg.MaxOrganisms))
		return tr.terminate(domain.CategoryNotEligible, extraction.Quality, "Mixed flora culture is not CAUTI-eligible"), nil
	case facts.CatheterRemovedBeforeCulture:
		tr.record("eligibility", false, "notes document catheter removal before culture collection")
		return tr.terminate(domain.CategoryNotEligible, extraction.Quality, "Catheter removed before culture collection"), nil
	}
	tr.record("eligibility", true, fmt.Sprintf("catheter days %d, colony count %d CFU/mL, %d organism(s)", m.DeviceDays, m.ColonyCountCFU, m.OrganismCount))

	// Rule 2: at least one NHSN UTI symptom.
	if !facts.AnySymptom() {
		tr.record("symptoms", false, "no documented UTI symptoms")
		return tr.terminate(domain.CategoryAsymptomaticBacteriuria, extraction.Quality, "Positive culture without UTI symptoms is asymptomatic bacteriuria"), nil
	}
	tr.record("symptoms", true, symptomSummary(facts))

	// Rule 3: alternate source or a recent urologic procedure attributes
	// the infection elsewhere.
	switch {
	case facts.AlternateSource:
		tr.record("alternate_source", false, "alternate infection source documented")
		return tr.terminate(domain.CategorySecondaryUTI, extraction.Quality, "UTI attributed to a documented alternate source"), nil
	case facts.RecentUrologicProcedure:
		tr.record("alternate_source", false, "recent urologic procedure documented")
		return tr.terminate(domain.CategorySecondaryUTI, extraction.Quality, "UTI attributed to a recent urologic procedure"), nil
	}
	tr.record("alternate_source", true, "no alternate source documented")

	return tr.terminate(domain.CategoryCAUTI, extraction.Quality, "Catheter-associated urinary tract infection meets NHSN criteria"), nil
}

func symptomSummary(f *domain.CAUTIFacts) string {
	var symptoms []string
	if f.Fever {
		symptoms = append(symptoms, "fever")
	}
	if f.SuprapubicTenderness {
		symptoms = append(symptoms, "suprapubic tenderness")
	}
	if f.CostovertebralPain {
		symptoms = append(symptoms, "costovertebral angle pain")
	}
	if f.Urgency {
		symptoms = append(symptoms, "urgency")
	}
	if f.Frequency {
		symptoms = append(symptoms, "frequency")
	}
	if f.Dysuria {
		symptoms = append(symptoms, "dysuria")
	}
	return fmt.Sprintf("documented symptoms: %s", joinList(symptoms))
}
