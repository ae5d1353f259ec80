package rules

import (
	"fmt"

	"github.com/hai-surveillance-server/internal/domain"
)

// VAEEngine encodes the tiered VAE decision tree: VAC trend gate, then
// infection markers (IVAC tier), then respiratory evidence (PVAP tier).
// Each tier subsumes the previous one, so evaluation ascends and stops at
// the highest tier whose criteria hold.
type VAEEngine struct {
	cfg domain.VAEConfig
}

// NewVAEEngine creates the VAE rules engine.
func NewVAEEngine(cfg domain.VAEConfig) *VAEEngine {
	return &VAEEngine{cfg: cfg}
}

func (e *VAEEngine) HAIType() domain.HAIType { return domain.HAITypeVAE }

// Evaluate classifies a VAE candidate from its extracted facts. Trend
// criteria come from the detector's measurements; the notes contribute the
// infection markers and respiratory evidence.
func (e *VAEEngine) Evaluate(candidate *domain.Candidate, extraction *domain.Extraction) (Result, error) {
	facts := extraction.VAE
	if facts == nil {
		return Result{}, fmt.Errorf("extraction %s carries no VAE facts", extraction.ID)
	}

	m := candidate.Measurements
	tr := &trace{}

	// Rule 1: the VAC trend criteria must actually hold.
	if !m.PEEPRiseSustained && !m.FiO2RiseSustained {
		tr.record("vac_trend", false, "no sustained PEEP or FiO2 rise over a stable baseline")
		return tr.terminate(domain.CategoryNotVAE, extraction.Quality, "Ventilator settings do not meet VAC deterioration criteria"), nil
	}
	tr.record("vac_trend", true, trendSummary(m))

	// Rule 2: infection markers. All three are required to ascend past
	// VAC: abnormal temperature, abnormal white count, and a new
	// qualifying antimicrobial sustained long enough.
	var missing []string
	if !facts.AbnormalTemperature {
		missing = append(missing, "abnormal temperature")
	}
	if !facts.AbnormalWhiteBloodCount {
		missing = append(missing, "abnormal white blood count")
	}
	if facts.NewAntimicrobialDays < e.cfg.MinAntimicrobDays {
		missing = append(missing, fmt.Sprintf("antimicrobial sustained %d days (minimum %d)", facts.NewAntimicrobialDays, e.cfg.MinAntimicrobDays))
	}
	if len(missing) > 0 {
		tr.record("infection_markers", false, fmt.Sprintf("missing: %s", joinList(missing)))
		return tr.terminate(domain.CategoryVAC, extraction.Quality, "Ventilator-associated condition without complete infection markers"), nil
	}
	tr.record("infection_markers", true, fmt.Sprintf("temperature, white count, and antimicrobial sustained %d days", facts.NewAntimicrobialDays))

	// Rule 3: respiratory evidence distinguishes PVAP from IVAC.
	switch {
	case facts.PurulentSecretions && facts.PositiveRespiratoryCulture:
		tr.record("respiratory_evidence", true, "purulent secretions with positive respiratory culture")
	case facts.PositiveHistopathology:
		tr.record("respiratory_evidence", true, "positive lung histopathology")
	case facts.PositiveViralOrLegionella:
		tr.record("respiratory_evidence", true, "positive Legionella or respiratory viral test")
	default:
		tr.record("respiratory_evidence", false, "no qualifying respiratory evidence")
		return tr.terminate(domain.CategoryIVAC, extraction.Quality, "Infection-related ventilator-associated complication without respiratory evidence"), nil
	}

	return tr.terminate(domain.CategoryPVAP, extraction.Quality, "Possible ventilator-associated pneumonia meets NHSN criteria"), nil
}

func trendSummary(m domain.EligibilityMeasurements) string {
	switch {
	case m.PEEPRiseSustained && m.FiO2RiseSustained:
		return "sustained PEEP and FiO2 rise over a stable baseline"
	case m.PEEPRiseSustained:
		return "sustained PEEP rise over a stable baseline"
	default:
		return "sustained FiO2 rise over a stable baseline"
	}
}
