package domain

import (
	"time"

	"github.com/google/uuid"
)

// HAIType identifies one of the surveilled healthcare-associated infection types.
type HAIType string

const (
	HAITypeCLABSI HAIType = "CLABSI"
	HAITypeCAUTI  HAIType = "CAUTI"
	HAITypeVAE    HAIType = "VAE"
	HAITypeSSI    HAIType = "SSI"
)

// AllHAITypes lists the surveilled types in scan order.
var AllHAITypes = []HAIType{HAITypeCLABSI, HAITypeCAUTI, HAITypeVAE, HAITypeSSI}

// CandidateStatus tracks a candidate through the detection pipeline.
// Transitions are monotonic: pending -> extracted -> classified -> reviewed.
type CandidateStatus string

const (
	StatusPending    CandidateStatus = "pending"
	StatusExtracted  CandidateStatus = "extracted"
	StatusClassified CandidateStatus = "classified"
	StatusReviewed   CandidateStatus = "reviewed"
)

var statusRank = map[CandidateStatus]int{
	StatusPending:    0,
	StatusExtracted:  1,
	StatusClassified: 2,
	StatusReviewed:   3,
}

// CanTransition reports whether moving from s to next preserves the
// monotonic lifecycle ordering.
func (s CandidateStatus) CanTransition(next CandidateStatus) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to >= from
}

// CandidateOutcome is the terminal sub-state a candidate reaches after
// classification or review. Empty until a terminal decision exists.
type CandidateOutcome string

const (
	OutcomeNone        CandidateOutcome = ""
	OutcomeConfirmed   CandidateOutcome = "confirmed"
	OutcomeRejected    CandidateOutcome = "rejected"
	OutcomeNotEligible CandidateOutcome = "not_eligible"
)

// EligibilityMeasurements carries the type-specific timing and threshold
// values captured by a detector at candidate creation. Only the fields
// relevant to the candidate's HAI type are populated.
type EligibilityMeasurements struct {
	DeviceDays            int    `json:"device_days,omitempty"`
	ColonyCountCFU        int64  `json:"colony_count_cfu,omitempty"`
	OrganismCount         int    `json:"organism_count,omitempty"`
	WindowDay             int    `json:"window_day,omitempty"`
	ImplantPresent        bool   `json:"implant_present,omitempty"`
	ImplantWindowEligible bool   `json:"implant_window_eligible,omitempty"`
	ProcedureCategory     string `json:"procedure_category,omitempty"`
	PEEPRiseSustained     bool   `json:"peep_rise_sustained,omitempty"`
	FiO2RiseSustained     bool   `json:"fio2_rise_sustained,omitempty"`
}

// Candidate is one potential HAI event awaiting classification.
// Candidates are created only by detectors and never deleted; uniqueness
// is enforced on (HAIType, EventRef) so repeated scans are idempotent.
type Candidate struct {
	ID           uuid.UUID               `json:"id"`
	HAIType      HAIType                 `json:"hai_type"`
	PatientID    string                  `json:"patient_id"`
	EncounterID  string                  `json:"encounter_id,omitempty"`
	EventRef     string                  `json:"event_ref"`
	EventTime    time.Time               `json:"event_time"`
	Status       CandidateStatus         `json:"status"`
	Outcome      CandidateOutcome        `json:"outcome,omitempty"`
	Measurements EligibilityMeasurements `json:"measurements"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

// DocQuality rates how complete the clinical documentation for a
// candidate's window was. It adjusts classification confidence.
type DocQuality string

const (
	QualityPoor     DocQuality = "poor"
	QualityLimited  DocQuality = "limited"
	QualityAdequate DocQuality = "adequate"
	QualityDetailed DocQuality = "detailed"
)

// Valid reports whether q is one of the recognized quality ratings.
func (q DocQuality) Valid() bool {
	switch q {
	case QualityPoor, QualityLimited, QualityAdequate, QualityDetailed:
		return true
	}
	return false
}

// FactCitation links an extracted fact to the note excerpt supporting it.
type FactCitation struct {
	Fact    string `json:"fact"`
	Excerpt string `json:"excerpt"`
}

// Extraction holds the structured clinical facts extracted from notes for
// one candidate. Exactly one of the per-type fact structs is non-nil,
// matching the candidate's HAI type. Immutable after creation.
type Extraction struct {
	ID          uuid.UUID      `json:"id"`
	CandidateID uuid.UUID      `json:"candidate_id"`
	HAIType     HAIType        `json:"hai_type"`
	Quality     DocQuality     `json:"quality"`
	Citations   []FactCitation `json:"citations,omitempty"`

	CAUTI  *CAUTIFacts  `json:"cauti,omitempty"`
	CLABSI *CLABSIFacts `json:"clabsi,omitempty"`
	VAE    *VAEFacts    `json:"vae,omitempty"`
	SSI    *SSIFacts    `json:"ssi,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Category is the final classification category for a candidate.
// The valid set is type-specific; NotEligible and
// InsufficientDocumentation are shared terminal categories.
type Category string

const (
	// CAUTI engine
	CategoryCAUTI                   Category = "CAUTI"
	CategoryAsymptomaticBacteriuria Category = "ASYMPTOMATIC_BACTERIURIA"
	CategorySecondaryUTI            Category = "SECONDARY_UTI"

	// CLABSI engine
	CategoryCLABSI       Category = "CLABSI"
	CategorySecondaryBSI Category = "SECONDARY_BSI"
	CategoryContaminant  Category = "CONTAMINANT"

	// VAE engine tiers
	CategoryVAC    Category = "VAC"
	CategoryIVAC   Category = "IVAC"
	CategoryPVAP   Category = "PVAP"
	CategoryNotVAE Category = "NOT_VAE"

	// SSI engine
	CategorySSISuperficial Category = "SSI_SUPERFICIAL"
	CategorySSIDeep        Category = "SSI_DEEP"
	CategorySSIOrganSpace  Category = "SSI_ORGAN_SPACE"
	CategoryNotSSI         Category = "NOT_SSI"

	// Shared terminal categories
	CategoryNotEligible     Category = "NOT_ELIGIBLE"
	CategoryInsufficientDoc Category = "INSUFFICIENT_DOCUMENTATION"
)

// Positive reports whether the category represents a reportable HAI event.
// Review decisions are compared against this to derive overrides.
func (c Category) Positive() bool {
	switch c {
	case CategoryCAUTI, CategoryCLABSI,
		CategoryVAC, CategoryIVAC, CategoryPVAP,
		CategorySSISuperficial, CategorySSIDeep, CategorySSIOrganSpace:
		return true
	}
	return false
}

// RuleTraceEntry records one rule evaluation in priority order, up to and
// including the terminating rule.
type RuleTraceEntry struct {
	Rule   string `json:"rule"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Classification is the rules engine's deterministic output for one
// (candidate, extraction) pair. Append-only; a re-classification creates a
// new record and the candidate points at the latest.
type Classification struct {
	ID           uuid.UUID        `json:"id"`
	CandidateID  uuid.UUID        `json:"candidate_id"`
	ExtractionID *uuid.UUID       `json:"extraction_id,omitempty"`
	HAIType      HAIType          `json:"hai_type"`
	Category     Category         `json:"category"`
	Confidence   float64          `json:"confidence"`
	Reasoning    string           `json:"reasoning"`
	Trace        []RuleTraceEntry `json:"trace"`
	CreatedAt    time.Time        `json:"created_at"`
}

// ReviewDecision is the human-review vocabulary.
type ReviewDecision string

const (
	DecisionConfirmed     ReviewDecision = "confirmed"
	DecisionRejected      ReviewDecision = "rejected"
	DecisionNeedsMoreInfo ReviewDecision = "needs_more_info"
)

// Valid reports whether d is a recognized review decision.
func (d ReviewDecision) Valid() bool {
	switch d {
	case DecisionConfirmed, DecisionRejected, DecisionNeedsMoreInfo:
		return true
	}
	return false
}

// Review is one human decision against a classification. Append-only.
// PriorCategory denormalizes the reviewed classification's category so the
// override breakdown can group without joining the surveillance store.
type Review struct {
	ID               uuid.UUID      `json:"id"`
	ClassificationID uuid.UUID      `json:"classification_id"`
	Reviewer         string         `json:"reviewer"`
	Decision         ReviewDecision `json:"decision"`
	Notes            string         `json:"notes,omitempty"`
	PriorCategory    Category       `json:"prior_category"`
	IsOverride       bool           `json:"is_override"`
	OverrideReason   string         `json:"override_reason,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}
