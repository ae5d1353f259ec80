// Package rules implements the per-HAI-type deterministic classification
// engines. Each engine evaluates rules in a fixed priority order, stops at
// the first terminating rule, and records every rule it checked in the
// trace. Engines are pure: same candidate and extraction, same result.
package rules

import (
	"fmt"
	"strings"

	"github.com/hai-surveillance-server/internal/domain"
)

const (
	baseConfidence = 0.85
	minConfidence  = 0.50
	maxConfidence  = 0.99
)

// Result is one engine evaluation.
type Result struct {
	Category   domain.Category
	Confidence float64
	Reasoning  string
	Trace      []domain.RuleTraceEntry
}

// Engine is a deterministic decision tree for one HAI type.
type Engine interface {
	HAIType() domain.HAIType
	Evaluate(candidate *domain.Candidate, extraction *domain.Extraction) (Result, error)
}

// Registry holds the configured engine per HAI type.
type Registry struct {
	engines map[domain.HAIType]Engine
}

// NewRegistry builds all four engines from the surveillance configuration.
func NewRegistry(cfg domain.SurveillanceConfig) *Registry {
	return &Registry{engines: map[domain.HAIType]Engine{
		domain.HAITypeCLABSI: NewCLABSIEngine(cfg.CLABSI),
		domain.HAITypeCAUTI:  NewCAUTIEngine(cfg.CAUTI),
		domain.HAITypeVAE:    NewVAEEngine(cfg.VAE),
		domain.HAITypeSSI:    NewSSIEngine(cfg.SSI),
	}}
}

// EngineFor returns the engine for a HAI type.
func (r *Registry) EngineFor(t domain.HAIType) (Engine, error) {
	engine, ok := r.engines[t]
	if !ok {
		return nil, fmt.Errorf("no rules engine for HAI type %q", t)
	}
	return engine, nil
}

// qualityAdjustment maps documentation quality to a confidence delta.
func qualityAdjustment(q domain.DocQuality) float64 {
	switch q {
	case domain.QualityPoor:
		return -0.15
	case domain.QualityLimited:
		return -0.05
	case domain.QualityDetailed:
		return 0.10
	default: // adequate
		return 0.0
	}
}

// confidence applies the documentation-quality adjustment to the base
// confidence and clamps the result.
func confidence(q domain.DocQuality) float64 {
	c := baseConfidence + qualityAdjustment(q)
	if c < minConfidence {
		return minConfidence
	}
	if c > maxConfidence {
		return maxConfidence
	}
	return c
}

// joinList renders a fact list for trace details.
func joinList(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

// trace is the ordered rule-evaluation log built during one evaluation.
type trace struct {
	entries []domain.RuleTraceEntry
}

// record appends one rule evaluation.
func (t *trace) record(rule string, passed bool, detail string) {
	t.entries = append(t.entries, domain.RuleTraceEntry{Rule: rule, Passed: passed, Detail: detail})
}

// terminate builds the Result for the terminating rule.
func (t *trace) terminate(category domain.Category, quality domain.DocQuality, reasoning string) Result {
	return Result{
		Category:   category,
		Confidence: confidence(quality),
		Reasoning:  reasoning,
		Trace:      t.entries,
	}
}
