// Package metrics exposes the Prometheus instrumentation for the
// surveillance pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline instruments. A single instance is shared by
// the scheduler, orchestrator, and API.
type Metrics struct {
	CandidatesDetected *prometheus.CounterVec
	DuplicatesSkipped  *prometheus.CounterVec
	Classifications    *prometheus.CounterVec
	ExtractionFailures *prometheus.CounterVec
	ReviewsSubmitted   *prometheus.CounterVec
	ScanDuration       *prometheus.HistogramVec
	ClassifyDuration   *prometheus.HistogramVec
}

// New registers the pipeline metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		CandidatesDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hai_candidates_detected_total",
			Help: "Candidates emitted by the detectors, by HAI type.",
		}, []string{"hai_type"}),
		DuplicatesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hai_candidates_duplicate_total",
			Help: "Detected candidates skipped as already known, by HAI type.",
		}, []string{"hai_type"}),
		Classifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hai_classifications_total",
			Help: "Classifications produced, by HAI type and category.",
		}, []string{"hai_type", "category"}),
		ExtractionFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hai_extraction_failures_total",
			Help: "Fact extraction attempts that failed, by HAI type.",
		}, []string{"hai_type"}),
		ReviewsSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hai_reviews_submitted_total",
			Help: "Reviews submitted, by decision and override flag.",
		}, []string{"decision", "override"}),
		ScanDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hai_scan_duration_seconds",
			Help:    "Detection scan duration, by HAI type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"hai_type"}),
		ClassifyDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hai_classify_duration_seconds",
			Help:    "Per-candidate classification duration, by HAI type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"hai_type"}),
	}
}

// ObserveScan records one detection scan.
func (m *Metrics) ObserveScan(haiType string, started time.Time) {
	if m == nil {
		return
	}
	m.ScanDuration.WithLabelValues(haiType).Observe(time.Since(started).Seconds())
}

// ObserveClassify records one candidate classification.
func (m *Metrics) ObserveClassify(haiType string, started time.Time) {
	if m == nil {
		return
	}
	m.ClassifyDuration.WithLabelValues(haiType).Observe(time.Since(started).Seconds())
}
