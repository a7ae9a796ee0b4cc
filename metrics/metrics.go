// Package metrics instruments the Request Pipeline's stage latency and
// outcome counts, grounded on the teacher corpus's
// pkg/history/metrics.HistoryMetrics promauto pattern.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics tracks how long a request spends in each pipeline
// stage and how requests resolve.
type PipelineMetrics struct {
	StageDuration *prometheus.HistogramVec // labels: stage
	Outcomes      *prometheus.CounterVec   // labels: outcome (failed|settled)
}

// NewPipelineMetrics registers and returns the pipeline's Prometheus
// collectors.
func NewPipelineMetrics() *PipelineMetrics {
	return &PipelineMetrics{
		StageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gateway",
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Duration of each request pipeline stage",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"stage"},
		),
		Outcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "pipeline",
				Name:      "outcomes_total",
				Help:      "Count of requests by terminal pipeline outcome",
			},
			[]string{"outcome"},
		),
	}
}

// ObserveStage records how long a named pipeline stage took.
func (m *PipelineMetrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// CountOutcome increments the named terminal outcome.
func (m *PipelineMetrics) CountOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(outcome).Inc()
}
