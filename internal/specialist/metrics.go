// Package specialist runs the secondary best-effort enrichment checks:
// deepfake classification and free-form image analysis. Checks are
// dispatched independently after the primary verdict, are idempotent and
// resettable, and never touch the submission lifecycle.
package specialist

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricSpecialistChecksTotal    = "specialist_checks_total"
	MetricSpecialistChecksDuration = "specialist_checks_duration_seconds"
	MetricSpecialistCheckErrors    = "specialist_check_errors_total"
)

// Check type constants for labeling.
const (
	CheckTypeDeepfake = "deepfake_classify"
	CheckTypeAnalysis = "analysis_report"
)

// Status constants for check completion.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
)

// Metrics contains Prometheus metrics for specialist check executions.
// All operations are thread-safe.
type Metrics struct {
	checksTotal    *prometheus.CounterVec
	checksDuration *prometheus.HistogramVec
	checkErrors    *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		checksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSpecialistChecksTotal,
				Help: "Total number of specialist check executions by type and status",
			},
			[]string{"check_type", "status"},
		),
		checksDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricSpecialistChecksDuration,
				Help:    "Histogram of specialist check duration in seconds by check type",
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"check_type"},
		),
		checkErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSpecialistCheckErrors,
				Help: "Total number of specialist check errors by type and error type",
			},
			[]string{"check_type", "error_type"},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.checksTotal,
		m.checksDuration,
		m.checkErrors,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncChecksTotal increments the checks total counter.
func (m *Metrics) IncChecksTotal(checkType, status string) {
	m.checksTotal.WithLabelValues(checkType, status).Inc()
}

// ObserveCheckDuration records a check duration sample.
func (m *Metrics) ObserveCheckDuration(checkType string, seconds float64) {
	m.checksDuration.WithLabelValues(checkType).Observe(seconds)
}

// IncCheckErrors increments the check errors counter.
func (m *Metrics) IncCheckErrors(checkType, errorType string) {
	m.checkErrors.WithLabelValues(checkType, errorType).Inc()
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.checksTotal,
		m.checksDuration,
		m.checkErrors,
	}
}
