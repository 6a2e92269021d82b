package verify

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricVerificationTotal      = "verification_attempts_total"
	MetricVerificationDuration   = "verification_duration_seconds"
	MetricJudgeFailures          = "verification_judge_failures_total"
	MetricHeuristicOnlyTotal     = "verification_heuristic_only_total"
	MetricVerificationConfidence = "verification_confidence"
)

// Metrics contains Prometheus metrics for the verification pipeline.
// All operations are thread-safe.
type Metrics struct {
	attemptsTotal     *prometheus.CounterVec
	duration          prometheus.Histogram
	judgeFailures     prometheus.Counter
	heuristicOnly     prometheus.Counter
	confidenceSamples prometheus.Histogram
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricVerificationTotal,
			Help: "Total number of verification attempts by verdict",
		}, []string{"verdict"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricVerificationDuration,
			Help:    "Histogram of verification attempt duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		}),
		judgeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricJudgeFailures,
			Help: "Total number of remote judge failures (errors and timeouts)",
		}),
		heuristicOnly: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricHeuristicOnlyTotal,
			Help: "Total number of attempts scored without a remote judge",
		}),
		confidenceSamples: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricVerificationConfidence,
			Help:    "Histogram of final confidence values",
			Buckets: prometheus.LinearBuckets(0.0, 0.1, 11),
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.attemptsTotal,
		m.duration,
		m.judgeFailures,
		m.heuristicOnly,
		m.confidenceSamples,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveAttempt records one completed attempt.
func (m *Metrics) ObserveAttempt(verdict Verdict, confidence, seconds float64) {
	m.attemptsTotal.WithLabelValues(string(verdict)).Inc()
	m.duration.Observe(seconds)
	m.confidenceSamples.Observe(confidence)
}

// IncJudgeFailures increments the judge failure counter.
func (m *Metrics) IncJudgeFailures() {
	m.judgeFailures.Inc()
}

// IncHeuristicOnly increments the heuristic-only attempt counter.
func (m *Metrics) IncHeuristicOnly() {
	m.heuristicOnly.Inc()
}
