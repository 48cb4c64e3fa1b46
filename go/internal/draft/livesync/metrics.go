package livesync

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector records sync engine activity.
type MetricsCollector interface {
	RecordCycle(report CycleReport)
	RecordSessionSync(outcome Outcome, duration time.Duration)
	RecordBackoff(interval time.Duration, consecutiveFailures int)
	RecordHintDivergence()
}

type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordCycle(CycleReport)                  {}
func (NoOpMetricsCollector) RecordSessionSync(Outcome, time.Duration) {}
func (NoOpMetricsCollector) RecordBackoff(time.Duration, int)         {}
func (NoOpMetricsCollector) RecordHintDivergence()                    {}

// PrometheusMetrics registers its collectors on first use.
type PrometheusMetrics struct {
	reg  prometheus.Registerer
	once sync.Once

	cycles          *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	sessionOutcomes *prometheus.CounterVec
	sessionDuration prometheus.Histogram
	pollInterval    prometheus.Gauge
	cycleFailures   prometheus.Gauge
	hintDivergences prometheus.Counter
}

var _ MetricsCollector = (*PrometheusMetrics)(nil)

func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusMetrics{reg: reg}
}

func (m *PrometheusMetrics) ensureRegistered() {
	m.once.Do(func() {
		m.cycles = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "livedraft",
			Subsystem: "sync",
			Name:      "cycles_total",
			Help:      "Sync cycles by result.",
		}, []string{"result"})
		m.cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "livedraft",
			Subsystem: "sync",
			Name:      "cycle_seconds",
			Help:      "Wall time of one sync cycle.",
			Buckets:   prometheus.DefBuckets,
		})
		m.sessionOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "livedraft",
			Subsystem: "sync",
			Name:      "session_syncs_total",
			Help:      "Per-session sync attempts by outcome.",
		}, []string{"outcome"})
		m.sessionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "livedraft",
			Subsystem: "sync",
			Name:      "session_sync_seconds",
			Help:      "Time to fetch and reconcile one session.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		})
		m.pollInterval = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "livedraft",
			Subsystem: "sync",
			Name:      "poll_interval_seconds",
			Help:      "Current wait between cycles, including backoff.",
		})
		m.cycleFailures = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "livedraft",
			Subsystem: "sync",
			Name:      "consecutive_cycle_failures",
			Help:      "Failed cycles since the last good one.",
		})
		m.hintDivergences = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "livedraft",
			Subsystem: "sync",
			Name:      "hint_divergences_total",
			Help:      "Times the upstream on-clock hint disagreed with the local pick clock.",
		})

		m.reg.MustRegister(m.cycles, m.cycleDuration, m.sessionOutcomes, m.sessionDuration,
			m.pollInterval, m.cycleFailures, m.hintDivergences)
	})
}

func (m *PrometheusMetrics) RecordCycle(report CycleReport) {
	m.ensureRegistered()
	result := "ok"
	if report.Failed {
		result = "failed"
	}
	m.cycles.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(report.Duration.Seconds())
}

func (m *PrometheusMetrics) RecordSessionSync(outcome Outcome, duration time.Duration) {
	m.ensureRegistered()
	m.sessionOutcomes.WithLabelValues(string(outcome)).Inc()
	if !outcome.Skipped() {
		m.sessionDuration.Observe(duration.Seconds())
	}
}

func (m *PrometheusMetrics) RecordBackoff(interval time.Duration, consecutiveFailures int) {
	m.ensureRegistered()
	m.pollInterval.Set(interval.Seconds())
	m.cycleFailures.Set(float64(consecutiveFailures))
}

func (m *PrometheusMetrics) RecordHintDivergence() {
	m.ensureRegistered()
	m.hintDivergences.Inc()
}
