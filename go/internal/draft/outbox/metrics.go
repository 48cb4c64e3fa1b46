package outbox

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector records relay activity.
type MetricsCollector interface {
	RecordEventProcessed(eventType string, success bool, duration time.Duration)
	RecordBatchProcessed(count int, duration time.Duration)
	RecordOutboxLag(lag int)
	RecordPublishAttempt(eventType string, attempt int, success bool)
}

// NoOpMetricsCollector is used when metrics aren't needed
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordEventProcessed(string, bool, time.Duration) {}
func (NoOpMetricsCollector) RecordBatchProcessed(int, time.Duration)          {}
func (NoOpMetricsCollector) RecordOutboxLag(int)                              {}
func (NoOpMetricsCollector) RecordPublishAttempt(string, int, bool)           {}

// PrometheusMetrics implements MetricsCollector with lazily registered collectors.
type PrometheusMetrics struct {
	reg  prometheus.Registerer
	once sync.Once

	eventCounter    *prometheus.CounterVec
	eventDuration   *prometheus.HistogramVec
	batchSize       prometheus.Histogram
	batchDuration   prometheus.Histogram
	outboxLag       prometheus.Gauge
	publishAttempts *prometheus.CounterVec
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
		m.eventCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "livedraft",
			Subsystem: "outbox",
			Name:      "events_total",
			Help:      "Outbox records relayed by event type and status.",
		}, []string{"event_type", "status"})
		m.eventDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "livedraft",
			Subsystem: "outbox",
			Name:      "publish_seconds",
			Help:      "Time to publish one outbox record.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"event_type"})
		m.batchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "livedraft",
			Subsystem: "outbox",
			Name:      "batch_size",
			Help:      "Records fetched per fallback poll.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		})
		m.batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "livedraft",
			Subsystem: "outbox",
			Name:      "batch_seconds",
			Help:      "Time to relay one fallback batch.",
			Buckets:   prometheus.DefBuckets,
		})
		m.outboxLag = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "livedraft",
			Subsystem: "outbox",
			Name:      "pending_records",
			Help:      "Unsent records seen by the last poll.",
		})
		m.publishAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "livedraft",
			Subsystem: "outbox",
			Name:      "publish_attempts_total",
			Help:      "Publish attempts by event type, attempt number and status.",
		}, []string{"event_type", "attempt", "status"})

		m.reg.MustRegister(m.eventCounter, m.eventDuration, m.batchSize, m.batchDuration, m.outboxLag, m.publishAttempts)
	})
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func (m *PrometheusMetrics) RecordEventProcessed(eventType string, success bool, duration time.Duration) {
	m.ensureRegistered()
	m.eventCounter.WithLabelValues(eventType, status(success)).Inc()
	if success {
		m.eventDuration.WithLabelValues(eventType).Observe(duration.Seconds())
	}
}

func (m *PrometheusMetrics) RecordBatchProcessed(count int, duration time.Duration) {
	m.ensureRegistered()
	m.batchSize.Observe(float64(count))
	m.batchDuration.Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordOutboxLag(lag int) {
	m.ensureRegistered()
	m.outboxLag.Set(float64(lag))
}

func (m *PrometheusMetrics) RecordPublishAttempt(eventType string, attempt int, success bool) {
	m.ensureRegistered()
	m.publishAttempts.WithLabelValues(eventType, strconv.Itoa(attempt), status(success)).Inc()
}
