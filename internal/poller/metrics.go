package poller

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tick results reported in the result label.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultSkipped  = "skipped"
	ResultDisabled = "disabled"
)

// MetricsConfig configures the poller metrics.
type MetricsConfig struct {
	// Namespace defaults to "bitlum".
	Namespace string
	// Buckets default to prometheus.DefBuckets.
	Buckets []float64
	// Registry defaults to prometheus.DefaultRegisterer. A nil Registry
	// leaves the metrics unregistered.
	Registry prometheus.Registerer
}

// MetricsOption configures MetricsConfig.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithRegistry sets the registry the metrics are registered with.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// Metrics counts poller ticks and times task runs.
type Metrics struct {
	ticks    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics builds and registers the poller metrics:
//   - bitlum_poller_ticks_total{task,result}
//   - bitlum_poller_tick_duration_seconds{task}
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := MetricsConfig{
		Namespace: "bitlum",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		ticks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "poller",
			Name:      "ticks_total",
			Help:      "Poller ticks by task and result",
		}, []string{"task", "result"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: "poller",
			Name:      "tick_duration_seconds",
			Help:      "Duration of poller task runs in seconds",
			Buckets:   config.Buckets,
		}, []string{"task"}),
	}
}

func (m *Metrics) record(task, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(task, result).Inc()
	if took > 0 {
		m.duration.WithLabelValues(task).Observe(took.Seconds())
	}
}
