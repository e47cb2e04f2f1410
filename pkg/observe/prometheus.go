package observe

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/selector/pkg/selector"
)

// MetricsConfig configures the Prometheus observer.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "selector").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for compute and resolve durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus observer.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "selector",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Outcome label values for resolutions_total.
const (
	OutcomeCommitted = "committed"
	OutcomeStale     = "stale"
	OutcomeRejected  = "rejected"
)

// Prometheus records selector activity as Prometheus metrics.
type Prometheus struct {
	computations    *prometheus.CounterVec
	computeDuration *prometheus.HistogramVec
	reuses          *prometheus.CounterVec
	resolutions     *prometheus.CounterVec
	resolveDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	stale           *prometheus.CounterVec
	notifications   prometheus.Counter
	listeners       prometheus.Counter
}

var _ selector.Observer = (*Prometheus)(nil)

// NewPrometheus registers the selector metrics and returns an observer that
// updates them. Registering twice against the same registry panics, so
// create one per registry and share it between instances.
func NewPrometheus(opts ...MetricsOption) *Prometheus {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Prometheus{
		computations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "computations_total",
			Help:        "Total number of synchronous selector runs that produced a selection",
			ConstLabels: config.ConstLabels,
		}, []string{"origin"}),

		computeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "compute_duration_seconds",
			Help:        "Synchronous selector run duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"origin"}),

		reuses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "memo_hits_total",
			Help:        "Total number of reads answered from the memo",
			ConstLabels: config.ConstLabels,
		}, []string{"origin"}),

		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "resolutions_total",
			Help:        "Total number of settled asynchronous resolutions",
			ConstLabels: config.ConstLabels,
		}, []string{"origin", "outcome"}),

		resolveDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "resolve_duration_seconds",
			Help:        "Asynchronous resolution duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"origin"}),

		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "resolutions_in_flight",
			Help:        "Number of asynchronous resolutions currently in flight",
			ConstLabels: config.ConstLabels,
		}),

		stale: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "stale_resolutions_total",
			Help:        "Total number of resolutions discarded as stale",
			ConstLabels: config.ConstLabels,
		}, []string{"origin"}),

		notifications: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "notifications_total",
			Help:        "Total number of subscriber fan-outs",
			ConstLabels: config.ConstLabels,
		}),

		listeners: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "listener_calls_total",
			Help:        "Total number of subscriber callbacks invoked",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// OnCompute implements selector.Observer.
func (p *Prometheus) OnCompute(_ string, origin selector.Origin, d time.Duration) {
	p.computations.WithLabelValues(origin.String()).Inc()
	p.computeDuration.WithLabelValues(origin.String()).Observe(d.Seconds())
}

// OnReuse implements selector.Observer.
func (p *Prometheus) OnReuse(_ string, origin selector.Origin) {
	p.reuses.WithLabelValues(origin.String()).Inc()
}

// OnResolveStart implements selector.Observer.
func (p *Prometheus) OnResolveStart(ctx context.Context, _ string, _ selector.Origin) context.Context {
	p.inFlight.Inc()
	return ctx
}

// OnResolveSettle implements selector.Observer.
func (p *Prometheus) OnResolveSettle(_ context.Context, _ string, origin selector.Origin, d time.Duration, committed bool, err error) {
	p.inFlight.Dec()
	p.resolveDuration.WithLabelValues(origin.String()).Observe(d.Seconds())

	outcome := OutcomeCommitted
	switch {
	case err != nil:
		outcome = OutcomeRejected
	case !committed:
		outcome = OutcomeStale
	}
	p.resolutions.WithLabelValues(origin.String(), outcome).Inc()
}

// OnStale implements selector.Observer.
func (p *Prometheus) OnStale(_ string, origin selector.Origin) {
	p.stale.WithLabelValues(origin.String()).Inc()
}

// OnNotify implements selector.Observer.
func (p *Prometheus) OnNotify(_ string, subscribers int) {
	p.notifications.Inc()
	p.listeners.Add(float64(subscribers))
}
