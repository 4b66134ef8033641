package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus collectors for spyglass. It satisfies the
// recorder interfaces declared by the gateway and watch packages.
type Metrics struct {
	registry *prometheus.Registry

	// Gateway metrics.
	RequestsTotal        *prometheus.CounterVec
	UpstreamDuration     *prometheus.HistogramVec
	CacheHitsTotal       *prometheus.CounterVec
	CacheMissesTotal     *prometheus.CounterVec
	BudgetRejectionsTotal prometheus.Counter
	SpendCommittedTotal  prometheus.Counter
	TransportErrorsTotal *prometheus.CounterVec

	// Watch session metrics.
	PollTicksTotal      *prometheus.CounterVec
	ItemsDeliveredTotal *prometheus.CounterVec
	SinkFailuresTotal   *prometheus.CounterVec
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spyglass_requests_total",
			Help: "Total number of gateway requests.",
		}, []string{"kind", "outcome"}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spyglass_upstream_duration_seconds",
			Help:    "Upstream call duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),

		CacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spyglass_cache_hits_total",
			Help: "Total number of cache hits.",
		}, []string{"kind"}),

		CacheMissesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spyglass_cache_misses_total",
			Help: "Total number of cache misses.",
		}, []string{"kind"}),

		BudgetRejectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spyglass_budget_rejections_total",
			Help: "Total number of requests denied by the daily budget.",
		}),

		SpendCommittedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spyglass_spend_committed_dollars_total",
			Help: "Total spend committed to the ledger, in dollars.",
		}),

		TransportErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spyglass_transport_errors_total",
			Help: "Total number of upstream transport errors.",
		}, []string{"kind", "error_type"}),

		PollTicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spyglass_poll_ticks_total",
			Help: "Total number of watch poll ticks.",
		}, []string{"outcome"}),

		ItemsDeliveredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spyglass_items_delivered_total",
			Help: "Total number of items delivered to sinks.",
		}, []string{"sink"}),

		SinkFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spyglass_sink_failures_total",
			Help: "Total number of failed sink deliveries.",
		}, []string{"sink"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.UpstreamDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.BudgetRejectionsTotal,
		m.SpendCommittedTotal,
		m.TransportErrorsTotal,
		m.PollTicksTotal,
		m.ItemsDeliveredTotal,
		m.SinkFailuresTotal,
	)
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry exposes the private registry for serving and for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// IncRequest implements gateway.MetricsRecorder.
func (m *Metrics) IncRequest(kind, outcome string) {
	m.RequestsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveUpstreamDuration implements gateway.MetricsRecorder.
func (m *Metrics) ObserveUpstreamDuration(kind string, seconds float64) {
	m.UpstreamDuration.WithLabelValues(kind).Observe(seconds)
}

// IncCacheHit implements gateway.MetricsRecorder.
func (m *Metrics) IncCacheHit(kind string) {
	m.CacheHitsTotal.WithLabelValues(kind).Inc()
}

// IncCacheMiss implements gateway.MetricsRecorder.
func (m *Metrics) IncCacheMiss(kind string) {
	m.CacheMissesTotal.WithLabelValues(kind).Inc()
}

// IncBudgetRejection implements gateway.MetricsRecorder.
func (m *Metrics) IncBudgetRejection() {
	m.BudgetRejectionsTotal.Inc()
}

// AddSpend implements gateway.MetricsRecorder.
func (m *Metrics) AddSpend(amount float64) {
	m.SpendCommittedTotal.Add(amount)
}

// IncTransportError implements gateway.MetricsRecorder.
func (m *Metrics) IncTransportError(kind, errorType string) {
	m.TransportErrorsTotal.WithLabelValues(kind, errorType).Inc()
}

// IncPollTick implements watch.MetricsRecorder.
func (m *Metrics) IncPollTick(outcome string) {
	m.PollTicksTotal.WithLabelValues(outcome).Inc()
}

// IncItemDelivered implements watch.MetricsRecorder.
func (m *Metrics) IncItemDelivered(sink string) {
	m.ItemsDeliveredTotal.WithLabelValues(sink).Inc()
}

// IncSinkFailure implements watch.MetricsRecorder.
func (m *Metrics) IncSinkFailure(sink string) {
	m.SinkFailuresTotal.WithLabelValues(sink).Inc()
}
