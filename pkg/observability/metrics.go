package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the filter host
type Metrics struct {
	// Module lifecycle metrics
	ModuleLoadsTotal *prometheus.CounterVec
	OpenHandles      prometheus.Gauge

	// Negotiation metrics
	NegotiationsTotal *prometheus.CounterVec

	// Invocation metrics
	InvocationsTotal   *prometheus.CounterVec
	InvocationDuration *prometheus.HistogramVec
	OutputBytes        *prometheus.HistogramVec

	// Contract metrics
	ContractViolationsTotal prometheus.Counter
	SizeMismatchesTotal     prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		ModuleLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tensorplug_module_loads_total",
				Help: "Total number of module load attempts",
			},
			[]string{"result"},
		),
		OpenHandles: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tensorplug_open_handles",
				Help: "Number of currently open plugin handles",
			},
		),
		NegotiationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tensorplug_negotiations_total",
				Help: "Total number of shape negotiations",
			},
			[]string{"mode", "result"},
		),
		InvocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tensorplug_invocations_total",
				Help: "Total number of per-buffer invocations",
			},
			[]string{"mode", "result"},
		),
		InvocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tensorplug_invocation_duration_seconds",
				Help:    "Per-buffer invocation duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"mode"},
		),
		OutputBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tensorplug_output_bytes",
				Help:    "Output buffer size in bytes",
				Buckets: prometheus.ExponentialBuckets(64, 4, 10),
			},
			[]string{"mode"},
		),
		ContractViolationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tensorplug_contract_violations_total",
				Help: "Total number of capability contract violations at load time",
			},
		),
		SizeMismatchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tensorplug_size_mismatches_total",
				Help: "Total number of module-allocated outputs disagreeing with the negotiated shape",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.ModuleLoadsTotal,
		m.OpenHandles,
		m.NegotiationsTotal,
		m.InvocationsTotal,
		m.InvocationDuration,
		m.OutputBytes,
		m.ContractViolationsTotal,
		m.SizeMismatchesTotal,
	)

	return m
}

// ObserveInvocation records one invocation outcome
func (m *Metrics) ObserveInvocation(mode string, result string, duration time.Duration, outputBytes int) {
	m.InvocationsTotal.WithLabelValues(mode, result).Inc()
	m.InvocationDuration.WithLabelValues(mode).Observe(duration.Seconds())
	if outputBytes > 0 {
		m.OutputBytes.WithLabelValues(mode).Observe(float64(outputBytes))
	}
}

// Handler returns an HTTP handler serving the registry in Prometheus format
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
