package security

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the security event bus.
type Metrics struct {
	Published           *prometheus.CounterVec
	Dropped             prometheus.Counter
	Sampled             prometheus.Counter
	SinkFailures        prometheus.Counter
	CircuitBreakerState prometheus.Gauge
	BufferDepth         prometheus.Gauge
}

// NewMetrics registers the bus metrics with reg. A nil reg uses the default
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "anonid_security_events_published_total",
			Help: "Total number of security events accepted by the bus",
		}, []string{"type", "severity"}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "anonid_security_events_dropped_total",
			Help: "Total number of security events dropped by buffer overflow or open circuit",
		}),
		Sampled: f.NewCounter(prometheus.CounterOpts{
			Name: "anonid_security_events_sampled_total",
			Help: "Total number of informational events dropped due to sampling",
		}),
		SinkFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "anonid_security_sink_failures_total",
			Help: "Total number of failed sink writes",
		}),
		CircuitBreakerState: f.NewGauge(prometheus.GaugeOpts{
			Name: "anonid_security_sink_circuit_state",
			Help: "Current sink circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}),
		BufferDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "anonid_security_buffer_depth",
			Help: "Number of security events waiting for dispatch",
		}),
	}
}

func (m *Metrics) incPublished(eventType, severity string) {
	if m == nil {
		return
	}
	m.Published.WithLabelValues(eventType, severity).Inc()
}

func (m *Metrics) addDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Dropped.Add(float64(n))
}

func (m *Metrics) incSampled() {
	if m == nil {
		return
	}
	m.Sampled.Inc()
}

func (m *Metrics) incSinkFailures() {
	if m == nil {
		return
	}
	m.SinkFailures.Inc()
}

func (m *Metrics) setCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitBreakerState.Set(1)
	} else {
		m.CircuitBreakerState.Set(0)
	}
}

func (m *Metrics) setDepth(n int) {
	if m == nil {
		return
	}
	m.BufferDepth.Set(float64(n))
}
