package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	Signals         *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "anonid_resolve_requests_total",
			Help: "Identity resolution requests by outcome",
		}, []string{"outcome"}),
		RequestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "anonid_resolve_request_duration_seconds",
			Help:    "End-to-end latency of identity resolution",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		Signals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "anonid_reported_signals_total",
			Help: "Security signals reported by client applications",
		}, []string{"severity"}),
	}
}

func (m *Metrics) ObserveRequest(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(outcome).Inc()
	m.RequestDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) IncrementSignals(severity string) {
	if m == nil {
		return
	}
	m.Signals.WithLabelValues(severity).Inc()
}
