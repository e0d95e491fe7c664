package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	QuotaReservations *prometheus.CounterVec
	QuotaRejections   prometheus.Counter
	QuotaReleases     prometheus.Counter
	StoreDegraded     prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		QuotaReservations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "anonid_quota_reservations_total",
			Help: "Total number of quota reservation attempts by outcome",
		}, []string{"outcome"}),
		QuotaRejections: f.NewCounter(prometheus.CounterOpts{
			Name: "anonid_quota_rejections_total",
			Help: "Total number of queries rejected by the daily quota",
		}),
		QuotaReleases: f.NewCounter(prometheus.CounterOpts{
			Name: "anonid_quota_releases_total",
			Help: "Total number of reservations returned after a later stage failed",
		}),
		StoreDegraded: f.NewGauge(prometheus.GaugeOpts{
			Name: "anonid_quota_store_degraded",
			Help: "Whether the quota store is serving from the in-memory fallback (1) or primary (0)",
		}),
	}
}

func (m *Metrics) IncrementReservations(outcome string) {
	if m == nil {
		return
	}
	m.QuotaReservations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementRejections() {
	if m == nil {
		return
	}
	m.QuotaRejections.Inc()
}

func (m *Metrics) IncrementReleases() {
	if m == nil {
		return
	}
	m.QuotaReleases.Inc()
}

func (m *Metrics) SetDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.StoreDegraded.Set(1)
	} else {
		m.StoreDegraded.Set(0)
	}
}
