package report

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes a report as prometheus gauges.
type Metrics struct {
	registry *prometheus.Registry

	Events *prometheus.GaugeVec
	Result *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.Events = promauto.With(m.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ffconvert_report_events",
			Help: "Logged conditions of the last conversion by event and level",
		},
		[]string{"event", "level"},
	)
	m.Result = promauto.With(m.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ffconvert_report_result",
			Help: "Objects written by the last conversion",
		},
		[]string{"kind"},
	)
	return m
}

// Observe replaces the gauges with the counts of r.
func (m *Metrics) Observe(r *Report) {
	m.Events.Reset()
	m.Result.Reset()
	for ev, levels := range r.Counts {
		for lvl, n := range levels {
			m.Events.WithLabelValues(ev, lvl).Set(float64(n))
		}
	}
	for kind, n := range r.Result {
		m.Result.WithLabelValues(kind).Set(float64(n))
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
