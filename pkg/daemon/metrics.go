package daemon

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type daemonMetrics struct {
	registry       *prometheus.Registry
	steps          *prometheus.CounterVec
	exhausted      prometheus.Counter
	activeTrackers prometheus.Gauge
	swept          prometheus.Counter
}

func newMetrics() *daemonMetrics {
	m := &daemonMetrics{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "liquidtrack",
			Name:      "steps_total",
			Help:      "Pipetting steps computed for tracker sessions.",
		}, []string{"tube_type", "direction"}),
		exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "liquidtrack",
			Name:      "exhausted_total",
			Help:      "Tracked tubes that reached the bottom.",
		}),
		activeTrackers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "liquidtrack",
			Name:      "active_trackers",
			Help:      "Tracker sessions currently held by the daemon.",
		}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "liquidtrack",
			Name:      "swept_trackers_total",
			Help:      "Idle tracker sessions removed by the sweeper.",
		}),
	}

	m.registry.MustRegister(
		m.steps,
		m.exhausted,
		m.activeTrackers,
		m.swept,
		collectors.NewGoCollector(),
	)

	return m
}

func (m *daemonMetrics) handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
