// Package metrics exposes sampler and registry activity to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "yuca"

// Metrics methods are safe to call on a nil receiver.
type Metrics struct {
	ticks          *prometheus.CounterVec
	tickFailures   *prometheus.CounterVec
	tickLatency    *prometheus.HistogramVec
	activeMonitors prometheus.Gauge
	storedReports  prometheus.Gauge
	dumps          *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sampler_ticks_total",
			Help:      "Sampler ticks by snapshot source.",
		}, []string{"source"}),
		tickFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sampler_tick_failures_total",
			Help:      "Sampler ticks whose snapshot was dropped.",
		}, []string{"source"}),
		tickLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sampler_tick_duration_seconds",
			Help:      "Time spent reading one snapshot.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"source"}),
		activeMonitors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_monitors",
			Help:      "Monitors currently sampling.",
		}),
		storedReports: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_reports",
			Help:      "Finalized reports held in memory.",
		}),
		dumps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dumps_total",
			Help:      "Report dumps by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.ticks, m.tickFailures, m.tickLatency, m.activeMonitors, m.storedReports, m.dumps)
	return m
}

func (m *Metrics) ObserveTick(source string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(source).Inc()
	m.tickLatency.WithLabelValues(source).Observe(elapsed.Seconds())
	if err != nil {
		m.tickFailures.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) SetActiveMonitors(n int) {
	if m == nil {
		return
	}
	m.activeMonitors.Set(float64(n))
}

func (m *Metrics) SetStoredReports(n int) {
	if m == nil {
		return
	}
	m.storedReports.Set(float64(n))
}

func (m *Metrics) ObserveDump(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.dumps.WithLabelValues(result).Inc()
}
