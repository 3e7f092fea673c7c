// Package metrics exposes Prometheus metrics for the edge calculator.
// All recording methods are safe on a nil *EdgeMetrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type EdgeMetrics struct {
	registry *prometheus.Registry

	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	ContestsTotal    *prometheus.CounterVec
	AlertsTotal      *prometheus.CounterVec
	NotifyFailures   prometheus.Counter
	QuoteFailures    prometheus.Counter
	CatalogueEntries prometheus.Gauge
	Edge             prometheus.Histogram
}

func New() *EdgeMetrics {
	registry := prometheus.NewRegistry()

	m := &EdgeMetrics{
		registry: registry,
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgefinder_runs_total",
				Help: "Calculation runs by result",
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "edgefinder_run_duration_seconds",
			Help:    "Wall time of one calculation run",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		ContestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgefinder_contests_total",
				Help: "Evaluated contests by outcome (matched, unmatched, invalid)",
			},
			[]string{"outcome"},
		),
		AlertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgefinder_alerts_total",
				Help: "Sides whose edge reached the threshold",
			},
			[]string{"side"},
		),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edgefinder_notify_failures_total",
			Help: "Alerts that at least one channel failed to deliver",
		}),
		QuoteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edgefinder_quote_fetch_failures_total",
			Help: "Quote retrievals that fell back to an empty catalogue",
		}),
		CatalogueEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edgefinder_catalogue_entries",
			Help: "Entries in the most recent quote catalogue",
		}),
		Edge: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "edgefinder_edge_ratio",
			Help:    "Observed edge values for matched sides",
			Buckets: []float64{-0.5, -0.2, -0.1, -0.05, -0.03, 0, 0.03, 0.05, 0.1, 0.2, 0.5},
		}),
	}

	registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.ContestsTotal,
		m.AlertsTotal,
		m.NotifyFailures,
		m.QuoteFailures,
		m.CatalogueEntries,
		m.Edge,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *EdgeMetrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *EdgeMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *EdgeMetrics) ObserveRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(d.Seconds())
}

func (m *EdgeMetrics) ObserveContest(outcome string) {
	if m == nil {
		return
	}
	m.ContestsTotal.WithLabelValues(outcome).Inc()
}

func (m *EdgeMetrics) ObserveEdge(side string, edge float64, alert bool) {
	if m == nil {
		return
	}
	m.Edge.Observe(edge)
	if alert {
		m.AlertsTotal.WithLabelValues(side).Inc()
	}
}

func (m *EdgeMetrics) NotifyFailed() {
	if m == nil {
		return
	}
	m.NotifyFailures.Inc()
}

func (m *EdgeMetrics) QuoteFetchFailed() {
	if m == nil {
		return
	}
	m.QuoteFailures.Inc()
}

func (m *EdgeMetrics) SetCatalogueEntries(n int) {
	if m == nil {
		return
	}
	m.CatalogueEntries.Set(float64(n))
}
