package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for one registry. Tests create their own.
type Metrics struct {
	Registry *prometheus.Registry

	MatricesBuilt  *prometheus.CounterVec
	BuildDuration  *prometheus.HistogramVec
	SourceRequests *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		MatricesBuilt: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matrices_built_total",
				Help: "Comparison matrices built, by view",
			},
			[]string{"view"},
		),
		BuildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "matrix_build_seconds",
				Help:    "Time spent assembling a comparison matrix",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"view"},
		),
		SourceRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entity_source_requests_total",
				Help: "Entity source fetches, by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests served, by route pattern and status code",
			},
			[]string{"route", "status"},
		),
	}
	m.Registry.MustRegister(m.MatricesBuilt, m.BuildDuration, m.SourceRequests, m.HTTPRequests)
	return m
}

// ObserveBuild records one matrix build.
func (m *Metrics) ObserveBuild(view string, started time.Time) {
	if m == nil {
		return
	}
	m.MatricesBuilt.WithLabelValues(view).Inc()
	m.BuildDuration.WithLabelValues(view).Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveSource(source, outcome string) {
	if m == nil {
		return
	}
	m.SourceRequests.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) ObserveHTTP(route, status string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, status).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
