// Package metrics exposes Prometheus metrics for build and restore jobs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "deploy_manager"

// Metrics holds the job collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	jobsStarted  *prometheus.CounterVec
	jobsFinished *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	jobsRunning  prometheus.Gauge
	requests     *prometheus.CounterVec
}

// New creates the collectors on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		jobsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_started_total",
				Help:      "Total number of jobs started",
			},
			[]string{"kind"},
		),
		jobsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_finished_total",
				Help:      "Total number of jobs finished",
			},
			[]string{"kind", "status"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Duration of job execution in seconds",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
			},
			[]string{"kind"},
		),
		jobsRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "jobs_running",
				Help:      "Number of jobs currently running",
			},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"method", "route", "code"},
		),
	}

	registry.MustRegister(
		m.jobsStarted,
		m.jobsFinished,
		m.jobDuration,
		m.jobsRunning,
		m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// JobStarted records the start of a job of the given kind.
func (m *Metrics) JobStarted(kind string) {
	if m == nil {
		return
	}
	m.jobsStarted.WithLabelValues(kind).Inc()
	m.jobsRunning.Inc()
}

// JobFinished records the end of a job.
func (m *Metrics) JobFinished(kind, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobsRunning.Dec()
	m.jobsFinished.WithLabelValues(kind, status).Inc()
	m.jobDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// Request records one served API request.
func (m *Metrics) Request(method, route, code string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, code).Inc()
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
