// Package metrics provides Prometheus instrumentation for swarmcluster.
package metrics

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric collectors for swarmcluster.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	ActiveRequests     prometheus.Gauge
	RunsTotal          *prometheus.CounterVec
	RunDuration        prometheus.Histogram
	IterationsTotal    prometheus.Counter
	EvaluationsTotal   prometheus.Counter
	BestFitness        prometheus.Gauge
	EmptyClustersTotal prometheus.Counter
	CacheLookupsTotal  *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all swarmcluster metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swarmcluster_requests_total",
				Help: "Total HTTP requests by endpoint and status code.",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "swarmcluster_request_duration_seconds",
				Help:    "HTTP request latency distribution.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint"},
		),
		ActiveRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "swarmcluster_active_requests",
				Help: "Number of requests currently being processed.",
			},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swarmcluster_runs_total",
				Help: "Total clustering runs by outcome (ok, converged, error).",
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "swarmcluster_run_duration_seconds",
				Help:    "Wall time of a full clustering run.",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		IterationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "swarmcluster_iterations_total",
				Help: "Total swarm iterations executed.",
			},
		),
		EvaluationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "swarmcluster_particle_evaluations_total",
				Help: "Total particle fitness evaluations.",
			},
		),
		BestFitness: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "swarmcluster_best_fitness",
				Help: "Global-best fitness of the most recent iteration (lower is better).",
			},
		),
		EmptyClustersTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "swarmcluster_empty_clusters_total",
				Help: "Empty clusters observed in global-best clusterings.",
			},
		),
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swarmcluster_cache_lookups_total",
				Help: "Result cache lookups by outcome (hit or miss).",
			},
			[]string{"result"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.RunsTotal,
		m.RunDuration,
		m.IterationsTotal,
		m.EvaluationsTotal,
		m.BestFitness,
		m.EmptyClustersTotal,
		m.CacheLookupsTotal,
	)

	return m
}

// Handler returns an http.Handler that serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records a completed request's metrics.
func (m *Metrics) RecordRequest(endpoint string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	m.RequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordIteration records one completed swarm iteration.
// Non-finite fitness values are not written to the gauge.
func (m *Metrics) RecordIteration(bestFitness float64, evaluations int) {
	m.IterationsTotal.Inc()
	m.EvaluationsTotal.Add(float64(evaluations))
	if !math.IsInf(bestFitness, 0) && !math.IsNaN(bestFitness) {
		m.BestFitness.Set(bestFitness)
	}
}

// RecordEmptyClusters counts empty clusters seen in a best clustering.
func (m *Metrics) RecordEmptyClusters(n int) {
	if n > 0 {
		m.EmptyClustersTotal.Add(float64(n))
	}
}

// RecordCacheLookup records a result cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordRun records the outcome of a full clustering run.
func (m *Metrics) RecordRun(status string, duration time.Duration) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(duration.Seconds())
}

// Middleware returns an HTTP middleware that instruments requests.
func (m *Metrics) Middleware(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.ActiveRequests.Inc()
		defer m.ActiveRequests.Dec()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rw, r)

		m.RecordRequest(endpoint, rw.statusCode, time.Since(start))
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the wrapped writer so streaming handlers keep working.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
