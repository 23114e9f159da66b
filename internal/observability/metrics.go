package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics of the API process.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	ingested        *prometheus.CounterVec
	alerts          *prometheus.CounterVec
	riskScore       prometheus.Histogram
}

// NewMetrics builds a private registry with HTTP and risk metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "insiderwatch_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "insiderwatch_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	ingested := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "insiderwatch_activity_ingested_total",
		Help: "Activity events ingested, by engine outcome.",
	}, []string{"outcome"})
	alerts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "insiderwatch_alerts_total",
		Help: "Alerts written, by level.",
	}, []string{"level"})
	score := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "insiderwatch_risk_score",
		Help:    "Distribution of assessed risk scores.",
		Buckets: prometheus.LinearBuckets(10, 10, 10),
	})
	registry.MustRegister(
		requests, duration, ingested, alerts, score,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		ingested:        ingested,
		alerts:          alerts,
		riskScore:       score,
	}
}

// Handler returns the /metrics handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveAssessment records one ingested event and its score.
func (m *Metrics) ObserveAssessment(outcome string, score int) {
	if m == nil {
		return
	}
	m.ingested.WithLabelValues(outcome).Inc()
	m.riskScore.Observe(float64(score))
}

// AlertWritten counts a persisted alert.
func (m *Metrics) AlertWritten(level string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(level).Inc()
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
