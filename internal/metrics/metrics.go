package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "legalreviewiq"

// Collector owns the service's Prometheus metrics. It satisfies
// analyzer.Recorder and is safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry

	analyses        *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	sectionFailures *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
}

// New registers the collectors on registry. A nil registry gets a fresh one.
func New(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Completed contract analyses by backend and risk level.",
		}, []string{"backend", "risk_level"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_fallbacks_total",
			Help:      "Analyses answered by the rule backend after a primary failure.",
		}, []string{"from", "reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time spent in the backend that produced the analysis.",
			Buckets:   []float64{0.005, 0.05, 0.25, 1, 2.5, 5, 10, 30, 60},
		}, []string{"backend"}),
		sectionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "section_failures_total",
			Help:      "Sections skipped because scoring failed.",
		}, []string{"backend"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
	}

	registry.MustRegister(c.analyses, c.fallbacks, c.duration, c.sectionFailures, c.httpRequests)
	return c
}

// ObserveAnalysis records a completed analysis
func (c *Collector) ObserveAnalysis(backend, riskLevel string, elapsed time.Duration) {
	c.analyses.WithLabelValues(backend, riskLevel).Inc()
	c.duration.WithLabelValues(backend).Observe(elapsed.Seconds())
}

// IncFallback records a switch to the rule backend
func (c *Collector) IncFallback(from, reason string) {
	c.fallbacks.WithLabelValues(from, reason).Inc()
}

// IncSectionFailure records a section the backend could not score
func (c *Collector) IncSectionFailure(backend string) {
	c.sectionFailures.WithLabelValues(backend).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Middleware counts requests by chi route pattern so path parameters do not
// inflate cardinality
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}
