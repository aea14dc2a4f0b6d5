package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. All Record methods are safe on a nil
// receiver so components can run without metrics in tests.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Auth metrics
	AuthEventsTotal   *prometheus.CounterVec
	TokensIssuedTotal *prometheus.CounterVec

	// Authorization metrics
	AuthzDeniedTotal *prometheus.CounterVec

	// Cache metrics
	CacheResultsTotal *prometheus.CounterVec

	// Onboarding metrics
	OnboardingTotal     *prometheus.CounterVec
	OnboardingDuration  prometheus.Histogram
	ReconciledOrgsTotal *prometheus.CounterVec
	ReconcileRunsTotal  *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulwark_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bulwark_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulwark_auth_events_total",
				Help: "Authentication events by type and outcome",
			},
			[]string{"event", "outcome"},
		),
		TokensIssuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulwark_tokens_issued_total",
				Help: "Token pairs issued by flow",
			},
			[]string{"flow"},
		),
		AuthzDeniedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulwark_authz_denied_total",
				Help: "Authorization denials by resource and action",
			},
			[]string{"resource", "action"},
		),
		CacheResultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulwark_list_cache_results_total",
				Help: "List cache lookups by resource kind and result",
			},
			[]string{"kind", "result"},
		),
		OnboardingTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulwark_onboarding_total",
				Help: "Organization onboardings by outcome",
			},
			[]string{"outcome"},
		),
		OnboardingDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bulwark_onboarding_duration_seconds",
				Help:    "Organization onboarding duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		ReconciledOrgsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulwark_reconciled_organizations_total",
				Help: "Organizations repaired by the onboarding reconciler",
			},
			[]string{"action"},
		),
		ReconcileRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulwark_reconcile_runs_total",
				Help: "Onboarding reconciler runs by outcome",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthEventsTotal,
		m.TokensIssuedTotal,
		m.AuthzDeniedTotal,
		m.CacheResultsTotal,
		m.OnboardingTotal,
		m.OnboardingDuration,
		m.ReconciledOrgsTotal,
		m.ReconcileRunsTotal,
	)

	return m
}

// RegisterDBStats exports database pool statistics.
func RegisterDBStats(registry *prometheus.Registry, db *sql.DB, name string) {
	registry.MustRegister(collectors.NewDBStatsCollector(db, name))
}

// RecordAuthEvent counts a login/register/refresh/logout outcome.
func (m *Metrics) RecordAuthEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.AuthEventsTotal.WithLabelValues(event, outcome).Inc()
}

// RecordTokenIssued counts an issued token pair.
func (m *Metrics) RecordTokenIssued(flow string) {
	if m == nil {
		return
	}
	m.TokensIssuedTotal.WithLabelValues(flow).Inc()
}

// RecordAuthzDenied counts an authorization denial.
func (m *Metrics) RecordAuthzDenied(resource, action string) {
	if m == nil {
		return
	}
	m.AuthzDeniedTotal.WithLabelValues(resource, action).Inc()
}

// RecordCacheResult counts a list cache hit or miss.
func (m *Metrics) RecordCacheResult(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheResultsTotal.WithLabelValues(kind, result).Inc()
}

// RecordOnboarding counts an onboarding outcome and its duration.
func (m *Metrics) RecordOnboarding(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.OnboardingTotal.WithLabelValues(outcome).Inc()
	m.OnboardingDuration.Observe(duration.Seconds())
}

// RecordReconcile counts one reconciler run and the organizations it touched.
func (m *Metrics) RecordReconcile(outcome string, completed, compensated int) {
	if m == nil {
		return
	}
	m.ReconcileRunsTotal.WithLabelValues(outcome).Inc()
	m.ReconciledOrgsTotal.WithLabelValues("completed").Add(float64(completed))
	m.ReconciledOrgsTotal.WithLabelValues("compensated").Add(float64(compensated))
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routeLabel uses the mux route template to keep label cardinality bounded.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Install it with router.Use so the matched route is available.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
