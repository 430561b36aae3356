package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Gate decision outcomes
const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Auth metrics
	AuthGateDecisionsTotal *prometheus.CounterVec
	LoginAttemptsTotal     *prometheus.CounterVec
	AccountLockoutsTotal   prometheus.Counter
	TokensIssuedTotal      prometheus.Counter
	ThrottleRejectedTotal  *prometheus.CounterVec

	// Storage metrics
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec

	// Redis metrics
	RedisCommandsTotal *prometheus.CounterVec

	otel *OTelMetrics
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "haven_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "haven_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		AuthGateDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "haven_auth_gate_decisions_total",
				Help: "Decisions taken by authentication and authorization gates",
			},
			[]string{"gate", "outcome"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "haven_login_attempts_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		),
		AccountLockoutsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "haven_account_lockouts_total",
				Help: "Number of requests rejected because the account is locked",
			},
		),
		TokensIssuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "haven_tokens_issued_total",
				Help: "Number of bearer tokens issued",
			},
		),
		ThrottleRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "haven_login_throttle_rejected_total",
				Help: "Login requests rejected by the per-client throttle",
			},
			[]string{"backend"},
		),

		StorageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "haven_storage_operations_total",
				Help: "Total number of account store operations",
			},
			[]string{"operation", "status"},
		),
		StorageOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "haven_storage_operation_duration_seconds",
				Help:    "Account store operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation"},
		),

		RedisCommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "haven_redis_commands_total",
				Help: "Total number of Redis commands",
			},
			[]string{"command", "status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthGateDecisionsTotal,
		m.LoginAttemptsTotal,
		m.AccountLockoutsTotal,
		m.TokensIssuedTotal,
		m.ThrottleRejectedTotal,
		m.StorageOperationsTotal,
		m.StorageOperationDuration,
		m.RedisCommandsTotal,
	)

	return m
}

// WithOTel mirrors gate decisions and login results into OpenTelemetry instruments
func (m *Metrics) WithOTel(o *OTelMetrics) *Metrics {
	m.otel = o
	return m
}

// RecordGateDecision counts one decision of an auth gate. Safe on a nil receiver.
func (m *Metrics) RecordGateDecision(gate, outcome string) {
	if m == nil {
		return
	}
	m.AuthGateDecisionsTotal.WithLabelValues(gate, outcome).Inc()
	m.otel.recordGateDecision(gate, outcome)
}

// RecordLogin counts a login attempt by result. Safe on a nil receiver.
func (m *Metrics) RecordLogin(result string) {
	if m == nil {
		return
	}
	m.LoginAttemptsTotal.WithLabelValues(result).Inc()
	m.otel.recordLogin(result)
}

// RecordLockout counts a request rejected for a locked account. Safe on a nil receiver.
func (m *Metrics) RecordLockout() {
	if m == nil {
		return
	}
	m.AccountLockoutsTotal.Inc()
}

// RecordTokenIssued counts an issued token. Safe on a nil receiver.
func (m *Metrics) RecordTokenIssued() {
	if m == nil {
		return
	}
	m.TokensIssuedTotal.Inc()
}

// RecordThrottleRejected counts a throttled login request. Safe on a nil receiver.
func (m *Metrics) RecordThrottleRejected(backend string) {
	if m == nil {
		return
	}
	m.ThrottleRejectedTotal.WithLabelValues(backend).Inc()
}

// RecordRedisCommand counts a Redis command. Safe on a nil receiver.
func (m *Metrics) RecordRedisCommand(command string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RedisCommandsTotal.WithLabelValues(command, status).Inc()
}

// ObserveStorage records an account store operation. Safe on a nil receiver.
func (m *Metrics) ObserveStorage(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	m.StorageOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
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

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Requests are labelled by route template to keep cardinality bounded.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := "unmatched"
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
