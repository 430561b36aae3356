package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/haven/pkg/accounts"
	"github.com/platinummonkey/haven/pkg/auth"
	"github.com/platinummonkey/haven/pkg/httputil"
	"github.com/platinummonkey/haven/pkg/middleware"
	"github.com/platinummonkey/haven/pkg/observability"
)

// Options wires the API server to its collaborators
type Options struct {
	Store   accounts.Store
	Service *accounts.Service
	Issuer  *auth.TokenIssuer

	// Throttle limits login attempts per client; nil disables it
	Throttle *middleware.LoginThrottle
	APIKey   middleware.APIKeyConfig

	Health   *observability.HealthChecker
	Metrics  *observability.Metrics
	Registry *prometheus.Registry
	Logger   *observability.Logger

	CORSOrigins  []string
	MaxBodyBytes int64
	// ServiceName names the server span
	ServiceName string
}

// Server is the Haven HTTP API
type Server struct {
	opts    Options
	router  *mux.Router
	authn   *middleware.Authenticator
	lockout *middleware.LoginLockout
	logger  *observability.Logger
	now     func() time.Time
}

// NewServer creates a new API server with all routes registered
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "haven-api"
	}

	s := &Server{
		opts:    opts,
		router:  mux.NewRouter(),
		authn:   middleware.NewAuthenticator(opts.Issuer, opts.Store, opts.Logger, opts.Metrics),
		lockout: middleware.NewLoginLockout(opts.Store, opts.Metrics),
		logger:  opts.Logger,
		now:     time.Now,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	if s.opts.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.opts.Metrics))
	}

	s.registerOpsRoutes(s.router)

	api := s.router.PathPrefix("/api").Subrouter()

	// Auth routes
	api.HandleFunc("/auth/register", s.register).Methods(http.MethodPost)
	api.Handle("/auth/login", s.loginChain(http.HandlerFunc(s.login))).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", s.logout).Methods(http.MethodPost)
	api.Handle("/auth/me", s.authn.Authenticate(http.HandlerFunc(s.me))).Methods(http.MethodGet)

	// Listing routes
	api.Handle("/properties", s.authn.Optional(http.HandlerFunc(s.listProperties))).Methods(http.MethodGet)
	api.Handle("/properties/{propertyId}/owner",
		s.protect(http.HandlerFunc(s.transferProperty), middleware.OwnerOrPrivileged("ownerId")),
	).Methods(http.MethodPut)

	// Dashboards
	api.Handle("/agent/dashboard", s.protect(http.HandlerFunc(s.agentDashboard), middleware.AgentOnly)).Methods(http.MethodGet)
	api.Handle("/admin/dashboard", s.protect(http.HandlerFunc(s.adminDashboard), middleware.AdminOnly)).Methods(http.MethodGet)
	api.Handle("/reports",
		s.protect(http.HandlerFunc(s.reports), middleware.Authorize(auth.RoleAgent, auth.RoleAdmin)),
	).Methods(http.MethodGet)

	// Account routes
	api.Handle("/users/{id}", s.protect(http.HandlerFunc(s.updateUser), middleware.OwnerOrAdmin("userId"))).Methods(http.MethodPut)

	// Integration routes
	api.Handle("/integrations/ping", middleware.APIKey(s.opts.APIKey)(http.HandlerFunc(s.integrationPing))).Methods(http.MethodGet)
}

// registerOpsRoutes adds health and metrics endpoints to r
func (s *Server) registerOpsRoutes(r *mux.Router) {
	if s.opts.Health != nil {
		r.HandleFunc("/healthz", s.opts.Health.Liveness).Methods(http.MethodGet)
		r.HandleFunc("/readyz", s.opts.Health.Readiness).Methods(http.MethodGet)
	}
	if s.opts.Registry != nil {
		r.Handle("/metrics", observability.MetricsHandler(s.opts.Registry)).Methods(http.MethodGet)
	}
}

// protect runs h behind authentication and then the given gates in order
func (s *Server) protect(h http.Handler, gates ...func(http.Handler) http.Handler) http.Handler {
	return s.authn.Authenticate(httputil.Chain(gates...)(h))
}

// loginChain places the per-client throttle before the account lockout check
func (s *Server) loginChain(h http.Handler) http.Handler {
	h = s.lockout.Handler(h)
	if s.opts.Throttle != nil {
		h = s.opts.Throttle.Handler(h)
	}
	return h
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the router wrapped in the request middleware stack and
// OpenTelemetry instrumentation
func (s *Server) Handler() http.Handler {
	chain := []func(http.Handler) http.Handler{
		httputil.RecoveryMiddleware(s.logger),
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
		httputil.CORSMiddleware(s.opts.CORSOrigins),
	}
	if s.opts.MaxBodyBytes > 0 {
		chain = append(chain, httputil.MaxBytesMiddleware(s.opts.MaxBodyBytes))
	}
	return otelhttp.NewHandler(httputil.Chain(chain...)(s.router), s.opts.ServiceName)
}

// HealthHandler serves only the health and metrics endpoints, for the probe port
func (s *Server) HealthHandler() http.Handler {
	r := mux.NewRouter()
	s.registerOpsRoutes(r)
	return r
}
