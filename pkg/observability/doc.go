// Package observability provides structured logging, Prometheus metrics, health
// probes and OpenTelemetry tracing for the Haven API.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("account_id", id).Warn("activity update failed")
//
// Request handlers use the request-scoped logger placed in the context by
// httputil.LoggingMiddleware:
//
//	observability.FromContext(r.Context()).Info("login succeeded")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordGateDecision("authenticate", observability.OutcomeAllowed)
//
// The Record* helpers accept a nil *Metrics so gates can run without metrics in tests.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(store, redisClient, version)
//	router.HandleFunc("/readyz", checker.Readiness)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer providers.Shutdown(ctx)
//	ctx, span := observability.Tracer("haven/middleware").Start(ctx, "auth.Authenticate")
package observability
