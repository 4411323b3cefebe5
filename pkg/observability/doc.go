// Package observability provides structured logging, Prometheus metrics,
// health checks and OpenTelemetry tracing.
//
// # Structured Logging
//
//	logger, err := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"}, nil)
//	observability.FromContext(ctx, logger).Info("course published")
//
// FromContext adds request_id, user_id and the active trace ids when the
// context carries them.
//
// # Prometheus Metrics
//
//	reg := prometheus.NewRegistry()
//	httpMetrics := observability.NewHTTPMetrics(reg)
//	router.Use(httpMetrics.Middleware)
//	observability.RegisterDBStats(reg, db)
//
// Domain packages register their own collectors on the same registry.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version).WithMetrics(reg)
//	server.RegisterRoutes(checker) // /healthz, /readyz, /metrics
//
// Readiness fails only when the database is unreachable; Redis outages
// report degraded.
//
// # OpenTelemetry
//
//	tp, err := observability.InitTracing(ctx, cfg.OTel, logger)
//	defer observability.ShutdownTracing(ctx, tp)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/httputil: Request logging middleware
package observability
