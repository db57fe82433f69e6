// Package observability provides structured logging, Prometheus metrics, OpenTelemetry
// setup, health checks and graceful shutdown for the sphinxql service.
//
// # Structured Logging
//
// Loggers are logrus loggers with a JSON formatter:
//
//	logger := observability.NewLogger(observability.ParseLevel("info"), os.Stdout)
//	ctx = observability.WithLogger(ctx, logger)
//	observability.FromContext(ctx).WithField("index", "products").Info("query sent")
//
// FromContext adds request_id, trace_id and span_id when they are present.
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ObserveQuery("products", elapsed, rs.Len(), err)
//
// Recording helpers are safe to call on a nil *Metrics, so components can run without metrics.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(connManager, redisClient)
//	status := checker.Check(ctx)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "sphinxql",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability
