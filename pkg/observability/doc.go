// Package observability provides logging, metrics and tracing for pluginsync.
//
// # Overview
//
// Logging uses logrus. NewLogger builds the process logger from the configured
// level and format; components take a *logrus.Logger and fall back to a default
// one when given nil.
//
// Metrics are Prometheus collectors registered on a caller-owned registry.
// A one-shot run pushes them to a Pushgateway with PushMetrics.
//
// Tracing uses OpenTelemetry. InitTracing installs a global OTLP/gRPC tracer
// provider; packages create their tracers with otel.Tracer at init time and
// stay no-op until a provider is installed.
//
// # Usage Example
//
//	logger := observability.NewLogger("info", observability.LogFormatText, os.Stderr)
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//
//	tp, err := observability.InitTracing(ctx, cfg.Tracing, logger)
//	if err != nil {
//		logger.Fatal(err)
//	}
//	defer observability.ShutdownTracing(ctx, tp, logger)
//
//	// ... run a pass ...
//	observability.PushMetrics(ctx, cfg.PushgatewayURL, "pluginsync", registry)
//
// # Metrics
//
//	pluginsync_passes_total{operation,status}
//	pluginsync_pass_duration_seconds{operation}
//	pluginsync_plugins_installed_total
//	pluginsync_plugin_failures_total{reason}
//	pluginsync_plugins_excluded
//	pluginsync_unlisted_artifacts
//	pluginsync_recoveries_total{outcome}
//	pluginsync_catalog_fetch_attempts_total{status}
//
// # Related Packages
//
//   - pkg/installer: records pass metrics and spans
//   - pkg/config: observability settings
package observability
