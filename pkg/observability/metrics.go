package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Pass metrics
	PassesTotal  *prometheus.CounterVec
	PassDuration *prometheus.HistogramVec

	// Plugin metrics
	PluginsInstalledTotal prometheus.Counter
	PluginFailuresTotal   *prometheus.CounterVec
	PluginsExcluded       prometheus.Gauge
	UnlistedArtifacts     prometheus.Gauge

	// Recovery metrics
	RecoveriesTotal *prometheus.CounterVec

	// Catalog metrics
	CatalogFetchAttemptsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		PassesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pluginsync_passes_total",
				Help: "Total number of install/update passes",
			},
			[]string{"operation", "status"},
		),
		PassDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pluginsync_pass_duration_seconds",
				Help:    "Install/update pass duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"operation"},
		),

		PluginsInstalledTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pluginsync_plugins_installed_total",
				Help: "Total number of plugin artifacts written to disk",
			},
		),
		PluginFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pluginsync_plugin_failures_total",
				Help: "Total number of per-plugin failures",
			},
			[]string{"reason"},
		),
		PluginsExcluded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pluginsync_plugins_excluded",
				Help: "Plugins excluded by the core version in the last pass",
			},
		),
		UnlistedArtifacts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pluginsync_unlisted_artifacts",
				Help: "Artifacts on disk that were not part of the last pass",
			},
		),

		RecoveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pluginsync_recoveries_total",
				Help: "Total number of snapshot restores after a failed pass",
			},
			[]string{"outcome"},
		),

		CatalogFetchAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pluginsync_catalog_fetch_attempts_total",
				Help: "Total number of catalog fetch attempts",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.PassesTotal,
		m.PassDuration,
		m.PluginsInstalledTotal,
		m.PluginFailuresTotal,
		m.PluginsExcluded,
		m.UnlistedArtifacts,
		m.RecoveriesTotal,
		m.CatalogFetchAttemptsTotal,
	)

	return m
}

// PushMetrics pushes everything gathered by registry to a Pushgateway.
// One-shot runs have no scrape window, so this is how their metrics leave the process.
func PushMetrics(ctx context.Context, gatewayURL, job string, registry *prometheus.Registry) error {
	if gatewayURL == "" {
		return nil
	}

	if err := push.New(gatewayURL, job).Gatherer(registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
