// Package config provides pluginsync configuration from environment
// variables and an optional YAML file.
//
// # Overview
//
// Defaults are overlaid by the file named in PLUGINSYNC_CONFIG_FILE, then by
// environment variables, so the environment always wins. CLI flags override
// both for a single invocation.
//
// # Configuration Structure
//
// Catalog settings:
//
//	PLUGINSYNC_CATALOG_URL="https://updates.example.org/stable/update-center.json"
//	PLUGINSYNC_CATALOG_TIMEOUT="60s"
//	PLUGINSYNC_CATALOG_CACHE_TTL="10m"
//	PLUGINSYNC_CATALOG_RETRY_ATTEMPTS="7"
//
// Plugin settings:
//
//	PLUGINSYNC_PLUGINS="git ant:1.10 ansicolor"
//	PLUGINSYNC_PLUGINS_DIR="/var/lib/jenkins/plugins"
//	PLUGINSYNC_PLUGINS_USER="jenkins"
//	PLUGINSYNC_REMOVE_UNLISTED="true"
//	PLUGINSYNC_VERSIONED_FILENAMES="false"
//
// Host settings:
//
//	PLUGINSYNC_HOST_URL="http://localhost:8080"
//	PLUGINSYNC_HOST_USER="admin"
//	PLUGINSYNC_HOST_TOKEN="..."
//
// Storage settings:
//
//	PLUGINSYNC_HISTORY_DSN="sqlite3:///var/lib/pluginsync/history.db"
//	PLUGINSYNC_REDIS_URL="redis://localhost:6379/0"
//	PLUGINSYNC_S3_REGION="us-east-1"
//
// Observability settings:
//
//	PLUGINSYNC_LOG_LEVEL="info"  # debug, info, warn, error
//	PLUGINSYNC_LOG_FORMAT="json"
//	PLUGINSYNC_PUSHGATEWAY_URL="http://pushgateway:9091"
//	PLUGINSYNC_OTEL_ENABLED="true"
//
// The same keys in YAML:
//
//	catalog:
//	  url: https://mirror.example.com/update-center.json
//	plugins:
//	  requested: [git, ansicolor]
//	  remove_unlisted: true
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("Plugins dir: %s\n", cfg.Plugins.Dir)
//
// # Related Packages
//
//   - pkg/installer: Uses the plugin policies
//   - pkg/observability: Uses observability configuration
package config
