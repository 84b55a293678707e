package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/pluginsync/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Catalog       CatalogConfig       `yaml:"catalog"`
	Plugins       PluginsConfig       `yaml:"plugins"`
	Host          HostConfig          `yaml:"host"`
	S3            S3Config            `yaml:"s3"`
	History       HistoryConfig       `yaml:"history"`
	Lock          LockConfig          `yaml:"lock"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// CatalogConfig holds update-center settings
type CatalogConfig struct {
	URL           string        `yaml:"url"`
	Timeout       time.Duration `yaml:"timeout"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

// PluginsConfig holds the plugin directory and pass policies
type PluginsConfig struct {
	Dir       string   `yaml:"dir"`
	BackupDir string   `yaml:"backup_dir"`
	User      string   `yaml:"user"`
	Group     string   `yaml:"group"`
	Requested []string `yaml:"requested"`

	RemoveUnlisted     bool `yaml:"remove_unlisted"`
	ForceUpdate        bool `yaml:"force_update"`
	IncludeOptional    bool `yaml:"include_optional"`
	VersionedFilenames bool `yaml:"versioned_filenames"`
	NoRestart          bool `yaml:"no_restart"`
}

// HostConfig holds the host application API settings
type HostConfig struct {
	URL          string        `yaml:"url"`
	User         string        `yaml:"user"`
	Token        string        `yaml:"token"`
	Timeout      time.Duration `yaml:"timeout"`
	WaitAttempts int           `yaml:"wait_attempts"`
	WaitDelay    time.Duration `yaml:"wait_delay"`
}

// S3Config holds settings for s3:// catalog and artifact mirrors
type S3Config struct {
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// Enabled reports whether an S3 fetcher should be registered
func (c S3Config) Enabled() bool {
	return c.Region != "" || c.Endpoint != ""
}

// HistoryConfig holds the pass history database
type HistoryConfig struct {
	// DSN is sqlite3://path or postgres://...; empty disables history
	DSN string `yaml:"dsn"`
}

// LockConfig holds the Redis lock guarding a pass
type LockConfig struct {
	// RedisURL empty disables locking
	RedisURL string        `yaml:"redis_url"`
	Key      string        `yaml:"key"`
	TTL      time.Duration `yaml:"ttl"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// PushgatewayURL empty disables metrics push
	PushgatewayURL string `yaml:"pushgateway_url"`

	OTelEnabled     bool   `yaml:"otel_enabled"`
	OTelEndpoint    string `yaml:"otel_endpoint"`
	OTelServiceName string `yaml:"otel_service_name"`
	OTelInsecure    bool   `yaml:"otel_insecure"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Catalog: CatalogConfig{
			URL:           "https://updates.example.org/stable/update-center.json",
			Timeout:       60 * time.Second,
			CacheTTL:      10 * time.Minute,
			RetryAttempts: 7,
			RetryDelay:    time.Second,
		},
		Plugins: PluginsConfig{
			Dir:   "/var/lib/jenkins/plugins",
			User:  "jenkins",
			Group: "jenkins",
		},
		Host: HostConfig{
			URL:          "http://localhost:8080",
			Timeout:      30 * time.Second,
			WaitAttempts: 7,
			WaitDelay:    5 * time.Second,
		},
		Lock: LockConfig{
			Key: "pluginsync:lock",
			TTL: 10 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:        "info",
			LogFormat:       string(observability.LogFormatText),
			OTelEndpoint:    "localhost:4317",
			OTelServiceName: "pluginsync",
			OTelInsecure:    true,
		},
	}
}

// LoadConfig loads the optional file named by PLUGINSYNC_CONFIG_FILE, then
// applies environment variables on top
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := getEnv("PLUGINSYNC_CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile overlays the YAML file at path; keys absent from the file keep
// their current value
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() {
	c.Catalog.URL = getEnv("PLUGINSYNC_CATALOG_URL", c.Catalog.URL)
	c.Catalog.Timeout = getEnvDuration("PLUGINSYNC_CATALOG_TIMEOUT", c.Catalog.Timeout)
	c.Catalog.CacheTTL = getEnvDuration("PLUGINSYNC_CATALOG_CACHE_TTL", c.Catalog.CacheTTL)
	c.Catalog.RetryAttempts = getEnvInt("PLUGINSYNC_CATALOG_RETRY_ATTEMPTS", c.Catalog.RetryAttempts)
	c.Catalog.RetryDelay = getEnvDuration("PLUGINSYNC_CATALOG_RETRY_DELAY", c.Catalog.RetryDelay)

	c.Plugins.Dir = getEnv("PLUGINSYNC_PLUGINS_DIR", c.Plugins.Dir)
	c.Plugins.BackupDir = getEnv("PLUGINSYNC_BACKUP_DIR", c.Plugins.BackupDir)
	c.Plugins.User = getEnv("PLUGINSYNC_PLUGINS_USER", c.Plugins.User)
	c.Plugins.Group = getEnv("PLUGINSYNC_PLUGINS_GROUP", c.Plugins.Group)
	if requested := getEnv("PLUGINSYNC_PLUGINS", ""); requested != "" {
		c.Plugins.Requested = strings.Fields(requested)
	}
	c.Plugins.RemoveUnlisted = getEnvBool("PLUGINSYNC_REMOVE_UNLISTED", c.Plugins.RemoveUnlisted)
	c.Plugins.ForceUpdate = getEnvBool("PLUGINSYNC_FORCE_UPDATE", c.Plugins.ForceUpdate)
	c.Plugins.IncludeOptional = getEnvBool("PLUGINSYNC_INCLUDE_OPTIONAL", c.Plugins.IncludeOptional)
	c.Plugins.VersionedFilenames = getEnvBool("PLUGINSYNC_VERSIONED_FILENAMES", c.Plugins.VersionedFilenames)
	c.Plugins.NoRestart = getEnvBool("PLUGINSYNC_NO_RESTART", c.Plugins.NoRestart)

	c.Host.URL = getEnv("PLUGINSYNC_HOST_URL", c.Host.URL)
	c.Host.User = getEnv("PLUGINSYNC_HOST_USER", c.Host.User)
	c.Host.Token = getEnv("PLUGINSYNC_HOST_TOKEN", c.Host.Token)
	c.Host.Timeout = getEnvDuration("PLUGINSYNC_HOST_TIMEOUT", c.Host.Timeout)
	c.Host.WaitAttempts = getEnvInt("PLUGINSYNC_HOST_WAIT_ATTEMPTS", c.Host.WaitAttempts)
	c.Host.WaitDelay = getEnvDuration("PLUGINSYNC_HOST_WAIT_DELAY", c.Host.WaitDelay)

	c.S3.Region = getEnv("PLUGINSYNC_S3_REGION", c.S3.Region)
	c.S3.Endpoint = getEnv("PLUGINSYNC_S3_ENDPOINT", c.S3.Endpoint)
	c.S3.AccessKey = getEnv("PLUGINSYNC_S3_ACCESS_KEY", c.S3.AccessKey)
	c.S3.SecretKey = getEnv("PLUGINSYNC_S3_SECRET_KEY", c.S3.SecretKey)
	c.S3.UsePathStyle = getEnvBool("PLUGINSYNC_S3_USE_PATH_STYLE", c.S3.UsePathStyle)

	c.History.DSN = getEnv("PLUGINSYNC_HISTORY_DSN", c.History.DSN)

	c.Lock.RedisURL = getEnv("PLUGINSYNC_REDIS_URL", c.Lock.RedisURL)
	c.Lock.Key = getEnv("PLUGINSYNC_LOCK_KEY", c.Lock.Key)
	c.Lock.TTL = getEnvDuration("PLUGINSYNC_LOCK_TTL", c.Lock.TTL)

	c.Observability.LogLevel = getEnv("PLUGINSYNC_LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = getEnv("PLUGINSYNC_LOG_FORMAT", c.Observability.LogFormat)
	c.Observability.PushgatewayURL = getEnv("PLUGINSYNC_PUSHGATEWAY_URL", c.Observability.PushgatewayURL)
	c.Observability.OTelEnabled = getEnvBool("PLUGINSYNC_OTEL_ENABLED", c.Observability.OTelEnabled)
	c.Observability.OTelEndpoint = getEnv("PLUGINSYNC_OTEL_ENDPOINT", c.Observability.OTelEndpoint)
	c.Observability.OTelServiceName = getEnv("PLUGINSYNC_OTEL_SERVICE_NAME", c.Observability.OTelServiceName)
	c.Observability.OTelInsecure = getEnvBool("PLUGINSYNC_OTEL_INSECURE", c.Observability.OTelInsecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Catalog.URL == "" {
		return fmt.Errorf("catalog URL is required")
	}
	if c.Catalog.RetryAttempts < 1 {
		return fmt.Errorf("catalog retry attempts must be at least 1")
	}
	if c.Plugins.Dir == "" {
		return fmt.Errorf("plugins directory is required")
	}
	if c.Plugins.BackupDir != "" && c.Plugins.BackupDir == c.Plugins.Dir {
		return fmt.Errorf("backup directory must differ from the plugins directory")
	}
	if c.Host.URL == "" {
		return fmt.Errorf("host URL is required")
	}
	if c.Host.WaitAttempts < 1 {
		return fmt.Errorf("host wait attempts must be at least 1")
	}
	if c.Lock.RedisURL != "" && c.Lock.TTL <= 0 {
		return fmt.Errorf("lock TTL must be positive when Redis locking is enabled")
	}

	switch observability.LogFormat(strings.ToLower(c.Observability.LogFormat)) {
	case observability.LogFormatText, observability.LogFormatJSON:
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Observability.LogFormat)
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
