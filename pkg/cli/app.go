package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/platinummonkey/pluginsync/pkg/catalog"
	"github.com/platinummonkey/pluginsync/pkg/config"
	"github.com/platinummonkey/pluginsync/pkg/history"
	"github.com/platinummonkey/pluginsync/pkg/host"
	"github.com/platinummonkey/pluginsync/pkg/lock"
	"github.com/platinummonkey/pluginsync/pkg/observability"
	"github.com/platinummonkey/pluginsync/pkg/retry"
)

// app carries what every command shares
type app struct {
	out        io.Writer
	logOut     io.Writer
	loadConfig func() (*config.Config, error)
}

func newApp() *app {
	return &app{
		out:        os.Stdout,
		logOut:     os.Stderr,
		loadConfig: config.LoadConfig,
	}
}

// session holds the services built for a single command run
type session struct {
	cfg      *config.Config
	log      *logrus.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
	tp       *sdktrace.TracerProvider
}

func (a *app) session(ctx context.Context) (*session, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	log := observability.NewLogger(cfg.Observability.LogLevel,
		observability.LogFormat(cfg.Observability.LogFormat), a.logOut)

	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Observability.OTelEnabled,
		Endpoint:    cfg.Observability.OTelEndpoint,
		ServiceName: cfg.Observability.OTelServiceName,
		Insecure:    cfg.Observability.OTelInsecure,
	}, log)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	return &session{
		cfg:      cfg,
		log:      log,
		registry: registry,
		metrics:  observability.NewMetrics(registry),
		tp:       tp,
	}, nil
}

// close pushes metrics and flushes traces
func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := observability.PushMetrics(ctx, s.cfg.Observability.PushgatewayURL, "pluginsync", s.registry); err != nil {
		s.log.WithError(err).Warn("Failed to push metrics")
	}
	if s.tp != nil {
		_ = observability.ShutdownTracing(ctx, s.tp, s.log)
	}
}

// fetcher routes catalog and artifact URLs by scheme
func (s *session) fetcher(ctx context.Context) (catalog.Fetcher, error) {
	router := catalog.NewRouter(catalog.NewHTTPFetcher(s.cfg.Catalog.Timeout))
	if s.cfg.S3.Enabled() {
		s3f, err := catalog.NewS3Fetcher(ctx, catalog.S3Config{
			Region:       s.cfg.S3.Region,
			Endpoint:     s.cfg.S3.Endpoint,
			AccessKey:    s.cfg.S3.AccessKey,
			SecretKey:    s.cfg.S3.SecretKey,
			UsePathStyle: s.cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		router.Register("s3", s3f)
	}
	return router, nil
}

func (s *session) loadCatalog(ctx context.Context, fetcher catalog.Fetcher, url string) (*catalog.Catalog, error) {
	opts := catalog.DefaultOptions()
	opts.Fetcher = fetcher
	opts.Logger = s.log
	opts.Metrics = s.metrics
	opts.Retry.Attempts = s.cfg.Catalog.RetryAttempts
	opts.Retry.BaseDelay = s.cfg.Catalog.RetryDelay
	opts.CacheTTL = s.cfg.Catalog.CacheTTL

	if url == "" {
		url = s.cfg.Catalog.URL
	}
	return catalog.NewClient(opts).Load(ctx, url)
}

func (s *session) host() *host.HTTPClient {
	return host.NewHTTPClient(host.Config{
		URL:     s.cfg.Host.URL,
		User:    s.cfg.Host.User,
		Token:   s.cfg.Host.Token,
		Timeout: s.cfg.Host.Timeout,
		Wait: retry.Policy{
			Attempts:  s.cfg.Host.WaitAttempts,
			BaseDelay: s.cfg.Host.WaitDelay,
			MaxDelay:  2 * time.Minute,
		},
	}, s.log)
}

// locker returns a Redis lock when configured and a no-op lock otherwise
func (s *session) locker() (lock.Locker, func(), error) {
	if s.cfg.Lock.RedisURL == "" {
		return lock.Nop{}, func() {}, nil
	}
	l, err := lock.NewRedisLock(lock.Config{
		URL: s.cfg.Lock.RedisURL,
		Key: s.cfg.Lock.Key,
		TTL: s.cfg.Lock.TTL,
	})
	if err != nil {
		return nil, nil, err
	}
	return l, func() { _ = l.Close() }, nil
}

// history opens the pass history store, or returns nil when none is configured
func (s *session) history() (*history.Store, error) {
	if s.cfg.History.DSN == "" {
		return nil, nil
	}
	db, dialect, err := history.Open(s.cfg.History.DSN)
	if err != nil {
		return nil, err
	}
	store, err := history.NewStore(db, dialect)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history store: %w", err)
	}
	return store, nil
}

func (a *app) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.out, format, args...)
}
