package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/pluginsync/pkg/observability"
	"github.com/platinummonkey/pluginsync/pkg/retry"
)

// Options configures a Client
type Options struct {
	Fetcher Fetcher
	Logger  *logrus.Logger
	Metrics *observability.Metrics

	// Retry bounds catalog fetch attempts
	Retry retry.Policy

	// CacheTTL keeps loaded catalogs per URL; 0 disables caching
	CacheTTL  time.Duration
	CacheSize int
}

// DefaultOptions returns options with 7 fetch attempts and no cache
func DefaultOptions() Options {
	return Options{
		Retry: retry.Policy{
			Attempts:  7,
			BaseDelay: time.Second,
			MaxDelay:  time.Minute,
		},
		CacheSize: 4,
	}
}

// Client loads catalogs
type Client struct {
	fetcher Fetcher
	log     *logrus.Logger
	metrics *observability.Metrics
	retry   retry.Policy
	cache   *lru.LRU[string, *Catalog]
}

// NewClient creates a catalog client
func NewClient(opts Options) *Client {
	c := &Client{
		fetcher: opts.Fetcher,
		log:     observability.OrDefault(opts.Logger),
		metrics: opts.Metrics,
		retry:   opts.Retry,
	}
	if c.fetcher == nil {
		c.fetcher = NewRouter(NewHTTPFetcher(30 * time.Second))
	}
	if opts.CacheTTL > 0 {
		size := opts.CacheSize
		if size <= 0 {
			size = 4
		}
		c.cache = lru.NewLRU[string, *Catalog](size, nil, opts.CacheTTL)
	}
	return c
}

// Load fetches and parses the catalog at url.
//
// Fetch failures are retried with exponential backoff and end in
// ErrCatalogUnavailable; content that does not parse fails at once with
// ErrCatalogMalformed.
func (c *Client) Load(ctx context.Context, url string) (*Catalog, error) {
	if c.cache != nil {
		if cat, ok := c.cache.Get(url); ok {
			c.log.Debugf("Using cached catalog for %s", url)
			return cat, nil
		}
	}

	c.log.Infof("Loading plugin catalog from %s", url)

	var cat *Catalog
	err := retry.Do(ctx, c.retry, func() error {
		data, err := c.fetcher.Fetch(ctx, url)
		if err != nil {
			c.recordAttempt("error")
			return err
		}

		parsed, err := Parse(data, c.log)
		if err != nil {
			c.recordAttempt("malformed")
			return retry.Permanent(err)
		}

		c.recordAttempt("success")
		cat = parsed
		return nil
	}, func(err error, next time.Duration) {
		c.log.Warnf("Catalog fetch failed, retrying in %v: %v", next, err)
	})

	if err != nil {
		if errors.Is(err, ErrCatalogMalformed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrCatalogUnavailable, url, err)
	}

	if c.cache != nil {
		c.cache.Add(url, cat)
	}

	c.log.Infof("Loaded %d plugins from catalog", cat.Len())
	return cat, nil
}

// Invalidate drops a cached catalog
func (c *Client) Invalidate(url string) {
	if c.cache != nil {
		c.cache.Remove(url)
	}
}

func (c *Client) recordAttempt(status string) {
	if c.metrics != nil {
		c.metrics.CatalogFetchAttemptsTotal.WithLabelValues(status).Inc()
	}
}
