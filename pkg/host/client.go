package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/pluginsync/pkg/observability"
	"github.com/platinummonkey/pluginsync/pkg/retry"
)

// CoreVersionHeader carries the core version on every API response
const CoreVersionHeader = "X-Jenkins"

// Client is the host-application capability used by the installer
type Client interface {
	// PluginVersion returns the installed version of name, or installed=false
	PluginVersion(ctx context.Context, name string) (version string, installed bool, err error)
	// CoreVersion returns the running core version
	CoreVersion(ctx context.Context) (string, error)
	// Restart asks the host to restart
	Restart(ctx context.Context) error
}

// ErrNoCoreVersion means the host answered without a version header
var ErrNoCoreVersion = errors.New("host response has no core version header")

// Config configures an HTTPClient
type Config struct {
	URL     string
	User    string
	Token   string
	Timeout time.Duration
	Wait    retry.Policy
}

// InstalledPlugin is one entry of the plugin manager listing
type InstalledPlugin struct {
	ShortName string `json:"shortName"`
	Version   string `json:"version"`
	Active    bool   `json:"active"`
	Enabled   bool   `json:"enabled"`
}

type pluginList struct {
	Plugins []InstalledPlugin `json:"plugins"`
}

// HTTPClient implements Client over the host HTTP API. PluginVersion
// answers from one plugin listing until Wait, Restart or InstalledPlugins
// fetches it again.
type HTTPClient struct {
	baseURL string
	user    string
	token   string
	wait    retry.Policy
	client  *http.Client
	log     *logrus.Logger

	mu      sync.Mutex
	listing map[string]InstalledPlugin
}

// NewHTTPClient creates a client for the host at cfg.URL
func NewHTTPClient(cfg Config, log *logrus.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	wait := cfg.Wait
	if wait.Attempts == 0 {
		wait = retry.DefaultPolicy()
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		user:    cfg.User,
		token:   cfg.Token,
		wait:    wait,
		client:  &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		log:     observability.OrDefault(log),
	}
}

// Wait blocks until the host answers its API or the wait policy runs out
func (c *HTTPClient) Wait(ctx context.Context) error {
	c.invalidate()
	err := retry.Do(ctx, c.wait, func() error {
		_, err := c.CoreVersion(ctx)
		return err
	}, func(err error, next time.Duration) {
		c.log.Infof("Waiting for host at %s (retry in %v): %v", c.baseURL, next, err)
	})
	if err != nil {
		return fmt.Errorf("host at %s not ready: %w", c.baseURL, err)
	}
	return nil
}

// CoreVersion implements Client
func (c *HTTPClient) CoreVersion(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/json")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)

	v := resp.Header.Get(CoreVersionHeader)
	if v == "" {
		return "", ErrNoCoreVersion
	}
	return v, nil
}

// InstalledPlugins lists every installed plugin by short name
func (c *HTTPClient) InstalledPlugins(ctx context.Context) (map[string]InstalledPlugin, error) {
	resp, err := c.do(ctx, http.MethodGet, "/pluginManager/api/json?depth=1")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	var list pluginList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode plugin list: %w", err)
	}

	plugins := make(map[string]InstalledPlugin, len(list.Plugins))
	for _, p := range list.Plugins {
		plugins[p.ShortName] = p
	}

	c.mu.Lock()
	c.listing = plugins
	c.mu.Unlock()
	return plugins, nil
}

// PluginVersion implements Client
func (c *HTTPClient) PluginVersion(ctx context.Context, name string) (string, bool, error) {
	c.mu.Lock()
	plugins := c.listing
	c.mu.Unlock()

	if plugins == nil {
		var err error
		if plugins, err = c.InstalledPlugins(ctx); err != nil {
			return "", false, err
		}
	}
	p, ok := plugins[name]
	if !ok {
		return "", false, nil
	}
	return p.Version, true, nil
}

// Restart implements Client
func (c *HTTPClient) Restart(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/safeRestart")
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)

	c.invalidate()
	c.log.Info("Requested host restart")
	return nil
}

func (c *HTTPClient) invalidate() {
	c.mu.Lock()
	c.listing = nil
	c.mu.Unlock()
}

func (c *HTTPClient) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	// safeRestart answers with a redirect to the restart page
	if resp.StatusCode >= 400 {
		resp.Body.Close() //nolint:errcheck
		return nil, fmt.Errorf("%s %s: unexpected status %s", method, path, resp.Status)
	}
	return resp, nil
}
