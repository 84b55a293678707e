package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/pluginsync/pkg/observability"
	"github.com/platinummonkey/pluginsync/pkg/retry"
)

type flakyFetcher struct {
	failures int32
	calls    int32
	data     []byte
}

func (f *flakyFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if n <= f.failures {
		return nil, fmt.Errorf("connection refused")
	}
	return f.data, nil
}

func fastRetry(attempts int) retry.Policy {
	return retry.Policy{Attempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestClient_LoadHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleCatalog))
	}))
	defer server.Close()

	client := NewClient(Options{Retry: fastRetry(1)})

	cat, err := client.Load(context.Background(), server.URL+"/update-center.json")
	require.NoError(t, err)
	assert.Equal(t, 4, cat.Len())
}

func TestClient_RetriesThenSucceeds(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	fetcher := &flakyFetcher{failures: 2, data: []byte(sampleCatalog)}

	client := NewClient(Options{Fetcher: fetcher, Retry: fastRetry(5), Metrics: metrics})

	cat, err := client.Load(context.Background(), "http://mirror/update-center.json")
	require.NoError(t, err)
	assert.Equal(t, 4, cat.Len())
	assert.Equal(t, int32(3), atomic.LoadInt32(&fetcher.calls))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.CatalogFetchAttemptsTotal.WithLabelValues("error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CatalogFetchAttemptsTotal.WithLabelValues("success")))
}

func TestClient_Unavailable(t *testing.T) {
	fetcher := &flakyFetcher{failures: 100}
	client := NewClient(Options{Fetcher: fetcher, Retry: fastRetry(3)})

	_, err := client.Load(context.Background(), "http://mirror/update-center.json")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCatalogUnavailable))
	assert.Equal(t, int32(3), atomic.LoadInt32(&fetcher.calls))
}

func TestClient_MalformedIsNotRetried(t *testing.T) {
	fetcher := &flakyFetcher{data: []byte("<html>maintenance</html>")}
	client := NewClient(Options{Fetcher: fetcher, Retry: fastRetry(5)})

	_, err := client.Load(context.Background(), "http://mirror/update-center.json")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCatalogMalformed))
	assert.False(t, errors.Is(err, ErrCatalogUnavailable))
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.calls))
}

func TestClient_HTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Options{Retry: fastRetry(2)})

	_, err := client.Load(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCatalogUnavailable))
}

func TestClient_Cache(t *testing.T) {
	fetcher := &flakyFetcher{data: []byte(sampleCatalog)}
	client := NewClient(Options{Fetcher: fetcher, Retry: fastRetry(1), CacheTTL: time.Minute})

	url := "http://mirror/update-center.json"
	_, err := client.Load(context.Background(), url)
	require.NoError(t, err)
	_, err = client.Load(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.calls))

	client.Invalidate(url)
	_, err = client.Load(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetcher.calls))
}

func TestRouter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "update-center.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o644))

	router := NewRouter(NewHTTPFetcher(time.Second))

	data, err := router.Fetch(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, sampleCatalog, string(data))

	_, err = router.Fetch(context.Background(), "gopher://mirror/catalog")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported URL scheme")

	stub := &flakyFetcher{data: []byte("from stub")}
	router.Register("s3", stub)
	data, err = router.Fetch(context.Background(), "s3://bucket/key")
	require.NoError(t, err)
	assert.Equal(t, "from stub", string(data))
}
