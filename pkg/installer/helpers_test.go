package installer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/pluginsync/pkg/catalog"
	"github.com/platinummonkey/pluginsync/pkg/history"
	"github.com/platinummonkey/pluginsync/pkg/host/hosttest"
	"github.com/platinummonkey/pluginsync/pkg/integrity"
	"github.com/platinummonkey/pluginsync/pkg/observability"
	"github.com/platinummonkey/pluginsync/pkg/storage"
)

func artifact(name, version string) []byte {
	return []byte(fmt.Sprintf("%s-%s artifact", name, version))
}

func entry(name, version, requiredCore string, deps ...catalog.Dependency) *catalog.Entry {
	return &catalog.Entry{
		Name:         name,
		Version:      version,
		URL:          "http://mirror/" + name + ".hpi",
		SHA256:       integrity.Encode(artifact(name, version)),
		RequiredCore: requiredCore,
		Dependencies: deps,
	}
}

func testCatalog(log *logrus.Logger) *catalog.Catalog {
	return catalog.New([]*catalog.Entry{
		entry("ant", "1.10", "1.642.3", catalog.Dependency{Name: "structs"}),
		entry("structs", "1.20", "1.642.3"),
		entry("git", "4.0", "2.60", catalog.Dependency{Name: "structs"}, catalog.Dependency{Name: "credentials", Optional: true}),
		entry("credentials", "2.3", "2.60"),
		entry("ansicolor", "0.6.2", "2.190.1"),
	}, log)
}

// mapFetcher serves artifacts for every catalog entry unless told otherwise
type mapFetcher struct {
	mu     sync.Mutex
	data   map[string][]byte
	errs   map[string]error
	panics map[string]bool
	calls  []string
}

func newMapFetcher(cat *catalog.Catalog) *mapFetcher {
	f := &mapFetcher{
		data:   make(map[string][]byte),
		errs:   make(map[string]error),
		panics: make(map[string]bool),
	}
	for _, name := range cat.Names() {
		e, _ := cat.Entry(name)
		f.data[e.URL] = artifact(e.Name, e.Version)
	}
	return f
}

func (f *mapFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if f.panics[url] {
		panic("fetcher exploded")
	}
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	data, ok := f.data[url]
	if !ok {
		return nil, errors.New("404 not found")
	}
	return data, nil
}

func (f *mapFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}

// faultyFS fails the write of one artifact after leaving a truncated file
type faultyFS struct {
	storage.Filesystem
	failWrite string
}

func (f *faultyFS) WriteFile(path string, data []byte, perm fs.FileMode, owner storage.Owner) error {
	if filepath.Base(path) == f.failWrite {
		_ = os.WriteFile(path, data[:len(data)/2], perm)
		return &storage.IOError{Op: "write", Path: path, Err: errors.New("no space left on device")}
	}
	return f.Filesystem.WriteFile(path, data, perm, owner)
}

type memRecorder struct {
	passes []history.Pass
}

func (r *memRecorder) Record(_ context.Context, p history.Pass) error {
	r.passes = append(r.passes, p)
	return nil
}

type fixture struct {
	dir      string
	cat      *catalog.Catalog
	host     *hosttest.Fake
	fetcher  *mapFetcher
	fs       storage.Filesystem
	log      *logrus.Logger
	hook     *test.Hook
	metrics  *observability.Metrics
	recorder *memRecorder
	opts     Options
}

func newFixture(t *testing.T, core string, installed map[string]string) *fixture {
	t.Helper()
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	cat := testCatalog(log)
	dir := filepath.Join(t.TempDir(), "plugins")

	return &fixture{
		dir:      dir,
		cat:      cat,
		host:     hosttest.NewFake(core, installed),
		fetcher:  newMapFetcher(cat),
		fs:       storage.NewLocalFS(),
		log:      log,
		hook:     hook,
		metrics:  observability.NewMetrics(prometheus.NewRegistry()),
		recorder: &memRecorder{},
		opts:     Options{PluginsDir: dir},
	}
}

func (f *fixture) installer(t *testing.T) *Installer {
	t.Helper()
	inst, err := New(Config{
		Catalog:    f.cat,
		Host:       f.host,
		Filesystem: f.fs,
		Fetcher:    f.fetcher,
		Options:    f.opts,
		Logger:     f.log,
		Metrics:    f.metrics,
		Recorder:   f.recorder,
	})
	require.NoError(t, err)
	return inst
}

// seed writes name.jpi files into the plugins directory
func (f *fixture) seed(t *testing.T, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(f.dir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), []byte(content), 0o744))
	}
}

func (f *fixture) path(name string) string {
	return filepath.Join(f.dir, name)
}

type fileState struct {
	data string
	mode fs.FileMode
}

func treeState(t *testing.T, root string) map[string]fileState {
	t.Helper()
	state := make(map[string]fileState)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		rel, _ := filepath.Rel(root, path)
		info, err := d.Info()
		require.NoError(t, err)
		if d.IsDir() {
			state[rel+"/"] = fileState{mode: info.Mode()}
			return nil
		}
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		state[rel] = fileState{data: string(data), mode: info.Mode()}
		return nil
	})
	require.NoError(t, err)
	return state
}
