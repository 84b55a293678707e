// Package hosttest provides test doubles for host.Client.
package hosttest

import (
	"context"
	"sync"

	"github.com/platinummonkey/pluginsync/pkg/host"
)

// Fake is an in-memory host.Client
type Fake struct {
	mu       sync.Mutex
	core     string
	plugins  map[string]string
	restarts int

	// Errors returned by the matching calls when set
	CoreErr    error
	PluginErr  error
	RestartErr error
}

var _ host.Client = (*Fake)(nil)

// NewFake creates a fake host running core with the given plugins installed
func NewFake(core string, plugins map[string]string) *Fake {
	f := &Fake{core: core, plugins: make(map[string]string, len(plugins))}
	for name, v := range plugins {
		f.plugins[name] = v
	}
	return f
}

// PluginVersion implements host.Client
func (f *Fake) PluginVersion(_ context.Context, name string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PluginErr != nil {
		return "", false, f.PluginErr
	}
	v, ok := f.plugins[name]
	return v, ok, nil
}

// CoreVersion implements host.Client
func (f *Fake) CoreVersion(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CoreErr != nil {
		return "", f.CoreErr
	}
	return f.core, nil
}

// Restart implements host.Client
func (f *Fake) Restart(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RestartErr != nil {
		return f.RestartErr
	}
	f.restarts++
	return nil
}

// SetPlugin marks name as installed at version
func (f *Fake) SetPlugin(name, version string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plugins[name] = version
}

// Plugins returns a copy of the installed plugins
func (f *Fake) Plugins() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.plugins))
	for name, v := range f.plugins {
		out[name] = v
	}
	return out
}

// Restarts returns how many restarts succeeded
func (f *Fake) Restarts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.restarts
}
