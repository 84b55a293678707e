package dependencies

import (
	"fmt"
	"sort"

	"github.com/platinummonkey/pluginsync/pkg/catalog"
)

// LockedPlugin pins one resolved plugin
type LockedPlugin struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
	SHA256  string `json:"sha256" yaml:"sha256"`
	URL     string `json:"url" yaml:"url"`
}

// Lockfile records a resolved set as it was published in the catalog
type Lockfile struct {
	Requested []string       `json:"requested" yaml:"requested"`
	Optional  bool           `json:"optional" yaml:"optional"`
	Plugins   []LockedPlugin `json:"plugins" yaml:"plugins"`
}

// Graph builds the dependency graph restricted to the resolved set.
// Edges to plugins outside the set (skipped optional ones) are kept on the
// node but do not become graph nodes.
func (r *Resolver) Graph(resolved Set) (*DependencyGraph, error) {
	graph := NewDependencyGraph()

	for _, name := range resolved.Sorted() {
		entry, ok := r.catalog.Entry(name)
		if !ok {
			return nil, &catalog.InvalidPluginError{Name: name}
		}

		deps := make([]Dependency, 0, len(entry.Dependencies))
		for _, dep := range entry.Dependencies {
			if !resolved.Contains(dep.Name) {
				continue
			}
			deps = append(deps, Dependency{
				Name:     dep.Name,
				Version:  dep.Version,
				Optional: dep.Optional,
			})
		}
		graph.AddNode(name, entry.Version, deps)
	}

	return graph, nil
}

// Lock resolves requests and pins every plugin of the closure, sorted by name
func (r *Resolver) Lock(requests []string, optional bool) (*Lockfile, error) {
	resolved, err := r.Resolve(requests, optional)
	if err != nil {
		return nil, err
	}

	requested := append([]string{}, requests...)
	sort.Strings(requested)

	lockfile := &Lockfile{
		Requested: requested,
		Optional:  optional,
		Plugins:   make([]LockedPlugin, 0, resolved.Len()),
	}
	for _, name := range resolved.Sorted() {
		entry, _ := r.catalog.Entry(name)
		lockfile.Plugins = append(lockfile.Plugins, LockedPlugin{
			Name:    entry.Name,
			Version: entry.Version,
			SHA256:  entry.SHA256,
			URL:     entry.URL,
		})
	}

	return lockfile, nil
}

// ValidateLockfile re-resolves the lockfile's requests and lists how the
// current catalog differs from it
func (r *Resolver) ValidateLockfile(lockfile *Lockfile) (bool, []string, error) {
	current, err := r.Lock(lockfile.Requested, lockfile.Optional)
	if err != nil {
		return false, nil, err
	}

	currentMap := make(map[string]LockedPlugin, len(current.Plugins))
	for _, p := range current.Plugins {
		currentMap[p.Name] = p
	}

	differences := make([]string, 0)
	for _, locked := range lockfile.Plugins {
		cur, ok := currentMap[locked.Name]
		if !ok {
			differences = append(differences, fmt.Sprintf("%s@%s: in lockfile but no longer required",
				locked.Name, locked.Version))
			continue
		}
		if cur.Version != locked.Version {
			differences = append(differences, fmt.Sprintf("%s: lockfile has %s, catalog has %s",
				locked.Name, locked.Version, cur.Version))
		} else if cur.SHA256 != locked.SHA256 {
			differences = append(differences, fmt.Sprintf("%s@%s: checksum changed", locked.Name, locked.Version))
		}
		delete(currentMap, locked.Name)
	}

	for name, cur := range currentMap {
		differences = append(differences, fmt.Sprintf("%s@%s: required but not in lockfile", name, cur.Version))
	}

	sort.Strings(differences)
	return len(differences) == 0, differences, nil
}
