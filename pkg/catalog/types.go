package catalog

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/pluginsync/pkg/version"
)

// DefaultURL is the stable catalog location
const DefaultURL = "https://updates.example.org/stable/update-center.json"

// LatestVersion is the version token meaning "whatever the catalog has"
const LatestVersion = "latest"

// Dependency is a direct dependency of a catalog entry
type Dependency struct {
	Name     string `json:"name"`
	Optional bool   `json:"optional"`
	Version  string `json:"version,omitempty"` // minimum version, informational
}

// Entry describes the latest published release of a plugin.
// Entries are shared by every caller of a Catalog and must not be modified.
type Entry struct {
	Name         string       `json:"name"`
	Version      string       `json:"version"`
	URL          string       `json:"url"`
	SHA256       string       `json:"sha256"` // base64 of the raw digest
	RequiredCore string       `json:"requiredCore"`
	Dependencies []Dependency `json:"dependencies"`
}

// DependencyNames returns the names of the direct dependencies, skipping
// optional ones unless optional is true.
func (e *Entry) DependencyNames(optional bool) []string {
	names := make([]string, 0, len(e.Dependencies))
	for _, dep := range e.Dependencies {
		if dep.Optional && !optional {
			continue
		}
		names = append(names, dep.Name)
	}
	return names
}

// Request is a requested plugin, optionally pinned to a version
type Request struct {
	Name    string
	Version string // "" or "latest" means the latest catalog version
}

// ParseRequest parses "name", "name:latest" or "name:version"
func ParseRequest(token string) Request {
	token = strings.TrimSpace(token)
	name, ver, found := strings.Cut(token, ":")
	req := Request{Name: strings.TrimSpace(name)}
	if found {
		req.Version = strings.TrimSpace(ver)
	}
	return req
}

// IsLatest reports whether the request accepts the latest version
func (r Request) IsLatest() bool {
	return r.Version == "" || r.Version == LatestVersion
}

func (r Request) String() string {
	if r.Version == "" {
		return r.Name
	}
	return r.Name + ":" + r.Version
}

// Catalog maps plugin names to their latest entries. It is read-only after Parse.
type Catalog struct {
	entries map[string]*Entry
	log     *logrus.Logger
}

// New builds a catalog from entries, keyed by entry name
func New(entries []*Entry, log *logrus.Logger) *Catalog {
	c := &Catalog{
		entries: make(map[string]*Entry, len(entries)),
		log:     log,
	}
	if c.log == nil {
		c.log = logrus.New()
	}
	for _, e := range entries {
		c.entries[e.Name] = e
	}
	return c
}

// Len returns the number of plugins in the catalog
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Names returns all plugin names in sorted order
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entry looks up a plugin by bare name
func (c *Catalog) Entry(name string) (*Entry, bool) {
	e, ok := c.entries[name]
	return e, ok
}

// Get returns the entry for a request token ("name" or "name:version").
//
// A requested version older than the latest is served with the latest entry
// and an informational note; a newer one fails with InvalidVersionError.
func (c *Catalog) Get(token string) (*Entry, error) {
	return c.GetRequest(ParseRequest(token))
}

// GetRequest is Get for an already parsed request
func (c *Catalog) GetRequest(req Request) (*Entry, error) {
	entry, ok := c.entries[req.Name]
	if !ok || req.Name == "" {
		err := &InvalidPluginError{Name: req.Name}
		c.log.Error(err.Error())
		return nil, err
	}

	if req.IsLatest() {
		return entry, nil
	}

	switch cmp := version.Compare(req.Version, entry.Version); {
	case cmp > 0:
		err := &InvalidVersionError{Name: req.Name, Requested: req.Version, Latest: entry.Version}
		c.log.Error(err.Error())
		return nil, err
	case cmp < 0:
		c.log.WithField("plugin", req.Name).
			Infof("Getting %s:%s instead of %s", req.Name, entry.Version, req.String())
	}

	return entry, nil
}
