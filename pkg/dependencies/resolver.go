package dependencies

import (
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/pluginsync/pkg/catalog"
	"github.com/platinummonkey/pluginsync/pkg/observability"
)

// Resolver computes dependency closures over one catalog. It holds no state
// besides the catalog, so resolving the same requests twice gives the same set.
type Resolver struct {
	catalog *catalog.Catalog
	log     *logrus.Logger
}

// NewResolver creates a resolver over cat
func NewResolver(cat *catalog.Catalog, log *logrus.Logger) *Resolver {
	return &Resolver{
		catalog: cat,
		log:     observability.OrDefault(log),
	}
}

// Resolve returns the transitive closure of the requested plugins.
//
// Requests are "name" or "name:version" tokens and are checked against the
// catalog first. The closure is computed by growing the set with the direct
// dependencies of every member until it stops changing; dependency cycles
// need no special handling. Optional dependencies are followed only when
// optional is true. An unknown plugin anywhere in the closure fails the
// whole resolution.
func (r *Resolver) Resolve(requests []string, optional bool) (Set, error) {
	frontier := make(Set, len(requests))
	for _, token := range requests {
		entry, err := r.catalog.Get(token)
		if err != nil {
			return nil, err
		}
		frontier.Add(entry.Name)
	}

	for iteration := 1; ; iteration++ {
		collected := make(Set)
		for name := range frontier {
			entry, ok := r.catalog.Entry(name)
			if !ok {
				err := &catalog.InvalidPluginError{Name: name}
				r.log.Error(err.Error())
				return nil, err
			}
			for _, dep := range entry.DependencyNames(optional) {
				collected.Add(dep)
			}
		}

		next := frontier.Union(collected)
		if next.Equal(frontier) {
			r.log.WithFields(logrus.Fields{
				"requested":  len(requests),
				"resolved":   frontier.Len(),
				"iterations": iteration,
			}).Debug("Resolved plugin dependencies")
			return frontier, nil
		}
		frontier = next
	}
}
