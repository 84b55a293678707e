package compatibility

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/pluginsync/pkg/catalog"
	"github.com/platinummonkey/pluginsync/pkg/dependencies"
	"github.com/platinummonkey/pluginsync/pkg/observability"
	"github.com/platinummonkey/pluginsync/pkg/version"
)

// MinCoreVersionError means a plugin needs a newer core than the one running
type MinCoreVersionError struct {
	Name         string
	RequiredCore string
	CurrentCore  string
}

func (e *MinCoreVersionError) Error() string {
	return fmt.Sprintf("plugin %s requires core %s, current core is %s", e.Name, e.RequiredCore, e.CurrentCore)
}

// Exclusion is a plugin left out because of its core requirement
type Exclusion struct {
	Name         string `json:"name"`
	RequiredCore string `json:"requiredCore"`
}

// Partition splits a resolved set by core compatibility
type Partition struct {
	Installable dependencies.Set
	Excluded    []Exclusion // sorted by name
}

// ExcludedNames returns the excluded plugin names in order
func (p Partition) ExcludedNames() []string {
	names := make([]string, 0, len(p.Excluded))
	for _, e := range p.Excluded {
		names = append(names, e.Name)
	}
	return names
}

// Compatible reports whether a plugin requiring requiredCore runs on
// currentCore. An empty requirement is always met.
func Compatible(requiredCore, currentCore string) bool {
	if requiredCore == "" {
		return true
	}
	return version.AtLeast(currentCore, requiredCore)
}

// Filter checks resolved plugins against a core version
type Filter struct {
	catalog *catalog.Catalog
	log     *logrus.Logger
}

// NewFilter creates a filter reading requirements from cat
func NewFilter(cat *catalog.Catalog, log *logrus.Logger) *Filter {
	return &Filter{
		catalog: cat,
		log:     observability.OrDefault(log),
	}
}

// Check returns a MinCoreVersionError when name cannot run on currentCore
func (f *Filter) Check(name, currentCore string) error {
	entry, ok := f.catalog.Entry(name)
	if !ok {
		return &catalog.InvalidPluginError{Name: name}
	}
	if !Compatible(entry.RequiredCore, currentCore) {
		return &MinCoreVersionError{Name: name, RequiredCore: entry.RequiredCore, CurrentCore: currentCore}
	}
	return nil
}

// Partition splits resolved into installable and excluded plugins.
// Only a name missing from the catalog is an error.
func (f *Filter) Partition(resolved dependencies.Set, currentCore string) (Partition, error) {
	partition := Partition{
		Installable: make(dependencies.Set, resolved.Len()),
		Excluded:    make([]Exclusion, 0),
	}

	for _, name := range resolved.Sorted() {
		err := f.Check(name, currentCore)
		if err == nil {
			partition.Installable.Add(name)
			continue
		}

		minCore, ok := err.(*MinCoreVersionError)
		if !ok {
			return Partition{}, err
		}

		f.log.WithFields(logrus.Fields{
			"plugin":        name,
			"required_core": minCore.RequiredCore,
			"current_core":  currentCore,
		}).Warn("Excluding plugin: core version too old")
		partition.Excluded = append(partition.Excluded, Exclusion{
			Name:         name,
			RequiredCore: minCore.RequiredCore,
		})
	}

	sort.Slice(partition.Excluded, func(i, j int) bool {
		return partition.Excluded[i].Name < partition.Excluded[j].Name
	})
	return partition, nil
}
