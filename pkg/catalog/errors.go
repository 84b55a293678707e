package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrCatalogUnavailable means the catalog could not be fetched
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrCatalogMalformed means the fetched content is not a catalog
	ErrCatalogMalformed = errors.New("catalog malformed")
)

// InvalidPluginError is returned for names the catalog does not know
type InvalidPluginError struct {
	Name string
}

func (e *InvalidPluginError) Error() string {
	return fmt.Sprintf("cannot find plugin %s", e.Name)
}

// InvalidVersionError is returned when a request pins a version newer than
// the latest one in the catalog
type InvalidVersionError struct {
	Name      string
	Requested string
	Latest    string
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("plugin %s version %s is higher than the latest available version %s",
		e.Name, e.Requested, e.Latest)
}
