// Package version compares plugin and host-application version strings.
//
// # Overview
//
// Versions are compared component by component after splitting on ".".
// Each component is read as an integer and a missing trailing component
// counts as 0, so "2.190" and "2.190.0" are equal and "2.190.1" is newer
// than both.
//
// Components carrying a qualifier ("1.0-beta-2", "3.1.v20210101") are
// compared by their leading digits first; when those tie, a component with
// a qualifier sorts before the bare number, and two qualifiers compare
// lexically.
//
// # Usage Example
//
//	if version.AtLeast(current, entry.RequiredCore) {
//		// plugin can run on this host
//	}
//
// # Related Packages
//
//   - pkg/catalog: rejects requests for versions newer than the catalog
//   - pkg/compatibility: gates plugins on the host core version
package version
