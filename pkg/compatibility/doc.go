// Package compatibility decides which resolved plugins can run on the host core.
//
// # Overview
//
// Every catalog entry names the oldest core release it supports (requiredCore).
// Filter.Partition splits a resolved set into plugins that are installable on
// the current core and plugins that are excluded together with the core version
// that blocked them.
//
// Exclusion never fails a pass. Excluded plugins are reported and not fetched.
//
// # Version Comparison
//
// Versions are compared component by component after splitting on ".". Each
// component compares by its leading number, and a missing trailing component
// counts as 0, so "2.190" equals "2.190.0" and "2.1" is older than "2.190.1".
// See pkg/version.
//
// # Usage Example
//
//	filter := compatibility.NewFilter(cat, logger)
//	partition, err := filter.Partition(resolved, coreVersion)
//	if err != nil {
//		return err
//	}
//
//	for _, excluded := range partition.Excluded {
//		fmt.Printf("%s needs core %s\n", excluded.Name, excluded.RequiredCore)
//	}
//
// # Related Packages
//
//   - pkg/dependencies: produces the resolved set
//   - pkg/installer: installs the installable half
package compatibility
