// Package dependencies resolves plugin requests to their full dependency closure.
//
// # Overview
//
// Resolve grows the requested set with the direct dependencies of its members
// until the set stops changing. The catalog is finite and the set only grows, so
// the loop ends after at most one iteration per catalog entry, cycles included.
// An unknown dependency fails the whole resolution; a partial closure is never
// returned.
//
// # Key Features
//
// Resolution: fixed-point closure, optional dependencies on request
// Graph Analysis: direct and transitive dependencies, dependents, cycle reporting
// Lockfiles: pin name, version, checksum and URL of every resolved plugin
// Visualization: Cytoscape.js export of the resolved graph
//
// # Usage Example
//
//	resolver := dependencies.NewResolver(cat, logger)
//	resolved, err := resolver.Resolve([]string{"git", "docker-workflow:1.20"}, false)
//	if err != nil {
//		return err
//	}
//
//	graph, _ := resolver.Graph(resolved)
//	fmt.Println(graph.GetDependents("structs"))
//
// Generate lockfile:
//
//	lockfile, err := resolver.Lock(requests, false)
//	// Save to plugins.lock.yaml
//
// # Related Packages
//
//   - pkg/catalog: the catalog being resolved against
//   - pkg/compatibility: partitions the resolved set by core version
package dependencies
