package dependencies

import (
	"sort"
)

// Dependency is an edge from a plugin to one of its dependencies
type Dependency struct {
	Name     string `json:"name" yaml:"name"`
	Version  string `json:"version" yaml:"version"`
	Optional bool   `json:"optional" yaml:"optional"`
}

// Node is a plugin in the dependency graph
type Node struct {
	Name         string
	Version      string
	Dependencies []Dependency
}

// DependencyGraph is the direct-dependency graph of a resolved set
type DependencyGraph struct {
	nodes map[string]*Node
	edges map[string][]string // name -> dependency names
}

// NewDependencyGraph creates an empty graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[string]*Node),
		edges: make(map[string][]string),
	}
}

// AddNode adds a plugin and its outgoing edges
func (g *DependencyGraph) AddNode(name, version string, deps []Dependency) {
	g.nodes[name] = &Node{
		Name:         name,
		Version:      version,
		Dependencies: deps,
	}

	edges := make([]string, 0, len(deps))
	for _, dep := range deps {
		edges = append(edges, dep.Name)
	}
	g.edges[name] = edges
}

// GetNode returns a plugin node, or nil
func (g *DependencyGraph) GetNode(name string) *Node {
	return g.nodes[name]
}

// Names returns every node name in sorted order
func (g *DependencyGraph) Names() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetDependencies returns the direct dependencies of a plugin
func (g *DependencyGraph) GetDependencies(name string) []Dependency {
	node := g.GetNode(name)
	if node == nil {
		return nil
	}
	return node.Dependencies
}

// GetTransitiveDependencies returns every plugin reachable from name, sorted
func (g *DependencyGraph) GetTransitiveDependencies(name string) []string {
	visited := map[string]bool{name: true}
	queue := []string{name}
	result := make([]string, 0)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dep := range g.edges[current] {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			result = append(result, dep)
			queue = append(queue, dep)
		}
	}

	sort.Strings(result)
	return result
}

// GetDependents returns the plugins that directly depend on name, sorted
func (g *DependencyGraph) GetDependents(name string) []string {
	dependents := make([]string, 0)
	for nodeName, edges := range g.edges {
		for _, edge := range edges {
			if edge == name {
				dependents = append(dependents, nodeName)
				break
			}
		}
	}
	sort.Strings(dependents)
	return dependents
}

// Roots returns the plugins nothing else in the graph depends on
func (g *DependencyGraph) Roots() []string {
	roots := make([]string, 0)
	for _, name := range g.Names() {
		if len(g.GetDependents(name)) == 0 {
			roots = append(roots, name)
		}
	}
	return roots
}

// FindCycle returns one dependency cycle reachable from name, starting and
// ending at the same plugin, or nil. Cycles are legal in the catalog; this is
// for reporting only.
func (g *DependencyGraph) FindCycle(name string) []string {
	path := make([]string, 0)
	visited := make(map[string]bool)
	onPath := make(map[string]int)

	var cycle []string
	var visit func(string) bool
	visit = func(key string) bool {
		visited[key] = true
		onPath[key] = len(path)
		path = append(path, key)

		for _, dep := range g.edges[key] {
			if idx, ok := onPath[dep]; ok {
				cycle = append(append([]string{}, path[idx:]...), dep)
				return true
			}
			if !visited[dep] && visit(dep) {
				return true
			}
		}

		delete(onPath, key)
		path = path[:len(path)-1]
		return false
	}

	if visit(name) {
		return cycle
	}
	return nil
}
