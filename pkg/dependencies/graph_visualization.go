package dependencies

// CytoscapeNode represents a node in Cytoscape.js format
type CytoscapeNode struct {
	Data CytoscapeNodeData `json:"data"`
}

// CytoscapeNodeData contains node data for Cytoscape.js
type CytoscapeNodeData struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Type    string `json:"type"` // "requested" or "dependency"
}

// CytoscapeEdge represents an edge in Cytoscape.js format
type CytoscapeEdge struct {
	Data CytoscapeEdgeData `json:"data"`
}

// CytoscapeEdgeData contains edge data for Cytoscape.js
type CytoscapeEdgeData struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type,omitempty"` // "required" or "optional"
}

// CytoscapeGraph represents the complete graph in Cytoscape.js format
type CytoscapeGraph struct {
	Nodes []CytoscapeNode `json:"nodes"`
	Edges []CytoscapeEdge `json:"edges"`
}

// ToCytoscape converts the graph for rendering. Nodes in requested are marked
// "requested"; edges to plugins outside the graph are dropped.
func (g *DependencyGraph) ToCytoscape(requested Set) CytoscapeGraph {
	cytoGraph := CytoscapeGraph{
		Nodes: make([]CytoscapeNode, 0, len(g.nodes)),
		Edges: make([]CytoscapeEdge, 0),
	}

	for _, name := range g.Names() {
		node := g.nodes[name]

		nodeType := "dependency"
		if requested.Contains(name) {
			nodeType = "requested"
		}
		cytoGraph.Nodes = append(cytoGraph.Nodes, CytoscapeNode{
			Data: CytoscapeNodeData{
				ID:      name,
				Name:    name,
				Version: node.Version,
				Type:    nodeType,
			},
		})

		for _, dep := range node.Dependencies {
			if _, ok := g.nodes[dep.Name]; !ok {
				continue
			}

			edgeType := "required"
			if dep.Optional {
				edgeType = "optional"
			}
			cytoGraph.Edges = append(cytoGraph.Edges, CytoscapeEdge{
				Data: CytoscapeEdgeData{
					ID:     name + "->" + dep.Name,
					Source: name,
					Target: dep.Name,
					Type:   edgeType,
				},
			})
		}
	}

	return cytoGraph
}
