// Package lineage maintains the provenance graph: which sources, stages,
// and transforms produced each gold table, and which policy clauses the
// artifacts cite.
package lineage

import (
	"sort"
	"sync"

	"workgov/internal/domain"
)

// Graph is the in-memory provenance graph. Edges point in the direction
// data flows: FromID feeds ToID. Structural edges (derived_from,
// transforms) must stay acyclic; cites_policy edges are exempt.
//
// Acyclicity is maintained with an online topological order (Pearce-Kelly):
// each node holds a position, and an insert only does work when the new
// edge points against the current order, in which case discovery is bounded
// to the affected region instead of the whole graph.
//
// All methods are safe for concurrent use.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]domain.LineageNode
	edges map[string]domain.LineageEdge

	// structural adjacency only, by node ID
	out map[string][]string
	in  map[string][]string

	// topological position per node over structural edges
	ord  map[string]int
	next int
}

// NewGraph creates an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: map[string]domain.LineageNode{},
		edges: map[string]domain.LineageEdge{},
		out:   map[string][]string{},
		in:    map[string][]string{},
		ord:   map[string]int{},
	}
}

// AddNode inserts a node. Nodes are append-only; re-adding an existing ID
// is a conflict.
func (g *Graph) AddNode(node domain.LineageNode) error {
	if node.ID == "" {
		return domain.ErrValidation("lineage node id is empty")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[node.ID]; ok {
		return domain.ErrConflict("lineage node %s already exists", node.ID)
	}
	g.nodes[node.ID] = node
	g.ord[node.ID] = g.next
	g.next++
	return nil
}

// HasNode reports whether a node ID is present.
func (g *Graph) HasNode(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Node returns a node by ID.
func (g *Graph) Node(id string) (domain.LineageNode, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	node, ok := g.nodes[id]
	if !ok {
		return domain.LineageNode{}, domain.ErrNotFound("lineage node %s not found", id)
	}
	return node, nil
}

// Edge returns an edge by ID.
func (g *Graph) Edge(id string) (domain.LineageEdge, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	edge, ok := g.edges[id]
	if !ok {
		return domain.LineageEdge{}, domain.ErrNotFound("lineage edge %s not found", id)
	}
	return edge, nil
}

// AddEdge inserts an edge. Both endpoints must exist. A structural edge
// that would close a cycle is rejected with CycleError and the graph is
// left unchanged.
func (g *Graph) AddEdge(edge domain.LineageEdge) error {
	if edge.ID == "" {
		return domain.ErrValidation("lineage edge id is empty")
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.edges[edge.ID]; ok {
		return domain.ErrConflict("lineage edge %s already exists", edge.ID)
	}
	if _, ok := g.nodes[edge.FromID]; !ok {
		return domain.ErrValidation("edge %s references unknown node %s", edge.ID, edge.FromID)
	}
	if _, ok := g.nodes[edge.ToID]; !ok {
		return domain.ErrValidation("edge %s references unknown node %s", edge.ID, edge.ToID)
	}

	if edge.Type.Structural() {
		if edge.FromID == edge.ToID {
			return &domain.CycleError{FromID: edge.FromID, ToID: edge.ToID}
		}
		if err := g.place(edge.FromID, edge.ToID); err != nil {
			return err
		}
		g.out[edge.FromID] = append(g.out[edge.FromID], edge.ToID)
		g.in[edge.ToID] = append(g.in[edge.ToID], edge.FromID)
	}
	g.edges[edge.ID] = edge
	return nil
}

// SetEdgeStatus updates an edge's verification status in place.
func (g *Graph) SetEdgeStatus(edgeID string, status domain.LinkStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	edge, ok := g.edges[edgeID]
	if !ok {
		return domain.ErrNotFound("lineage edge %s not found", edgeID)
	}
	edge.Status = status
	g.edges[edgeID] = edge
	return nil
}

// place restores the topological order for a new structural edge
// from -> to. Edges that already respect the order (most pipeline runs
// append downstream) cost a map lookup. A back edge triggers discovery
// bounded to nodes positioned between to and from: a forward walk from
// to that reaches from is a cycle; otherwise the affected nodes are
// repositioned within the slots they already occupy. Caller holds the
// lock.
func (g *Graph) place(from, to string) error {
	lb, ub := g.ord[to], g.ord[from]
	if ub < lb {
		return nil
	}
	fwd, hit := g.discover(to, g.out, func(id string) bool { return g.ord[id] <= ub }, from)
	if hit {
		return &domain.CycleError{FromID: from, ToID: to}
	}
	bwd, _ := g.discover(from, g.in, func(id string) bool { return g.ord[id] >= lb }, "")
	g.reorder(bwd, fwd)
	return nil
}

// discover collects every node reachable from start over adj within the
// bound, reporting whether target was seen. Caller holds the lock.
func (g *Graph) discover(start string, adj map[string][]string, within func(string) bool, target string) ([]string, bool) {
	seen := map[string]bool{start: true}
	stack := []string{start}
	visited := []string{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == target {
			return nil, true
		}
		for _, next := range adj[cur] {
			if !seen[next] && within(next) {
				seen[next] = true
				stack = append(stack, next)
				visited = append(visited, next)
			}
		}
	}
	return visited, false
}

// reorder reassigns positions so every node that must precede the new
// edge sits ahead of every node that must follow it, reusing the slots
// the affected nodes already hold. Caller holds the lock.
func (g *Graph) reorder(bwd, fwd []string) {
	slots := make([]int, 0, len(bwd)+len(fwd))
	for _, id := range bwd {
		slots = append(slots, g.ord[id])
	}
	for _, id := range fwd {
		slots = append(slots, g.ord[id])
	}
	sort.Ints(slots)
	sort.Slice(bwd, func(i, j int) bool { return g.ord[bwd[i]] < g.ord[bwd[j]] })
	sort.Slice(fwd, func(i, j int) bool { return g.ord[fwd[i]] < g.ord[fwd[j]] })

	i := 0
	for _, id := range bwd {
		g.ord[id] = slots[i]
		i++
	}
	for _, id := range fwd {
		g.ord[id] = slots[i]
		i++
	}
}

// Trace returns every node reachable from id along structural edges in
// the given direction, breadth-first, nearest first. The starting node is
// not included.
func (g *Graph) Trace(id string, direction domain.TraceDirection) ([]domain.LineageNode, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[id]; !ok {
		return nil, domain.ErrNotFound("lineage node %s not found", id)
	}
	adj := g.out
	if direction == domain.TraceUp {
		adj = g.in
	}

	var out []domain.LineageNode
	seen := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if seen[next] {
				continue
			}
			seen[next] = true
			out = append(out, g.nodes[next])
			queue = append(queue, next)
		}
	}
	return out, nil
}

// Edges returns all edges, optionally filtered by type.
func (g *Graph) Edges(edgeType domain.EdgeType) []domain.LineageEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []domain.LineageEdge
	for _, e := range g.edges {
		if edgeType == "" || e.Type == edgeType {
			out = append(out, e)
		}
	}
	return out
}

// NodeByLabel returns the first node of the given type with the given
// label. Table nodes are labeled with their table name.
func (g *Graph) NodeByLabel(nodeType domain.NodeType, label string) (domain.LineageNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, n := range g.nodes {
		if n.Type == nodeType && n.Label == label {
			return n, true
		}
	}
	return domain.LineageNode{}, false
}
