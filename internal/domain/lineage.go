package domain

import "time"

// NodeType classifies a lineage node.
type NodeType string

const (
	NodeSource       NodeType = "source"
	NodeStage        NodeType = "stage"
	NodeTable        NodeType = "table"
	NodeColumn       NodeType = "column"
	NodePolicyClause NodeType = "policy_clause"
)

// EdgeType classifies a lineage edge. derived_from and transforms edges
// must keep the graph acyclic; cites_policy edges are many-to-many.
type EdgeType string

const (
	EdgeDerivedFrom EdgeType = "derived_from"
	EdgeTransforms  EdgeType = "transforms"
	EdgeCitesPolicy EdgeType = "cites_policy"
)

// Structural reports whether edges of this type participate in the DAG
// invariant (cycle detection).
func (t EdgeType) Structural() bool {
	return t == EdgeDerivedFrom || t == EdgeTransforms
}

// LinkStatus is the verification state of a policy link.
// active -> (URL check fails) -> stale -> (manual re-link or removal)
// -> active or retired. Stale links are reported, never silently dropped.
type LinkStatus string

const (
	LinkActive  LinkStatus = "active"
	LinkStale   LinkStatus = "stale"
	LinkRetired LinkStatus = "retired"
)

// LineageNode is one vertex of the provenance graph. Nodes are append-only.
type LineageNode struct {
	ID        string            `json:"id"`
	Type      NodeType          `json:"type"`
	Label     string            `json:"label"`
	URL       string            `json:"url,omitempty"` // resolvable source/policy location
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// LineageEdge is one directed edge of the provenance graph.
type LineageEdge struct {
	ID        string     `json:"id"`
	FromID    string     `json:"from_id"`
	ToID      string     `json:"to_id"`
	Type      EdgeType   `json:"type"`
	Status    LinkStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// LineageEvent is one transform transition emitted by the pipeline at each
// bronze/silver/gold step. The graph ingests these incrementally.
type LineageEvent struct {
	Source LineageNode `json:"source"`
	Target LineageNode `json:"target"`
	Type   EdgeType    `json:"type"`
}

// TraceDirection selects ancestor or descendant traversal.
type TraceDirection string

const (
	TraceUp   TraceDirection = "upstream"
	TraceDown TraceDirection = "downstream"
)

// BrokenLink is a verification finding for a cites_policy edge whose
// target no longer resolves. Findings are informational, never fatal.
type BrokenLink struct {
	EdgeID    string    `json:"edge_id"`
	NodeID    string    `json:"node_id"`
	URL       string    `json:"url"`
	Reason    string    `json:"reason"`
	CheckedAt time.Time `json:"checked_at"`
}
