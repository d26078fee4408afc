package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"workgov/internal/domain"
)

// LineageRepo implements domain.LineageRepository using SQLite. Nodes and
// edges are stored as two flat tables; the graph service loads both fully
// at start and keeps traversal in memory.
type LineageRepo struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

// NewLineageRepo creates a new LineageRepo over a write/read pool pair.
func NewLineageRepo(writeDB, readDB *sql.DB) *LineageRepo {
	return &LineageRepo{writeDB: writeDB, readDB: readDB}
}

// InsertNode persists a new lineage node.
func (r *LineageRepo) InsertNode(ctx context.Context, node *domain.LineageNode) error {
	meta, err := json.Marshal(node.Metadata)
	if err != nil {
		return fmt.Errorf("marshal node metadata: %w", err)
	}
	_, err = r.writeDB.ExecContext(ctx,
		`INSERT INTO lineage_nodes (id, node_type, label, url, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		node.ID, string(node.Type), node.Label, node.URL, string(meta),
		encodeTime(node.CreatedAt),
	)
	return mapDBError(err)
}

// InsertEdge persists a new lineage edge.
func (r *LineageRepo) InsertEdge(ctx context.Context, edge *domain.LineageEdge) error {
	_, err := r.writeDB.ExecContext(ctx,
		`INSERT INTO lineage_edges (id, from_id, to_id, edge_type, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		edge.ID, edge.FromID, edge.ToID, string(edge.Type), string(edge.Status),
		encodeTime(edge.CreatedAt),
	)
	return mapDBError(err)
}

// UpdateEdgeStatus moves a link through its verification state machine.
// This is the only mutation the append-only graph permits.
func (r *LineageRepo) UpdateEdgeStatus(ctx context.Context, edgeID string, status domain.LinkStatus) error {
	res, err := r.writeDB.ExecContext(ctx,
		`UPDATE lineage_edges SET status = ? WHERE id = ?`,
		string(status), edgeID,
	)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("lineage edge %q not found", edgeID)
	}
	return nil
}

// ListNodes returns all lineage nodes.
func (r *LineageRepo) ListNodes(ctx context.Context) ([]domain.LineageNode, error) {
	rows, err := r.readDB.QueryContext(ctx,
		`SELECT id, node_type, label, url, metadata, created_at
		 FROM lineage_nodes ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var nodes []domain.LineageNode
	for rows.Next() {
		var n domain.LineageNode
		var nodeType, meta, createdAt string
		if err := rows.Scan(&n.ID, &nodeType, &n.Label, &n.URL, &meta, &createdAt); err != nil {
			return nil, err
		}
		n.Type = domain.NodeType(nodeType)
		n.CreatedAt = decodeTime(createdAt)
		if err := json.Unmarshal([]byte(meta), &n.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for node %s: %w", n.ID, err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// ListEdges returns all lineage edges.
func (r *LineageRepo) ListEdges(ctx context.Context) ([]domain.LineageEdge, error) {
	rows, err := r.readDB.QueryContext(ctx,
		`SELECT id, from_id, to_id, edge_type, status, created_at
		 FROM lineage_edges ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var edges []domain.LineageEdge
	for rows.Next() {
		var e domain.LineageEdge
		var edgeType, status, createdAt string
		if err := rows.Scan(&e.ID, &e.FromID, &e.ToID, &edgeType, &status, &createdAt); err != nil {
			return nil, err
		}
		e.Type = domain.EdgeType(edgeType)
		e.Status = domain.LinkStatus(status)
		e.CreatedAt = decodeTime(createdAt)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
