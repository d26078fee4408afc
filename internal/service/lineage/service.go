package lineage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"workgov/internal/domain"
)

// URLChecker resolves a URL and returns nil when it is reachable.
// Injected so tests never hit the network.
type URLChecker func(ctx context.Context, url string) error

// HTTPURLChecker issues a HEAD request and accepts any 2xx or 3xx status.
func HTTPURLChecker(client *http.Client) URLChecker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return func(ctx context.Context, url string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	}
}

// Service owns the provenance graph: it ingests pipeline events, persists
// nodes and edges, answers trace queries, and verifies policy links.
type Service struct {
	graph    *Graph
	repo     domain.LineageRepository
	checkURL URLChecker
	clock    domain.Clock
	logger   *slog.Logger
}

// NewService creates a Service around an empty graph. Call Load to hydrate
// it from the repository.
func NewService(repo domain.LineageRepository, checkURL URLChecker, clock domain.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if checkURL == nil {
		checkURL = HTTPURLChecker(nil)
	}
	return &Service{
		graph:    NewGraph(),
		repo:     repo,
		checkURL: checkURL,
		clock:    clock,
		logger:   logger,
	}
}

// Load hydrates the in-memory graph from the repository. Persisted data is
// trusted to be acyclic (every insert went through the same check), so a
// cycle here means the store was tampered with and is a hard error.
func (s *Service) Load(ctx context.Context) error {
	nodes, err := s.repo.ListNodes(ctx)
	if err != nil {
		return fmt.Errorf("load lineage nodes: %w", err)
	}
	for _, n := range nodes {
		if err := s.graph.AddNode(n); err != nil {
			return fmt.Errorf("load lineage node %s: %w", n.ID, err)
		}
	}

	edges, err := s.repo.ListEdges(ctx)
	if err != nil {
		return fmt.Errorf("load lineage edges: %w", err)
	}
	for _, e := range edges {
		if err := s.graph.AddEdge(e); err != nil {
			return fmt.Errorf("load lineage edge %s: %w", e.ID, err)
		}
	}

	s.logger.Info("lineage graph loaded", "nodes", len(nodes), "edges", len(edges))
	return nil
}

// IngestEvents records transform transitions from the pipeline. Each event
// contributes its endpoint nodes (created if new) and one edge. A
// structural edge that would close a cycle fails the whole call with
// CycleError and nothing from that event is persisted.
func (s *Service) IngestEvents(ctx context.Context, events []domain.LineageEvent) error {
	for _, ev := range events {
		if err := s.ingestNode(ctx, ev.Source); err != nil {
			return err
		}
		if err := s.ingestNode(ctx, ev.Target); err != nil {
			return err
		}

		edge := domain.LineageEdge{
			ID:        uuid.NewString(),
			FromID:    ev.Source.ID,
			ToID:      ev.Target.ID,
			Type:      ev.Type,
			Status:    domain.LinkActive,
			CreatedAt: s.clock.Now(),
		}
		// Graph first: the cycle check must pass before anything is persisted.
		if err := s.graph.AddEdge(edge); err != nil {
			return err
		}
		if err := s.repo.InsertEdge(ctx, &edge); err != nil {
			return fmt.Errorf("persist lineage edge %s -> %s: %w", edge.FromID, edge.ToID, err)
		}
	}
	return nil
}

// ingestNode adds a node to the graph and store if it is new. Re-sent
// nodes are the normal case: every pipeline run re-announces its stages.
func (s *Service) ingestNode(ctx context.Context, node domain.LineageNode) error {
	if s.graph.HasNode(node.ID) {
		return nil
	}
	if node.CreatedAt.IsZero() {
		node.CreatedAt = s.clock.Now()
	}
	if err := s.graph.AddNode(node); err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			return nil
		}
		return err
	}
	if err := s.repo.InsertNode(ctx, &node); err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			return nil
		}
		return fmt.Errorf("persist lineage node %s: %w", node.ID, err)
	}
	return nil
}

// Node returns one node by ID.
func (s *Service) Node(_ context.Context, id string) (domain.LineageNode, error) {
	return s.graph.Node(id)
}

// Trace answers ancestry queries: every node upstream or downstream of the
// given one along structural edges.
func (s *Service) Trace(_ context.Context, nodeID string, direction domain.TraceDirection) ([]domain.LineageNode, error) {
	if direction != domain.TraceUp && direction != domain.TraceDown {
		return nil, domain.ErrValidation("unknown trace direction %q", direction)
	}
	return s.graph.Trace(nodeID, direction)
}

// VerifyLinks re-checks the URL of every policy clause cited by a
// cites_policy edge. A failing active edge is demoted to stale; a stale
// edge stays stale until someone re-links or retires it through
// UpdateLinkStatus, and is reported again on every run. A stale link that
// resolves again recovers to active. Retired edges are left alone.
// Findings are informational: the returned BrokenLinks describe this
// run's failures.
func (s *Service) VerifyLinks(ctx context.Context) ([]domain.BrokenLink, error) {
	edges := s.graph.Edges(domain.EdgeCitesPolicy)
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })

	var broken []domain.BrokenLink
	for _, edge := range edges {
		if edge.Status == domain.LinkRetired {
			continue
		}
		if err := ctx.Err(); err != nil {
			return broken, err
		}

		node, err := s.graph.Node(edge.ToID)
		if err != nil {
			return broken, err
		}

		checkErr := s.verifyTarget(ctx, node)
		if checkErr == nil {
			if edge.Status == domain.LinkStale {
				if err := s.setStatus(ctx, edge.ID, domain.LinkActive); err != nil {
					return broken, err
				}
				s.logger.Info("policy link recovered", "edge", edge.ID, "url", node.URL)
			}
			continue
		}

		if edge.Status == domain.LinkActive {
			if err := s.setStatus(ctx, edge.ID, domain.LinkStale); err != nil {
				return broken, err
			}
		}
		s.logger.Warn("policy link failed verification",
			"edge", edge.ID, "url", node.URL, "status", domain.LinkStale, "error", checkErr)

		broken = append(broken, domain.BrokenLink{
			EdgeID:    edge.ID,
			NodeID:    node.ID,
			URL:       node.URL,
			Reason:    checkErr.Error(),
			CheckedAt: s.clock.Now(),
		})
	}
	return broken, nil
}

func (s *Service) verifyTarget(ctx context.Context, node domain.LineageNode) error {
	if node.URL == "" {
		return errors.New("policy clause has no url")
	}
	return s.checkURL(ctx, node.URL)
}

// UpdateLinkStatus applies a curator's decision to a stale policy link:
// re-link it (back to active) or retire it. Only a stale edge may move,
// and only to one of those two states; verification never retires a link
// on its own.
func (s *Service) UpdateLinkStatus(ctx context.Context, edgeID string, status domain.LinkStatus) error {
	if status != domain.LinkActive && status != domain.LinkRetired {
		return domain.ErrValidation("link status must be %q or %q, got %q",
			domain.LinkActive, domain.LinkRetired, status)
	}
	edge, err := s.graph.Edge(edgeID)
	if err != nil {
		return err
	}
	if edge.Status != domain.LinkStale {
		return domain.ErrConflict("edge %s is %s; only stale links can be re-linked or retired",
			edgeID, edge.Status)
	}
	if err := s.setStatus(ctx, edgeID, status); err != nil {
		return err
	}
	s.logger.Info("policy link status updated", "edge", edgeID, "status", status)
	return nil
}

func (s *Service) setStatus(ctx context.Context, edgeID string, status domain.LinkStatus) error {
	if err := s.repo.UpdateEdgeStatus(ctx, edgeID, status); err != nil {
		return fmt.Errorf("update edge %s status: %w", edgeID, err)
	}
	return s.graph.SetEdgeStatus(edgeID, status)
}

// TableNodeID returns the graph node ID for a named gold table, if the
// table has been announced by the pipeline.
func (s *Service) TableNodeID(tableName string) (string, bool) {
	node, ok := s.graph.NodeByLabel(domain.NodeTable, tableName)
	if !ok {
		return "", false
	}
	return node.ID, true
}

// SourceAttributed reports whether the named table's node traces upstream
// to a source node, and whether any such source carries a URL. Feeds the
// Reliability dimension.
func (s *Service) SourceAttributed(tableName string) (hasSource, hasURL bool) {
	node, ok := s.graph.NodeByLabel(domain.NodeTable, tableName)
	if !ok {
		return false, false
	}
	ancestors, err := s.graph.Trace(node.ID, domain.TraceUp)
	if err != nil {
		return false, false
	}
	for _, a := range ancestors {
		if a.Type != domain.NodeSource {
			continue
		}
		hasSource = true
		if a.URL != "" {
			hasURL = true
		}
	}
	return hasSource, hasURL
}
