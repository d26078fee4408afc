package lineage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workgov/internal/domain"
)

// fakeLineageRepo is an in-memory domain.LineageRepository.
type fakeLineageRepo struct {
	mu    sync.Mutex
	nodes []domain.LineageNode
	edges []domain.LineageEdge
}

func (f *fakeLineageRepo) InsertNode(_ context.Context, node *domain.LineageNode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.nodes {
		if n.ID == node.ID {
			return domain.ErrConflict("node %s exists", node.ID)
		}
	}
	f.nodes = append(f.nodes, *node)
	return nil
}

func (f *fakeLineageRepo) InsertEdge(_ context.Context, edge *domain.LineageEdge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edges = append(f.edges, *edge)
	return nil
}

func (f *fakeLineageRepo) UpdateEdgeStatus(_ context.Context, edgeID string, status domain.LinkStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.edges {
		if f.edges[i].ID == edgeID {
			f.edges[i].Status = status
			return nil
		}
	}
	return domain.ErrNotFound("edge %s not found", edgeID)
}

func (f *fakeLineageRepo) ListNodes(_ context.Context) ([]domain.LineageNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.LineageNode, len(f.nodes))
	copy(out, f.nodes)
	return out, nil
}

func (f *fakeLineageRepo) ListEdges(_ context.Context) ([]domain.LineageEdge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.LineageEdge, len(f.edges))
	copy(out, f.edges)
	return out, nil
}

var _ domain.LineageRepository = (*fakeLineageRepo)(nil)

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func okChecker(context.Context, string) error { return nil }

func pipelineEvents() []domain.LineageEvent {
	source := domain.LineageNode{ID: "statcan_noc", Type: domain.NodeSource,
		Label: "Statistics Canada NOC 2021", URL: "https://statcan.example/noc"}
	bronze := domain.LineageNode{ID: "bronze_noc", Type: domain.NodeStage, Label: "bronze_noc"}
	silver := domain.LineageNode{ID: "silver_noc", Type: domain.NodeStage, Label: "silver_noc"}
	gold := domain.LineageNode{ID: "dim_noc", Type: domain.NodeTable, Label: "dim_noc"}

	return []domain.LineageEvent{
		{Source: source, Target: bronze, Type: domain.EdgeDerivedFrom},
		{Source: bronze, Target: silver, Type: domain.EdgeTransforms},
		{Source: silver, Target: gold, Type: domain.EdgeTransforms},
	}
}

func TestIngestEvents_BuildsAndPersists(t *testing.T) {
	repo := &fakeLineageRepo{}
	svc := NewService(repo, okChecker, fixedClock(testNow), nil)

	require.NoError(t, svc.IngestEvents(context.Background(), pipelineEvents()))

	assert.Len(t, repo.nodes, 4)
	assert.Len(t, repo.edges, 3)
	for _, e := range repo.edges {
		assert.Equal(t, domain.LinkActive, e.Status)
		assert.Equal(t, testNow, e.CreatedAt)
	}

	up, err := svc.Trace(context.Background(), "dim_noc", domain.TraceUp)
	require.NoError(t, err)
	require.Len(t, up, 3)
	assert.Equal(t, "statcan_noc", up[2].ID)
}

func TestIngestEvents_ResentNodesAreIdempotent(t *testing.T) {
	repo := &fakeLineageRepo{}
	svc := NewService(repo, okChecker, fixedClock(testNow), nil)

	events := pipelineEvents()
	require.NoError(t, svc.IngestEvents(context.Background(), events))

	// A second pipeline run re-announces the same stages with a fresh edge
	// per transition. Nodes are deduplicated, edges accumulate.
	require.NoError(t, svc.IngestEvents(context.Background(), events[1:2]))
	assert.Len(t, repo.nodes, 4)
	assert.Len(t, repo.edges, 4)
}

func TestIngestEvents_CycleRejectedNothingPersisted(t *testing.T) {
	repo := &fakeLineageRepo{}
	svc := NewService(repo, okChecker, fixedClock(testNow), nil)
	require.NoError(t, svc.IngestEvents(context.Background(), pipelineEvents()))

	// gold feeding back into bronze closes a cycle.
	bad := []domain.LineageEvent{{
		Source: domain.LineageNode{ID: "dim_noc", Type: domain.NodeTable, Label: "dim_noc"},
		Target: domain.LineageNode{ID: "bronze_noc", Type: domain.NodeStage, Label: "bronze_noc"},
		Type:   domain.EdgeTransforms,
	}}
	err := svc.IngestEvents(context.Background(), bad)
	var cycle *domain.CycleError
	require.ErrorAs(t, err, &cycle)

	// Store unchanged.
	assert.Len(t, repo.edges, 3)
}

func TestLoad_RebuildsGraph(t *testing.T) {
	repo := &fakeLineageRepo{}
	first := NewService(repo, okChecker, fixedClock(testNow), nil)
	require.NoError(t, first.IngestEvents(context.Background(), pipelineEvents()))

	second := NewService(repo, okChecker, fixedClock(testNow), nil)
	require.NoError(t, second.Load(context.Background()))

	up, err := second.Trace(context.Background(), "dim_noc", domain.TraceUp)
	require.NoError(t, err)
	assert.Len(t, up, 3)
}

func TestTrace_InvalidDirection(t *testing.T) {
	svc := NewService(&fakeLineageRepo{}, okChecker, fixedClock(testNow), nil)
	_, err := svc.Trace(context.Background(), "dim_noc", "sideways")
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
}

func policyFixture(t *testing.T, check URLChecker) (*Service, *fakeLineageRepo) {
	t.Helper()
	repo := &fakeLineageRepo{}
	svc := NewService(repo, check, fixedClock(testNow), nil)

	table := domain.LineageNode{ID: "dim_noc", Type: domain.NodeTable, Label: "dim_noc"}
	clause := domain.LineageNode{ID: "policy_gcdata_4_1", Type: domain.NodePolicyClause,
		Label: "Directive on Open Government 4.1", URL: "https://policy.example/4.1"}

	require.NoError(t, svc.IngestEvents(context.Background(), []domain.LineageEvent{
		{Source: table, Target: clause, Type: domain.EdgeCitesPolicy},
	}))
	return svc, repo
}

func TestVerifyLinks_HealthyStaysActive(t *testing.T) {
	svc, repo := policyFixture(t, okChecker)

	broken, err := svc.VerifyLinks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, broken)
	assert.Equal(t, domain.LinkActive, repo.edges[0].Status)
}

func TestVerifyLinks_FailureStateMachine(t *testing.T) {
	var fail bool
	check := func(context.Context, string) error {
		if fail {
			return errors.New("404 not found")
		}
		return nil
	}
	svc, repo := policyFixture(t, check)
	ctx := context.Background()

	// First failure: active -> stale, reported.
	fail = true
	broken, err := svc.VerifyLinks(ctx)
	require.NoError(t, err)
	require.Len(t, broken, 1)
	assert.Equal(t, "policy_gcdata_4_1", broken[0].NodeID)
	assert.Equal(t, "https://policy.example/4.1", broken[0].URL)
	assert.Contains(t, broken[0].Reason, "404")
	assert.Equal(t, domain.LinkStale, repo.edges[0].Status)

	// Repeat failures keep the edge stale and keep reporting it: retiring
	// a link is a curator's call, never verification's.
	for i := 0; i < 3; i++ {
		broken, err = svc.VerifyLinks(ctx)
		require.NoError(t, err)
		require.Len(t, broken, 1)
		assert.Equal(t, domain.LinkStale, repo.edges[0].Status)
	}
}

func TestUpdateLinkStatus_RetireStaleLink(t *testing.T) {
	svc, repo := policyFixture(t, func(context.Context, string) error {
		return errors.New("410 gone")
	})
	ctx := context.Background()

	_, err := svc.VerifyLinks(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.LinkStale, repo.edges[0].Status)

	require.NoError(t, svc.UpdateLinkStatus(ctx, repo.edges[0].ID, domain.LinkRetired))
	assert.Equal(t, domain.LinkRetired, repo.edges[0].Status)

	// Retired links are out of the verification loop for good.
	broken, err := svc.VerifyLinks(ctx)
	require.NoError(t, err)
	assert.Empty(t, broken)
	assert.Equal(t, domain.LinkRetired, repo.edges[0].Status)
}

func TestUpdateLinkStatus_RelinkStaleLink(t *testing.T) {
	var fail bool
	check := func(context.Context, string) error {
		if fail {
			return errors.New("timeout")
		}
		return nil
	}
	svc, repo := policyFixture(t, check)
	ctx := context.Background()

	fail = true
	_, err := svc.VerifyLinks(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.LinkStale, repo.edges[0].Status)

	require.NoError(t, svc.UpdateLinkStatus(ctx, repo.edges[0].ID, domain.LinkActive))
	assert.Equal(t, domain.LinkActive, repo.edges[0].Status)
}

func TestUpdateLinkStatus_RejectsIllegalTransitions(t *testing.T) {
	svc, repo := policyFixture(t, okChecker)
	ctx := context.Background()

	// The edge is active, not stale.
	var conflict *domain.ConflictError
	err := svc.UpdateLinkStatus(ctx, repo.edges[0].ID, domain.LinkRetired)
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, domain.LinkActive, repo.edges[0].Status)

	// Stale is not a target state.
	var validation *domain.ValidationError
	err = svc.UpdateLinkStatus(ctx, repo.edges[0].ID, domain.LinkStale)
	require.ErrorAs(t, err, &validation)

	// Unknown edge.
	var notFound *domain.NotFoundError
	err = svc.UpdateLinkStatus(ctx, "ghost", domain.LinkRetired)
	require.ErrorAs(t, err, &notFound)
}

func TestVerifyLinks_StaleRecovers(t *testing.T) {
	var fail bool
	check := func(context.Context, string) error {
		if fail {
			return errors.New("timeout")
		}
		return nil
	}
	svc, repo := policyFixture(t, check)
	ctx := context.Background()

	fail = true
	_, err := svc.VerifyLinks(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.LinkStale, repo.edges[0].Status)

	fail = false
	broken, err := svc.VerifyLinks(ctx)
	require.NoError(t, err)
	assert.Empty(t, broken)
	assert.Equal(t, domain.LinkActive, repo.edges[0].Status)
}

func TestVerifyLinks_MissingURL(t *testing.T) {
	repo := &fakeLineageRepo{}
	svc := NewService(repo, okChecker, fixedClock(testNow), nil)

	table := domain.LineageNode{ID: "dim_noc", Type: domain.NodeTable, Label: "dim_noc"}
	clause := domain.LineageNode{ID: "policy_unlinked", Type: domain.NodePolicyClause,
		Label: "Unpublished directive"}
	require.NoError(t, svc.IngestEvents(context.Background(), []domain.LineageEvent{
		{Source: table, Target: clause, Type: domain.EdgeCitesPolicy},
	}))

	broken, err := svc.VerifyLinks(context.Background())
	require.NoError(t, err)
	require.Len(t, broken, 1)
	assert.Contains(t, broken[0].Reason, "no url")
}

func TestTableNodeID(t *testing.T) {
	repo := &fakeLineageRepo{}
	svc := NewService(repo, okChecker, fixedClock(testNow), nil)
	require.NoError(t, svc.IngestEvents(context.Background(), pipelineEvents()))

	id, ok := svc.TableNodeID("dim_noc")
	assert.True(t, ok)
	assert.Equal(t, "dim_noc", id)

	_, ok = svc.TableNodeID("fact_ghost")
	assert.False(t, ok)
}

func TestSourceAttributed(t *testing.T) {
	repo := &fakeLineageRepo{}
	svc := NewService(repo, okChecker, fixedClock(testNow), nil)
	require.NoError(t, svc.IngestEvents(context.Background(), pipelineEvents()))

	hasSource, hasURL := svc.SourceAttributed("dim_noc")
	assert.True(t, hasSource)
	assert.True(t, hasURL)

	// Unknown table traces to nothing.
	hasSource, hasURL = svc.SourceAttributed("fact_ghost")
	assert.False(t, hasSource)
	assert.False(t, hasURL)
}
