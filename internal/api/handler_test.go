package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workgov/internal/domain"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

type fakeQuality struct {
	latest map[string]*domain.QualitySnapshot
	trend  map[string][]domain.QualitySnapshot
	signal *domain.DegradationSignal
	ranAll bool
	ran    []string
}

func (f *fakeQuality) Latest(_ context.Context, table string) (*domain.QualitySnapshot, error) {
	snap, ok := f.latest[table]
	if !ok {
		return nil, domain.ErrNotFound("no snapshots for table %s", table)
	}
	return snap, nil
}

func (f *fakeQuality) GetTrend(_ context.Context, table string, window int) ([]domain.QualitySnapshot, error) {
	snaps := f.trend[table]
	if len(snaps) > window {
		snaps = snaps[len(snaps)-window:]
	}
	return snaps, nil
}

func (f *fakeQuality) Detect(_ context.Context, table string) (*domain.DegradationSignal, error) {
	return f.signal, nil
}

func (f *fakeQuality) RunAll(context.Context) ([]domain.QualitySnapshot, error) {
	f.ranAll = true
	return []domain.QualitySnapshot{{ID: "snap-1", TableName: "dim_noc", CompositeScore: ptr(92)}}, nil
}

func (f *fakeQuality) RunTables(_ context.Context, tables []string) ([]domain.QualitySnapshot, error) {
	f.ran = tables
	out := make([]domain.QualitySnapshot, len(tables))
	for i, t := range tables {
		out[i] = domain.QualitySnapshot{ID: "snap-" + t, TableName: t, CompositeScore: ptr(88)}
	}
	return out, nil
}

func (f *fakeQuality) ListScoredTables(context.Context) ([]string, error) {
	var names []string
	for name := range f.latest {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

type fakeLineage struct {
	nodes      map[string]domain.LineageNode
	trace      []domain.LineageNode
	broken     []domain.BrokenLink
	ingested   []domain.LineageEvent
	linkStatus map[string]domain.LinkStatus
}

func (f *fakeLineage) Node(_ context.Context, id string) (domain.LineageNode, error) {
	node, ok := f.nodes[id]
	if !ok {
		return domain.LineageNode{}, domain.ErrNotFound("lineage node %s not found", id)
	}
	return node, nil
}

func (f *fakeLineage) Trace(_ context.Context, id string, direction domain.TraceDirection) ([]domain.LineageNode, error) {
	if direction != domain.TraceUp && direction != domain.TraceDown {
		return nil, domain.ErrValidation("unknown trace direction %q", direction)
	}
	return f.trace, nil
}

func (f *fakeLineage) VerifyLinks(context.Context) ([]domain.BrokenLink, error) {
	return f.broken, nil
}

func (f *fakeLineage) IngestEvents(_ context.Context, events []domain.LineageEvent) error {
	for _, ev := range events {
		if ev.Type.Structural() && ev.Source.ID == ev.Target.ID {
			return &domain.CycleError{FromID: ev.Source.ID, ToID: ev.Target.ID}
		}
	}
	f.ingested = append(f.ingested, events...)
	return nil
}

func (f *fakeLineage) UpdateLinkStatus(_ context.Context, edgeID string, status domain.LinkStatus) error {
	if status != domain.LinkActive && status != domain.LinkRetired {
		return domain.ErrValidation("link status must be active or retired, got %q", status)
	}
	cur, ok := f.linkStatus[edgeID]
	if !ok {
		return domain.ErrNotFound("lineage edge %s not found", edgeID)
	}
	if cur != domain.LinkStale {
		return domain.ErrConflict("edge %s is %s; only stale links can be re-linked or retired", edgeID, cur)
	}
	f.linkStatus[edgeID] = status
	return nil
}

type fakeAudits struct {
	entries []domain.ComplianceEntry
}

func (f *fakeAudits) RunAudit(_ context.Context, framework domain.Framework) ([]domain.ComplianceEntry, error) {
	if !domain.ValidFramework(framework) {
		return nil, domain.ErrValidation("unknown audit framework %q", framework)
	}
	return f.entries, nil
}

func (f *fakeAudits) List(_ context.Context, filter domain.ComplianceFilter) ([]domain.ComplianceEntry, int64, error) {
	if filter.Framework != nil && !domain.ValidFramework(*filter.Framework) {
		return nil, 0, domain.ErrValidation("unknown audit framework %q", *filter.Framework)
	}
	return f.entries, int64(len(f.entries)), nil
}

func newTestServer(q *fakeQuality, l *fakeLineage, a *fakeAudits) *httptest.Server {
	if q == nil {
		q = &fakeQuality{}
	}
	if l == nil {
		l = &fakeLineage{}
	}
	if a == nil {
		a = &fakeAudits{}
	}
	r := chi.NewRouter()
	NewHandler(q, l, a).RegisterRoutes(r)
	return httptest.NewServer(r)
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url, body string, out any) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(nil, nil, nil)
	defer srv.Close()

	var body map[string]string
	status := getJSON(t, srv.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestGetLatestScore(t *testing.T) {
	q := &fakeQuality{latest: map[string]*domain.QualitySnapshot{
		"dim_noc": {ID: "snap-1", TableName: "dim_noc", CompositeScore: ptr(91.5), MeasuredAt: testNow},
	}}
	srv := newTestServer(q, nil, nil)
	defer srv.Close()

	var snap domain.QualitySnapshot
	status := getJSON(t, srv.URL+"/v1/quality/scores/dim_noc", &snap)
	assert.Equal(t, http.StatusOK, status)
	require.NotNil(t, snap.CompositeScore)
	assert.Equal(t, 91.5, *snap.CompositeScore)
}

func TestGetLatestScore_InsufficientDataIs200(t *testing.T) {
	q := &fakeQuality{latest: map[string]*domain.QualitySnapshot{
		"dim_broken": {ID: "snap-2", TableName: "dim_broken", InsufficientData: true,
			Note: "data unavailable for dim_broken: parquet file missing"},
	}}
	srv := newTestServer(q, nil, nil)
	defer srv.Close()

	var snap domain.QualitySnapshot
	status := getJSON(t, srv.URL+"/v1/quality/scores/dim_broken", &snap)
	assert.Equal(t, http.StatusOK, status, "insufficient data is a finding, not an error")
	assert.Nil(t, snap.CompositeScore)
	assert.True(t, snap.InsufficientData)
}

func TestGetLatestScore_NeverScored(t *testing.T) {
	srv := newTestServer(&fakeQuality{latest: map[string]*domain.QualitySnapshot{}}, nil, nil)
	defer srv.Close()

	var body errorBody
	status := getJSON(t, srv.URL+"/v1/quality/scores/ghost", &body)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, http.StatusNotFound, body.Code)
}

func TestListScoredTables(t *testing.T) {
	q := &fakeQuality{latest: map[string]*domain.QualitySnapshot{
		"dim_noc":  {ID: "snap-1", TableName: "dim_noc"},
		"dim_teer": {ID: "snap-2", TableName: "dim_teer"},
	}}
	srv := newTestServer(q, nil, nil)
	defer srv.Close()

	var body tablesResponse
	status := getJSON(t, srv.URL+"/v1/quality/tables", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"dim_noc", "dim_teer"}, body.Tables)
}

func TestGetTrend(t *testing.T) {
	q := &fakeQuality{trend: map[string][]domain.QualitySnapshot{
		"dim_noc": {
			{ID: "s1", CompositeScore: ptr(90)},
			{ID: "s2", CompositeScore: ptr(88)},
			{ID: "s3", CompositeScore: ptr(85)},
		},
	}}
	srv := newTestServer(q, nil, nil)
	defer srv.Close()

	var body trendResponse
	status := getJSON(t, srv.URL+"/v1/quality/trends/dim_noc?window=2", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, body.Window)
	require.Len(t, body.Snapshots, 2)
	assert.Equal(t, "s2", body.Snapshots[0].ID)
}

func TestGetTrend_BadWindow(t *testing.T) {
	srv := newTestServer(nil, nil, nil)
	defer srv.Close()

	var body errorBody
	status := getJSON(t, srv.URL+"/v1/quality/trends/dim_noc?window=zero", &body)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGetDegradation(t *testing.T) {
	q := &fakeQuality{signal: &domain.DegradationSignal{
		TableName: "dim_noc", Trigger: domain.TriggerTrend, CurrentScore: 73, DetectedAt: testNow,
	}}
	srv := newTestServer(q, nil, nil)
	defer srv.Close()

	var body degradationResponse
	status := getJSON(t, srv.URL+"/v1/quality/degradation/dim_noc", &body)
	assert.Equal(t, http.StatusOK, status)
	require.NotNil(t, body.Signal)
	assert.Equal(t, domain.TriggerTrend, body.Signal.Trigger)
}

func TestGetDegradation_Healthy(t *testing.T) {
	srv := newTestServer(&fakeQuality{}, nil, nil)
	defer srv.Close()

	var body degradationResponse
	status := getJSON(t, srv.URL+"/v1/quality/degradation/dim_noc", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Nil(t, body.Signal)
}

func TestRunScoring_FullCatalog(t *testing.T) {
	q := &fakeQuality{}
	srv := newTestServer(q, nil, nil)
	defer srv.Close()

	var body runResponse
	status := postJSON(t, srv.URL+"/v1/quality/runs", `{}`, &body)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, q.ranAll)
	require.Len(t, body.Snapshots, 1)
}

func TestRunScoring_NamedTables(t *testing.T) {
	q := &fakeQuality{}
	srv := newTestServer(q, nil, nil)
	defer srv.Close()

	var body runResponse
	status := postJSON(t, srv.URL+"/v1/quality/runs", `{"tables":["dim_noc","dim_teer"]}`, &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"dim_noc", "dim_teer"}, q.ran)
	assert.Len(t, body.Snapshots, 2)
}

func TestTraceLineage(t *testing.T) {
	l := &fakeLineage{
		nodes: map[string]domain.LineageNode{
			"dim_noc": {ID: "dim_noc", Type: domain.NodeTable, Label: "dim_noc"},
		},
		trace: []domain.LineageNode{
			{ID: "silver_noc", Type: domain.NodeStage},
			{ID: "statcan_noc", Type: domain.NodeSource},
		},
	}
	srv := newTestServer(nil, l, nil)
	defer srv.Close()

	var body traceResponse
	status := getJSON(t, srv.URL+"/v1/lineage/nodes/dim_noc/trace?direction=upstream", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, domain.TraceUp, body.Direction)
	assert.Len(t, body.Trace, 2)

	// Direction defaults to upstream.
	status = getJSON(t, srv.URL+"/v1/lineage/nodes/dim_noc/trace", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, domain.TraceUp, body.Direction)
}

func TestTraceLineage_UnknownNode(t *testing.T) {
	srv := newTestServer(nil, &fakeLineage{nodes: map[string]domain.LineageNode{}}, nil)
	defer srv.Close()

	var body errorBody
	status := getJSON(t, srv.URL+"/v1/lineage/nodes/ghost/trace", &body)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestIngestLineage(t *testing.T) {
	l := &fakeLineage{}
	srv := newTestServer(nil, l, nil)
	defer srv.Close()

	body := `{"events": [
		{"source": {"id": "bronze_noc", "type": "stage", "label": "bronze_noc"},
		 "target": {"id": "silver_noc", "type": "stage", "label": "silver_noc"},
		 "type": "transforms"}
	]}`
	var out map[string]int
	status := postJSON(t, srv.URL+"/v1/lineage/events", body, &out)
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, 1, out["ingested"])
	require.Len(t, l.ingested, 1)
	assert.Equal(t, "silver_noc", l.ingested[0].Target.ID)
}

func TestIngestLineage_EmptyBatch(t *testing.T) {
	srv := newTestServer(nil, nil, nil)
	defer srv.Close()

	var body errorBody
	status := postJSON(t, srv.URL+"/v1/lineage/events", `{"events": []}`, &body)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestIngestLineage_CycleIsConflict(t *testing.T) {
	srv := newTestServer(nil, &fakeLineage{}, nil)
	defer srv.Close()

	body := `{"events": [
		{"source": {"id": "dim_noc", "type": "table", "label": "dim_noc"},
		 "target": {"id": "dim_noc", "type": "table", "label": "dim_noc"},
		 "type": "derived_from"}
	]}`
	var out errorBody
	status := postJSON(t, srv.URL+"/v1/lineage/events", body, &out)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, out.Message, "cycle")
}

func TestUpdateLinkStatus_RetiresStaleEdge(t *testing.T) {
	l := &fakeLineage{linkStatus: map[string]domain.LinkStatus{"e1": domain.LinkStale}}
	srv := newTestServer(nil, l, nil)
	defer srv.Close()

	var out map[string]string
	status := postJSON(t, srv.URL+"/v1/lineage/edges/e1/status", `{"status":"retired"}`, &out)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "e1", out["edge_id"])
	assert.Equal(t, "retired", out["status"])
	assert.Equal(t, domain.LinkRetired, l.linkStatus["e1"])
}

func TestUpdateLinkStatus_ActiveEdgeIsConflict(t *testing.T) {
	l := &fakeLineage{linkStatus: map[string]domain.LinkStatus{"e1": domain.LinkActive}}
	srv := newTestServer(nil, l, nil)
	defer srv.Close()

	var body errorBody
	status := postJSON(t, srv.URL+"/v1/lineage/edges/e1/status", `{"status":"retired"}`, &body)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, domain.LinkActive, l.linkStatus["e1"])
}

func TestUpdateLinkStatus_UnknownEdge(t *testing.T) {
	srv := newTestServer(nil, &fakeLineage{linkStatus: map[string]domain.LinkStatus{}}, nil)
	defer srv.Close()

	var body errorBody
	status := postJSON(t, srv.URL+"/v1/lineage/edges/ghost/status", `{"status":"active"}`, &body)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestVerifyLinks(t *testing.T) {
	l := &fakeLineage{broken: []domain.BrokenLink{
		{EdgeID: "e1", NodeID: "policy_gone", URL: "https://policy.example/gone", Reason: "status 404"},
	}}
	srv := newTestServer(nil, l, nil)
	defer srv.Close()

	var body verifyResponse
	status := postJSON(t, srv.URL+"/v1/lineage/verify", ``, &body)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, body.BrokenLinks, 1)
	assert.Equal(t, "policy_gone", body.BrokenLinks[0].NodeID)
}

func TestVerifyLinks_NoneBroken(t *testing.T) {
	srv := newTestServer(nil, &fakeLineage{}, nil)
	defer srv.Close()

	var body verifyResponse
	status := postJSON(t, srv.URL+"/v1/lineage/verify", ``, &body)
	assert.Equal(t, http.StatusOK, status)
	assert.NotNil(t, body.BrokenLinks)
	assert.Empty(t, body.BrokenLinks)
}

func TestRunAudit(t *testing.T) {
	a := &fakeAudits{entries: []domain.ComplianceEntry{
		{ID: "c1", Framework: domain.FrameworkDAMA, CheckName: "data_governance", Status: domain.StatusCompliant},
	}}
	srv := newTestServer(nil, nil, a)
	defer srv.Close()

	var body auditResponse
	status := postJSON(t, srv.URL+"/v1/audits", `{"framework":"DAMA"}`, &body)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, body.Entries, 1)
	assert.Equal(t, domain.FrameworkDAMA, body.Entries[0].Framework)
}

func TestRunAudit_Validation(t *testing.T) {
	srv := newTestServer(nil, nil, &fakeAudits{})
	defer srv.Close()

	var body errorBody
	status := postJSON(t, srv.URL+"/v1/audits", `{"framework":"SOX"}`, &body)
	assert.Equal(t, http.StatusBadRequest, status)

	status = postJSON(t, srv.URL+"/v1/audits", `{}`, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body.Message, "framework is required")
}

func TestListAudits(t *testing.T) {
	a := &fakeAudits{entries: []domain.ComplianceEntry{
		{ID: "c1", Framework: domain.FrameworkDQMF, Status: domain.StatusNonCompliant},
	}}
	srv := newTestServer(nil, nil, a)
	defer srv.Close()

	var body auditListResponse
	status := getJSON(t, srv.URL+"/v1/audits?framework=DQMF&status=non_compliant", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(1), body.Total)
	require.Len(t, body.Entries, 1)
}

func TestListAudits_BadMaxResults(t *testing.T) {
	srv := newTestServer(nil, nil, &fakeAudits{})
	defer srv.Close()

	var body errorBody
	status := getJSON(t, srv.URL+"/v1/audits?max_results=lots", &body)
	assert.Equal(t, http.StatusBadRequest, status)
}
