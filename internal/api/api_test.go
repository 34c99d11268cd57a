package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fulfillment-sim/internal/domain"
	"fulfillment-sim/internal/services/metrics"
	"fulfillment-sim/internal/services/scenario"
)

type memPlanStore struct {
	plans []domain.RoutePlan
}

func (s *memPlanStore) WritePlans(ctx context.Context, plans []domain.RoutePlan) error {
	s.plans = append(s.plans, plans...)
	return nil
}

func (s *memPlanStore) RecentPlans(ctx context.Context, limit int) ([]domain.RoutePlan, error) {
	if limit > len(s.plans) {
		limit = len(s.plans)
	}
	return s.plans[:limit], nil
}

func newTestServer(t *testing.T) (*httptest.Server, *memPlanStore, *scenario.Manager) {
	t.Helper()

	g, err := domain.BuildInitial(
		[]domain.Node{
			{ID: "A", Location: "PHX", Type: "warehouse", DailyCapacity: 100},
			{ID: "B", Location: "TUS", Type: "hub", DailyCapacity: 50},
		},
		[]domain.Lane{
			{From: "A", To: "B", DistanceKm: 10, CostPerKg: 1, TransitMinutes: 15},
		},
	)
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}

	mgr := scenario.NewManager(g, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go mgr.Run(ctx)

	store := &memPlanStore{}
	agg := metrics.NewAggregator(g)

	srv := httptest.NewServer(NewRouter(store, agg, mgr))
	t.Cleanup(srv.Close)
	return srv, store, mgr
}

func TestHealthReportsGraphVersion(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("status field = %v", body["status"])
	}
	if body["graph_version"] != float64(0) {
		t.Fatalf("graph_version = %v", body["graph_version"])
	}
}

func TestListPlans(t *testing.T) {
	srv, store, _ := newTestServer(t)
	store.plans = []domain.RoutePlan{
		{PackageID: "p1", Path: []string{"A", "B"}, SLA: domain.SLAExpress, SLACompliant: true},
	}

	resp, err := http.Get(srv.URL + "/plans?limit=10")
	if err != nil {
		t.Fatalf("get /plans: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Plans []struct {
			PackageID   string `json:"package_id"`
			SLACategory string `json:"sla_category"`
		} `json:"plans"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Plans) != 1 || body.Plans[0].PackageID != "p1" || body.Plans[0].SLACategory != "EXPRESS" {
		t.Fatalf("plans = %+v", body.Plans)
	}
}

func TestListPlansRejectsBadLimit(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/plans?limit=nope")
	if err != nil {
		t.Fatalf("get /plans: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestApplyScenario(t *testing.T) {
	srv, _, mgr := newTestServer(t)

	body := `{"type":"BLACKOUT_NODE","target_node":"B"}`
	resp, err := http.Post(srv.URL+"/scenarios", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post /scenarios: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var res struct {
		CommitID     string   `json:"commit_id"`
		GraphVersion int64    `json:"graph_version"`
		TouchedNodes []string `json:"touched_nodes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.GraphVersion != 1 || res.CommitID == "" {
		t.Fatalf("response = %+v", res)
	}

	g, err := mgr.Current(context.Background())
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if n, _ := g.Node("B"); n.Active {
		t.Fatal("node B should be inactive after blackout")
	}
}

func TestApplyScenarioUnknownTarget(t *testing.T) {
	srv, _, _ := newTestServer(t)

	body := `{"type":"BLACKOUT_NODE","target_node":"Z"}`
	resp, err := http.Post(srv.URL+"/scenarios", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post /scenarios: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/snapshot")
	if err != nil {
		t.Fatalf("get /snapshot: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		SnapshotID   string `json:"snapshot_id"`
		GraphVersion int64  `json:"graph_version"`
		Plans        int    `json:"plans"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.SnapshotID == "" || body.Plans != 0 {
		t.Fatalf("snapshot = %+v", body)
	}
}
