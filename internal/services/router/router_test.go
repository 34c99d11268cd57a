package router

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfillment-sim/internal/domain"
	"fulfillment-sim/internal/services/resolver"
)

// sliceSource serves package records from memory. Entries with a non-nil
// error simulate malformed records at the ingestion boundary.
type sliceSource struct {
	mu      sync.Mutex
	records []sourceRecord
}

type sourceRecord struct {
	pkg domain.Package
	err error
}

func (s *sliceSource) Next(ctx context.Context) (*domain.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return nil, io.EOF
	}
	rec := s.records[0]
	s.records = s.records[1:]
	if rec.err != nil {
		return nil, rec.err
	}
	pkg := rec.pkg
	return &pkg, nil
}

func sourceOf(pkgs ...domain.Package) *sliceSource {
	s := &sliceSource{}
	for _, p := range pkgs {
		s.records = append(s.records, sourceRecord{pkg: p})
	}
	return s
}

func triangleGraph(t *testing.T) *domain.GraphVersion {
	t.Helper()
	g, err := domain.BuildInitial(
		[]domain.Node{{ID: "A", DailyCapacity: 100}, {ID: "B", DailyCapacity: 100}, {ID: "C", DailyCapacity: 100}},
		[]domain.Lane{
			{From: "A", To: "B", DistanceKm: 10, CostPerKg: 1, TransitMinutes: 15},
			{From: "B", To: "C", DistanceKm: 10, CostPerKg: 1, TransitMinutes: 15},
			{From: "A", To: "C", DistanceKm: 30, CostPerKg: 1, TransitMinutes: 40},
		},
	)
	require.NoError(t, err)
	return g
}

type collector struct {
	mu      sync.Mutex
	results []Result
}

func (c *collector) emit(res Result) {
	c.mu.Lock()
	c.results = append(c.results, res)
	c.mu.Unlock()
}

func (c *collector) byID(id string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.results {
		if r.PackageID == id {
			return r, true
		}
	}
	return Result{}, false
}

func TestRouteBatchOneResultPerPackage(t *testing.T) {
	g := triangleGraph(t)
	r := New(resolver.New(resolver.DefaultWeights()), DefaultConfig())

	var pkgs []domain.Package
	for i := 0; i < 50; i++ {
		pkgs = append(pkgs, domain.Package{
			ID:          fmt.Sprintf("p%02d", i),
			Origin:      "A",
			Destination: "C",
			WeightKg:    1,
			SLA:         domain.SLAStandard,
		})
	}

	c := &collector{}
	sum, err := r.RouteBatch(context.Background(), g, sourceOf(pkgs...), c.emit)
	require.NoError(t, err)

	assert.Equal(t, 50, sum.Routed)
	assert.Len(t, c.results, 50)

	seen := map[string]int{}
	for _, res := range c.results {
		seen[res.PackageID]++
		require.NotNil(t, res.Plan)
		assert.Equal(t, []string{"A", "B", "C"}, res.Plan.Path)
		assert.Equal(t, int64(0), res.Plan.GraphVersion)
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "package %s emitted %d results", id, n)
	}

	// All fifty packages share one origin: exactly one tree computation.
	assert.Equal(t, 1, r.resolver.CachedTrees())
}

func TestRouteBatchSkipsMalformedAndContinues(t *testing.T) {
	g := triangleGraph(t)
	r := New(resolver.New(resolver.DefaultWeights()), DefaultConfig())

	src := &sliceSource{records: []sourceRecord{
		{pkg: domain.Package{ID: "good1", Origin: "A", Destination: "C", WeightKg: 1, SLA: domain.SLAStandard}},
		{err: fmt.Errorf("%w: weight field missing", domain.ErrMalformedRecord)},
		{pkg: domain.Package{ID: "badweight", Origin: "A", Destination: "C", WeightKg: -1, SLA: domain.SLAStandard}},
		{pkg: domain.Package{ID: "good2", Origin: "B", Destination: "C", WeightKg: 2, SLA: domain.SLAExpress}},
	}}

	c := &collector{}
	sum, err := r.RouteBatch(context.Background(), g, src, c.emit)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Routed)
	assert.Equal(t, 2, sum.Malformed)
	assert.Equal(t, 0, sum.Failed)
}

func TestRouteBatchRecordsUnreachableWithoutAborting(t *testing.T) {
	g0 := triangleGraph(t)
	g1, err := g0.ApplyMutation(domain.ScenarioEvent{Type: domain.BlackoutNode, TargetNode: "C"})
	require.NoError(t, err)

	r := New(resolver.New(resolver.DefaultWeights()), DefaultConfig())
	c := &collector{}
	sum, err := r.RouteBatch(context.Background(), g1, sourceOf(
		domain.Package{ID: "doomed", Origin: "A", Destination: "C", WeightKg: 1, SLA: domain.SLAStandard},
		domain.Package{ID: "fine", Origin: "A", Destination: "B", WeightKg: 1, SLA: domain.SLAStandard},
	), c.emit)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Routed)
	assert.Equal(t, 1, sum.Undeliverable)

	res, ok := c.byID("doomed")
	require.True(t, ok)
	assert.ErrorIs(t, res.Err, domain.ErrUnreachable)
}

func TestRouteBatchSetsSLACompliance(t *testing.T) {
	g := triangleGraph(t)
	cfg := DefaultConfig()
	cfg.Thresholds = domain.SLAThresholds{
		domain.SLAExpress:  60,
		domain.SLAStandard: 10,
	}
	r := New(resolver.New(resolver.DefaultWeights()), cfg)

	c := &collector{}
	_, err := r.RouteBatch(context.Background(), g, sourceOf(
		// A->B->C takes 30 transit minutes: within 60 but beyond 10.
		domain.Package{ID: "exp", Origin: "A", Destination: "C", WeightKg: 1, SLA: domain.SLAExpress},
		domain.Package{ID: "std", Origin: "A", Destination: "C", WeightKg: 1, SLA: domain.SLAStandard},
	), c.emit)
	require.NoError(t, err)

	exp, ok := c.byID("exp")
	require.True(t, ok)
	assert.True(t, exp.Plan.SLACompliant)

	std, ok := c.byID("std")
	require.True(t, ok)
	assert.False(t, std.Plan.SLACompliant)
}

func TestRerouteOnlyStalePlans(t *testing.T) {
	g0 := triangleGraph(t)
	r := New(resolver.New(resolver.DefaultWeights()), DefaultConfig())

	c := &collector{}
	_, err := r.RouteBatch(context.Background(), g0, sourceOf(
		domain.Package{ID: "viaB", Origin: "A", Destination: "C", WeightKg: 1, SLA: domain.SLAStandard},
		domain.Package{ID: "toB", Origin: "A", Destination: "B", WeightKg: 1, SLA: domain.SLAStandard},
	), c.emit)
	require.NoError(t, err)

	g1, err := g0.ApplyMutation(domain.ScenarioEvent{
		Type:       domain.BlackoutLane,
		TargetLane: &domain.LaneRef{From: "B", To: "C"},
	})
	require.NoError(t, err)

	rc := &collector{}
	n, err := r.Reroute(context.Background(), g1, rc.emit)
	require.NoError(t, err)

	// Only viaB crossed the blacked-out lane.
	assert.Equal(t, 1, n)
	require.Len(t, rc.results, 1)
	res := rc.results[0]
	assert.Equal(t, "viaB", res.PackageID)
	require.NotNil(t, res.Plan)
	assert.Equal(t, []string{"A", "C"}, res.Plan.Path)
	assert.Equal(t, int64(1), res.Plan.GraphVersion)
}

func TestRerouteExhaustsRetryBudget(t *testing.T) {
	// Four parallel routes A->C; each commit breaks the one the current
	// plan uses, forcing a fresh re-resolution every time.
	g, err := domain.BuildInitial(
		[]domain.Node{{ID: "A"}, {ID: "B1"}, {ID: "B2"}, {ID: "B3"}, {ID: "C"}},
		[]domain.Lane{
			{From: "A", To: "B1", DistanceKm: 5, CostPerKg: 1, TransitMinutes: 5},
			{From: "B1", To: "C", DistanceKm: 5, CostPerKg: 1, TransitMinutes: 5},
			{From: "A", To: "B2", DistanceKm: 10, CostPerKg: 1, TransitMinutes: 10},
			{From: "B2", To: "C", DistanceKm: 10, CostPerKg: 1, TransitMinutes: 10},
			{From: "A", To: "B3", DistanceKm: 15, CostPerKg: 1, TransitMinutes: 15},
			{From: "B3", To: "C", DistanceKm: 15, CostPerKg: 1, TransitMinutes: 15},
			{From: "A", To: "C", DistanceKm: 50, CostPerKg: 1, TransitMinutes: 50},
		},
	)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.MaxRetries = 2
	r := New(resolver.New(resolver.DefaultWeights()), cfg)

	c := &collector{}
	_, err = r.RouteBatch(context.Background(), g, sourceOf(
		domain.Package{ID: "p1", Origin: "A", Destination: "C", WeightKg: 1, SLA: domain.SLAStandard},
	), c.emit)
	require.NoError(t, err)

	var last Result
	for _, hub := range []string{"B1", "B2", "B3"} {
		next, err := g.ApplyMutation(domain.ScenarioEvent{
			Type:       domain.BlackoutLane,
			TargetLane: &domain.LaneRef{From: hub, To: "C"},
		})
		require.NoError(t, err)
		g = next

		rc := &collector{}
		_, err = r.Reroute(context.Background(), g, rc.emit)
		require.NoError(t, err)
		require.Len(t, rc.results, 1)
		last = rc.results[0]
	}

	// Attempts one and two re-resolved; the third exceeds the budget.
	assert.ErrorIs(t, last.Err, domain.ErrRoutingFailed)
}
