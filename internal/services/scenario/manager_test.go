package scenario

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfillment-sim/internal/domain"
)

func testGraph(t *testing.T) *domain.GraphVersion {
	t.Helper()
	g, err := domain.BuildInitial(
		[]domain.Node{{ID: "A"}, {ID: "B"}, {ID: "C"}},
		[]domain.Lane{
			{From: "A", To: "B", DistanceKm: 10, CostPerKg: 1, TransitMinutes: 15},
			{From: "B", To: "C", DistanceKm: 10, CostPerKg: 1, TransitMinutes: 15},
			{From: "A", To: "C", DistanceKm: 30, CostPerKg: 1, TransitMinutes: 40},
		},
	)
	require.NoError(t, err)
	return g
}

type recordingInvalidator struct {
	mu    sync.Mutex
	calls []struct {
		before  int64
		origins []string
	}
}

func (r *recordingInvalidator) Invalidate(before int64, origins []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, struct {
		before  int64
		origins []string
	}{before, origins})
}

func startManager(t *testing.T, inv Invalidator) (*Manager, context.Context) {
	t.Helper()
	m := NewManager(testGraph(t), inv)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go m.Run(ctx)
	return m, ctx
}

func TestApplyCommitsNewVersion(t *testing.T) {
	inv := &recordingInvalidator{}
	m, ctx := startManager(t, inv)

	commit, err := m.Apply(ctx, domain.ScenarioEvent{Type: domain.BlackoutNode, TargetNode: "B"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), commit.Version)
	assert.NotEmpty(t, commit.CommitID)
	assert.Equal(t, []string{"A", "B", "C"}, commit.Touched)

	g, err := m.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), g.Version())
	n, _ := g.Node("B")
	assert.False(t, n.Active)

	inv.mu.Lock()
	defer inv.mu.Unlock()
	require.Len(t, inv.calls, 1)
	assert.Equal(t, int64(1), inv.calls[0].before)
}

func TestApplyInvalidTargetLeavesGraphUnchanged(t *testing.T) {
	m, ctx := startManager(t, nil)

	_, err := m.Apply(ctx, domain.ScenarioEvent{Type: domain.BlackoutNode, TargetNode: "Z"})
	assert.ErrorIs(t, err, domain.ErrInvalidReference)

	g, err := m.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), g.Version())
}

func TestConcurrentAppliesAreSerialized(t *testing.T) {
	m, ctx := startManager(t, nil)

	events := []domain.ScenarioEvent{
		{Type: domain.BlackoutLane, TargetLane: &domain.LaneRef{From: "A", To: "B"}},
		{Type: domain.CapacityChange, TargetNode: "A", NewCapacity: 10},
		{Type: domain.CapacityChange, TargetNode: "B", NewCapacity: 20},
		{Type: domain.CapacityChange, TargetNode: "C", NewCapacity: 30},
	}

	var wg sync.WaitGroup
	versions := make(chan int64, len(events))
	for _, ev := range events {
		wg.Add(1)
		go func(ev domain.ScenarioEvent) {
			defer wg.Done()
			c, err := m.Apply(ctx, ev)
			assert.NoError(t, err)
			versions <- c.Version
		}(ev)
	}
	wg.Wait()
	close(versions)

	seen := map[int64]bool{}
	for v := range versions {
		seen[v] = true
	}
	// Serialized commits produce the dense version sequence 1..n with no
	// duplicates.
	for v := int64(1); v <= int64(len(events)); v++ {
		assert.True(t, seen[v], "missing version %d", v)
	}

	g, err := m.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(events)), g.Version())
}

func TestAtReturnsAuditVersions(t *testing.T) {
	m, ctx := startManager(t, nil)

	_, err := m.Apply(ctx, domain.ScenarioEvent{Type: domain.BlackoutNode, TargetNode: "B"})
	require.NoError(t, err)

	g0, err := m.At(ctx, 0)
	require.NoError(t, err)
	n, _ := g0.Node("B")
	assert.True(t, n.Active, "audit version must be unmutated")

	_, err = m.At(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrInvalidReference)
}

func TestSubscribersReceiveCommits(t *testing.T) {
	m, ctx := startManager(t, nil)
	sub := m.Subscribe()

	commit, err := m.Apply(ctx, domain.ScenarioEvent{Type: domain.CapacityChange, TargetNode: "A", NewCapacity: 1})
	require.NoError(t, err)

	select {
	case got := <-sub:
		assert.Equal(t, commit.CommitID, got.CommitID)
		assert.Equal(t, commit.Version, got.Version)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive commit")
	}
}

func TestStalePlans(t *testing.T) {
	g0 := testGraph(t)
	g1, err := g0.ApplyMutation(domain.ScenarioEvent{
		Type:       domain.BlackoutLane,
		TargetLane: &domain.LaneRef{From: "A", To: "B"},
	})
	require.NoError(t, err)

	plans := []domain.RoutePlan{
		{PackageID: "p1", Path: []string{"A", "B", "C"}},
		{PackageID: "p2", Path: []string{"A", "C"}},
	}

	stale := StalePlans(plans, g1)
	assert.Equal(t, []string{"p1"}, stale)
}
