package resolver

import (
	"container/heap"
	"slices"

	"fulfillment-sim/internal/domain"
)

// Tree is a full shortest-path tree from one origin under one graph
// version: composite weight, per-component totals, and predecessor links
// for every reachable node. Trees are immutable once computed and shared by
// every package routed from the same origin under the same version.
type Tree struct {
	GraphVersion int64
	Origin       string
	reach        map[string]treeEntry
}

type treeEntry struct {
	weight     float64 // composite weight from the origin
	distanceKm float64
	costPerKg  float64 // monetary cost of the path per kg carried
	transitMin float64
	hops       int
	prev       string // predecessor node id, "" at the origin
}

// PathTo reconstructs the path from the tree's origin to dest. The second
// return reports whether dest is reachable at all.
func (t *Tree) PathTo(dest string) ([]string, bool) {
	if _, ok := t.reach[dest]; !ok {
		return nil, false
	}
	var path []string
	for at := dest; at != ""; at = t.reach[at].prev {
		path = append(path, at)
	}
	slices.Reverse(path)
	return path, true
}

// Totals returns the accumulated distance, cost-per-kg, transit minutes and
// hop count to dest.
func (t *Tree) Totals(dest string) (distanceKm, costPerKg, transitMin float64, hops int, ok bool) {
	e, ok := t.reach[dest]
	if !ok {
		return 0, 0, 0, 0, false
	}
	return e.distanceKm, e.costPerKg, e.transitMin, e.hops, true
}

// Reachable returns the ids of all nodes reachable from the origin, sorted.
func (t *Tree) Reachable() []string {
	ids := make([]string, 0, len(t.reach))
	for id := range t.reach {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// computeTree runs Dijkstra over the active lanes of one graph version,
// weighting each lane by the configured composite weight. Ties are broken
// by fewer hops, then by the lexicographically smaller path-node-id
// sequence, so equal-cost alternatives resolve identically on every run.
func computeTree(g *domain.GraphVersion, origin string, w Weights) *Tree {
	t := &Tree{
		GraphVersion: g.Version(),
		Origin:       origin,
		reach:        map[string]treeEntry{origin: {}},
	}

	pq := &laneQueue{}
	heap.Init(pq)
	heap.Push(pq, queued{node: origin})

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(queued)
		have := t.reach[cur.node]
		// Skip entries superseded by a better relaxation since they were
		// queued.
		if cur.weight != have.weight || cur.hops != have.hops {
			continue
		}

		for _, lane := range g.Out(cur.node) {
			// A lane's monetary cost scales with its length: hauling one kg
			// over the lane costs DistanceKm * CostPerKg.
			laneCost := lane.DistanceKm * lane.CostPerKg
			cand := treeEntry{
				weight:     have.weight + w.Distance*lane.DistanceKm + w.Cost*laneCost + w.Transit*lane.TransitMinutes,
				distanceKm: have.distanceKm + lane.DistanceKm,
				costPerKg:  have.costPerKg + laneCost,
				transitMin: have.transitMin + lane.TransitMinutes,
				hops:       have.hops + 1,
				prev:       cur.node,
			}

			existing, seen := t.reach[lane.To]
			if seen && !t.better(cand, existing, lane.To) {
				continue
			}
			t.reach[lane.To] = cand
			heap.Push(pq, queued{node: lane.To, weight: cand.weight, hops: cand.hops})
		}
	}

	return t
}

// better reports whether the candidate entry beats the existing one under
// the tie-break order: lower weight, fewer hops, lexicographically smaller
// path. The shared final node is irrelevant to the path comparison, so the
// predecessors' paths are compared instead.
func (t *Tree) better(cand, existing treeEntry, node string) bool {
	if cand.weight != existing.weight {
		return cand.weight < existing.weight
	}
	if cand.hops != existing.hops {
		return cand.hops < existing.hops
	}
	candPath := t.pathVia(cand.prev)
	existingPath := t.pathVia(existing.prev)
	return slices.Compare(candPath, existingPath) < 0
}

func (t *Tree) pathVia(prev string) []string {
	var path []string
	for at := prev; at != ""; at = t.reach[at].prev {
		path = append(path, at)
	}
	slices.Reverse(path)
	return path
}

// queued is a pending Dijkstra visit. Equal-weight entries pop in
// (hops, node id) order to keep traversal deterministic.
type queued struct {
	node   string
	weight float64
	hops   int
}

type laneQueue []queued

func (q laneQueue) Len() int { return len(q) }

func (q laneQueue) Less(i, j int) bool {
	if q[i].weight != q[j].weight {
		return q[i].weight < q[j].weight
	}
	if q[i].hops != q[j].hops {
		return q[i].hops < q[j].hops
	}
	return q[i].node < q[j].node
}

func (q laneQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *laneQueue) Push(x any) { *q = append(*q, x.(queued)) }

func (q *laneQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
