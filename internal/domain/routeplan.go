package domain

// Represents the resolved delivery route for a single package under one
// graph version. A RoutePlan is immutable planning data: recomputation under
// a newer version produces a superseding plan, never an in-place edit.
type RoutePlan struct {
	PackageID           string
	GraphVersion        int64
	Path                []string // ordered node ids, length >= 2
	WeightKg            float64
	SLA                 SLACategory
	TotalDistanceKm     float64
	TotalCostUSD        float64
	TotalTransitMinutes float64
	SLACompliant        bool
}

// Traverses reports whether the plan's path visits the given node.
func (p RoutePlan) Traverses(nodeID string) bool {
	for _, id := range p.Path {
		if id == nodeID {
			return true
		}
	}
	return false
}

// UsesLane reports whether the plan's path crosses the given directed lane.
func (p RoutePlan) UsesLane(ref LaneRef) bool {
	for i := 0; i+1 < len(p.Path); i++ {
		if p.Path[i] == ref.From && p.Path[i+1] == ref.To {
			return true
		}
	}
	return false
}

// ValidUnder reports whether every node and consecutive lane on the plan's
// path is still active in the given graph version. A plan that fails this
// check is stale and must be re-resolved against the newer version.
func (p RoutePlan) ValidUnder(g *GraphVersion) bool {
	if len(p.Path) < 2 {
		return false
	}
	for _, id := range p.Path {
		n, ok := g.Node(id)
		if !ok || !n.Active {
			return false
		}
	}
	for i := 0; i+1 < len(p.Path); i++ {
		if !g.ActiveLane(p.Path[i], p.Path[i+1]) {
			return false
		}
	}
	return true
}
