package domain

import (
	"fmt"
	"math"
	"slices"
)

// GraphVersion is one immutable snapshot of the fulfillment network,
// identified by a monotonically increasing version number.
//
// Versions form an append-only sequence: ApplyMutation copies the node and
// lane sets with the mutation applied and never touches its base, so routing
// workers can keep reading a version while the next one is being built.
type GraphVersion struct {
	version int64
	nodes   map[string]Node
	lanes   map[LaneRef]Lane
	out     map[string][]Lane
}

// BuildInitial validates the node and lane lists and returns version 0
// with everything active. An empty node set is invalid core configuration
// and is fatal to the run.
func BuildInitial(nodes []Node, lanes []Lane) (*GraphVersion, error) {
	for i := range nodes {
		nodes[i].Active = true
	}
	for i := range lanes {
		lanes[i].Active = true
	}
	return RestoreVersion(0, nodes, lanes)
}

// RestoreVersion rebuilds a previously persisted snapshot, keeping the
// stored version number and per-node/per-lane active flags.
func RestoreVersion(version int64, nodes []Node, lanes []Lane) (*GraphVersion, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("build graph: node list must not be empty")
	}

	nodeSet := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("build graph: node with empty id")
		}
		if _, ok := nodeSet[n.ID]; ok {
			return nil, fmt.Errorf("build graph: duplicate node id %q", n.ID)
		}
		nodeSet[n.ID] = n
	}

	laneSet := make(map[LaneRef]Lane, len(lanes))
	for _, l := range lanes {
		if err := validateLane(nodeSet, l); err != nil {
			return nil, fmt.Errorf("build graph: %w", err)
		}
		laneSet[LaneRef{From: l.From, To: l.To}] = l
	}

	g := &GraphVersion{version: version, nodes: nodeSet, lanes: laneSet}
	g.rebuildAdjacency()
	return g, nil
}

func validateLane(nodes map[string]Node, l Lane) error {
	if _, ok := nodes[l.From]; !ok {
		return fmt.Errorf("lane %s->%s: %w: unknown origin node %q", l.From, l.To, ErrInvalidReference, l.From)
	}
	if _, ok := nodes[l.To]; !ok {
		return fmt.Errorf("lane %s->%s: %w: unknown destination node %q", l.From, l.To, ErrInvalidReference, l.To)
	}
	if l.DistanceKm < 0 || l.CostPerKg < 0 {
		return fmt.Errorf("lane %s->%s: distance and cost must be >= 0", l.From, l.To)
	}
	return nil
}

// ApplyMutation returns a new snapshot with the scenario event applied.
// The receiver is never modified. The returned version is always strictly
// greater than the base version.
func (g *GraphVersion) ApplyMutation(ev ScenarioEvent) (*GraphVersion, error) {
	next := &GraphVersion{
		version: g.version + 1,
		nodes:   make(map[string]Node, len(g.nodes)),
		lanes:   make(map[LaneRef]Lane, len(g.lanes)),
	}
	for id, n := range g.nodes {
		next.nodes[id] = n
	}
	for ref, l := range g.lanes {
		next.lanes[ref] = l
	}

	switch ev.Type {
	case BlackoutNode:
		n, ok := next.nodes[ev.TargetNode]
		if !ok {
			return nil, fmt.Errorf("apply mutation: %w: unknown node %q", ErrInvalidReference, ev.TargetNode)
		}
		n.Active = false
		next.nodes[ev.TargetNode] = n
		// Deactivating a node also deactivates its incident lanes so path
		// search never has to consult node state mid-traversal.
		for ref, l := range next.lanes {
			if ref.From == ev.TargetNode || ref.To == ev.TargetNode {
				l.Active = false
				next.lanes[ref] = l
			}
		}

	case BlackoutLane:
		if ev.TargetLane == nil {
			return nil, fmt.Errorf("apply mutation: %w: BLACKOUT_EDGE requires a target lane", ErrInvalidReference)
		}
		l, ok := next.lanes[*ev.TargetLane]
		if !ok {
			return nil, fmt.Errorf("apply mutation: %w: unknown lane %s->%s", ErrInvalidReference, ev.TargetLane.From, ev.TargetLane.To)
		}
		l.Active = false
		next.lanes[*ev.TargetLane] = l

	case CapacityChange:
		n, ok := next.nodes[ev.TargetNode]
		if !ok {
			return nil, fmt.Errorf("apply mutation: %w: unknown node %q", ErrInvalidReference, ev.TargetNode)
		}
		if ev.NewCapacity < 0 {
			return nil, fmt.Errorf("apply mutation: capacity must be >= 0, got %d", ev.NewCapacity)
		}
		n.DailyCapacity = ev.NewCapacity
		next.nodes[ev.TargetNode] = n

	case VolumeSurge:
		n, ok := next.nodes[ev.TargetNode]
		if !ok {
			return nil, fmt.Errorf("apply mutation: %w: unknown node %q", ErrInvalidReference, ev.TargetNode)
		}
		if ev.SurgeFactor <= 0 {
			return nil, fmt.Errorf("apply mutation: surge factor must be > 0, got %g", ev.SurgeFactor)
		}
		// A surge shrinks the node's effective capacity for overload
		// accounting; the topology is unchanged.
		n.DailyCapacity = int(math.Floor(float64(n.DailyCapacity) / ev.SurgeFactor))
		next.nodes[ev.TargetNode] = n

	default:
		return nil, fmt.Errorf("apply mutation: %w: unknown event type %q", ErrInvalidReference, ev.Type)
	}

	next.rebuildAdjacency()
	return next, nil
}

// rebuildAdjacency indexes active lanes by origin, sorted by destination id
// so traversal order is deterministic.
func (g *GraphVersion) rebuildAdjacency() {
	g.out = make(map[string][]Lane, len(g.nodes))
	for _, l := range g.lanes {
		if !l.Active {
			continue
		}
		g.out[l.From] = append(g.out[l.From], l)
	}
	for from := range g.out {
		slices.SortFunc(g.out[from], func(a, b Lane) int {
			if a.To < b.To {
				return -1
			}
			if a.To > b.To {
				return 1
			}
			return 0
		})
	}
}

// Version returns the snapshot's monotonically increasing version number.
func (g *GraphVersion) Version() int64 { return g.version }

// Node returns the node with the given id, if present.
func (g *GraphVersion) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Out returns the active lanes leaving the given node, ordered by
// destination id. Callers must not modify the returned slice.
func (g *GraphVersion) Out(from string) []Lane { return g.out[from] }

// Lane returns the lane with the given endpoints, active or not.
func (g *GraphVersion) Lane(ref LaneRef) (Lane, bool) {
	l, ok := g.lanes[ref]
	return l, ok
}

// ActiveLane reports whether an active lane runs from one node to another.
func (g *GraphVersion) ActiveLane(from, to string) bool {
	l, ok := g.lanes[LaneRef{From: from, To: to}]
	return ok && l.Active
}

// NodeIDs returns all node ids sorted lexicographically.
func (g *GraphVersion) NodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// NodeCount returns the number of nodes in the snapshot.
func (g *GraphVersion) NodeCount() int { return len(g.nodes) }

// Lanes returns every lane in the snapshot, active or not, in no
// particular order.
func (g *GraphVersion) Lanes() []Lane {
	out := make([]Lane, 0, len(g.lanes))
	for _, l := range g.lanes {
		out = append(out, l)
	}
	return out
}

// TouchedBy returns the node ids whose local reachability an event changes:
// the target node and its direct neighbors for node events, the lane
// endpoints for lane events. Full transitive invalidation is the caller's
// concern.
func (g *GraphVersion) TouchedBy(ev ScenarioEvent) []string {
	touched := make(map[string]struct{})
	switch ev.Type {
	case BlackoutNode:
		touched[ev.TargetNode] = struct{}{}
		for ref := range g.lanes {
			if ref.From == ev.TargetNode {
				touched[ref.To] = struct{}{}
			}
			if ref.To == ev.TargetNode {
				touched[ref.From] = struct{}{}
			}
		}
	case BlackoutLane:
		if ev.TargetLane != nil {
			touched[ev.TargetLane.From] = struct{}{}
			touched[ev.TargetLane.To] = struct{}{}
		}
	case CapacityChange, VolumeSurge:
		touched[ev.TargetNode] = struct{}{}
	}

	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
