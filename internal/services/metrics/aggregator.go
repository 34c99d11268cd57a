package metrics

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"fulfillment-sim/internal/domain"
)

type nodeAgg struct {
	packages     int
	intermediate int
	weightKg     float64
}

type laneAgg struct {
	plans    int
	weightKg float64
}

type slaAgg struct {
	total     int
	compliant int
}

// Aggregator accumulates per-node load, per-lane utilization, SLA
// compliance and path statistics from a stream of route plans.
//
// Counters are keyed by package: observing a superseding plan for a package
// first retracts the superseded plan's contribution, so re-resolutions
// after scenario commits never double-count. Snapshot returns a consistent
// point-in-time view; no partial update is visible inside one snapshot.
type Aggregator struct {
	mu    sync.Mutex
	graph *domain.GraphVersion

	plans map[string]domain.RoutePlan
	nodes map[string]*nodeAgg
	lanes map[domain.LaneRef]*laneAgg
	sla   map[domain.SLACategory]*slaAgg

	totalDistanceKm  float64
	totalCostUSD     float64
	totalTransitMins float64

	undeliverable int
	malformed     int
	failed        int
}

// NewAggregator returns an empty aggregator reporting against the given
// graph version's capacities.
func NewAggregator(g *domain.GraphVersion) *Aggregator {
	return &Aggregator{
		graph: g,
		plans: make(map[string]domain.RoutePlan),
		nodes: make(map[string]*nodeAgg),
		lanes: make(map[domain.LaneRef]*laneAgg),
		sla:   make(map[domain.SLACategory]*slaAgg),
	}
}

// SetGraph switches overload accounting to a newer graph version's
// capacities. Accumulated counters carry across versions within a period.
func (a *Aggregator) SetGraph(g *domain.GraphVersion) {
	a.mu.Lock()
	a.graph = g
	a.mu.Unlock()
}

// ObservePlan folds one resolved plan into the running counters,
// retracting any earlier plan for the same package first.
func (a *Aggregator) ObservePlan(p domain.RoutePlan) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if old, ok := a.plans[p.PackageID]; ok {
		a.apply(old, -1)
	}
	a.plans[p.PackageID] = p
	a.apply(p, +1)
}

// ObserveFailure records a per-package failure, classified by the domain
// sentinels. A failure retracts the package's superseded plan if one was
// counted: a package yields exactly one outcome.
func (a *Aggregator) ObserveFailure(packageID string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if old, ok := a.plans[packageID]; ok {
		a.apply(old, -1)
		delete(a.plans, packageID)
	}

	switch {
	case errors.Is(err, domain.ErrMalformedRecord):
		a.malformed++
	case errors.Is(err, domain.ErrUnreachable):
		a.undeliverable++
	default:
		a.failed++
	}
}

// apply folds one plan into the counters with sign +1 or -1.
func (a *Aggregator) apply(p domain.RoutePlan, sign int) {
	f := float64(sign)

	for i, id := range p.Path {
		n := a.nodes[id]
		if n == nil {
			n = &nodeAgg{}
			a.nodes[id] = n
		}
		n.packages += sign
		n.weightKg += f * p.WeightKg
		if i > 0 && i < len(p.Path)-1 {
			n.intermediate += sign
		}
	}

	for i := 0; i+1 < len(p.Path); i++ {
		ref := domain.LaneRef{From: p.Path[i], To: p.Path[i+1]}
		l := a.lanes[ref]
		if l == nil {
			l = &laneAgg{}
			a.lanes[ref] = l
		}
		l.plans += sign
		l.weightKg += f * p.WeightKg
	}

	s := a.sla[p.SLA]
	if s == nil {
		s = &slaAgg{}
		a.sla[p.SLA] = s
	}
	s.total += sign
	if p.SLACompliant {
		s.compliant += sign
	}

	a.totalDistanceKm += f * p.TotalDistanceKm
	a.totalCostUSD += f * p.TotalCostUSD
	a.totalTransitMins += f * p.TotalTransitMinutes
}

// Snapshot returns a consistent point-in-time view of every counter. A
// node is overloaded when its running package count for the period exceeds
// its daily capacity under the reporting graph version.
func (a *Aggregator) Snapshot() domain.MetricsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := domain.MetricsSnapshot{
		ID:            uuid.NewString(),
		TakenAt:       time.Now().UTC(),
		Plans:         len(a.plans),
		Undeliverable: a.undeliverable,
		Malformed:     a.malformed,
		Failed:        a.failed,
	}
	if a.graph != nil {
		snap.GraphVersion = a.graph.Version()
	}

	if n := len(a.plans); n > 0 {
		snap.AvgDistanceKm = a.totalDistanceKm / float64(n)
		snap.AvgCostUSD = a.totalCostUSD / float64(n)
		snap.AvgTransitMinutes = a.totalTransitMins / float64(n)
	}

	for id, n := range a.nodes {
		if n.packages == 0 && n.intermediate == 0 {
			continue
		}
		load := domain.NodeLoad{
			NodeID:        id,
			Packages:      n.packages,
			Intermediate:  n.intermediate,
			TotalWeightKg: n.weightKg,
		}
		if a.graph != nil {
			if node, ok := a.graph.Node(id); ok {
				load.DailyCapacity = node.DailyCapacity
				load.Overloaded = node.DailyCapacity > 0 && n.packages > node.DailyCapacity
			}
		}
		snap.Nodes = append(snap.Nodes, load)
	}
	slices.SortFunc(snap.Nodes, func(x, y domain.NodeLoad) int {
		if x.NodeID < y.NodeID {
			return -1
		}
		if x.NodeID > y.NodeID {
			return 1
		}
		return 0
	})

	for ref, l := range a.lanes {
		if l.plans == 0 {
			continue
		}
		snap.Lanes = append(snap.Lanes, domain.LaneUtilization{
			From:          ref.From,
			To:            ref.To,
			Plans:         l.plans,
			TotalWeightKg: l.weightKg,
		})
	}
	slices.SortFunc(snap.Lanes, func(x, y domain.LaneUtilization) int {
		if x.From != y.From {
			if x.From < y.From {
				return -1
			}
			return 1
		}
		if x.To < y.To {
			return -1
		}
		if x.To > y.To {
			return 1
		}
		return 0
	})

	for cat, s := range a.sla {
		if s.total == 0 {
			continue
		}
		snap.SLA = append(snap.SLA, domain.SLAStat{
			Category:  cat,
			Total:     s.total,
			Compliant: s.compliant,
			Ratio:     float64(s.compliant) / float64(s.total),
		})
	}
	slices.SortFunc(snap.SLA, func(x, y domain.SLAStat) int {
		if x.Category < y.Category {
			return -1
		}
		if x.Category > y.Category {
			return 1
		}
		return 0
	})

	return snap
}
