package resolver

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"fulfillment-sim/internal/domain"
)

// Weights configure the composite lane cost:
// Distance*distanceKm + Cost*costPerKg + Transit*transitMinutes.
type Weights struct {
	Distance float64
	Cost     float64
	Transit  float64
}

// DefaultWeights returns the production coefficients: 0.5 per km, 0.2 per
// dollar-per-kg of lane cost, 0.1 per transit minute.
func DefaultWeights() Weights {
	return Weights{Distance: 0.5, Cost: 0.2, Transit: 0.1}
}

// Resolution is the outcome of resolving one package's path.
type Resolution struct {
	Path                []string
	TotalDistanceKm     float64
	TotalCostUSD        float64
	TotalTransitMinutes float64
}

type treeKey struct {
	version int64
	origin  string
}

// Resolver computes least-cost paths over graph versions, caching one
// shortest-path tree per (graphVersion, origin). Tree population is
// single-flight: under concurrent callers for the same key, the first
// computes and the rest wait on that result.
//
// Trees are weighted with weightFactor 1; per-package monetary cost is
// derived post-hoc from the tree's cost-per-kg component, so packages
// sharing an origin under one version reuse the same tree regardless of
// weight.
type Resolver struct {
	weights Weights

	mu    sync.RWMutex
	trees map[treeKey]*Tree
	group singleflight.Group
}

// New returns a Resolver using the given composite weights.
func New(w Weights) *Resolver {
	return &Resolver{
		weights: w,
		trees:   make(map[treeKey]*Tree),
	}
}

// TreeFor returns the shortest-path tree for (g.Version(), origin),
// computing it at most once even under concurrent callers.
func (r *Resolver) TreeFor(ctx context.Context, g *domain.GraphVersion, origin string) (*Tree, error) {
	if _, ok := g.Node(origin); !ok {
		return nil, fmt.Errorf("resolve: %w: unknown origin node %q", domain.ErrInvalidReference, origin)
	}

	key := treeKey{version: g.Version(), origin: origin}

	r.mu.RLock()
	t, ok := r.trees[key]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}

	// In-flight computations are not preempted: losers of the race block on
	// the winner's result rather than starting their own Dijkstra run.
	v, err, _ := r.group.Do(fmt.Sprintf("%d|%s", key.version, key.origin), func() (any, error) {
		r.mu.RLock()
		t, ok := r.trees[key]
		r.mu.RUnlock()
		if ok {
			return t, nil
		}

		t = computeTree(g, origin, r.weights)

		r.mu.Lock()
		r.trees[key] = t
		r.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Tree), nil
}

// Resolve computes the least-cost path for one package. Monetary cost is
// the path's accumulated cost-per-kg times weightKg. An unknown origin or
// destination fails with ErrInvalidReference; a destination missing from
// the tree fails with ErrUnreachable, which the caller records as an
// undeliverable package rather than aborting the batch.
func (r *Resolver) Resolve(ctx context.Context, g *domain.GraphVersion, originID, destinationID string, weightKg float64) (Resolution, error) {
	if _, ok := g.Node(destinationID); !ok {
		return Resolution{}, fmt.Errorf("resolve: %w: unknown destination node %q", domain.ErrInvalidReference, destinationID)
	}

	t, err := r.TreeFor(ctx, g, originID)
	if err != nil {
		return Resolution{}, err
	}

	path, ok := t.PathTo(destinationID)
	if !ok || len(path) < 2 {
		return Resolution{}, fmt.Errorf("resolve: %s -> %s under version %d: %w",
			originID, destinationID, g.Version(), domain.ErrUnreachable)
	}

	distanceKm, costPerKg, transitMin, _, _ := t.Totals(destinationID)
	return Resolution{
		Path:                path,
		TotalDistanceKm:     distanceKm,
		TotalCostUSD:        costPerKg * weightKg,
		TotalTransitMinutes: transitMin,
	}, nil
}

// Invalidate drops cached trees for the given origins at versions older
// than the superseding version. Trees for other origins stay valid: a
// commit that never touched a source's outgoing lanes does not change its
// tree. There is no implicit reuse across versions either way; a new
// version key always computes fresh.
func (r *Resolver) Invalidate(supersededBefore int64, origins []string) {
	if len(origins) == 0 {
		return
	}
	affected := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		affected[o] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.trees {
		if key.version >= supersededBefore {
			continue
		}
		if _, ok := affected[key.origin]; ok {
			delete(r.trees, key)
		}
	}
}

// CachedTrees reports how many trees the cache currently holds.
func (r *Resolver) CachedTrees() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.trees)
}
