package router

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"fulfillment-sim/internal/domain"
	"fulfillment-sim/internal/ports"
	"fulfillment-sim/internal/services/resolver"
)

// Config tunes the batch router.
type Config struct {
	Workers    int // fixed worker pool size
	MaxRetries int // staleness re-resolution attempts before RoutingFailed
	Thresholds domain.SLAThresholds
}

// DefaultConfig returns the production defaults: 8 workers, 3 retries,
// standard SLA windows.
func DefaultConfig() Config {
	return Config{
		Workers:    8,
		MaxRetries: 3,
		Thresholds: domain.DefaultSLAThresholds(),
	}
}

// Result is the outcome for one package: exactly one of Plan or Err is set.
// Err classifies via the domain sentinels (malformed, unreachable,
// routing failed).
type Result struct {
	PackageID string
	Plan      *domain.RoutePlan
	Err       error
}

// Summary counts batch outcomes.
type Summary struct {
	Routed        int
	Undeliverable int
	Malformed     int
	Failed        int
}

// Router resolves paths for streams of packages against an explicit graph
// version, partitioning work across a fixed pool keyed by origin node so
// every worker routing from one origin shares that origin's cached tree.
// No cross-package output ordering is guaranteed; each package yields
// exactly one Result per invocation.
type Router struct {
	cfg      Config
	resolver *resolver.Resolver

	mu       sync.Mutex
	plans    map[string]domain.RoutePlan
	packages map[string]domain.Package
	attempts map[string]int
}

// New returns a Router backed by the given resolver. Zero config fields
// fall back to defaults.
func New(res *resolver.Resolver, cfg Config) *Router {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if cfg.Thresholds == nil {
		cfg.Thresholds = domain.DefaultSLAThresholds()
	}
	return &Router{
		cfg:      cfg,
		resolver: res,
		plans:    make(map[string]domain.RoutePlan),
		packages: make(map[string]domain.Package),
		attempts: make(map[string]int),
	}
}

// RouteBatch consumes the package source to exhaustion against one graph
// version. emit is invoked once per package, from multiple goroutines but
// never concurrently. Per-package errors never abort the batch; only a
// source failure other than end-of-stream does.
func (r *Router) RouteBatch(ctx context.Context, g *domain.GraphVersion, src ports.PackageSource, emit func(Result)) (Summary, error) {
	var (
		sumMu sync.Mutex
		sum   Summary
	)
	emitMu := sync.Mutex{}
	safeEmit := func(res Result) {
		emitMu.Lock()
		emit(res)
		emitMu.Unlock()
	}

	group, ctx := errgroup.WithContext(ctx)

	// One channel per worker; packages shard by origin so a single worker
	// owns each origin's stream and the first resolution for an origin
	// computes the tree all later ones reuse.
	lanes := make([]chan domain.Package, r.cfg.Workers)
	for i := range lanes {
		lanes[i] = make(chan domain.Package, 32)
	}

	for i := range lanes {
		ch := lanes[i]
		group.Go(func() error {
			for pkg := range ch {
				res := r.routeOne(ctx, g, pkg)
				sumMu.Lock()
				sum.count(res)
				sumMu.Unlock()
				safeEmit(res)
			}
			return nil
		})
	}

	feedErr := r.feed(ctx, src, lanes, func(res Result) {
		sumMu.Lock()
		sum.count(res)
		sumMu.Unlock()
		safeEmit(res)
	})
	for _, ch := range lanes {
		close(ch)
	}

	if err := group.Wait(); err != nil {
		return sum, fmt.Errorf("route batch: %w", err)
	}
	if feedErr != nil {
		return sum, fmt.Errorf("route batch: %w", feedErr)
	}
	return sum, nil
}

// feed reads the source and dispatches records to origin-keyed workers.
// Malformed records are emitted as failures and skipped; the stream
// continues.
func (r *Router) feed(ctx context.Context, src ports.PackageSource, lanes []chan domain.Package, emit func(Result)) error {
	for {
		pkg, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, domain.ErrMalformedRecord) {
			id := ""
			if pkg != nil {
				id = pkg.ID
			}
			emit(Result{PackageID: id, Err: err})
			continue
		}
		if err != nil {
			return fmt.Errorf("read package stream: %w", err)
		}

		if verr := pkg.Validate(); verr != nil {
			emit(Result{PackageID: pkg.ID, Err: verr})
			continue
		}

		h := fnv.New32a()
		h.Write([]byte(pkg.Origin))
		lane := lanes[int(h.Sum32())%len(lanes)]
		select {
		case lane <- *pkg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Router) routeOne(ctx context.Context, g *domain.GraphVersion, pkg domain.Package) Result {
	r.mu.Lock()
	r.packages[pkg.ID] = pkg
	r.mu.Unlock()

	res, err := r.resolver.Resolve(ctx, g, pkg.Origin, pkg.Destination, pkg.WeightKg)
	if err != nil {
		return Result{PackageID: pkg.ID, Err: err}
	}

	plan := domain.RoutePlan{
		PackageID:           pkg.ID,
		GraphVersion:        g.Version(),
		Path:                res.Path,
		WeightKg:            pkg.WeightKg,
		SLA:                 pkg.SLA,
		TotalDistanceKm:     res.TotalDistanceKm,
		TotalCostUSD:        res.TotalCostUSD,
		TotalTransitMinutes: res.TotalTransitMinutes,
		SLACompliant:        r.cfg.Thresholds.Compliant(pkg.SLA, res.TotalTransitMinutes),
	}

	r.mu.Lock()
	r.plans[pkg.ID] = plan
	r.mu.Unlock()

	return Result{PackageID: pkg.ID, Plan: &plan}
}

// Reroute re-resolves only the plans whose paths a new graph version broke.
// A package exhausting its retry budget surfaces ErrRoutingFailed; other
// packages keep their plans. Returns the number of packages re-resolved.
func (r *Router) Reroute(ctx context.Context, g *domain.GraphVersion, emit func(Result)) (int, error) {
	r.mu.Lock()
	var stale []domain.Package
	for id, plan := range r.plans {
		if plan.ValidUnder(g) {
			continue
		}
		pkg, ok := r.packages[id]
		if !ok {
			continue
		}
		stale = append(stale, pkg)
	}
	r.mu.Unlock()

	if len(stale) == 0 {
		return 0, nil
	}
	log.Printf("reroute version=%d stale=%d", g.Version(), len(stale))

	rerouted := 0
	for _, pkg := range stale {
		r.mu.Lock()
		r.attempts[pkg.ID]++
		tries := r.attempts[pkg.ID]
		r.mu.Unlock()

		if tries > r.cfg.MaxRetries {
			r.dropPlan(pkg.ID)
			emit(Result{PackageID: pkg.ID, Err: fmt.Errorf("package %s: %d reattempts exhausted: %w", pkg.ID, r.cfg.MaxRetries, domain.ErrRoutingFailed)})
			continue
		}

		res := r.routeOne(ctx, g, pkg)
		if res.Err != nil {
			r.dropPlan(pkg.ID)
		} else {
			rerouted++
		}
		emit(res)
	}
	return rerouted, nil
}

func (r *Router) dropPlan(id string) {
	r.mu.Lock()
	delete(r.plans, id)
	r.mu.Unlock()
}

// Plans returns a copy of the latest plan per routed package.
func (r *Router) Plans() []domain.RoutePlan {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.RoutePlan, 0, len(r.plans))
	for _, p := range r.plans {
		out = append(out, p)
	}
	return out
}

func (s *Summary) count(res Result) {
	switch {
	case res.Err == nil:
		s.Routed++
	case errors.Is(res.Err, domain.ErrMalformedRecord):
		s.Malformed++
	case errors.Is(res.Err, domain.ErrUnreachable):
		s.Undeliverable++
	default:
		s.Failed++
	}
}
