package scenario

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"fulfillment-sim/internal/domain"
)

// State is the manager's commit state, exposed for observability.
type State string

const (
	StateIdle        State = "IDLE"
	StateEventQueued State = "EVENT_QUEUED"
	StateCommitting  State = "COMMITTING"
)

// Commit describes one applied scenario event: the new version id plus the
// node ids whose local reachability changed. Invalidation scope is bounded
// to direct neighbors; exact transitive staleness detection is the
// subscriber's responsibility.
type Commit struct {
	CommitID string
	Version  int64
	Touched  []string
	Event    domain.ScenarioEvent
}

// Invalidator receives cache-invalidation callbacks after each commit.
type Invalidator interface {
	Invalidate(supersededBefore int64, origins []string)
}

type applyReq struct {
	event domain.ScenarioEvent
	reply chan applyRes
}

type applyRes struct {
	commit Commit
	err    error
}

type currentReq struct {
	reply chan *domain.GraphVersion
}

type atReq struct {
	version int64
	reply   chan *domain.GraphVersion
}

// Manager owns the append-only sequence of graph versions and the single
// "current version" pointer. All mutation and version reads go through one
// event loop, so commits are serialized (one at a time), queued events
// always apply against the latest committed version, and no resolution can
// observe a version mid-commit.
type Manager struct {
	reqs  chan any
	state atomic.Value // State

	subMu sync.Mutex
	subs  []chan Commit

	invalidator Invalidator

	// Owned exclusively by the Run loop.
	versions []*domain.GraphVersion
}

// NewManager creates a manager seeded with the initial graph version.
// Run must be started before Apply or Current are called.
func NewManager(initial *domain.GraphVersion, inv Invalidator) *Manager {
	m := &Manager{
		reqs:        make(chan any, 16),
		invalidator: inv,
		versions:    []*domain.GraphVersion{initial},
	}
	m.state.Store(StateIdle)
	return m
}

// Run processes apply and read requests serially until ctx is cancelled.
// An in-flight commit completes before the loop exits.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-m.reqs:
			switch r := req.(type) {
			case applyReq:
				m.state.Store(StateCommitting)
				res := m.commit(r.event)
				m.state.Store(StateIdle)
				r.reply <- res
			case currentReq:
				r.reply <- m.versions[len(m.versions)-1]
			case atReq:
				r.reply <- m.versionAt(r.version)
			}
		}
	}
}

func (m *Manager) commit(ev domain.ScenarioEvent) applyRes {
	base := m.versions[len(m.versions)-1]

	touched := base.TouchedBy(ev)
	next, err := base.ApplyMutation(ev)
	if err != nil {
		return applyRes{err: fmt.Errorf("scenario commit: %w", err)}
	}

	m.versions = append(m.versions, next)

	// Drop cached trees the superseded version can no longer serve for new
	// resolutions. Already-resolved plans keep referencing the old version
	// id for audit.
	if m.invalidator != nil {
		m.invalidator.Invalidate(next.Version(), touched)
	}

	c := Commit{
		CommitID: uuid.NewString(),
		Version:  next.Version(),
		Touched:  touched,
		Event:    ev,
	}
	log.Printf("scenario commit id=%s version=%d type=%s touched=%d", c.CommitID, c.Version, ev.Type, len(touched))

	m.subMu.Lock()
	subs := make([]chan Commit, len(m.subs))
	copy(subs, m.subs)
	m.subMu.Unlock()
	for _, ch := range subs {
		ch <- c
	}

	return applyRes{commit: c}
}

func (m *Manager) versionAt(v int64) *domain.GraphVersion {
	for _, g := range m.versions {
		if g.Version() == v {
			return g
		}
	}
	return nil
}

// Apply queues a scenario event and blocks until its commit completes.
// Concurrent callers are serialized; each queued event applies against the
// version left by the commit before it.
func (m *Manager) Apply(ctx context.Context, ev domain.ScenarioEvent) (Commit, error) {
	req := applyReq{event: ev, reply: make(chan applyRes, 1)}
	m.state.CompareAndSwap(StateIdle, StateEventQueued)

	select {
	case m.reqs <- req:
	case <-ctx.Done():
		return Commit{}, fmt.Errorf("scenario apply: %w", ctx.Err())
	}

	select {
	case res := <-req.reply:
		return res.commit, res.err
	case <-ctx.Done():
		return Commit{}, fmt.Errorf("scenario apply: %w", ctx.Err())
	}
}

// Current returns the latest committed graph version. A commit in progress
// completes before the read is served.
func (m *Manager) Current(ctx context.Context) (*domain.GraphVersion, error) {
	req := currentReq{reply: make(chan *domain.GraphVersion, 1)}
	select {
	case m.reqs <- req:
	case <-ctx.Done():
		return nil, fmt.Errorf("scenario current: %w", ctx.Err())
	}
	select {
	case g := <-req.reply:
		return g, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("scenario current: %w", ctx.Err())
	}
}

// At returns the graph snapshot with the given version id, for auditing
// plans resolved under superseded versions.
func (m *Manager) At(ctx context.Context, version int64) (*domain.GraphVersion, error) {
	req := atReq{version: version, reply: make(chan *domain.GraphVersion, 1)}
	select {
	case m.reqs <- req:
	case <-ctx.Done():
		return nil, fmt.Errorf("scenario at: %w", ctx.Err())
	}
	select {
	case g := <-req.reply:
		if g == nil {
			return nil, fmt.Errorf("scenario at: %w: no graph version %d", domain.ErrInvalidReference, version)
		}
		return g, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("scenario at: %w", ctx.Err())
	}
}

// Subscribe registers a commit listener. Subscribers must drain their
// channel promptly; commits block on delivery.
func (m *Manager) Subscribe() <-chan Commit {
	ch := make(chan Commit, 64)
	m.subMu.Lock()
	m.subs = append(m.subs, ch)
	m.subMu.Unlock()
	return ch
}

// State reports the manager's current commit state.
func (m *Manager) State() State {
	return m.state.Load().(State)
}

// StalePlans returns the ids of plans whose paths are no longer fully
// active under the given graph version. Only those packages need
// re-resolution; the rest of the batch stands.
func StalePlans(plans []domain.RoutePlan, g *domain.GraphVersion) []string {
	var stale []string
	for _, p := range plans {
		if !p.ValidUnder(g) {
			stale = append(stale, p.PackageID)
		}
	}
	return stale
}
