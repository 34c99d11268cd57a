package ports

import (
	"context"

	"fulfillment-sim/internal/domain"
)

// Port: a boundary for persisting resolved route plans to the external
// storage layer.
type PlanSink interface {
	// Persist a batch of route plans. Plans superseding earlier resolutions
	// of the same package replace them.
	WritePlans(ctx context.Context, plans []domain.RoutePlan) error
}

// Optional extension of PlanSink that supports reading plans back, used by
// the dashboard-facing read surface.
type PlanStore interface {
	PlanSink
	// Return up to limit most recently written plans.
	RecentPlans(ctx context.Context, limit int) ([]domain.RoutePlan, error)
}

// Port: a boundary for streaming individual plans to downstream consumers
// as they are resolved.
type PlanPublisher interface {
	PublishPlan(ctx context.Context, plan domain.RoutePlan) error
}
