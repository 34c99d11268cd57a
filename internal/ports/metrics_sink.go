package ports

import (
	"context"

	"fulfillment-sim/internal/domain"
)

// Port: a boundary for persisting periodic metrics snapshots to the
// external storage layer.
type MetricsSink interface {
	WriteSnapshot(ctx context.Context, snap domain.MetricsSnapshot) error
}
