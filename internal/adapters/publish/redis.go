package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"fulfillment-sim/internal/domain"
	"fulfillment-sim/internal/platform/obs"
)

// DefaultStream is the stream key downstream consumers subscribe to.
const DefaultStream = "fulfillment:route-plans"

// RedisPublisher streams resolved route plans onto a Redis stream so
// downstream consumers (label printing, carrier booking) can pick them up
// without polling the warehouse.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisPublisher(client *redis.Client, stream string) *RedisPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisPublisher{client: client, stream: stream, maxLen: 10000}
}

// PublishPlan appends one plan to the stream. A superseding resolution is
// published as a new entry; consumers keep the latest entry per package_id.
func (p *RedisPublisher) PublishPlan(ctx context.Context, plan domain.RoutePlan) (err error) {
	defer obs.Time(ctx, "redis_publish_plan")(&err)

	pathJSON, err := json.Marshal(plan.Path)
	if err != nil {
		return fmt.Errorf("publish plan: marshal path for %q: %w", plan.PackageID, err)
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"package_id":      plan.PackageID,
			"graph_version":   plan.GraphVersion,
			"path":            string(pathJSON),
			"weight_kg":       plan.WeightKg,
			"sla_category":    string(plan.SLA),
			"distance_km":     plan.TotalDistanceKm,
			"cost_usd":        plan.TotalCostUSD,
			"transit_minutes": plan.TotalTransitMinutes,
			"sla_compliant":   plan.SLACompliant,
		},
	}).Err(); err != nil {
		return fmt.Errorf("publish plan: xadd package_id=%q: %w", plan.PackageID, err)
	}
	return nil
}

// Ping verifies the connection at startup.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// ParseAddr splits "host:port" with a default port of 6379.
func ParseAddr(addr string) string {
	if addr == "" {
		return "localhost:6379"
	}
	if !strings.Contains(addr, ":") {
		return addr + ":6379"
	}
	return addr
}
