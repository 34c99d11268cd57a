package publish

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"fulfillment-sim/internal/domain"
)

func newTestPublisher(t *testing.T) (*RedisPublisher, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisPublisher(client, ""), client
}

func TestPublishPlan(t *testing.T) {
	pub, client := newTestPublisher(t)

	plan := domain.RoutePlan{
		PackageID:           "p1",
		GraphVersion:        3,
		Path:                []string{"A", "B", "C"},
		WeightKg:            2.5,
		SLA:                 domain.SLAExpress,
		TotalDistanceKm:     20,
		TotalCostUSD:        50,
		TotalTransitMinutes: 30,
		SLACompliant:        true,
	}
	if err := pub.PublishPlan(context.Background(), plan); err != nil {
		t.Fatalf("publish plan: %v", err)
	}

	entries, err := client.XRange(context.Background(), DefaultStream, "-", "+").Result()
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d stream entries, want 1", len(entries))
	}

	fields := entries[0].Values
	if fields["package_id"] != "p1" {
		t.Fatalf("package_id = %v", fields["package_id"])
	}
	if fields["graph_version"] != "3" {
		t.Fatalf("graph_version = %v", fields["graph_version"])
	}
	if fields["path"] != `["A","B","C"]` {
		t.Fatalf("path = %v", fields["path"])
	}
	if fields["sla_category"] != "EXPRESS" {
		t.Fatalf("sla_category = %v", fields["sla_category"])
	}
}

func TestPublishSupersedingPlanAppends(t *testing.T) {
	pub, client := newTestPublisher(t)
	ctx := context.Background()

	plan := domain.RoutePlan{PackageID: "p1", GraphVersion: 0, Path: []string{"A", "C"}, SLA: domain.SLAStandard}
	if err := pub.PublishPlan(ctx, plan); err != nil {
		t.Fatalf("publish: %v", err)
	}
	plan.GraphVersion = 1
	plan.Path = []string{"A", "B", "C"}
	if err := pub.PublishPlan(ctx, plan); err != nil {
		t.Fatalf("publish superseding: %v", err)
	}

	entries, err := client.XRange(ctx, DefaultStream, "-", "+").Result()
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	// Both resolutions are on the stream; consumers dedupe by package_id.
	if len(entries) != 2 {
		t.Fatalf("got %d stream entries, want 2", len(entries))
	}
}

func TestParseAddr(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", "localhost:6379"},
		{"redis-host", "redis-host:6379"},
		{"redis-host:7000", "redis-host:7000"},
	}
	for _, c := range cases {
		if got := ParseAddr(c.in); got != c.want {
			t.Fatalf("ParseAddr(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
