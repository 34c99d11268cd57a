package ingest

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"fulfillment-sim/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadGraphCSV(t *testing.T) {
	nodes := writeFile(t, "nodes.csv", `node_id,location,type,daily_capacity
A,PHX,warehouse,100
B,TUS,hub,50
C,ABQ,region,30
`)
	lanes := writeFile(t, "lanes.csv", `source,target,distance_km,cost_per_kg,transit_minutes
A,B,10,1,15
B,C,10,1,15
A,C,30,1,40
`)

	g, err := LoadGraphCSV(nodes, lanes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Version() != 0 {
		t.Fatalf("version = %d, want 0", g.Version())
	}
	if g.NodeCount() != 3 {
		t.Fatalf("node count = %d, want 3", g.NodeCount())
	}
	n, ok := g.Node("B")
	if !ok || n.DailyCapacity != 50 || n.Type != "hub" {
		t.Fatalf("node B = %+v", n)
	}
	if !g.ActiveLane("A", "C") {
		t.Fatal("lane A->C missing")
	}
}

func TestLoadGraphCSVRejectsWrongHeader(t *testing.T) {
	nodes := writeFile(t, "nodes.csv", "id,loc\nA,PHX\n")
	if _, err := LoadNodesCSV(nodes); err == nil {
		t.Fatal("expected header mismatch error")
	}
}

func TestLoadGraphCSVRejectsDanglingLane(t *testing.T) {
	nodes := writeFile(t, "nodes.csv", `node_id,location,type,daily_capacity
A,PHX,warehouse,100
`)
	lanes := writeFile(t, "lanes.csv", `source,target,distance_km,cost_per_kg,transit_minutes
A,Z,10,1,15
`)
	_, err := LoadGraphCSV(nodes, lanes)
	if !errors.Is(err, domain.ErrInvalidReference) {
		t.Fatalf("error = %v, want ErrInvalidReference", err)
	}
}

func TestJSONPackageSourceStreamsAndFlagsMalformed(t *testing.T) {
	path := writeFile(t, "packages.json", `[
		{"package_id":"p1","origin":"A","destination":"C","weight_kg":1.5,"sla_category":"EXPRESS"},
		{"package_id":"p2","origin":"A","destination":"C","weight_kg":0,"sla_category":"STANDARD"},
		{"package_id":"p3","origin":"B","destination":"C","weight_kg":2,"sla_category":"SAME_DAY"}
	]`)

	src, err := OpenJSONPackages(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	p1, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p1.ID != "p1" || p1.SLA != domain.SLAExpress {
		t.Fatalf("p1 = %+v", p1)
	}

	// The zero-weight record is flagged, not fatal.
	p2, err := src.Next(ctx)
	if !errors.Is(err, domain.ErrMalformedRecord) {
		t.Fatalf("error = %v, want ErrMalformedRecord", err)
	}
	if p2 == nil || p2.ID != "p2" {
		t.Fatalf("malformed record should still identify the package, got %+v", p2)
	}

	// The stream continues past it.
	p3, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p3.ID != "p3" {
		t.Fatalf("p3 = %+v", p3)
	}

	if _, err := src.Next(ctx); err != io.EOF {
		t.Fatalf("error = %v, want io.EOF", err)
	}
}

func TestOpenJSONPackagesRejectsBadJSON(t *testing.T) {
	path := writeFile(t, "packages.json", "{not json")
	if _, err := OpenJSONPackages(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadScenarioYAML(t *testing.T) {
	path := writeFile(t, "scenario.yaml", `events:
  - type: BLACKOUT_NODE
    target_node: B
  - type: BLACKOUT_EDGE
    target_lane:
      from: A
      to: C
  - type: CAPACITY_CHANGE
    target_node: A
    new_capacity: 250
  - type: VOLUME_SURGE
    target_node: C
    surge_factor: 1.5
`)

	events, err := LoadScenarioYAML(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if events[0].Type != domain.BlackoutNode || events[0].TargetNode != "B" {
		t.Fatalf("event 0 = %+v", events[0])
	}
	if events[1].TargetLane == nil || events[1].TargetLane.From != "A" {
		t.Fatalf("event 1 = %+v", events[1])
	}
	if events[2].NewCapacity != 250 {
		t.Fatalf("event 2 = %+v", events[2])
	}
	if events[3].SurgeFactor != 1.5 {
		t.Fatalf("event 3 = %+v", events[3])
	}
}

func TestLoadScenarioYAMLRejectsUnknownType(t *testing.T) {
	path := writeFile(t, "scenario.yaml", "events:\n  - type: METEOR_STRIKE\n    target_node: B\n")
	if _, err := LoadScenarioYAML(path); err == nil {
		t.Fatal("expected unknown type error")
	}
}
