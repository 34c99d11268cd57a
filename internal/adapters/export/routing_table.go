package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"fulfillment-sim/internal/domain"
	"fulfillment-sim/internal/services/resolver"
)

// RoutingTable is the all-pairs export for a single graph version: for every
// active origin, the best path to every reachable destination.
type RoutingTable struct {
	GraphVersion int64                   `json:"graph_version"`
	GeneratedAt  time.Time               `json:"generated_at"`
	Origins      map[string][]TableEntry `json:"origins"`
}

type TableEntry struct {
	Destination    string   `json:"destination"`
	Path           []string `json:"path"`
	DistanceKm     float64  `json:"distance_km"`
	CostPerKgUSD   float64  `json:"cost_per_kg_usd"`
	TransitMinutes float64  `json:"transit_minutes"`
	Hops           int      `json:"hops"`
}

// BuildRoutingTable computes one shortest-path tree per active node and
// flattens it into the export shape. Reachable() and NodeIDs() are already
// sorted, so the output is deterministic.
func BuildRoutingTable(ctx context.Context, r *resolver.Resolver, g *domain.GraphVersion) (*RoutingTable, error) {
	table := &RoutingTable{
		GraphVersion: g.Version(),
		GeneratedAt:  time.Now().UTC(),
		Origins:      make(map[string][]TableEntry),
	}

	for _, origin := range g.NodeIDs() {
		if n, ok := g.Node(origin); !ok || !n.Active {
			continue
		}
		tree, err := r.TreeFor(ctx, g, origin)
		if err != nil {
			return nil, fmt.Errorf("build routing table: tree for %q: %w", origin, err)
		}

		var entries []TableEntry
		for _, dest := range tree.Reachable() {
			if dest == origin {
				continue
			}
			path, ok := tree.PathTo(dest)
			if !ok {
				continue
			}
			dist, cost, transit, hops, _ := tree.Totals(dest)
			entries = append(entries, TableEntry{
				Destination:    dest,
				Path:           path,
				DistanceKm:     dist,
				CostPerKgUSD:   cost,
				TransitMinutes: transit,
				Hops:           hops,
			})
		}
		table.Origins[origin] = entries
	}
	return table, nil
}

// WriteRoutingTable serializes the table as indented JSON.
func WriteRoutingTable(w io.Writer, table *RoutingTable) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(table); err != nil {
		return fmt.Errorf("write routing table: encode: %w", err)
	}
	return nil
}

// ExportRoutingTable builds the table and writes it to path.
func ExportRoutingTable(ctx context.Context, r *resolver.Resolver, g *domain.GraphVersion, path string) error {
	table, err := BuildRoutingTable(ctx, r, g)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export routing table: create %q: %w", path, err)
	}
	defer f.Close()

	if err := WriteRoutingTable(f, table); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export routing table: close %q: %w", path, err)
	}
	return nil
}
