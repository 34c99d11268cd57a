package warehouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fulfillment-sim/internal/domain"
)

// SQLite-backed results warehouse: the persisted graph definition plus the
// route_plans and metrics_snapshots output tables.
type SqliteWarehouse struct {
	DB *sql.DB
}

func NewSqliteWarehouse(db *sql.DB) *SqliteWarehouse {
	return &SqliteWarehouse{DB: db}
}

// InitSchema creates the warehouse tables.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS graph_meta (
			key TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS nodes (
			node_id TEXT PRIMARY KEY,
			location TEXT NOT NULL,
			type TEXT NOT NULL,
			daily_capacity INTEGER NOT NULL,
			active INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS lanes (
			origin TEXT NOT NULL,
			destination TEXT NOT NULL,
			distance_km REAL NOT NULL,
			cost_per_kg REAL NOT NULL,
			transit_minutes REAL NOT NULL,
			active INTEGER NOT NULL,
			PRIMARY KEY (origin, destination)
		);`,
		`CREATE TABLE IF NOT EXISTS route_plans (
			package_id TEXT PRIMARY KEY,
			graph_version INTEGER NOT NULL,
			origin TEXT NOT NULL,
			destination TEXT NOT NULL,
			path TEXT NOT NULL,
			weight_kg REAL NOT NULL,
			sla_category TEXT NOT NULL,
			distance_km REAL NOT NULL,
			cost_usd REAL NOT NULL,
			transit_minutes REAL NOT NULL,
			sla_compliant INTEGER NOT NULL,
			written_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_route_plans_written_at
			ON route_plans(written_at);`,
		`CREATE TABLE IF NOT EXISTS metrics_snapshots (
			snapshot_id TEXT PRIMARY KEY,
			taken_at TEXT NOT NULL,
			graph_version INTEGER NOT NULL,
			plans INTEGER NOT NULL,
			undeliverable INTEGER NOT NULL,
			malformed INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			payload TEXT NOT NULL
		);`,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}
	return nil
}

// SaveGraph replaces the persisted graph definition with the given
// version's node and lane sets.
func (w *SqliteWarehouse) SaveGraph(ctx context.Context, g *domain.GraphVersion) error {
	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save graph: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{`DELETE FROM nodes;`, `DELETE FROM lanes;`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("save graph: clear tables: %w", err)
		}
	}

	nodeStmt, err := tx.PrepareContext(ctx, `
	INSERT OR REPLACE INTO nodes (node_id, location, type, daily_capacity, active)
	VALUES (?, ?, ?, ?, ?);
	`)
	if err != nil {
		return fmt.Errorf("save graph: prepare node insert: %w", err)
	}
	defer nodeStmt.Close()

	for _, id := range g.NodeIDs() {
		n, _ := g.Node(id)
		if _, err := nodeStmt.ExecContext(ctx, n.ID, n.Location, n.Type, n.DailyCapacity, boolToInt(n.Active)); err != nil {
			return fmt.Errorf("save graph: insert node %q: %w", n.ID, err)
		}
	}

	laneStmt, err := tx.PrepareContext(ctx, `
	INSERT OR REPLACE INTO lanes (origin, destination, distance_km, cost_per_kg, transit_minutes, active)
	VALUES (?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		return fmt.Errorf("save graph: prepare lane insert: %w", err)
	}
	defer laneStmt.Close()

	for _, l := range g.Lanes() {
		if _, err := laneStmt.ExecContext(ctx, l.From, l.To, l.DistanceKm, l.CostPerKg, l.TransitMinutes, boolToInt(l.Active)); err != nil {
			return fmt.Errorf("save graph: insert lane %s->%s: %w", l.From, l.To, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
	INSERT OR REPLACE INTO graph_meta (key, value) VALUES ('version', ?);
	`, g.Version()); err != nil {
		return fmt.Errorf("save graph: store version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save graph: commit tx: %w", err)
	}
	return nil
}

// LoadGraph restores the persisted graph definition, including version
// number and active flags.
func (w *SqliteWarehouse) LoadGraph(ctx context.Context) (*domain.GraphVersion, error) {
	var version int64
	err := w.DB.QueryRowContext(ctx, `SELECT value FROM graph_meta WHERE key = 'version';`).Scan(&version)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("load graph: no graph has been built")
	}
	if err != nil {
		return nil, fmt.Errorf("load graph: read version: %w", err)
	}

	rows, err := w.DB.QueryContext(ctx, `SELECT node_id, location, type, daily_capacity, active FROM nodes;`)
	if err != nil {
		return nil, fmt.Errorf("load graph: query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []domain.Node
	for rows.Next() {
		var n domain.Node
		var active int
		if err := rows.Scan(&n.ID, &n.Location, &n.Type, &n.DailyCapacity, &active); err != nil {
			return nil, fmt.Errorf("load graph: scan node: %w", err)
		}
		n.Active = active != 0
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load graph: node iteration: %w", err)
	}

	laneRows, err := w.DB.QueryContext(ctx, `SELECT origin, destination, distance_km, cost_per_kg, transit_minutes, active FROM lanes;`)
	if err != nil {
		return nil, fmt.Errorf("load graph: query lanes: %w", err)
	}
	defer laneRows.Close()

	var lanes []domain.Lane
	for laneRows.Next() {
		var l domain.Lane
		var active int
		if err := laneRows.Scan(&l.From, &l.To, &l.DistanceKm, &l.CostPerKg, &l.TransitMinutes, &active); err != nil {
			return nil, fmt.Errorf("load graph: scan lane: %w", err)
		}
		l.Active = active != 0
		lanes = append(lanes, l)
	}
	if err := laneRows.Err(); err != nil {
		return nil, fmt.Errorf("load graph: lane iteration: %w", err)
	}

	return domain.RestoreVersion(version, nodes, lanes)
}

// WritePlans upserts route plans; a superseding plan replaces the earlier
// resolution of the same package.
func (w *SqliteWarehouse) WritePlans(ctx context.Context, plans []domain.RoutePlan) error {
	if len(plans) == 0 {
		return nil
	}

	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write plans: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR REPLACE INTO route_plans (
		package_id, graph_version, origin, destination, path,
		weight_kg, sla_category, distance_km, cost_usd, transit_minutes,
		sla_compliant, written_at
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		return fmt.Errorf("write plans: prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, p := range plans {
		pathJSON, err := json.Marshal(p.Path)
		if err != nil {
			return fmt.Errorf("write plans: marshal path for %q: %w", p.PackageID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			p.PackageID, p.GraphVersion, p.Path[0], p.Path[len(p.Path)-1], string(pathJSON),
			p.WeightKg, string(p.SLA), p.TotalDistanceKm, p.TotalCostUSD, p.TotalTransitMinutes,
			boolToInt(p.SLACompliant), now,
		); err != nil {
			return fmt.Errorf("write plans: insert package_id=%q: %w", p.PackageID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write plans: commit tx: %w", err)
	}
	return nil
}

// RecentPlans returns up to limit plans, most recently written first.
func (w *SqliteWarehouse) RecentPlans(ctx context.Context, limit int) ([]domain.RoutePlan, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := w.DB.QueryContext(ctx, `
	SELECT package_id, graph_version, path, weight_kg, sla_category,
		distance_km, cost_usd, transit_minutes, sla_compliant
	FROM route_plans
	ORDER BY written_at DESC, package_id ASC
	LIMIT ?;
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent plans: query route_plans: %w", err)
	}
	defer rows.Close()

	var plans []domain.RoutePlan
	for rows.Next() {
		var p domain.RoutePlan
		var pathJSON, sla string
		var compliant int
		if err := rows.Scan(&p.PackageID, &p.GraphVersion, &pathJSON, &p.WeightKg, &sla,
			&p.TotalDistanceKm, &p.TotalCostUSD, &p.TotalTransitMinutes, &compliant); err != nil {
			return nil, fmt.Errorf("recent plans: scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(pathJSON), &p.Path); err != nil {
			return nil, fmt.Errorf("recent plans: decode path for %q: %w", p.PackageID, err)
		}
		p.SLA = domain.SLACategory(sla)
		p.SLACompliant = compliant != 0
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent plans: row iteration: %w", err)
	}
	return plans, nil
}

// WriteSnapshot stores one metrics snapshot with headline counters as
// columns and the full breakdown as a JSON payload.
func (w *SqliteWarehouse) WriteSnapshot(ctx context.Context, snap domain.MetricsSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("write snapshot: marshal payload: %w", err)
	}

	if _, err := w.DB.ExecContext(ctx, `
	INSERT OR REPLACE INTO metrics_snapshots (
		snapshot_id, taken_at, graph_version, plans, undeliverable, malformed, failed, payload
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?);
	`, snap.ID, snap.TakenAt.Format(time.RFC3339Nano), snap.GraphVersion,
		snap.Plans, snap.Undeliverable, snap.Malformed, snap.Failed, string(payload),
	); err != nil {
		return fmt.Errorf("write snapshot: insert snapshot_id=%q: %w", snap.ID, err)
	}
	return nil
}

// LatestSnapshot returns the most recently taken snapshot, if any.
func (w *SqliteWarehouse) LatestSnapshot(ctx context.Context) (*domain.MetricsSnapshot, error) {
	var payload string
	err := w.DB.QueryRowContext(ctx, `
	SELECT payload FROM metrics_snapshots ORDER BY taken_at DESC LIMIT 1;
	`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: query: %w", err)
	}

	var snap domain.MetricsSnapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("latest snapshot: decode payload: %w", err)
	}
	return &snap, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
