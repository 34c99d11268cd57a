package warehouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fulfillment-sim/internal/domain"
	"fulfillment-sim/internal/platform/obs"
)

// Postgres-backed variant of the results warehouse, for runs feeding a
// shared analytics database instead of a local SQLite file.
type SQLWarehouse struct {
	DB *sql.DB
}

func NewSQLWarehouse(db *sql.DB) *SQLWarehouse {
	return &SQLWarehouse{DB: db}
}

// InitSchemaSQL creates the output tables on a Postgres database.
func InitSchemaSQL(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS route_plans (
			package_id TEXT PRIMARY KEY,
			graph_version BIGINT NOT NULL,
			origin TEXT NOT NULL,
			destination TEXT NOT NULL,
			path JSONB NOT NULL,
			weight_kg DOUBLE PRECISION NOT NULL,
			sla_category TEXT NOT NULL,
			distance_km DOUBLE PRECISION NOT NULL,
			cost_usd DOUBLE PRECISION NOT NULL,
			transit_minutes DOUBLE PRECISION NOT NULL,
			sla_compliant BOOLEAN NOT NULL,
			written_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS metrics_snapshots (
			snapshot_id TEXT PRIMARY KEY,
			taken_at TIMESTAMPTZ NOT NULL,
			graph_version BIGINT NOT NULL,
			plans INTEGER NOT NULL,
			undeliverable INTEGER NOT NULL,
			malformed INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			payload JSONB NOT NULL
		);`,
	}

	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}
	return nil
}

// WritePlans upserts route plans into the shared warehouse.
func (w *SQLWarehouse) WritePlans(ctx context.Context, plans []domain.RoutePlan) (err error) {
	defer obs.Time(ctx, "warehouse.WritePlans")(&err)

	if len(plans) == 0 {
		return nil
	}

	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write plans: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO route_plans (
		package_id, graph_version, origin, destination, path,
		weight_kg, sla_category, distance_km, cost_usd, transit_minutes,
		sla_compliant, written_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (package_id) DO UPDATE
	SET graph_version = EXCLUDED.graph_version,
		origin = EXCLUDED.origin,
		destination = EXCLUDED.destination,
		path = EXCLUDED.path,
		weight_kg = EXCLUDED.weight_kg,
		sla_category = EXCLUDED.sla_category,
		distance_km = EXCLUDED.distance_km,
		cost_usd = EXCLUDED.cost_usd,
		transit_minutes = EXCLUDED.transit_minutes,
		sla_compliant = EXCLUDED.sla_compliant,
		written_at = EXCLUDED.written_at;
	`)
	if err != nil {
		return fmt.Errorf("write plans: prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, p := range plans {
		pathJSON, err := json.Marshal(p.Path)
		if err != nil {
			return fmt.Errorf("write plans: marshal path for %q: %w", p.PackageID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			p.PackageID, p.GraphVersion, p.Path[0], p.Path[len(p.Path)-1], string(pathJSON),
			p.WeightKg, string(p.SLA), p.TotalDistanceKm, p.TotalCostUSD, p.TotalTransitMinutes,
			p.SLACompliant, now,
		); err != nil {
			return fmt.Errorf("write plans: insert package_id=%q: %w", p.PackageID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write plans: commit tx: %w", err)
	}
	return nil
}

// WriteSnapshot stores one metrics snapshot.
func (w *SQLWarehouse) WriteSnapshot(ctx context.Context, snap domain.MetricsSnapshot) (err error) {
	defer obs.Time(ctx, "warehouse.WriteSnapshot")(&err)

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("write snapshot: marshal payload: %w", err)
	}

	if _, err := w.DB.ExecContext(ctx, `
	INSERT INTO metrics_snapshots (
		snapshot_id, taken_at, graph_version, plans, undeliverable, malformed, failed, payload
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (snapshot_id) DO NOTHING;
	`, snap.ID, snap.TakenAt, snap.GraphVersion,
		snap.Plans, snap.Undeliverable, snap.Malformed, snap.Failed, string(payload),
	); err != nil {
		return fmt.Errorf("write snapshot: insert snapshot_id=%q: %w", snap.ID, err)
	}
	return nil
}
