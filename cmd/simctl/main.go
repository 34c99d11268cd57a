package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"fulfillment-sim/internal/adapters/export"
	"fulfillment-sim/internal/adapters/ingest"
	"fulfillment-sim/internal/adapters/publish"
	"fulfillment-sim/internal/adapters/warehouse"
	"fulfillment-sim/internal/config"
	"fulfillment-sim/internal/domain"
	"fulfillment-sim/internal/platform/db"
	"fulfillment-sim/internal/ports"
	"fulfillment-sim/internal/services/metrics"
	"fulfillment-sim/internal/services/resolver"
	"fulfillment-sim/internal/services/router"
	"fulfillment-sim/internal/services/scenario"
)

const usage = `usage: simctl <command> [flags]

commands:
  build-graph          load nodes/lanes CSVs and persist the initial graph version
  apply-scenario       apply a YAML scenario file, committing one version per event
  route-batch          route a JSON package batch against the persisted graph
  snapshot-metrics     rebuild the aggregator from stored plans and persist a snapshot
  export-routing-table write the all-pairs routing table for the persisted graph
`

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx := context.Background()

	var err error
	switch os.Args[1] {
	case "build-graph":
		err = runBuildGraph(ctx, os.Args[2:])
	case "apply-scenario":
		err = runApplyScenario(ctx, os.Args[2:])
	case "route-batch":
		err = runRouteBatch(ctx, os.Args[2:])
	case "snapshot-metrics":
		err = runSnapshotMetrics(ctx, os.Args[2:])
	case "export-routing-table":
		err = runExportRoutingTable(ctx, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("simctl %s: %v", os.Args[1], err)
	}
}

func openWarehouse() (*warehouse.SqliteWarehouse, func(), error) {
	dbPath := config.Get("DB_PATH", "data/fulfillment.db")
	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite database %q: %w", dbPath, err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, nil, fmt.Errorf("verify sqlite connection to %q: %w", dbPath, err)
	}
	if err := warehouse.InitSchema(sqlDB); err != nil {
		sqlDB.Close()
		return nil, nil, err
	}
	return warehouse.NewSqliteWarehouse(sqlDB), func() { sqlDB.Close() }, nil
}

// openMirror opens the optional Postgres reporting warehouse when
// DATABASE_URL is set. Plans and snapshots written locally are mirrored
// there for the shared dashboard.
func openMirror(ctx context.Context) (*warehouse.SQLWarehouse, func(), error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if strings.TrimSpace(databaseURL) == "" {
		return nil, func() {}, nil
	}

	pgDB, err := db.Open(databaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := warehouse.InitSchemaSQL(ctx, pgDB); err != nil {
		pgDB.Close()
		return nil, nil, err
	}
	return warehouse.NewSQLWarehouse(pgDB), func() { pgDB.Close() }, nil
}

func runBuildGraph(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("build-graph", flag.ExitOnError)
	nodesPath := fs.String("nodes", "data/nodes.csv", "nodes CSV path")
	lanesPath := fs.String("lanes", "data/edges.csv", "lanes CSV path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	g, err := ingest.LoadGraphCSV(*nodesPath, *lanesPath)
	if err != nil {
		return err
	}

	wh, closeWH, err := openWarehouse()
	if err != nil {
		return err
	}
	defer closeWH()

	if err := wh.SaveGraph(ctx, g); err != nil {
		return err
	}
	log.Printf("graph built version=%d nodes=%d lanes=%d", g.Version(), g.NodeCount(), len(g.Lanes()))
	return nil
}

func runApplyScenario(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("apply-scenario", flag.ExitOnError)
	file := fs.String("file", "data/scenario.yaml", "scenario YAML path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	events, err := ingest.LoadScenarioYAML(*file)
	if err != nil {
		return err
	}

	wh, closeWH, err := openWarehouse()
	if err != nil {
		return err
	}
	defer closeWH()

	g, err := wh.LoadGraph(ctx)
	if err != nil {
		return err
	}

	res := resolver.New(resolver.DefaultWeights())
	mgr := scenario.NewManager(g, res)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go mgr.Run(runCtx)

	for i, ev := range events {
		commit, err := mgr.Apply(ctx, ev)
		if err != nil {
			return fmt.Errorf("event #%d (%s): %w", i+1, ev.Type, err)
		}
		log.Printf("committed id=%s version=%d type=%s touched=%s",
			commit.CommitID, commit.Version, ev.Type, strings.Join(commit.Touched, ","))
	}

	final, err := mgr.Current(ctx)
	if err != nil {
		return err
	}
	return wh.SaveGraph(ctx, final)
}

func runRouteBatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("route-batch", flag.ExitOnError)
	packagesPath := fs.String("packages", "data/packages.json", "package batch JSON path")
	workers := fs.Int("workers", config.GetInt("ROUTER_WORKERS", 8), "worker pool size")
	retries := fs.Int("retries", config.GetInt("ROUTER_RETRIES", 3), "staleness retry budget")
	if err := fs.Parse(args); err != nil {
		return err
	}

	src, err := ingest.OpenJSONPackages(*packagesPath)
	if err != nil {
		return err
	}

	wh, closeWH, err := openWarehouse()
	if err != nil {
		return err
	}
	defer closeWH()

	mirror, closeMirror, err := openMirror(ctx)
	if err != nil {
		return err
	}
	defer closeMirror()

	g, err := wh.LoadGraph(ctx)
	if err != nil {
		return err
	}

	var publisher *publish.RedisPublisher
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: publish.ParseAddr(addr)})
		defer client.Close()
		publisher = publish.NewRedisPublisher(client, config.Get("REDIS_STREAM", ""))
		if err := publisher.Ping(ctx); err != nil {
			return err
		}
	}

	res := resolver.New(resolver.DefaultWeights())
	rt := router.New(res, router.Config{Workers: *workers, MaxRetries: *retries})
	agg := metrics.NewAggregator(g)

	var plans []domain.RoutePlan
	emit := func(r router.Result) {
		if r.Err != nil {
			agg.ObserveFailure(r.PackageID, r.Err)
			log.Printf("package_id=%s err=%v", r.PackageID, r.Err)
			return
		}
		agg.ObservePlan(*r.Plan)
		plans = append(plans, *r.Plan)
		if publisher != nil {
			if err := publisher.PublishPlan(ctx, *r.Plan); err != nil {
				log.Printf("publish failed package_id=%s err=%v", r.PackageID, err)
			}
		}
	}

	sum, err := rt.RouteBatch(ctx, g, src, emit)
	if err != nil {
		return err
	}

	planSinks := []ports.PlanSink{wh}
	metricsSinks := []ports.MetricsSink{wh}
	if mirror != nil {
		planSinks = append(planSinks, mirror)
		metricsSinks = append(metricsSinks, mirror)
	}

	for _, sink := range planSinks {
		if err := sink.WritePlans(ctx, plans); err != nil {
			return err
		}
	}
	snap := agg.Snapshot()
	for _, sink := range metricsSinks {
		if err := sink.WriteSnapshot(ctx, snap); err != nil {
			return err
		}
	}

	log.Printf("batch complete routed=%d undeliverable=%d malformed=%d failed=%d",
		sum.Routed, sum.Undeliverable, sum.Malformed, sum.Failed)
	return nil
}

func runSnapshotMetrics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("snapshot-metrics", flag.ExitOnError)
	limit := fs.Int("limit", 1000, "number of recent plans to aggregate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	wh, closeWH, err := openWarehouse()
	if err != nil {
		return err
	}
	defer closeWH()

	g, err := wh.LoadGraph(ctx)
	if err != nil {
		return err
	}
	plans, err := wh.RecentPlans(ctx, *limit)
	if err != nil {
		return err
	}

	agg := metrics.NewAggregator(g)
	for _, p := range plans {
		agg.ObservePlan(p)
	}

	snap := agg.Snapshot()
	if err := wh.WriteSnapshot(ctx, snap); err != nil {
		return err
	}
	log.Printf("snapshot id=%s graph_version=%d plans=%d", snap.ID, snap.GraphVersion, snap.Plans)
	return nil
}

func runExportRoutingTable(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export-routing-table", flag.ExitOnError)
	out := fs.String("out", "data/routing_table.json", "output JSON path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	wh, closeWH, err := openWarehouse()
	if err != nil {
		return err
	}
	defer closeWH()

	g, err := wh.LoadGraph(ctx)
	if err != nil {
		return err
	}

	res := resolver.New(resolver.DefaultWeights())
	if err := export.ExportRoutingTable(ctx, res, g, *out); err != nil {
		return err
	}
	log.Printf("routing table written path=%s graph_version=%d origins=%d", *out, g.Version(), g.NodeCount())
	return nil
}
