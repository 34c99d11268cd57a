package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"fulfillment-sim/internal/adapters/warehouse"
	"fulfillment-sim/internal/api"
	"fulfillment-sim/internal/config"
	"fulfillment-sim/internal/services/metrics"
	"fulfillment-sim/internal/services/resolver"
	"fulfillment-sim/internal/services/scenario"
)

// main is the application composition root.
// It wires concrete adapters (SQLite warehouse) behind ports and starts the
// dashboard-facing HTTP server. Graph and plans come from the warehouse the
// control CLI writes to.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	dbPath := config.Get("DB_PATH", "data/fulfillment.db")
	port := config.Get("PORT", "8080")

	db, err := openDB(dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := warehouse.InitSchema(db); err != nil {
		log.Fatal(err)
	}
	wh := warehouse.NewSqliteWarehouse(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, err := wh.LoadGraph(ctx)
	if err != nil {
		log.Fatalf("no graph in warehouse (run simctl build-graph first): %v", err)
	}

	res := resolver.New(resolver.DefaultWeights())
	mgr := scenario.NewManager(g, res)
	go mgr.Run(ctx)

	// Hydrate the aggregator from the warehouse so /snapshot reflects the
	// last routed batch across server restarts.
	agg := metrics.NewAggregator(g)
	plans, err := wh.RecentPlans(ctx, 1000)
	if err != nil {
		log.Fatal(err)
	}
	for _, p := range plans {
		agg.ObservePlan(p)
	}
	log.Printf("warehouse hydrated graph_version=%d plans=%d", g.Version(), len(plans))

	// Keep the aggregator's version pointer in step with scenario commits.
	go func() {
		for c := range mgr.Subscribe() {
			if cur, err := mgr.At(ctx, c.Version); err == nil {
				agg.SetGraph(cur)
			}
		}
	}()

	router := api.NewRouter(wh, agg, mgr)

	log.Printf("Server listening addr=:%s", port)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	log.Fatal(srv.ListenAndServe())
}

func openDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("openDB: open sqlite database %q: %w", dbPath, err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("openDB: verify sqlite connection to %q: %w", dbPath, err)
	}

	return db, nil
}
