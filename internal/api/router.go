package api

import (
	"net/http"

	"fulfillment-sim/internal/api/handlers"
	"fulfillment-sim/internal/ports"
	"fulfillment-sim/internal/services/metrics"
	"fulfillment-sim/internal/services/scenario"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(store ports.PlanStore, agg *metrics.Aggregator, mgr *scenario.Manager) http.Handler {
	mux := http.NewServeMux()

	healthHandler := &handlers.HealthHandler{Manager: mgr}
	planHandler := &handlers.PlanHandler{Store: store}
	snapshotHandler := &handlers.SnapshotHandler{Aggregator: agg}
	scenarioHandler := &handlers.ScenarioHandler{Manager: mgr}

	mux.HandleFunc("/health", healthHandler.Get)
	mux.HandleFunc("/plans", planHandler.List)
	mux.HandleFunc("/snapshot", snapshotHandler.Get)
	mux.HandleFunc("/scenarios", scenarioHandler.Apply)

	return loggingMiddleware(mux)
}
