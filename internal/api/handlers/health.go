package handlers

import (
	"net/http"

	"fulfillment-sim/internal/services/scenario"
)

// HealthHandler reports liveness plus the committed graph version, so the
// dashboard can tell which network topology current numbers refer to.
type HealthHandler struct {
	Manager *scenario.Manager
}

func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	res := map[string]any{"status": "ok"}
	if h.Manager != nil {
		if g, err := h.Manager.Current(r.Context()); err == nil {
			res["graph_version"] = g.Version()
		}
		res["scenario_state"] = string(h.Manager.State())
	}
	writeJSON(w, r, http.StatusOK, res)
}
