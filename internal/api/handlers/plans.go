package handlers

import (
	"log"
	"net/http"
	"strconv"

	"fulfillment-sim/internal/api/dto"
	"fulfillment-sim/internal/ports"
)

// PlanHandler exposes read-only access to the most recently resolved plans.
type PlanHandler struct {
	Store ports.PlanStore
}

func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, r, http.StatusBadRequest, "limit must be an integer between 1 and 1000")
			return
		}
		limit = n
	}

	plans, err := h.Store.RecentPlans(r.Context(), limit)
	if err != nil {
		log.Printf("list plans failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	res := dto.ListPlansResponse{
		Plans: make([]dto.PlanResponse, 0, len(plans)),
	}
	for _, p := range plans {
		res.Plans = append(res.Plans, dto.PlanResponse{
			PackageID:           p.PackageID,
			GraphVersion:        p.GraphVersion,
			Path:                p.Path,
			WeightKg:            p.WeightKg,
			SLACategory:         string(p.SLA),
			TotalDistanceKm:     p.TotalDistanceKm,
			TotalCostUSD:        p.TotalCostUSD,
			TotalTransitMinutes: p.TotalTransitMinutes,
			SLACompliant:        p.SLACompliant,
		})
	}

	writeJSON(w, r, http.StatusOK, res)
}
