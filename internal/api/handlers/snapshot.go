package handlers

import (
	"net/http"

	"fulfillment-sim/internal/api/dto"
	"fulfillment-sim/internal/services/metrics"
)

// SnapshotHandler serves a consistent point-in-time view of the aggregator.
type SnapshotHandler struct {
	Aggregator *metrics.Aggregator
}

func (h *SnapshotHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap := h.Aggregator.Snapshot()

	res := dto.SnapshotResponse{
		SnapshotID:        snap.ID,
		TakenAt:           snap.TakenAt,
		GraphVersion:      snap.GraphVersion,
		Plans:             snap.Plans,
		Undeliverable:     snap.Undeliverable,
		Malformed:         snap.Malformed,
		Failed:            snap.Failed,
		AvgDistanceKm:     snap.AvgDistanceKm,
		AvgCostUSD:        snap.AvgCostUSD,
		AvgTransitMinutes: snap.AvgTransitMinutes,
		Nodes:             make([]dto.NodeLoadResponse, 0, len(snap.Nodes)),
		Lanes:             make([]dto.LaneUtilizationResponse, 0, len(snap.Lanes)),
		SLA:               make([]dto.SLAStatResponse, 0, len(snap.SLA)),
	}
	for _, n := range snap.Nodes {
		res.Nodes = append(res.Nodes, dto.NodeLoadResponse{
			NodeID:        n.NodeID,
			Packages:      n.Packages,
			Intermediate:  n.Intermediate,
			TotalWeightKg: n.TotalWeightKg,
			DailyCapacity: n.DailyCapacity,
			Overloaded:    n.Overloaded,
		})
	}
	for _, l := range snap.Lanes {
		res.Lanes = append(res.Lanes, dto.LaneUtilizationResponse{
			From:          l.From,
			To:            l.To,
			Plans:         l.Plans,
			TotalWeightKg: l.TotalWeightKg,
		})
	}
	for _, s := range snap.SLA {
		res.SLA = append(res.SLA, dto.SLAStatResponse{
			Category:  string(s.Category),
			Total:     s.Total,
			Compliant: s.Compliant,
			Ratio:     s.Ratio,
		})
	}

	writeJSON(w, r, http.StatusOK, res)
}
