package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"fulfillment-sim/internal/api/dto"
	"fulfillment-sim/internal/domain"
	"fulfillment-sim/internal/services/scenario"
)

// ScenarioHandler accepts disruption events and commits them through the
// serialized scenario manager.
type ScenarioHandler struct {
	Manager *scenario.Manager
}

func (h *ScenarioHandler) Apply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req dto.ScenarioRequest

	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return
	}

	ev := domain.ScenarioEvent{
		Type:        domain.ScenarioEventType(req.Type),
		TargetNode:  req.TargetNode,
		NewCapacity: req.NewCapacity,
		SurgeFactor: req.SurgeFactor,
	}
	if req.LaneFrom != "" || req.LaneTo != "" {
		ev.TargetLane = &domain.LaneRef{From: req.LaneFrom, To: req.LaneTo}
	}

	commit, err := h.Manager.Apply(r.Context(), ev)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidReference) {
			writeError(w, r, http.StatusUnprocessableEntity, err.Error())
			return
		}
		log.Printf("apply scenario failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	res := dto.ScenarioResponse{
		CommitID:     commit.CommitID,
		GraphVersion: commit.Version,
		TouchedNodes: commit.Touched,
	}
	writeJSON(w, r, http.StatusOK, res)
}
