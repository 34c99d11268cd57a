package dto

type ScenarioRequest struct {
	Type        string  `json:"type"`
	TargetNode  string  `json:"target_node,omitempty"`
	LaneFrom    string  `json:"lane_from,omitempty"`
	LaneTo      string  `json:"lane_to,omitempty"`
	NewCapacity int     `json:"new_capacity,omitempty"`
	SurgeFactor float64 `json:"surge_factor,omitempty"`
}

type ScenarioResponse struct {
	CommitID     string   `json:"commit_id"`
	GraphVersion int64    `json:"graph_version"`
	TouchedNodes []string `json:"touched_nodes"`
}
