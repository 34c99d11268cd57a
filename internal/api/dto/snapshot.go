package dto

import "time"

type NodeLoadResponse struct {
	NodeID        string  `json:"node_id"`
	Packages      int     `json:"packages"`
	Intermediate  int     `json:"intermediate"`
	TotalWeightKg float64 `json:"total_weight_kg"`
	DailyCapacity int     `json:"daily_capacity"`
	Overloaded    bool    `json:"overloaded"`
}

type LaneUtilizationResponse struct {
	From          string  `json:"from"`
	To            string  `json:"to"`
	Plans         int     `json:"plans"`
	TotalWeightKg float64 `json:"total_weight_kg"`
}

type SLAStatResponse struct {
	Category  string  `json:"category"`
	Total     int     `json:"total"`
	Compliant int     `json:"compliant"`
	Ratio     float64 `json:"ratio"`
}

type SnapshotResponse struct {
	SnapshotID        string                    `json:"snapshot_id"`
	TakenAt           time.Time                 `json:"taken_at"`
	GraphVersion      int64                     `json:"graph_version"`
	Plans             int                       `json:"plans"`
	Undeliverable     int                       `json:"undeliverable"`
	Malformed         int                       `json:"malformed"`
	Failed            int                       `json:"failed"`
	AvgDistanceKm     float64                   `json:"avg_distance_km"`
	AvgCostUSD        float64                   `json:"avg_cost_usd"`
	AvgTransitMinutes float64                   `json:"avg_transit_minutes"`
	Nodes             []NodeLoadResponse        `json:"nodes"`
	Lanes             []LaneUtilizationResponse `json:"lanes"`
	SLA               []SLAStatResponse         `json:"sla"`
}
