package dto

type PlanResponse struct {
	PackageID           string   `json:"package_id"`
	GraphVersion        int64    `json:"graph_version"`
	Path                []string `json:"path"`
	WeightKg            float64  `json:"weight_kg"`
	SLACategory         string   `json:"sla_category"`
	TotalDistanceKm     float64  `json:"total_distance_km"`
	TotalCostUSD        float64  `json:"total_cost_usd"`
	TotalTransitMinutes float64  `json:"total_transit_minutes"`
	SLACompliant        bool     `json:"sla_compliant"`
}

type ListPlansResponse struct {
	Plans []PlanResponse `json:"plans"`
}
