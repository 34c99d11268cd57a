package domain

// A directed lane between two fulfillment nodes.
// Distance and cost must be non-negative; both endpoints must exist in the
// graph the lane belongs to.
type Lane struct {
	From           string
	To             string
	DistanceKm     float64
	CostPerKg      float64
	TransitMinutes float64
	Active         bool
}

// LaneRef identifies a directed lane by its endpoints.
type LaneRef struct {
	From string
	To   string
}
