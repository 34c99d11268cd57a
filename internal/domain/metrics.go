package domain

import "time"

// NodeLoad is the running load attributed to one node for the current period.
type NodeLoad struct {
	NodeID        string
	Packages      int // plans whose path includes the node
	Intermediate  int // of those, plans where the node is a non-endpoint hop
	TotalWeightKg float64
	DailyCapacity int
	Overloaded    bool
}

// LaneUtilization counts plans crossing one directed lane.
type LaneUtilization struct {
	From          string
	To            string
	Plans         int
	TotalWeightKg float64
}

// SLAStat is the compliance ratio for one SLA category.
type SLAStat struct {
	Category  SLACategory
	Total     int
	Compliant int
	Ratio     float64
}

// MetricsSnapshot is a consistent point-in-time view of the aggregator:
// no partial updates are ever visible inside one snapshot.
type MetricsSnapshot struct {
	ID                string
	TakenAt           time.Time
	GraphVersion      int64
	Plans             int
	Undeliverable     int
	Malformed         int
	Failed            int
	AvgDistanceKm     float64
	AvgCostUSD        float64
	AvgTransitMinutes float64
	Nodes             []NodeLoad
	Lanes             []LaneUtilization
	SLA               []SLAStat
}
