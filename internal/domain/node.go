package domain

// A fulfillment node: warehouse, regional hub, or customer region.
// Nodes are created at graph-build time and never deleted; a blackout
// marks the node inactive instead so historical route plans stay auditable.
type Node struct {
	ID            string
	Location      string
	Type          string
	DailyCapacity int
	Active        bool
}
