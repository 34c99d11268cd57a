package domain

import "time"

// ScenarioEventType enumerates the supported "what-if" disruptions.
type ScenarioEventType string

const (
	BlackoutNode   ScenarioEventType = "BLACKOUT_NODE"
	BlackoutLane   ScenarioEventType = "BLACKOUT_EDGE"
	CapacityChange ScenarioEventType = "CAPACITY_CHANGE"
	VolumeSurge    ScenarioEventType = "VOLUME_SURGE"
)

// A ScenarioEvent describes one disruption applied to the network.
// Node-targeted events set TargetNode; BLACKOUT_EDGE sets TargetLane.
// Applying an event never edits a graph version in place; it produces the
// next version in the append-only sequence.
type ScenarioEvent struct {
	Type           ScenarioEventType
	TargetNode     string
	TargetLane     *LaneRef
	NewCapacity    int     // CAPACITY_CHANGE only
	SurgeFactor    float64 // VOLUME_SURGE only, > 0
	EffectiveFrom  time.Time
	EffectiveUntil time.Time
}
