package ingest

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"fulfillment-sim/internal/domain"
)

// scenarioFile is the on-disk shape of a scenario definition.
type scenarioFile struct {
	Events []scenarioEventYAML `yaml:"events"`
}

type scenarioEventYAML struct {
	Type       string        `yaml:"type"`
	TargetNode string        `yaml:"target_node"`
	TargetLane *laneRefYAML  `yaml:"target_lane"`
	Capacity   int           `yaml:"new_capacity"`
	Surge      float64       `yaml:"surge_factor"`
	From       time.Time     `yaml:"effective_from"`
	Until      time.Time     `yaml:"effective_until"`
}

type laneRefYAML struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// LoadScenarioYAML parses a scenario definition file into the events to
// commit, in file order.
func LoadScenarioYAML(path string) ([]domain.ScenarioEvent, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario: read %q: %w", path, err)
	}

	var file scenarioFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("load scenario: parse %q: %w", path, err)
	}
	if len(file.Events) == 0 {
		return nil, fmt.Errorf("load scenario: %q defines no events", path)
	}

	events := make([]domain.ScenarioEvent, 0, len(file.Events))
	for i, ev := range file.Events {
		out := domain.ScenarioEvent{
			Type:           domain.ScenarioEventType(ev.Type),
			TargetNode:     ev.TargetNode,
			NewCapacity:    ev.Capacity,
			SurgeFactor:    ev.Surge,
			EffectiveFrom:  ev.From,
			EffectiveUntil: ev.Until,
		}
		if ev.TargetLane != nil {
			out.TargetLane = &domain.LaneRef{From: ev.TargetLane.From, To: ev.TargetLane.To}
		}

		switch out.Type {
		case domain.BlackoutNode, domain.BlackoutLane, domain.CapacityChange, domain.VolumeSurge:
		default:
			return nil, fmt.Errorf("load scenario: event %d: unknown type %q", i+1, ev.Type)
		}
		events = append(events, out)
	}
	return events, nil
}
