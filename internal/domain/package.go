package domain

import (
	"fmt"
	"time"
)

// Represents a single shipment unit flowing through the network.
// A Package enters the engine from the external data generator with all
// fields populated; Validate gates the ingestion boundary.
type Package struct {
	ID           string
	Origin       string
	Destination  string
	WeightKg     float64
	SLA          SLACategory
	DispatchTime time.Time
}

// Validate rejects records the ingestion boundary must not let through.
// Failures wrap ErrMalformedRecord so the caller can skip-and-count without
// aborting the stream.
func (p Package) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: package with empty id", ErrMalformedRecord)
	}
	if p.Origin == "" {
		return fmt.Errorf("%w: package %s has empty origin", ErrMalformedRecord, p.ID)
	}
	if p.Destination == "" {
		return fmt.Errorf("%w: package %s has empty destination", ErrMalformedRecord, p.ID)
	}
	if p.Origin == p.Destination {
		return fmt.Errorf("%w: package %s origin and destination are both %q", ErrMalformedRecord, p.ID, p.Origin)
	}
	if p.WeightKg <= 0 {
		return fmt.Errorf("%w: package %s has weight %g, must be > 0", ErrMalformedRecord, p.ID, p.WeightKg)
	}
	if !p.SLA.Valid() {
		return fmt.Errorf("%w: package %s has unknown sla category %q", ErrMalformedRecord, p.ID, p.SLA)
	}
	return nil
}
