package ports

import (
	"context"

	"fulfillment-sim/internal/domain"
)

// Port: a boundary for consuming Package records from the external data
// generator or ingestion layer.
type PackageSource interface {
	// Next returns the next package record. It returns io.EOF when the
	// stream is exhausted. A record failing boundary validation comes back
	// with an error wrapping domain.ErrMalformedRecord (the package value,
	// when present, carries whatever fields did parse); the stream
	// continues past it.
	Next(ctx context.Context) (*domain.Package, error)
}
