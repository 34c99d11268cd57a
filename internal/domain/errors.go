package domain

import "errors"

// Sentinel errors for programmatic classification via errors.Is().
var (
	// ErrInvalidReference indicates a mutation or query referring to an
	// unknown node or lane id. The graph is left unchanged.
	ErrInvalidReference = errors.New("invalid reference")

	// ErrMalformedRecord indicates an input package record missing required
	// fields or carrying an invalid weight. The record is skipped and
	// counted; the stream continues.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrUnreachable indicates no path exists between origin and destination
	// under the given graph version. The package is recorded as
	// undeliverable, not treated as a crash.
	ErrUnreachable = errors.New("unreachable destination")

	// ErrRoutingFailed indicates resolution still failed after the bounded
	// number of re-resolution attempts following a staleness notification.
	ErrRoutingFailed = errors.New("routing failed")
)
