package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"fulfillment-sim/internal/domain"
)

// PackageSeed is the on-disk shape of one package record.
type PackageSeed struct {
	PackageID    string    `json:"package_id"`
	Origin       string    `json:"origin"`
	Destination  string    `json:"destination"`
	WeightKg     float64   `json:"weight_kg"`
	SLACategory  string    `json:"sla_category"`
	DispatchTime time.Time `json:"dispatch_time"`
}

// JSONPackageSource streams package records from a JSON array file,
// implementing ports.PackageSource. Records failing boundary validation
// come back as ErrMalformedRecord; the stream continues past them.
type JSONPackageSource struct {
	mu    sync.Mutex
	seeds []PackageSeed
	pos   int
}

// OpenJSONPackages reads and parses the seed file up front. A file that is
// not valid JSON at all is an ingestion failure, not a per-record one.
func OpenJSONPackages(path string) (*JSONPackageSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open packages: read %q: %w", path, err)
	}

	var seeds []PackageSeed
	if err := json.Unmarshal(raw, &seeds); err != nil {
		return nil, fmt.Errorf("open packages: parse %q: %w", path, err)
	}
	return &JSONPackageSource{seeds: seeds}, nil
}

// PackagesFromSeeds wraps an in-memory seed slice as a source.
func PackagesFromSeeds(seeds []PackageSeed) *JSONPackageSource {
	return &JSONPackageSource{seeds: seeds}
}

// Next returns the next record, io.EOF at the end of the stream.
func (s *JSONPackageSource) Next(ctx context.Context) (*domain.Package, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.seeds) {
		return nil, io.EOF
	}
	seed := s.seeds[s.pos]
	s.pos++

	pkg := &domain.Package{
		ID:           seed.PackageID,
		Origin:       seed.Origin,
		Destination:  seed.Destination,
		WeightKg:     seed.WeightKg,
		SLA:          domain.SLACategory(seed.SLACategory),
		DispatchTime: seed.DispatchTime,
	}
	if err := pkg.Validate(); err != nil {
		return pkg, err
	}
	return pkg, nil
}
