// Package profiles serves the most recent completed scan for a domain.
package profiles

import (
	"context"
	"fmt"

	"beacon/internal/domain"
	"beacon/internal/ports"
)

var ErrNotFound = fmt.Errorf("profile %w", domain.ErrNotFound)

type Service struct {
	scans ports.AnalyticsReader
}

func New(scans ports.AnalyticsReader) *Service { return &Service{scans: scans} }

// GetLatest accepts a bare domain or a URL and returns the newest completed
// scan for its registrable domain.
func (s *Service) GetLatest(ctx context.Context, name string) (domain.Scan, error) {
	registrable := domain.Registrable(name)
	if registrable == "" {
		return domain.Scan{}, ErrNotFound
	}
	scans, err := s.scans.LatestScans(ctx, registrable, 1)
	if err != nil {
		return domain.Scan{}, err
	}
	if len(scans) == 0 || scans[0].Profile == nil {
		return domain.Scan{}, ErrNotFound
	}
	return scans[0], nil
}
