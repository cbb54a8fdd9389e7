package competitors

import (
	"context"
	"fmt"

	"beacon/internal/domain"
	"beacon/internal/ports"
)

var ErrNotFound = fmt.Errorf("competitors: none tracked for domain: %w", domain.ErrNotFound)

// Service reads tracked competitors back for the API.
type Service struct {
	store ports.CompetitorStore
}

func NewService(store ports.CompetitorStore) *Service { return &Service{store: store} }

func (s *Service) List(ctx context.Context, brandDomain string) ([]domain.CompetitorRecord, error) {
	registrable := domain.Registrable(brandDomain)
	if registrable == "" {
		return nil, ErrNotFound
	}
	records, err := s.store.ListCompetitors(ctx, registrable)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}
