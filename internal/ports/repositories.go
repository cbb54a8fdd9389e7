package ports

import (
	"context"

	"beacon/internal/domain"
)

// DomainRepository stores and fetches domains by registrable domain (eTLD+1).
type DomainRepository interface {
	GetOrCreate(ctx context.Context, registrable string) (domainID string, err error)
}

// ScanRepository manages scan records.
type ScanRepository interface {
	Create(ctx context.Context, domainID string, url string, form *domain.FormInput, plan string) (scanID string, err error)
	Status(ctx context.Context, scanID string) (status string, progress float64, err error)
	Get(ctx context.Context, scanID string) (domain.Scan, error)
}

// ScanStore receives the pipeline's writes: the validated query set and the
// final scan record with its response rows.
type ScanStore interface {
	SaveQuerySet(ctx context.Context, set domain.QuerySet) error
	SaveScanResult(ctx context.Context, result domain.ScanResult) error
}

// CompetitorStore holds the tracked top competitors per brand domain.
// Replace swaps the full set for a domain.
type CompetitorStore interface {
	ListCompetitors(ctx context.Context, brandDomain string) ([]domain.CompetitorRecord, error)
	ReplaceCompetitors(ctx context.Context, brandDomain string, records []domain.CompetitorRecord) error
}

// AnalyticsReader reads back completed scans and their response rows.
type AnalyticsReader interface {
	LatestScans(ctx context.Context, registrable string, limit int) ([]domain.Scan, error)
	ScanResponses(ctx context.Context, scanID string) ([]domain.StoredResponse, error)
}
