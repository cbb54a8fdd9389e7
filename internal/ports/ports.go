package ports

import (
	"context"

	"beacon/internal/domain"
)

// CompletionRequest is a single-shot prompt for a language model.
// JSON asks the backend to constrain output to a JSON object.
type CompletionRequest struct {
	System string
	Prompt string
	JSON   bool
}

// LLM answers structured prompts for profiling, validation, alias enrichment,
// competitor discovery and semantic confirmation.
type LLM interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ProviderRunner sends a scan query to a named answer engine and returns its raw answer.
type ProviderRunner interface {
	Run(ctx context.Context, provider, query string) (string, error)
}

// PageFetcher returns readable text content for a URL.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// EventPublisher emits scan lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}

// Scanner enqueues and tracks scans.
type Scanner interface {
	Enqueue(ctx context.Context, url string, form *domain.FormInput, plan string) (scanID string, err error)
	Status(ctx context.Context, scanID string) (status string, progress float64, err error)
	Get(ctx context.Context, scanID string) (domain.Scan, error)
}

// Profiles provides the latest completed scan for a domain.
type Profiles interface {
	GetLatest(ctx context.Context, domain string) (domain.Scan, error)
}
