package llm

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"beacon/internal/config"
	"beacon/internal/ports"
	"beacon/internal/retry"
)

// ErrUnknownProvider is returned by Run for a name with no configured endpoint.
type ErrUnknownProvider string

func (e ErrUnknownProvider) Error() string { return fmt.Sprintf("llm: unknown provider %q", string(e)) }

// answerTemperature matches the sampling a person gets from a consumer assistant.
const answerTemperature = 0.7

// Providers routes scan queries to named answer engines. Retries are left to
// the caller so attempts are counted once.
type Providers struct {
	clients map[string]*Client
}

func NewProviders(settings []config.ProviderSettings, httpClient *http.Client) *Providers {
	p := &Providers{clients: make(map[string]*Client, len(settings))}
	for _, s := range settings {
		p.clients[s.Name] = New(Options{
			APIKey:      s.APIKey(),
			BaseURL:     s.BaseURL,
			Model:       s.Model,
			Temperature: answerTemperature,
			HTTPClient:  httpClient,
		})
	}
	return p
}

// Names lists the configured providers in sorted order.
func (p *Providers) Names() []string {
	out := make([]string, 0, len(p.clients))
	for name := range p.clients {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (p *Providers) Run(ctx context.Context, provider, query string) (string, error) {
	c, ok := p.clients[provider]
	if !ok {
		return "", retry.Permanent(ErrUnknownProvider(provider))
	}
	return c.Complete(ctx, ports.CompletionRequest{Prompt: query})
}
