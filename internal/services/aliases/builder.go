// Package aliases builds the alias registry used by mention detection.
package aliases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"beacon/internal/domain"
	"beacon/internal/llmjson"
	"beacon/internal/ports"
)

var ErrNoBrand = errors.New("aliases: profile has no brand name")

const maxEnrichedPerBrand = 5

type Builder struct {
	llm    ports.LLM
	enrich bool
	logger *slog.Logger
}

// NewBuilder returns a builder. With enrich set and a non-nil llm, Build adds
// colloquial competitor aliases from one batched model call.
func NewBuilder(llm ports.LLM, enrich bool, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{llm: llm, enrich: enrich, logger: logger}
}

// Build derives aliases for the profile's brand and every competitor.
// Enrichment failures are logged and ignored.
func (b *Builder) Build(ctx context.Context, p domain.Profile) (Registry, error) {
	if strings.TrimSpace(p.BrandName) == "" {
		return Registry{}, ErrNoBrand
	}
	entries := make(map[string][]string, len(p.Competitors)+1)
	brandAliases := append(Variants(p.BrandName, p.Domain), p.Aliases...)
	entries[p.BrandName] = Dedupe(p.BrandName, brandAliases)

	for _, c := range p.Competitors {
		if strings.TrimSpace(c) == "" || strings.EqualFold(c, p.BrandName) {
			continue
		}
		entries[c] = Variants(c, "")
	}

	if b.enrich && b.llm != nil && len(p.Competitors) > 0 {
		if err := b.enrichCompetitors(ctx, p.BrandName, entries); err != nil {
			b.logger.WarnContext(ctx, "alias enrichment skipped", "brand", p.BrandName, "error", err)
		}
	}
	return NewRegistry(entries), nil
}

type enrichment struct {
	Aliases map[string][]string `json:"aliases"`
}

func (e *enrichment) Validate() error {
	if e.Aliases == nil {
		return errors.New("aliases object missing")
	}
	return nil
}

func (b *Builder) enrichCompetitors(ctx context.Context, brand string, entries map[string][]string) error {
	var names []string
	for name := range entries {
		if name != brand {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	prompt := fmt.Sprintf(`For each product below, list up to %d colloquial names, abbreviations or common misspellings people use in conversation.
Return JSON: {"aliases": {"<product>": ["alias", ...]}}. Use the product names exactly as given as keys.

Products:
- %s`, maxEnrichedPerBrand, strings.Join(names, "\n- "))

	raw, err := b.llm.Complete(ctx, ports.CompletionRequest{
		System: "You are a brand naming analyst. Respond with JSON only.",
		Prompt: prompt,
		JSON:   true,
	})
	if err != nil {
		return fmt.Errorf("enrichment call: %w", err)
	}
	res := llmjson.Parse[enrichment](raw)
	if !res.OK() {
		return res.Err
	}

	byKey := make(map[string]string, len(names))
	for _, n := range names {
		byKey[key(n)] = n
	}
	for returned, extra := range res.Value.Aliases {
		name, ok := byKey[key(returned)]
		if !ok {
			continue
		}
		var keep []string
		for _, a := range extra {
			if key(a) == key(brand) {
				continue
			}
			keep = append(keep, a)
			if len(keep) == maxEnrichedPerBrand {
				break
			}
		}
		entries[name] = Dedupe(name, append(entries[name], keep...))
	}
	return nil
}
