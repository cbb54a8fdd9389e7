// Package queries synthesizes intent-driven test queries for a profile and
// filters them down to an unbiased, de-duplicated, relevant set.
package queries

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"beacon/internal/domain"
	"beacon/internal/llmjson"
	"beacon/internal/ports"
)

type field string

const (
	fieldCategory        field = "category"
	fieldSubcategory     field = "subcategory"
	fieldAudience        field = "target_audience"
	fieldFeatures        field = "core_features"
	fieldUseCases        field = "use_cases"
	fieldCompetitors     field = "competitors"
	fieldDifferentiators field = "differentiators"
	fieldPricing         field = "pricing_model"
	fieldCoreProblem     field = "core_problem"
	fieldTargetBuyer     field = "target_buyer"
)

// cluster is one generation strategy. Only the listed fields of the profile
// are surfaced in its prompt.
type cluster struct {
	intent      domain.IntentCategory
	target      int
	instruction string
	fields      []field
}

var clusters = []cluster{
	{
		intent:      domain.IntentDirectRecommendation,
		target:      5,
		instruction: "Ask an AI assistant directly for the best tools or services in this category, the way a buyer would.",
		fields:      []field{fieldCategory, fieldSubcategory, fieldAudience, fieldTargetBuyer},
	},
	{
		intent:      domain.IntentAlternatives,
		target:      4,
		instruction: "Ask for alternatives to the named competitors, as someone unhappy with their current tool.",
		fields:      []field{fieldCategory, fieldCompetitors},
	},
	{
		intent:      domain.IntentComparison,
		target:      4,
		instruction: "Ask the assistant to compare or rank options in this space, naming competitors where natural.",
		fields:      []field{fieldCategory, fieldSubcategory, fieldCompetitors},
	},
	{
		intent:      domain.IntentProblemBased,
		target:      5,
		instruction: "Describe the underlying problem or job to be done and ask what to use, without naming any product.",
		fields:      []field{fieldCoreProblem, fieldUseCases, fieldAudience},
	},
	{
		intent:      domain.IntentFeatureBased,
		target:      4,
		instruction: "Ask for tools that have specific capabilities.",
		fields:      []field{fieldCategory, fieldFeatures, fieldDifferentiators},
	},
	{
		intent:      domain.IntentBudgetBased,
		target:      3,
		instruction: "Ask for affordable, free or best-value options, mentioning budget constraints.",
		fields:      []field{fieldCategory, fieldPricing, fieldAudience},
	},
}

var errNoQueries = errors.New("no queries in response")

// Generator produces candidate queries per intent category.
type Generator struct {
	llm    ports.LLM
	logger *slog.Logger
}

func NewGenerator(llm ports.LLM, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{llm: llm, logger: logger}
}

// Generate runs every category concurrently. A failing category is logged and
// contributes nothing. Buyer questions are included verbatim first; the total
// is capped by plan.QueryLimit.
func (g *Generator) Generate(ctx context.Context, p domain.Profile, plan domain.Plan) []domain.GeneratedQuery {
	results := make([][]domain.GeneratedQuery, len(clusters))

	var wg sync.WaitGroup
	for i, c := range clusters {
		n := c.target
		if plan.PerClusterLimit > 0 && plan.PerClusterLimit < n {
			n = plan.PerClusterLimit
		}
		wg.Add(1)
		go func(i int, c cluster, n int) {
			defer wg.Done()
			qs, err := g.generateCluster(ctx, p, c, n)
			if err != nil {
				g.logger.WarnContext(ctx, "query category failed", "category", c.intent, "error", err)
				return
			}
			results[i] = qs
		}(i, c, n)
	}
	wg.Wait()

	var out []domain.GeneratedQuery
	for _, q := range p.BuyerQuestions {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, domain.GeneratedQuery{Text: q, Category: domain.IntentUserProvided})
		}
	}
	for _, qs := range results {
		out = append(out, qs...)
	}
	if plan.QueryLimit > 0 && len(out) > plan.QueryLimit {
		out = out[:plan.QueryLimit]
	}
	return out
}

type generated struct {
	Queries []string `json:"queries"`
}

func (g *generated) Validate() error {
	if len(g.Queries) == 0 {
		return errNoQueries
	}
	return nil
}

func (g *Generator) generateCluster(ctx context.Context, p domain.Profile, c cluster, n int) ([]domain.GeneratedQuery, error) {
	raw, err := g.llm.Complete(ctx, ports.CompletionRequest{
		System: "You write realistic questions that people type into AI assistants. Respond with JSON only.",
		Prompt: clusterPrompt(p, c, n),
		JSON:   true,
	})
	if err != nil {
		return nil, err
	}
	res := llmjson.Parse[generated](raw)
	if !res.OK() {
		return nil, res.Err
	}
	var out []domain.GeneratedQuery
	for _, q := range res.Value.Queries {
		if q = strings.TrimSpace(q); q == "" {
			continue
		}
		out = append(out, domain.GeneratedQuery{Text: q, Category: c.intent})
		if len(out) == n {
			break
		}
	}
	return out, nil
}

func clusterPrompt(p domain.Profile, c cluster, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Intent: %s\n%s\n\nContext:\n", c.intent, c.instruction)
	for _, f := range c.fields {
		if v := fieldValue(p, f); v != "" {
			fmt.Fprintf(&b, "- %s: %s\n", f, v)
		}
	}
	forbidden := append([]string{p.BrandName}, p.Aliases...)
	fmt.Fprintf(&b, "\nRules:\n- Write exactly %d distinct questions.\n", n)
	fmt.Fprintf(&b, "- Never mention any of these names: %s.\n", strings.Join(forbidden, ", "))
	b.WriteString("- Vary phrasing and length; sound like a real buyer.\n")
	b.WriteString(`Return JSON: {"queries": ["...", "..."]}`)
	return b.String()
}

func fieldValue(p domain.Profile, f field) string {
	switch f {
	case fieldCategory:
		return p.Category
	case fieldSubcategory:
		return p.Subcategory
	case fieldAudience:
		return p.TargetAudience
	case fieldFeatures:
		return strings.Join(p.CoreFeatures, "; ")
	case fieldUseCases:
		return strings.Join(p.UseCases, "; ")
	case fieldCompetitors:
		return strings.Join(p.Competitors, ", ")
	case fieldDifferentiators:
		return strings.Join(append(append([]string{}, p.UserDifferentiators...), p.Differentiators...), "; ")
	case fieldPricing:
		return p.PricingModel
	case fieldCoreProblem:
		return p.CoreProblem
	case fieldTargetBuyer:
		return p.TargetBuyer
	}
	return ""
}
