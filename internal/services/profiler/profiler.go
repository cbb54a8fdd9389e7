// Package profiler turns a URL and optional form input into a product profile.
package profiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"beacon/internal/domain"
	"beacon/internal/llmjson"
	"beacon/internal/ports"
	"beacon/internal/services/aliases"
)

const (
	MaxContentChars = 12000
	MaxFeatures     = 8
	MaxDiscovered   = 8

	defaultCategory = "software"
	defaultPricing  = "unknown"
)

var (
	ErrInvalidURL = errors.New("profiler: url has no host")
	ErrExtraction = errors.New("profiler: unusable extraction response")
)

type Profiler struct {
	llm     ports.LLM
	fetcher ports.PageFetcher
	logger  *slog.Logger
}

func New(llm ports.LLM, fetcher ports.PageFetcher, logger *slog.Logger) *Profiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Profiler{llm: llm, fetcher: fetcher, logger: logger}
}

type extraction struct {
	BrandName       string   `json:"brand_name"`
	Tagline         string   `json:"tagline"`
	Category        string   `json:"category"`
	Subcategory     string   `json:"subcategory"`
	TargetAudience  string   `json:"target_audience"`
	CoreFeatures    []string `json:"core_features"`
	PricingModel    string   `json:"pricing_model"`
	Competitors     []string `json:"competitors"`
	Differentiators []string `json:"differentiators"`
	UseCases        []string `json:"use_cases"`
}

func (e *extraction) Validate() error {
	if strings.TrimSpace(e.BrandName) == "" && strings.TrimSpace(e.Category) == "" {
		return errors.New("neither brand_name nor category present")
	}
	return nil
}

const extractionSchema = `{
  "brand_name": "string",
  "tagline": "string",
  "category": "string",
  "subcategory": "string",
  "target_audience": "string",
  "core_features": ["string"],
  "pricing_model": "free | freemium | subscription | usage_based | one_time | enterprise | unknown",
  "competitors": ["string"],
  "differentiators": ["string"],
  "use_cases": ["string"]
}`

// Profile builds the profile for rawurl. A page fetch failure is tolerated;
// an unusable extraction response is not.
func (p *Profiler) Profile(ctx context.Context, rawurl string, form *domain.FormInput) (domain.Profile, error) {
	registrable := domain.Registrable(rawurl)
	if registrable == "" {
		return domain.Profile{}, ErrInvalidURL
	}

	content, err := p.fetcher.Fetch(ctx, rawurl)
	if err != nil {
		p.logger.WarnContext(ctx, "page fetch failed, profiling without content", "url", rawurl, "error", err)
		content = ""
	}
	content = truncate(content, MaxContentChars)

	raw, err := p.llm.Complete(ctx, ports.CompletionRequest{
		System: "You extract structured product profiles from website content. Respond with JSON only.",
		Prompt: extractionPrompt(rawurl, content, form),
		JSON:   true,
	})
	if err != nil {
		return domain.Profile{}, fmt.Errorf("profile extraction: %w", err)
	}
	ext, err := llmjson.Parse[extraction](raw).Get()
	if err != nil {
		return domain.Profile{}, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	prof := merge(ext, form, registrable)
	if len(prof.Competitors) == 0 {
		prof.Competitors = p.discoverCompetitors(ctx, prof)
	}
	return prof, nil
}

func extractionPrompt(rawurl, content string, form *domain.FormInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Website: %s\n", rawurl)
	if form != nil {
		if form.BrandName != "" {
			fmt.Fprintf(&b, "Brand (stated by owner): %s\n", form.BrandName)
		}
		if form.CoreProblem != "" {
			fmt.Fprintf(&b, "Problem it solves (stated by owner): %s\n", form.CoreProblem)
		}
	}
	b.WriteString("\nPage content:\n")
	if content == "" {
		b.WriteString("(unavailable; infer what you can from the URL)\n")
	} else {
		b.WriteString(content)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nExtract the product profile. List at most %d core features. Return JSON exactly matching:\n%s", MaxFeatures, extractionSchema)
	return b.String()
}

// merge combines extraction and form input. Form values win for identity and
// positioning fields; lists are unioned.
func merge(ext extraction, form *domain.FormInput, registrable string) domain.Profile {
	prof := domain.Profile{
		BrandName:       strings.TrimSpace(ext.BrandName),
		Domain:          registrable,
		Tagline:         strings.TrimSpace(ext.Tagline),
		Category:        strings.TrimSpace(ext.Category),
		Subcategory:     strings.TrimSpace(ext.Subcategory),
		TargetAudience:  strings.TrimSpace(ext.TargetAudience),
		CoreFeatures:    clean(ext.CoreFeatures),
		PricingModel:    strings.TrimSpace(ext.PricingModel),
		Differentiators: clean(ext.Differentiators),
		UseCases:        clean(ext.UseCases),
	}
	competitors := ext.Competitors

	if form != nil {
		if v := strings.TrimSpace(form.BrandName); v != "" {
			prof.BrandName = v
		}
		if v := domain.Registrable(form.Domain); v != "" {
			prof.Domain = v
		}
		prof.CoreProblem = strings.TrimSpace(form.CoreProblem)
		prof.TargetBuyer = strings.TrimSpace(form.TargetBuyer)
		prof.UserDifferentiators = clean(form.Differentiators)
		prof.Differentiators = mergeDifferentiators(prof.UserDifferentiators, prof.Differentiators)
		prof.BuyerQuestions = clean(form.BuyerQuestions)
		competitors = append(append([]string{}, form.Competitors...), competitors...)
	}

	if prof.BrandName == "" {
		prof.BrandName = titleCase(aliases.DomainLabel(prof.Domain))
	}
	if prof.Category == "" {
		prof.Category = defaultCategory
	}
	if prof.PricingModel == "" {
		prof.PricingModel = defaultPricing
	}
	if len(prof.CoreFeatures) > MaxFeatures {
		prof.CoreFeatures = prof.CoreFeatures[:MaxFeatures]
	}
	prof.Competitors = withoutBrand(competitors, prof.BrandName, 0)
	prof.Aliases = deriveAliases(prof.BrandName, prof.Domain)
	return prof
}

// mergeDifferentiators puts user statements first and drops scraped entries
// that are substrings of, or contain, one already kept.
func mergeDifferentiators(user, scraped []string) []string {
	out := append([]string{}, user...)
	for _, s := range scraped {
		ls := strings.ToLower(s)
		dup := false
		for _, kept := range out {
			lk := strings.ToLower(kept)
			if strings.Contains(lk, ls) || strings.Contains(ls, lk) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, s)
		}
	}
	return out
}

// deriveAliases returns the domain label, the lowercase brand and the first
// significant word of the brand. The result is never empty.
func deriveAliases(brand, registrable string) []string {
	cands := []string{
		aliases.DomainLabel(registrable),
		strings.ToLower(brand),
		aliases.FirstSignificantWord(brand),
	}
	seen := map[string]bool{}
	var out []string
	for _, c := range cands {
		k := strings.ToLower(strings.TrimSpace(c))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, strings.TrimSpace(c))
	}
	if len(out) == 0 {
		out = []string{registrable}
	}
	return out
}

type discovery struct {
	Competitors []string `json:"competitors"`
}

func (p *Profiler) discoverCompetitors(ctx context.Context, prof domain.Profile) []string {
	prompt := fmt.Sprintf(`%s (%s) is a %s product for %s.
List up to %d well-known competitors that buyers compare it with. Use product names only.
Return JSON: {"competitors": ["..."]}`,
		prof.BrandName, prof.Domain, prof.Category, orDefault(prof.TargetAudience, "general buyers"), MaxDiscovered)

	raw, err := p.llm.Complete(ctx, ports.CompletionRequest{
		System: "You are a market analyst. Respond with JSON only.",
		Prompt: prompt,
		JSON:   true,
	})
	if err != nil {
		p.logger.WarnContext(ctx, "competitor discovery failed", "brand", prof.BrandName, "error", err)
		return nil
	}
	res := llmjson.Parse[discovery](raw)
	if !res.OK() {
		p.logger.WarnContext(ctx, "competitor discovery unparseable", "brand", prof.BrandName, "error", res.Err)
		return nil
	}
	return withoutBrand(res.Value.Competitors, prof.BrandName, MaxDiscovered)
}

// withoutBrand de-duplicates names case-insensitively and drops the brand.
// limit <= 0 means no cap.
func withoutBrand(names []string, brand string, limit int) []string {
	seen := map[string]bool{strings.ToLower(brand): true}
	var out []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		k := strings.ToLower(n)
		if n == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, n)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func clean(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

func titleCase(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
