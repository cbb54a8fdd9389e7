package queries

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"beacon/internal/domain"
	"beacon/internal/llmjson"
	"beacon/internal/ports"
	"beacon/internal/services/detection"
)

const (
	// NearDuplicateThreshold is the token-set Jaccard similarity above which a
	// query counts as a near duplicate of one already kept.
	NearDuplicateThreshold = 0.75
	// BatchSize is the number of queries rated per LLM call.
	BatchSize = 20
	// MinIntentScore is the lowest intent rating a query may carry and still
	// be kept.
	MinIntentScore = 3

	neutralIntentScore = 3
	maxParallelBatches = 4
)

// Validator filters generated queries. It holds no per-profile state and can
// be shared across scans.
type Validator struct {
	llm    ports.LLM
	logger *slog.Logger
}

func NewValidator(llm ports.LLM, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{llm: llm, logger: logger}
}

// Validate drops brand-biased, duplicate and near-duplicate queries, scores
// the rest for relevance and intent, and keeps those that are relevant,
// unbiased and score at least MinIntentScore.
func (v *Validator) Validate(ctx context.Context, qs []domain.GeneratedQuery, p domain.Profile) []domain.ValidatedQuery {
	terms := biasTerms(p)

	var kept []domain.ValidatedQuery
	var keptTokens []map[string]struct{}
	seen := make(map[string]bool, len(qs))

	for _, q := range qs {
		text := strings.Join(strings.Fields(q.Text), " ")
		if text == "" {
			continue
		}
		vq := domain.ValidatedQuery{Text: text, Category: q.Category, Hash: Hash(text)}
		for _, term := range terms {
			if ContainsWholeWord(text, term) {
				vq.BrandBiased = true
				break
			}
		}
		if vq.BrandBiased || seen[vq.Hash] {
			continue
		}
		seen[vq.Hash] = true

		tokens := tokenSet(text)
		near := false
		for _, other := range keptTokens {
			if jaccard(tokens, other) > NearDuplicateThreshold {
				near = true
				break
			}
		}
		if near {
			continue
		}
		kept = append(kept, vq)
		keptTokens = append(keptTokens, tokens)
	}

	v.score(ctx, kept, p)

	out := kept[:0]
	for _, q := range kept {
		if q.Relevant && !q.BrandBiased && q.IntentScore >= MinIntentScore {
			out = append(out, q)
		}
	}
	return out
}

// score rates queries in place, batch by batch. A batch whose call fails or
// whose answer cannot be parsed is accepted with a neutral score.
func (v *Validator) score(ctx context.Context, qs []domain.ValidatedQuery, p domain.Profile) {
	var g errgroup.Group
	g.SetLimit(maxParallelBatches)
	for start := 0; start < len(qs); start += BatchSize {
		batch := qs[start:min(start+BatchSize, len(qs))]
		g.Go(func() error {
			if err := v.scoreBatch(ctx, batch, p); err != nil {
				v.logger.WarnContext(ctx, "query scoring failed open", "batch_size", len(batch), "error", err)
				for i := range batch {
					batch[i].Relevant = true
					batch[i].IntentScore = neutralIntentScore
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}

type ratings struct {
	Results []rating `json:"results"`
}

type rating struct {
	Index       int  `json:"index"`
	IsRelevant  bool `json:"is_relevant"`
	IntentScore int  `json:"intent_score"`
}

func (r *ratings) Validate() error {
	if len(r.Results) == 0 {
		return errors.New("no results")
	}
	return nil
}

func (v *Validator) scoreBatch(ctx context.Context, batch []domain.ValidatedQuery, p domain.Profile) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Product category: %s\nAudience: %s\n\n", p.Category, p.TargetAudience)
	b.WriteString("Rate each question: is it something a real buyer in this market would ask an AI assistant (is_relevant), ")
	b.WriteString("and how strong is the purchase intent from 1 (idle curiosity) to 5 (ready to choose a product) (intent_score).\n\n")
	for i, q := range batch {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q.Text)
	}
	b.WriteString("\n")
	b.WriteString(`Return JSON: {"results": [{"index": 1, "is_relevant": true, "intent_score": 4}, ...]}`)

	raw, err := v.llm.Complete(ctx, ports.CompletionRequest{
		System: "You evaluate search intent. Respond with JSON only.",
		Prompt: b.String(),
		JSON:   true,
	})
	if err != nil {
		return err
	}
	res := llmjson.Parse[ratings](raw)
	if !res.OK() {
		return res.Err
	}

	byIndex := make(map[int]rating, len(res.Value.Results))
	for _, r := range res.Value.Results {
		byIndex[r.Index] = r
	}
	for i := range batch {
		r, ok := byIndex[i+1]
		if !ok {
			batch[i].Relevant = true
			batch[i].IntentScore = neutralIntentScore
			continue
		}
		batch[i].Relevant = r.IsRelevant
		batch[i].IntentScore = max(1, min(5, r.IntentScore))
	}
	return nil
}

func biasTerms(p domain.Profile) []string {
	var out []string
	for _, t := range append([]string{p.BrandName}, p.Aliases...) {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ContainsWholeWord reports a case-insensitive, word-bounded match.
func ContainsWholeWord(text, word string) bool {
	return detection.ContainsWord(text, word)
}

// Normalize lowercases text, strips punctuation and symbols, and collapses
// whitespace.
func Normalize(text string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, text)
	return strings.Join(strings.Fields(stripped), " ")
}

// Hash is the hex sha256 of the normalized text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// Jaccard returns the token-set similarity of two queries after normalization.
func Jaccard(a, b string) float64 {
	return jaccard(tokenSet(a), tokenSet(b))
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(Normalize(text)) {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
