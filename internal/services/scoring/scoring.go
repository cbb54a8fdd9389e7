// Package scoring folds response analyses into the composite visibility score.
//
// The score combines five components:
//
//	raw   = 0.35*mentionRate + 0.35*positionScore + 0.30*intentScore
//	final = round(100 * raw * consistency * densityFactor), clamped to [0,100]
//
// Every component is a sum or ratio over the full analysis set, so the result
// does not depend on the order analyses arrive in.
package scoring

import (
	"math"
	"sort"

	"beacon/internal/domain"
)

const (
	mentionWeight  = 0.35
	positionWeight = 0.35
	intentWeight   = 0.30

	consistencyFloor = 0.6
	densityPenalty   = 0.03
	densityFloor     = 0.85
)

// Config holds the tunable weight tables. A RankWeights key k applies to
// every rank >= k up to the next key.
type Config struct {
	ProviderWeights map[string]float64
	RankWeights     map[int]float64
	IntentWeights   map[domain.IntentCategory]float64
}

func DefaultConfig() Config {
	return Config{
		ProviderWeights: map[string]float64{"openai": 1.0, "anthropic": 1.0, "gemini": 0.8},
		RankWeights:     map[int]float64{1: 1.0, 2: 0.7, 3: 0.5, 4: 0.3},
		IntentWeights: map[domain.IntentCategory]float64{
			domain.IntentDirectRecommendation: 1.5,
			domain.IntentAlternatives:         1.3,
			domain.IntentComparison:           1.2,
			domain.IntentProblemBased:         1.0,
			domain.IntentFeatureBased:         1.0,
			domain.IntentBudgetBased:          0.8,
			domain.IntentUserProvided:         2.0,
		},
	}
}

type Engine struct {
	cfg      Config
	rankKeys []int
}

// New fills any empty table in cfg from DefaultConfig.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if len(cfg.ProviderWeights) == 0 {
		cfg.ProviderWeights = def.ProviderWeights
	}
	if len(cfg.RankWeights) == 0 {
		cfg.RankWeights = def.RankWeights
	}
	if len(cfg.IntentWeights) == 0 {
		cfg.IntentWeights = def.IntentWeights
	}
	keys := make([]int, 0, len(cfg.RankWeights))
	for k := range cfg.RankWeights {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return &Engine{cfg: cfg, rankKeys: keys}
}

// Score computes the breakdown over all analyses. totalQueries is recorded for
// reporting only.
func (e *Engine) Score(analyses []domain.ResponseAnalysis, totalQueries int) domain.ScoringBreakdown {
	set := sorted(analyses)
	b := domain.ScoringBreakdown{
		Consistency:   1,
		DensityFactor: 1,
		Providers:     map[string]domain.ProviderScore{},
		TotalQueries:  totalQueries,
		TotalAnalyses: len(set),
	}
	if len(set) == 0 {
		return b
	}

	b.MentionRate = e.mentionRate(set)
	b.PositionScore = e.positionScore(set, b.MentionRate)
	b.IntentScore = e.intentScore(set)
	b.Consistency = Consistency(set)
	b.DensityFactor = DensityFactor(set)
	b.RawScore = raw(b.MentionRate, b.PositionScore, b.IntentScore)
	b.FinalScore = final(b.RawScore * b.Consistency * b.DensityFactor)

	for provider, group := range byProvider(set) {
		b.Providers[provider] = e.providerScore(provider, group)
	}
	return b
}

func (e *Engine) providerScore(provider string, set []domain.ResponseAnalysis) domain.ProviderScore {
	ps := domain.ProviderScore{Provider: provider, Responses: len(set)}
	for _, a := range set {
		if a.Brand.Detected {
			ps.Mentions++
		}
	}
	ps.MentionRate = float64(ps.Mentions) / float64(len(set))
	ps.PositionScore = e.positionScore(set, ps.MentionRate)
	ps.IntentScore = e.intentScore(set)
	ps.DensityFactor = DensityFactor(set)
	ps.Score = final(raw(ps.MentionRate, ps.PositionScore, ps.IntentScore) * ps.DensityFactor)
	ps.Sentiment = sentimentBucket(ps.MentionRate, ps.PositionScore)
	return ps
}

// mentionRate is the provider-weighted share of analyses that detected the brand.
func (e *Engine) mentionRate(set []domain.ResponseAnalysis) float64 {
	var num, den float64
	for _, a := range set {
		w := e.providerWeight(a.Provider)
		den += w
		if a.Brand.Detected {
			num += w
		}
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// positionScore averages rank weights over detected mentions with a known
// rank. Unranked mentions are excluded; with no ranked mention at all the
// score falls back to half the mention rate.
func (e *Engine) positionScore(set []domain.ResponseAnalysis, mentionRate float64) float64 {
	var sum float64
	var n int
	for _, a := range set {
		if a.Brand.Detected && a.Brand.Position != nil {
			sum += e.RankWeight(*a.Brand.Position)
			n++
		}
	}
	if n == 0 {
		return mentionRate / 2
	}
	return sum / float64(n)
}

func (e *Engine) intentScore(set []domain.ResponseAnalysis) float64 {
	var num, den float64
	for _, a := range set {
		w := e.intentWeight(a.Query.Category)
		den += w
		if a.Brand.Detected {
			num += w
		}
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// RankWeight maps a 1-based rank to its weight.
func (e *Engine) RankWeight(rank int) float64 {
	w := 0.0
	for _, k := range e.rankKeys {
		if k > rank {
			break
		}
		w = e.cfg.RankWeights[k]
	}
	return w
}

func (e *Engine) providerWeight(provider string) float64 {
	if w, ok := e.cfg.ProviderWeights[provider]; ok {
		return w
	}
	return 1.0
}

func (e *Engine) intentWeight(c domain.IntentCategory) float64 {
	if w, ok := e.cfg.IntentWeights[c]; ok {
		return w
	}
	return 1.0
}

// Consistency measures pairwise agreement on brand detection between
// providers answering the same query, rescaled into [0.6, 1.0]. It is 1.0 when
// fewer than two providers took part.
func Consistency(set []domain.ResponseAnalysis) float64 {
	providers := map[string]bool{}
	outcomes := map[string]map[string]bool{}
	for _, a := range set {
		providers[a.Provider] = true
		k := queryKey(a.Query)
		if outcomes[k] == nil {
			outcomes[k] = map[string]bool{}
		}
		outcomes[k][a.Provider] = outcomes[k][a.Provider] || a.Brand.Detected
	}
	if len(providers) < 2 {
		return 1
	}

	var pairs, agree int
	for _, byProv := range outcomes {
		vals := make([]bool, 0, len(byProv))
		for _, v := range byProv {
			vals = append(vals, v)
		}
		for i := 0; i < len(vals); i++ {
			for j := i + 1; j < len(vals); j++ {
				pairs++
				if vals[i] == vals[j] {
					agree++
				}
			}
		}
	}
	if pairs == 0 {
		return 1
	}
	return consistencyFloor + (1-consistencyFloor)*float64(agree)/float64(pairs)
}

// DensityFactor penalizes answer sets crowded with competitors: 3% per
// average detected competitor, never below 0.85.
func DensityFactor(set []domain.ResponseAnalysis) float64 {
	if len(set) == 0 {
		return 1
	}
	var total int
	for _, a := range set {
		total += len(a.DetectedCompetitors())
	}
	avg := float64(total) / float64(len(set))
	return math.Max(densityFloor, 1-densityPenalty*avg)
}

func sentimentBucket(mentionRate, position float64) domain.Sentiment {
	switch {
	case mentionRate >= 0.5 && position >= 0.5:
		return domain.SentimentPositive
	case mentionRate < 0.2:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}

func raw(mention, position, intent float64) float64 {
	return mentionWeight*mention + positionWeight*position + intentWeight*intent
}

func final(v float64) int {
	s := int(math.Round(100 * v))
	return max(0, min(100, s))
}

func queryKey(q domain.ValidatedQuery) string {
	if q.Hash != "" {
		return q.Hash
	}
	return q.Text
}

func byProvider(set []domain.ResponseAnalysis) map[string][]domain.ResponseAnalysis {
	out := map[string][]domain.ResponseAnalysis{}
	for _, a := range set {
		out[a.Provider] = append(out[a.Provider], a)
	}
	return out
}

// sorted returns a copy in a canonical order so floating point sums are
// identical however the input was ordered.
func sorted(in []domain.ResponseAnalysis) []domain.ResponseAnalysis {
	out := append([]domain.ResponseAnalysis(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return queryKey(out[i].Query) < queryKey(out[j].Query)
	})
	return out
}
