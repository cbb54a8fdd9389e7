// Package detection decides whether a brand or competitor is mentioned in a
// model answer, how confidently, and at what list position.
//
// Detection runs an ordered cascade and stops at the first hit:
// canonical-name word match, alias word match, then fuzzy token matching.
// Fuzzy hits can optionally be confirmed by a language model (Confirm).
// An Engine holds no mutable state and is safe for concurrent use.
package detection

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"beacon/internal/domain"
	"beacon/internal/ports"
)

// Config holds the tunable matching constants. The fuzzy thresholds were
// chosen empirically; keep them adjustable.
type Config struct {
	ShortNameThreshold float64 // min similarity for names of ShortNameMaxLen chars or fewer
	LongNameThreshold  float64 // min similarity for longer names
	ShortNameMaxLen    int
	MinFuzzyLen        int     // names shorter than this never fuzzy-match
	LengthTolerance    float64 // candidate length must be within this fraction of the target's
	SemanticBoost      float64
	SnippetRadius      int
}

func DefaultConfig() Config {
	return Config{
		ShortNameThreshold: 0.80,
		LongNameThreshold:  0.75,
		ShortNameMaxLen:    7,
		MinFuzzyLen:        4,
		LengthTolerance:    0.30,
		SemanticBoost:      0.2,
		SnippetRadius:      80,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ShortNameThreshold <= 0 {
		c.ShortNameThreshold = d.ShortNameThreshold
	}
	if c.LongNameThreshold <= 0 {
		c.LongNameThreshold = d.LongNameThreshold
	}
	if c.ShortNameMaxLen <= 0 {
		c.ShortNameMaxLen = d.ShortNameMaxLen
	}
	if c.MinFuzzyLen <= 0 {
		c.MinFuzzyLen = d.MinFuzzyLen
	}
	if c.LengthTolerance <= 0 {
		c.LengthTolerance = d.LengthTolerance
	}
	if c.SemanticBoost <= 0 {
		c.SemanticBoost = d.SemanticBoost
	}
	if c.SnippetRadius <= 0 {
		c.SnippetRadius = d.SnippetRadius
	}
	return c
}

// AliasLookup returns the known alternate spellings for a canonical name.
type AliasLookup interface {
	Lookup(name string) []string
}

// nameLister is implemented by alias registries that can enumerate their
// canonical names, letting New compile every pattern up front.
type nameLister interface {
	Names() []string
}

type Engine struct {
	cfg     Config
	aliases AliasLookup
	words   wordMatcher
}

// New builds an engine. Zero-valued config fields take their defaults and a
// nil alias lookup disables the alias stage.
func New(cfg Config, aliases AliasLookup) *Engine {
	var words []string
	if l, ok := aliases.(nameLister); ok {
		for _, name := range l.Names() {
			words = append(words, name)
			words = append(words, aliases.Lookup(name)...)
		}
	}
	return &Engine{cfg: cfg.withDefaults(), aliases: aliases, words: newWordMatcher(words...)}
}

// Detect runs the cascade for one target against one response.
func (e *Engine) Detect(text, target string) domain.DetectionResult {
	res := domain.DetectionResult{Target: target}
	if strings.TrimSpace(text) == "" || strings.TrimSpace(target) == "" {
		return res
	}
	names := e.names(target)

	if start, end, ok := e.words.match(text, target); ok {
		res.Detected = true
		res.Confidence = 1.0
		res.Method = domain.MethodRegex
		res.Snippet = snippet(text, start, end, e.cfg.SnippetRadius)
		res.Position = e.words.extractRank(text, names...)
		return res
	}

	for _, alias := range names[1:] {
		if start, end, ok := e.words.match(text, alias); ok {
			res.Detected = true
			res.Confidence = 1.0
			res.Method = domain.MethodAlias
			res.Snippet = snippet(text, start, end, e.cfg.SnippetRadius)
			res.Position = e.words.extractRank(text, names...)
			return res
		}
	}

	if m, ok := e.fuzzy(text, target); ok {
		res.Detected = true
		res.Confidence = m.score
		res.Method = domain.MethodFuzzy
		res.Snippet = snippet(text, m.start, m.end, e.cfg.SnippetRadius)
		res.Position = e.words.extractRank(text, m.token)
	}
	return res
}

// DetectAll applies the same cascade to every name.
func (e *Engine) DetectAll(text string, names []string) []domain.DetectionResult {
	out := make([]domain.DetectionResult, 0, len(names))
	for _, name := range names {
		out = append(out, e.Detect(text, name))
	}
	return out
}

// Confirm asks the model whether a fuzzy hit really refers to the target.
// A yes raises confidence and reclassifies the method as semantic; any other
// answer, including a failed call, clears the detection.
func (e *Engine) Confirm(ctx context.Context, llm ports.LLM, res domain.DetectionResult) domain.DetectionResult {
	if !res.Detected || res.Method != domain.MethodFuzzy || llm == nil {
		return res
	}
	answer, err := llm.Complete(ctx, ports.CompletionRequest{
		System: "You verify brand mentions. Answer with exactly one word: yes or no.",
		Prompt: fmt.Sprintf("Does the following text mention or recommend %q (allowing for misspellings)?\n\nText:\n%s", res.Target, res.Snippet),
	})
	if err == nil && isYes(answer) {
		res.Confidence = min(1.0, res.Confidence+e.cfg.SemanticBoost)
		res.Method = domain.MethodSemantic
		return res
	}
	res.Detected = false
	res.Confidence = 0
	res.Position = nil
	return res
}

func (e *Engine) names(target string) []string {
	names := []string{target}
	if e.aliases == nil {
		return names
	}
	for _, a := range e.aliases.Lookup(target) {
		if !strings.EqualFold(a, target) {
			names = append(names, a)
		}
	}
	return names
}

func isYes(answer string) bool {
	a := strings.TrimLeftFunc(strings.ToLower(answer), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	return strings.HasPrefix(a, "yes")
}

func snippet(text string, start, end, radius int) string {
	from := max(0, start-radius)
	to := min(len(text), end+radius)
	for from > 0 && !isRuneStart(text[from]) {
		from--
	}
	for to < len(text) && !isRuneStart(text[to]) {
		to++
	}
	return strings.Join(strings.Fields(text[from:to]), " ")
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
