package queries

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"beacon/internal/domain"
	"beacon/internal/ports"
)

type fakeLLM struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	reply   func(prompt string) (string, error)
}

func (f *fakeLLM) Complete(_ context.Context, req ports.CompletionRequest) (string, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, req.Prompt)
	f.mu.Unlock()
	return f.reply(req.Prompt)
}

func intentOf(prompt string) string {
	first, _, _ := strings.Cut(prompt, "\n")
	return strings.TrimPrefix(first, "Intent: ")
}

// perIntent answers each category prompt with five numbered queries.
func perIntent(fail string) func(string) (string, error) {
	return func(prompt string) (string, error) {
		intent := intentOf(prompt)
		if intent == fail {
			return "", errors.New("upstream timeout")
		}
		var qs []string
		for i := 1; i <= 5; i++ {
			qs = append(qs, fmt.Sprintf("%q", fmt.Sprintf("%s question %d", intent, i)))
		}
		return `{"queries": [` + strings.Join(qs, ",") + `]}`, nil
	}
}

var testProfile = domain.Profile{
	BrandName:      "Cal.com",
	Domain:         "cal.com",
	Category:       "scheduling software",
	TargetAudience: "freelancers",
	Competitors:    []string{"Calendly", "SavvyCal"},
	PricingModel:   "freemium",
	Aliases:        []string{"cal", "cal.com"},
	BuyerQuestions: []string{"How do I stop double bookings?", "  "},
}

func TestGenerateCapsAndOrder(t *testing.T) {
	llm := &fakeLLM{reply: perIntent("")}
	plan := domain.Plan{PerClusterLimit: 2, QueryLimit: 100}

	got := NewGenerator(llm, nil).Generate(context.Background(), testProfile, plan)

	if llm.calls != len(clusters) {
		t.Errorf("llm calls = %d, want %d", llm.calls, len(clusters))
	}
	if len(got) != 1+2*len(clusters) {
		t.Fatalf("got %d queries, want %d", len(got), 1+2*len(clusters))
	}
	if got[0].Category != domain.IntentUserProvided || got[0].Text != "How do I stop double bookings?" {
		t.Errorf("first query = %+v, want the buyer question", got[0])
	}
	counts := map[domain.IntentCategory]int{}
	for _, q := range got {
		counts[q.Category]++
	}
	for _, c := range clusters {
		if counts[c.intent] != 2 {
			t.Errorf("%s count = %d, want 2", c.intent, counts[c.intent])
		}
	}
	if got[1].Category != clusters[0].intent {
		t.Errorf("generated queries should follow declaration order, got %s first", got[1].Category)
	}
}

func TestGenerateFailedCategoryContributesNothing(t *testing.T) {
	llm := &fakeLLM{reply: perIntent(string(domain.IntentComparison))}
	got := NewGenerator(llm, nil).Generate(context.Background(), testProfile, domain.Plan{PerClusterLimit: 5, QueryLimit: 100})

	for _, q := range got {
		if q.Category == domain.IntentComparison {
			t.Fatalf("failed category produced %q", q.Text)
		}
	}
	want := 1
	for _, c := range clusters {
		if c.intent != domain.IntentComparison {
			want += min(c.target, 5)
		}
	}
	if len(got) != want {
		t.Errorf("got %d queries, want %d", len(got), want)
	}
}

func TestGenerateQueryLimit(t *testing.T) {
	llm := &fakeLLM{reply: perIntent("")}
	got := NewGenerator(llm, nil).Generate(context.Background(), testProfile, domain.Plan{PerClusterLimit: 5, QueryLimit: 4})
	if len(got) != 4 {
		t.Fatalf("got %d queries, want 4", len(got))
	}
	if got[0].Category != domain.IntentUserProvided {
		t.Errorf("buyer questions must survive the cap first, got %s", got[0].Category)
	}
}

func TestClusterPromptAllowList(t *testing.T) {
	var budget cluster
	for _, c := range clusters {
		if c.intent == domain.IntentBudgetBased {
			budget = c
		}
	}
	prompt := clusterPrompt(testProfile, budget, 3)
	if strings.Contains(prompt, "competitors:") {
		t.Error("budget prompt should not surface competitors")
	}
	if !strings.Contains(prompt, "pricing_model: freemium") {
		t.Error("budget prompt should surface pricing")
	}
	if !strings.Contains(prompt, "Never mention any of these names: Cal.com, cal, cal.com") {
		t.Errorf("prompt does not forbid the brand:\n%s", prompt)
	}
}

// allRelevant rates every index 1..20 as relevant with the given score.
func allRelevant(score int) func(string) (string, error) {
	return func(string) (string, error) {
		var rs []string
		for i := 1; i <= BatchSize; i++ {
			rs = append(rs, fmt.Sprintf(`{"index": %d, "is_relevant": true, "intent_score": %d}`, i, score))
		}
		return `{"results": [` + strings.Join(rs, ",") + `]}`, nil
	}
}

func gen(texts ...string) []domain.GeneratedQuery {
	out := make([]domain.GeneratedQuery, len(texts))
	for i, t := range texts {
		out[i] = domain.GeneratedQuery{Text: t, Category: domain.IntentProblemBased}
	}
	return out
}

func texts(qs []domain.ValidatedQuery) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.Text
	}
	return out
}

func TestValidateBiasAndDuplicates(t *testing.T) {
	llm := &fakeLLM{reply: allRelevant(4)}
	in := gen(
		"What is the best scheduling tool?",
		"what is the BEST   scheduling tool",
		"Is Cal.com good for teams?",
		"alternatives to cal for freelancers",
		"Best scheduling tool for small teams?",
		"best crm for startups",
		"the best crm for startups",
		"Which scheduling app has round robin?",
	)

	got := NewValidator(llm, nil).Validate(context.Background(), in, testProfile)

	want := []string{
		"What is the best scheduling tool?",
		"Best scheduling tool for small teams?",
		"best crm for startups",
		"Which scheduling app has round robin?",
	}
	if strings.Join(texts(got), "|") != strings.Join(want, "|") {
		t.Fatalf("Validate() = %q, want %q", texts(got), want)
	}

	hashes := map[string]bool{}
	for i, q := range got {
		if hashes[q.Hash] {
			t.Errorf("duplicate hash for %q", q.Text)
		}
		hashes[q.Hash] = true
		for _, other := range got[i+1:] {
			if j := Jaccard(q.Text, other.Text); j > NearDuplicateThreshold {
				t.Errorf("Jaccard(%q, %q) = %.2f", q.Text, other.Text, j)
			}
		}
		if q.IntentScore != 4 || !q.Relevant || q.BrandBiased {
			t.Errorf("unexpected rating %+v", q)
		}
	}
}

func TestValidateFailsOpen(t *testing.T) {
	for name, reply := range map[string]func(string) (string, error){
		"call error":  func(string) (string, error) { return "", errors.New("503") },
		"unparseable": func(string) (string, error) { return "Sure! Here are my ratings.", nil },
		"empty list":  func(string) (string, error) { return `{"results": []}`, nil },
	} {
		t.Run(name, func(t *testing.T) {
			llm := &fakeLLM{reply: reply}
			got := NewValidator(llm, nil).Validate(context.Background(), gen("how to book meetings across time zones", "free booking page for tutors"), testProfile)
			if len(got) != 2 {
				t.Fatalf("fail-open kept %d queries, want 2", len(got))
			}
			for _, q := range got {
				if !q.Relevant || q.IntentScore != 3 {
					t.Errorf("fail-open rating = %+v", q)
				}
			}
		})
	}
}

func TestValidateFinalFilter(t *testing.T) {
	llm := &fakeLLM{reply: func(string) (string, error) {
		return `{"results": [
			{"index": 1, "is_relevant": false, "intent_score": 5},
			{"index": 2, "is_relevant": true, "intent_score": 2},
			{"index": 3, "is_relevant": true, "intent_score": 9}
		]}`, nil
	}}
	got := NewValidator(llm, nil).Validate(context.Background(), gen("weather today", "history of calendars", "best booking tool for clinics"), testProfile)
	if len(got) != 1 || got[0].Text != "best booking tool for clinics" || got[0].IntentScore != 5 {
		t.Errorf("Validate() = %+v", got)
	}
}

func TestValidateBatches(t *testing.T) {
	var in []string
	for i := 0; i < 45; i++ {
		in = append(in, fmt.Sprintf("alpha%d beta%d gamma%d", i, i, i))
	}
	llm := &fakeLLM{reply: allRelevant(3)}
	got := NewValidator(llm, nil).Validate(context.Background(), gen(in...), testProfile)
	if llm.calls != 3 {
		t.Errorf("llm calls = %d, want 3 batches", llm.calls)
	}
	if len(got) != 45 {
		t.Errorf("kept %d queries, want 45", len(got))
	}
}

func TestNormalizeHashJaccard(t *testing.T) {
	if got := Normalize("  What's   the BEST, tool?! "); got != "whats the best tool" {
		t.Errorf("Normalize() = %q", got)
	}
	if Hash("Best tool?") != Hash("best   TOOL") {
		t.Error("Hash should be computed over the normalized text")
	}
	if got := Jaccard("a b c", "a b d"); got != 0.5 {
		t.Errorf("Jaccard() = %v, want 0.5", got)
	}
	if !ContainsWholeWord("Try Notion today", "notion") || ContainsWholeWord("notional value", "Notion") {
		t.Error("ContainsWholeWord boundary handling")
	}
}
