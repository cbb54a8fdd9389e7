package profiler

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"beacon/internal/domain"
	"beacon/internal/ports"
)

type fakeFetcher struct {
	content string
	err     error
}

func (f fakeFetcher) Fetch(context.Context, string) (string, error) { return f.content, f.err }

type fakeLLM struct {
	extract   string
	discover  string
	discErr   error
	prompts   []string
	discCalls int
}

func (f *fakeLLM) Complete(_ context.Context, req ports.CompletionRequest) (string, error) {
	f.prompts = append(f.prompts, req.Prompt)
	if strings.Contains(req.Prompt, "well-known competitors") {
		f.discCalls++
		return f.discover, f.discErr
	}
	return f.extract, nil
}

func TestProfileFormWins(t *testing.T) {
	llm := &fakeLLM{extract: `{
		"brand_name": "Cal",
		"category": "scheduling software",
		"pricing_model": "freemium",
		"competitors": ["calendly", "SavvyCal", "Cal.com"],
		"differentiators": ["open source", "Self-hostable"],
		"core_features": ["a","b","c","d","e","f","g","h","i","j"]
	}`}
	form := &domain.FormInput{
		BrandName:       "Cal.com",
		Domain:          "www.cal.com",
		CoreProblem:     "booking meetings without email ping-pong",
		Differentiators: []string{"Open source scheduling"},
		Competitors:     []string{"Calendly"},
		BuyerQuestions:  []string{"How do I share my availability?"},
	}

	p, err := New(llm, fakeFetcher{content: "Cal.com is open source scheduling."}, nil).
		Profile(context.Background(), "https://cal.com/pricing", form)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if p.BrandName != "Cal.com" || p.Domain != "cal.com" {
		t.Errorf("identity = %q / %q", p.BrandName, p.Domain)
	}
	if !slices.Equal(p.Competitors, []string{"Calendly", "SavvyCal"}) {
		t.Errorf("Competitors = %q", p.Competitors)
	}
	if !slices.Equal(p.Differentiators, []string{"Open source scheduling", "Self-hostable"}) {
		t.Errorf("Differentiators = %q", p.Differentiators)
	}
	if len(p.CoreFeatures) != MaxFeatures {
		t.Errorf("CoreFeatures len = %d, want %d", len(p.CoreFeatures), MaxFeatures)
	}
	if p.CoreProblem == "" || len(p.BuyerQuestions) != 1 {
		t.Errorf("form fields not carried: %+v", p)
	}
	if len(p.Aliases) == 0 || p.Aliases[0] != "cal" {
		t.Errorf("Aliases = %q", p.Aliases)
	}
	if llm.discCalls != 0 {
		t.Error("discovery should not run when competitors are known")
	}
}

func TestProfileDiscoversCompetitors(t *testing.T) {
	llm := &fakeLLM{
		extract:  `{"brand_name": "Acme", "category": "CRM"}`,
		discover: `{"competitors": ["HubSpot", "ACME", "hubspot", "Salesforce", "Pipedrive", "Zoho", "Close", "Copper", "Freshsales", "Attio", "Folk"]}`,
	}
	p, err := New(llm, fakeFetcher{}, nil).Profile(context.Background(), "https://acme.io", nil)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if llm.discCalls != 1 {
		t.Fatalf("discovery calls = %d, want 1", llm.discCalls)
	}
	if len(p.Competitors) != MaxDiscovered {
		t.Errorf("discovered %d competitors, want %d", len(p.Competitors), MaxDiscovered)
	}
	for _, c := range p.Competitors {
		if strings.EqualFold(c, p.BrandName) {
			t.Errorf("competitors contain the brand: %q", p.Competitors)
		}
	}
}

func TestProfileDiscoveryFailureIsEmpty(t *testing.T) {
	for _, llm := range []*fakeLLM{
		{extract: `{"brand_name": "Acme"}`, discErr: errors.New("quota")},
		{extract: `{"brand_name": "Acme"}`, discover: "no idea"},
	} {
		p, err := New(llm, fakeFetcher{}, nil).Profile(context.Background(), "acme.io", nil)
		if err != nil {
			t.Fatalf("Profile() error = %v", err)
		}
		if len(p.Competitors) != 0 {
			t.Errorf("Competitors = %q, want empty", p.Competitors)
		}
	}
}

func TestProfileFetchFailureIsTolerated(t *testing.T) {
	llm := &fakeLLM{extract: `{"brand_name": "Acme", "competitors": ["Globex"]}`}
	_, err := New(llm, fakeFetcher{err: errors.New("dial tcp: timeout")}, nil).Profile(context.Background(), "https://acme.io", nil)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if !strings.Contains(llm.prompts[0], "(unavailable") {
		t.Error("prompt should note missing content")
	}
}

func TestProfileExtractionFailureIsFatal(t *testing.T) {
	for _, raw := range []string{"I could not read the site.", `{"tagline": "only this"}`} {
		llm := &fakeLLM{extract: raw}
		_, err := New(llm, fakeFetcher{}, nil).Profile(context.Background(), "https://acme.io", nil)
		if !errors.Is(err, ErrExtraction) {
			t.Errorf("Profile(%q) error = %v, want ErrExtraction", raw, err)
		}
	}
}

func TestProfileInvalidURL(t *testing.T) {
	_, err := New(&fakeLLM{}, fakeFetcher{}, nil).Profile(context.Background(), "https://", nil)
	if !errors.Is(err, ErrInvalidURL) {
		t.Errorf("error = %v, want ErrInvalidURL", err)
	}
}

func TestProfileTruncatesContent(t *testing.T) {
	llm := &fakeLLM{extract: `{"brand_name": "Acme", "competitors": ["Globex"]}`}
	content := strings.Repeat("é", MaxContentChars+500)
	if _, err := New(llm, fakeFetcher{content: content}, nil).Profile(context.Background(), "https://acme.io", nil); err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(llm.prompts[0], "é"); got != MaxContentChars {
		t.Errorf("prompt carries %d content runes, want %d", got, MaxContentChars)
	}
}

func TestMergeDefaults(t *testing.T) {
	p := merge(extraction{Category: "CRM"}, nil, "acme.io")
	if p.BrandName != "Acme" || p.PricingModel != "unknown" {
		t.Errorf("defaults = %+v", p)
	}
	p = merge(extraction{BrandName: "Acme"}, nil, "acme.io")
	if p.Category != "software" {
		t.Errorf("Category = %q, want software", p.Category)
	}
}

func TestDeriveAliases(t *testing.T) {
	tests := []struct {
		brand, domain string
		want          []string
	}{
		{"Cal.com", "cal.com", []string{"cal", "cal.com", "Calcom"}},
		{"Acme Cloud Platform", "acme.io", []string{"acme", "acme cloud platform"}},
		{"", "globex.com", []string{"globex"}},
	}
	for _, tt := range tests {
		if got := deriveAliases(tt.brand, tt.domain); !slices.Equal(got, tt.want) {
			t.Errorf("deriveAliases(%q, %q) = %q, want %q", tt.brand, tt.domain, got, tt.want)
		}
	}
}
