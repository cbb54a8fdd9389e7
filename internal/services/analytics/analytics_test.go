package analytics

import (
	"context"
	"errors"
	"math"
	"testing"

	"beacon/internal/domain"
)

type fakeReader struct {
	scans     []domain.Scan
	responses map[string][]domain.StoredResponse
	gotLimit  int
	gotDomain string
}

func (f *fakeReader) LatestScans(_ context.Context, registrable string, limit int) ([]domain.Scan, error) {
	f.gotDomain, f.gotLimit = registrable, limit
	if limit < len(f.scans) {
		return f.scans[:limit], nil
	}
	return f.scans, nil
}

func (f *fakeReader) ScanResponses(_ context.Context, scanID string) ([]domain.StoredResponse, error) {
	return f.responses[scanID], nil
}

func score(n int) *int { return &n }

func TestComputeShareOfVoice(t *testing.T) {
	responses := []domain.StoredResponse{
		{BrandDetected: true, Competitors: []string{"Globex", "Initech"}},
		{BrandDetected: true, Competitors: []string{"globex"}},
		{BrandDetected: false, Competitors: []string{"Globex"}},
		{},
	}
	got := ComputeShareOfVoice("Acme", responses)
	if len(got) != 3 {
		t.Fatalf("shares = %+v", got)
	}
	if got[0].Name != "Globex" || got[0].Mentions != 3 || got[0].Share != 0.5 {
		t.Errorf("top share = %+v", got[0])
	}
	if got[1].Name != "Acme" || !got[1].Brand || got[1].Mentions != 2 {
		t.Errorf("brand share = %+v", got[1])
	}
	var sum float64
	for _, s := range got {
		sum += s.Share
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("shares sum to %v", sum)
	}
	if len(ComputeShareOfVoice("Acme", nil)) != 0 {
		t.Error("no responses should give no shares")
	}
}

func TestRankProviders(t *testing.T) {
	b := domain.ScoringBreakdown{Providers: map[string]domain.ProviderScore{
		"openai":    {Score: 60},
		"anthropic": {Score: 40},
		"gemini":    {Score: 60},
	}}
	got := RankProviders(b)
	order := []string{"gemini", "openai", "anthropic"}
	for i, name := range order {
		if got[i].Provider != name {
			t.Fatalf("order = %+v, want %v", got, order)
		}
	}
	if math.Abs(got[2].DeltaFromMean-(40-160.0/3)) > 1e-9 {
		t.Errorf("DeltaFromMean = %v", got[2].DeltaFromMean)
	}
}

func TestDiff(t *testing.T) {
	prev := domain.Scan{ID: "s1", Score: score(40), Breakdown: &domain.ScoringBreakdown{
		MentionRate: 0.2, Providers: map[string]domain.ProviderScore{"openai": {Score: 45}, "gemini": {Score: 30}},
	}}
	cur := domain.Scan{ID: "s2", Score: score(55), Breakdown: &domain.ScoringBreakdown{
		MentionRate: 0.35, Providers: map[string]domain.ProviderScore{"openai": {Score: 50}, "anthropic": {Score: 60}},
	}}
	d := Diff(prev, cur)
	if d.Delta != 15 || d.ScanID != "s2" || d.PreviousScanID != "s1" {
		t.Errorf("Diff() = %+v", d)
	}
	if math.Abs(d.MentionRate-0.15) > 1e-9 {
		t.Errorf("MentionRate delta = %v", d.MentionRate)
	}
	if len(d.Providers) != 1 || d.Providers["openai"] != 5 {
		t.Errorf("provider deltas = %v", d.Providers)
	}
}

func TestServiceViews(t *testing.T) {
	reader := &fakeReader{
		scans: []domain.Scan{
			{ID: "new", Domain: "acme.io", Score: score(70), Profile: &domain.Profile{BrandName: "Acme"},
				Breakdown: &domain.ScoringBreakdown{Providers: map[string]domain.ProviderScore{"openai": {Score: 70}}}},
			{ID: "old", Domain: "acme.io", Score: score(50), Breakdown: &domain.ScoringBreakdown{}},
		},
		responses: map[string][]domain.StoredResponse{
			"new": {{BrandDetected: true}, {Competitors: []string{"Globex"}}},
		},
	}
	svc := New(reader)
	ctx := context.Background()

	sov, err := svc.ShareOfVoice(ctx, "https://www.acme.io/")
	if err != nil {
		t.Fatalf("ShareOfVoice() error = %v", err)
	}
	if reader.gotDomain != "acme.io" || sov.ScanID != "new" || sov.TotalMentions != 2 {
		t.Errorf("ShareOfVoice() = %+v (queried %q)", sov, reader.gotDomain)
	}

	providers, err := svc.CompareProviders(ctx, "acme.io")
	if err != nil || len(providers) != 1 {
		t.Errorf("CompareProviders() = %+v, %v", providers, err)
	}

	delta, err := svc.ScoreDelta(ctx, "acme.io")
	if err != nil || delta.Delta != 20 || reader.gotLimit != 2 {
		t.Errorf("ScoreDelta() = %+v, %v", delta, err)
	}

	reader.scans = reader.scans[:1]
	if _, err := svc.ScoreDelta(ctx, "acme.io"); !errors.Is(err, ErrNoPreviousScan) {
		t.Errorf("single scan error = %v", err)
	}
	reader.scans = nil
	if _, err := svc.ShareOfVoice(ctx, "acme.io"); !errors.Is(err, ErrNotFound) {
		t.Errorf("no scans error = %v", err)
	}
}
