// Package analytics derives comparison views from persisted scans: share of
// voice, per-provider comparison and the score delta between scans.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"beacon/internal/domain"
	"beacon/internal/ports"
)

var (
	ErrNotFound       = fmt.Errorf("analytics: no completed scan for domain: %w", domain.ErrNotFound)
	ErrNoPreviousScan = fmt.Errorf("analytics: only one completed scan for domain: %w", domain.ErrNotFound)
)

type VoiceShare struct {
	Name     string  `json:"name"`
	Brand    bool    `json:"brand"`
	Mentions int     `json:"mentions"`
	Share    float64 `json:"share"`
}

type ShareOfVoice struct {
	ScanID        string       `json:"scan_id"`
	Domain        string       `json:"domain"`
	TotalMentions int          `json:"total_mentions"`
	Shares        []VoiceShare `json:"shares"`
}

type ProviderComparison struct {
	Provider      string           `json:"provider"`
	Score         int              `json:"score"`
	MentionRate   float64          `json:"mention_rate"`
	PositionScore float64          `json:"position_score"`
	Sentiment     domain.Sentiment `json:"sentiment"`
	DeltaFromMean float64          `json:"delta_from_mean"`
}

type ScoreDelta struct {
	ScanID         string         `json:"scan_id"`
	PreviousScanID string         `json:"previous_scan_id"`
	Score          int            `json:"score"`
	PreviousScore  int            `json:"previous_score"`
	Delta          int            `json:"delta"`
	MentionRate    float64        `json:"mention_rate_delta"`
	PositionScore  float64        `json:"position_score_delta"`
	IntentScore    float64        `json:"intent_score_delta"`
	Consistency    float64        `json:"consistency_delta"`
	DensityFactor  float64        `json:"density_factor_delta"`
	Providers      map[string]int `json:"provider_deltas"`
}

type Service struct {
	reader ports.AnalyticsReader
}

func New(reader ports.AnalyticsReader) *Service { return &Service{reader: reader} }

func (s *Service) latest(ctx context.Context, domainName string, n int) ([]domain.Scan, error) {
	registrable := domain.Registrable(domainName)
	if registrable == "" {
		return nil, ErrNotFound
	}
	scans, err := s.reader.LatestScans(ctx, registrable, n)
	if err != nil {
		return nil, err
	}
	if len(scans) == 0 {
		return nil, ErrNotFound
	}
	return scans, nil
}

// ShareOfVoice splits the mentions of the latest scan between the brand and
// each competitor.
func (s *Service) ShareOfVoice(ctx context.Context, domainName string) (ShareOfVoice, error) {
	scans, err := s.latest(ctx, domainName, 1)
	if err != nil {
		return ShareOfVoice{}, err
	}
	scan := scans[0]
	responses, err := s.reader.ScanResponses(ctx, scan.ID)
	if err != nil {
		return ShareOfVoice{}, err
	}
	brand := scan.Domain
	if scan.Profile != nil && scan.Profile.BrandName != "" {
		brand = scan.Profile.BrandName
	}
	shares := ComputeShareOfVoice(brand, responses)
	total := 0
	for _, sh := range shares {
		total += sh.Mentions
	}
	return ShareOfVoice{ScanID: scan.ID, Domain: scan.Domain, TotalMentions: total, Shares: shares}, nil
}

// CompareProviders ranks the providers of the latest scan.
func (s *Service) CompareProviders(ctx context.Context, domainName string) ([]ProviderComparison, error) {
	scans, err := s.latest(ctx, domainName, 1)
	if err != nil {
		return nil, err
	}
	if scans[0].Breakdown == nil {
		return nil, ErrNotFound
	}
	return RankProviders(*scans[0].Breakdown), nil
}

// ScoreDelta compares the latest completed scan with the one before it.
func (s *Service) ScoreDelta(ctx context.Context, domainName string) (ScoreDelta, error) {
	scans, err := s.latest(ctx, domainName, 2)
	if err != nil {
		return ScoreDelta{}, err
	}
	if len(scans) < 2 {
		return ScoreDelta{}, ErrNoPreviousScan
	}
	return Diff(scans[1], scans[0]), nil
}

// ComputeShareOfVoice counts brand and competitor mentions over responses.
// Shares sum to 1 when any mention exists. Names are merged
// case-insensitively; the first spelling seen is kept.
func ComputeShareOfVoice(brand string, responses []domain.StoredResponse) []VoiceShare {
	counts := map[string]*VoiceShare{}
	var order []string
	add := func(name string, isBrand bool) {
		k := strings.ToLower(strings.TrimSpace(name))
		if k == "" {
			return
		}
		vs := counts[k]
		if vs == nil {
			vs = &VoiceShare{Name: name, Brand: isBrand}
			counts[k] = vs
			order = append(order, k)
		}
		vs.Mentions++
	}
	for _, r := range responses {
		if r.BrandDetected {
			add(brand, true)
		}
		for _, c := range r.Competitors {
			add(c, strings.EqualFold(c, brand))
		}
	}

	total := 0
	for _, vs := range counts {
		total += vs.Mentions
	}
	out := make([]VoiceShare, 0, len(order))
	for _, k := range order {
		vs := *counts[k]
		if total > 0 {
			vs.Share = float64(vs.Mentions) / float64(total)
		}
		out = append(out, vs)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Mentions != out[j].Mentions {
			return out[i].Mentions > out[j].Mentions
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// RankProviders orders provider sub-scores by score desc and reports each
// provider's distance from the mean score.
func RankProviders(b domain.ScoringBreakdown) []ProviderComparison {
	if len(b.Providers) == 0 {
		return nil
	}
	out := make([]ProviderComparison, 0, len(b.Providers))
	var sum float64
	for name, ps := range b.Providers {
		out = append(out, ProviderComparison{
			Provider:      name,
			Score:         ps.Score,
			MentionRate:   ps.MentionRate,
			PositionScore: ps.PositionScore,
			Sentiment:     ps.Sentiment,
		})
		sum += float64(ps.Score)
	}
	mean := sum / float64(len(out))
	for i := range out {
		out[i].DeltaFromMean = float64(out[i].Score) - mean
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Provider < out[j].Provider
	})
	return out
}

// Diff reports current minus previous for the final score and each component.
func Diff(previous, current domain.Scan) ScoreDelta {
	d := ScoreDelta{ScanID: current.ID, PreviousScanID: previous.ID, Providers: map[string]int{}}
	if current.Score != nil {
		d.Score = *current.Score
	}
	if previous.Score != nil {
		d.PreviousScore = *previous.Score
	}
	d.Delta = d.Score - d.PreviousScore

	if current.Breakdown == nil || previous.Breakdown == nil {
		return d
	}
	cur, prev := current.Breakdown, previous.Breakdown
	d.MentionRate = cur.MentionRate - prev.MentionRate
	d.PositionScore = cur.PositionScore - prev.PositionScore
	d.IntentScore = cur.IntentScore - prev.IntentScore
	d.Consistency = cur.Consistency - prev.Consistency
	d.DensityFactor = cur.DensityFactor - prev.DensityFactor
	for name, ps := range cur.Providers {
		if old, ok := prev.Providers[name]; ok {
			d.Providers[name] = ps.Score - old.Score
		}
	}
	return d
}
