// Package competitors ranks the competitors mentioned across a scan and keeps
// the top three per brand domain, with a trend against the previous scan.
package competitors

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"beacon/internal/domain"
	"beacon/internal/ports"
)

// TopN is how many competitors are tracked per brand domain.
const TopN = 3

type Tracker struct {
	store  ports.CompetitorStore
	logger *slog.Logger
	now    func() time.Time
}

func NewTracker(store ports.CompetitorStore, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: store, logger: logger, now: time.Now}
}

// Track ranks competitors in analyses, assigns trends against the stored set
// and replaces the stored set. Reading the previous set is best effort; a
// failed read marks every record new.
func (t *Tracker) Track(ctx context.Context, brandDomain string, analyses []domain.ResponseAnalysis) ([]domain.CompetitorRecord, error) {
	records := Rank(brandDomain, analyses, t.now())

	previous, err := t.store.ListCompetitors(ctx, brandDomain)
	if err != nil {
		t.logger.WarnContext(ctx, "previous competitors unavailable", "domain", brandDomain, "error", err)
		previous = nil
	}
	AssignTrends(records, previous)

	if err := t.store.ReplaceCompetitors(ctx, brandDomain, records); err != nil {
		return nil, fmt.Errorf("replace competitors: %w", err)
	}
	return records, nil
}

type tally struct {
	name      string
	count     int
	positions []int
}

// Rank aggregates detected competitor mentions by lowercase name and returns
// at most TopN records ordered by mention count desc, then average position
// asc, then name.
func Rank(brandDomain string, analyses []domain.ResponseAnalysis, now time.Time) []domain.CompetitorRecord {
	tallies := map[string]*tally{}
	for _, a := range analyses {
		for _, c := range a.DetectedCompetitors() {
			k := strings.ToLower(strings.TrimSpace(c.Target))
			if k == "" {
				continue
			}
			t := tallies[k]
			if t == nil {
				t = &tally{name: c.Target}
				tallies[k] = t
			}
			t.count++
			if c.Position != nil {
				t.positions = append(t.positions, *c.Position)
			}
		}
	}

	records := make([]domain.CompetitorRecord, 0, len(tallies))
	for _, t := range tallies {
		r := domain.CompetitorRecord{
			Domain:       brandDomain,
			Name:         t.name,
			MentionCount: t.count,
			AvgPosition:  domain.UnrankedPosition,
			UpdatedAt:    now,
		}
		if len(analyses) > 0 {
			r.Visibility = float64(t.count) / float64(len(analyses))
		}
		if len(t.positions) > 0 {
			sum := 0
			for _, p := range t.positions {
				sum += p
			}
			r.AvgPosition = float64(sum) / float64(len(t.positions))
		}
		records = append(records, r)
	}

	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.MentionCount != b.MentionCount {
			return a.MentionCount > b.MentionCount
		}
		if a.AvgPosition != b.AvgPosition {
			return a.AvgPosition < b.AvgPosition
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
	if len(records) > TopN {
		records = records[:TopN]
	}
	for i := range records {
		records[i].Rank = i + 1
	}
	return records
}

// AssignTrends compares current records with the previous set by name. Rank
// decides first; at equal rank the mention count does.
func AssignTrends(current, previous []domain.CompetitorRecord) {
	prev := make(map[string]domain.CompetitorRecord, len(previous))
	for _, p := range previous {
		prev[strings.ToLower(p.Name)] = p
	}
	for i := range current {
		p, ok := prev[strings.ToLower(current[i].Name)]
		switch {
		case !ok:
			current[i].Trend = domain.TrendNew
		case current[i].Rank < p.Rank:
			current[i].Trend = domain.TrendUp
		case current[i].Rank > p.Rank:
			current[i].Trend = domain.TrendDown
		case current[i].MentionCount > p.MentionCount:
			current[i].Trend = domain.TrendUp
		case current[i].MentionCount < p.MentionCount:
			current[i].Trend = domain.TrendDown
		default:
			current[i].Trend = domain.TrendStable
		}
	}
}
