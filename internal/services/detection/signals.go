package detection

import (
	"net/url"
	"slices"
	"strings"

	"golang.org/x/net/publicsuffix"
	"mvdan.cc/xurls/v2"

	"beacon/internal/domain"
)

var citationRe = xurls.Relaxed()

// Citations returns the distinct URLs referenced in an answer, in order of appearance.
func Citations(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range citationRe.FindAllString(text, -1) {
		u := strings.TrimRight(strings.TrimSpace(m), ".,;:)")
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// CitesDomain reports whether any URL belongs to the registrable domain.
func CitesDomain(urls []string, registrable string) bool {
	registrable = strings.ToLower(strings.TrimSpace(registrable))
	if registrable == "" {
		return false
	}
	for _, raw := range urls {
		if !strings.Contains(raw, "://") {
			raw = "https://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" {
			continue
		}
		host := strings.ToLower(u.Hostname())
		etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
		if err != nil {
			etld1 = host
		}
		if etld1 == registrable {
			return true
		}
	}
	return false
}

var (
	positiveCues = []string{"recommend", "best", "excellent", "great", "popular", "leading", "top", "powerful", "intuitive", "reliable", "favorite", "standout"}
	negativeCues = []string{"avoid", "expensive", "lacks", "limited", "poor", "outdated", "complaints", "clunky", "buggy", "drawback", "downside", "however"}
	cueWords     = newWordMatcher(append(slices.Clone(positiveCues), negativeCues...)...)
)

// SnippetSentiment classifies the tone around a mention by counting cue words.
func SnippetSentiment(snippet string) domain.Sentiment {
	if strings.TrimSpace(snippet) == "" {
		return ""
	}
	pos, neg := 0, 0
	for _, w := range positiveCues {
		if _, _, ok := cueWords.match(snippet, w); ok {
			pos++
		}
	}
	for _, w := range negativeCues {
		if _, _, ok := cueWords.match(snippet, w); ok {
			neg++
		}
	}
	switch {
	case pos > neg:
		return domain.SentimentPositive
	case neg > pos:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}
