package detection

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type token struct {
	text       string
	start, end int
}

type fuzzyMatch struct {
	token      string
	score      float64
	start, end int
}

// fuzzy slides a window of as many words as the target has over the response
// and keeps the most similar candidate whose length is close to the target's.
func (e *Engine) fuzzy(text, target string) (fuzzyMatch, bool) {
	t := strings.ToLower(strings.Join(strings.Fields(target), " "))
	tlen := utf8.RuneCountInString(t)
	if tlen < e.cfg.MinFuzzyLen {
		return fuzzyMatch{}, false
	}
	width := len(strings.Fields(t))
	words := tokenize(text)

	var best fuzzyMatch
	maxDelta := e.cfg.LengthTolerance * float64(tlen)
	for i := 0; i+width <= len(words); i++ {
		parts := make([]string, width)
		for j := range width {
			parts[j] = words[i+j].text
		}
		cand := strings.ToLower(strings.Join(parts, " "))
		clen := utf8.RuneCountInString(cand)
		if delta := float64(clen - tlen); delta > maxDelta || -delta > maxDelta {
			continue
		}
		if s := Similarity(cand, t); s > best.score {
			best = fuzzyMatch{token: strings.Join(parts, " "), score: s, start: words[i].start, end: words[i+width-1].end}
		}
	}

	threshold := e.cfg.LongNameThreshold
	if tlen <= e.cfg.ShortNameMaxLen {
		threshold = e.cfg.ShortNameThreshold
	}
	return best, best.score > 0 && best.score >= threshold
}

// tokenize splits on whitespace and trims edge punctuation, keeping inner
// punctuation so names like "cal.com" stay one token.
func tokenize(text string) []token {
	var out []token
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			i += size
			continue
		}
		start := i
		for i < len(text) {
			r, size = utf8.DecodeRuneInString(text[i:])
			if unicode.IsSpace(r) {
				break
			}
			i += size
		}
		s, e := trimEdges(text, start, i)
		if s < e {
			out = append(out, token{text: text[s:e], start: s, end: e})
		}
	}
	return out
}

func trimEdges(text string, start, end int) (int, int) {
	isEdge := func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSymbol(r) }
	for start < end {
		r, size := utf8.DecodeRuneInString(text[start:end])
		if !isEdge(r) {
			break
		}
		start += size
	}
	for end > start {
		r, size := utf8.DecodeLastRuneInString(text[start:end])
		if !isEdge(r) {
			break
		}
		end -= size
	}
	return start, end
}

// Distance is the Levenshtein edit distance between a and b, in runes.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Similarity normalizes Distance into [0,1]; 1 means identical.
func Similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	return 1 - float64(Distance(a, b))/float64(longest)
}
