package detection

import (
	"regexp"
	"strconv"
	"strings"
)

// wordPattern matches word as a literal, delimited by string edges or by
// characters that are not letters, digits or underscore. RE2 has no
// lookbehind, so the delimiters are consumed and the name is captured.
func wordPattern(word string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])(` + regexp.QuoteMeta(word) + `)(?:[^\p{L}\p{N}_]|$)`)
}

// wordMatcher holds whole-word patterns compiled up front. The map is never
// written after construction, so a matcher is safe to share between
// goroutines. Words it does not know are compiled per call.
type wordMatcher struct {
	patterns map[string]*regexp.Regexp
}

func newWordMatcher(words ...string) wordMatcher {
	m := wordMatcher{patterns: make(map[string]*regexp.Regexp, len(words))}
	for _, w := range words {
		w = strings.TrimSpace(w)
		k := strings.ToLower(w)
		if w == "" || m.patterns[k] != nil {
			continue
		}
		m.patterns[k] = wordPattern(w)
	}
	return m
}

func (m wordMatcher) pattern(word string) *regexp.Regexp {
	if re, ok := m.patterns[strings.ToLower(word)]; ok {
		return re
	}
	return wordPattern(word)
}

func (m wordMatcher) match(text, word string) (start, end int, ok bool) {
	word = strings.TrimSpace(word)
	if word == "" || text == "" {
		return 0, 0, false
	}
	loc := m.pattern(word).FindStringSubmatchIndex(text)
	if loc == nil {
		return 0, 0, false
	}
	return loc[2], loc[3], true
}

func (m wordMatcher) containsAny(text string, names []string) bool {
	for _, n := range names {
		if _, _, ok := m.match(text, n); ok {
			return true
		}
	}
	return false
}

// MatchWord reports the byte span of the first whole-word, case-insensitive
// occurrence of word in text.
func MatchWord(text, word string) (start, end int, ok bool) {
	return wordMatcher{}.match(text, word)
}

// ContainsWord reports whether word occurs in text as a whole word.
func ContainsWord(text, word string) bool {
	_, _, ok := MatchWord(text, word)
	return ok
}

var (
	listItemRe = regexp.MustCompile(`^\s*(?:[-*+]\s+)?(?:\*\*|__)?(\d{1,3})[.)]\s+(.*)$`)
	boldSpanRe = regexp.MustCompile(`\*\*([^*\n]+)\*\*|__([^_\n]+)__`)
)

// ExtractRank finds where any of names sits in a ranked answer. A numbered
// list line containing the name yields its list number; otherwise the ordinal
// of the first bold span containing the name; otherwise nil (unranked prose).
func ExtractRank(text string, names ...string) *int {
	return wordMatcher{}.extractRank(text, names...)
}

func (m wordMatcher) extractRank(text string, names ...string) *int {
	if len(names) == 0 {
		return nil
	}
	for _, line := range strings.Split(text, "\n") {
		item := listItemRe.FindStringSubmatch(line)
		if item == nil || !m.containsAny(item[2], names) {
			continue
		}
		n, err := strconv.Atoi(item[1])
		if err != nil || n < 1 {
			continue
		}
		return &n
	}
	for i, span := range boldSpanRe.FindAllStringSubmatch(text, -1) {
		inner := span[1]
		if inner == "" {
			inner = span[2]
		}
		if m.containsAny(inner, names) {
			pos := i + 1
			return &pos
		}
	}
	return nil
}
