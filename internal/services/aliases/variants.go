package aliases

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/publicsuffix"
)

// genericWords are never used on their own as an alias.
var genericWords = map[string]bool{
	"app": true, "apps": true, "software": true, "platform": true, "cloud": true, "studio": true,
	"suite": true, "labs": true, "inc": true, "tools": true, "online": true, "group": true,
	"systems": true, "solutions": true, "technologies": true, "analytics": true, "the": true,
	"crm": true, "ai": true, "hq": true, "io": true, "global": true, "digital": true,
}

const minAliasLen = 3

// DomainLabel returns the registrable label of a host or URL without its
// public suffix: "https://www.cal.com/x" -> "cal", "app.notion.so" -> "notion".
func DomainLabel(raw string) string {
	host := strings.ToLower(strings.TrimSpace(raw))
	if host == "" {
		return ""
	}
	if strings.Contains(host, "://") {
		if u, err := url.Parse(host); err == nil {
			host = u.Hostname()
		}
	}
	host = strings.TrimSuffix(strings.SplitN(host, "/", 2)[0], ".")
	if !strings.Contains(host, ".") {
		return host
	}
	suffix, _ := publicsuffix.PublicSuffix(host)
	rest := strings.TrimSuffix(host, "."+suffix)
	if rest == host || rest == "" {
		return strings.SplitN(host, ".", 2)[0]
	}
	labels := strings.Split(rest, ".")
	return labels[len(labels)-1]
}

// looksLikeDomain reports whether a brand is written as a domain ("Cal.com").
func looksLikeDomain(name string) bool {
	if strings.ContainsAny(name, " \t") || !strings.Contains(name, ".") {
		return false
	}
	suffix, icann := publicsuffix.PublicSuffix(strings.ToLower(name))
	return icann && suffix != "" && suffix != strings.ToLower(name)
}

// StripPunctuation removes every rune that is not a letter, digit or space.
func StripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
}

// SplitCamel inserts spaces at lower-to-upper transitions: "HubSpot" -> "Hub Spot".
func SplitCamel(s string) string {
	var b strings.Builder
	var prev rune
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(prev) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// significantWords splits on spaces and hyphens and drops generic words.
func significantWords(s string) []string {
	var out []string
	for _, w := range strings.FieldsFunc(s, func(r rune) bool { return unicode.IsSpace(r) || r == '-' }) {
		if !genericWords[strings.ToLower(w)] {
			out = append(out, w)
		}
	}
	return out
}

// FirstSignificantWord returns the first non-generic word of at least three runes.
func FirstSignificantWord(s string) string {
	for _, w := range significantWords(StripPunctuation(s)) {
		if utf8.RuneCountInString(w) >= minAliasLen {
			return w
		}
	}
	return ""
}

// Variants derives the deterministic alternate spellings of name. brandDomain
// may be empty; when set its label is included.
func Variants(name, brandDomain string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	var cands []string
	if brandDomain != "" {
		cands = append(cands, DomainLabel(brandDomain))
	}
	if looksLikeDomain(name) {
		cands = append(cands, DomainLabel(name))
	}

	stripped := strings.Join(strings.Fields(StripPunctuation(name)), " ")
	cands = append(cands, stripped)

	split := SplitCamel(stripped)
	cands = append(cands, split)

	for _, form := range []string{split, strings.ReplaceAll(name, "-", " ")} {
		words := strings.FieldsFunc(form, func(r rune) bool { return unicode.IsSpace(r) || r == '-' })
		if len(words) < 2 {
			continue
		}
		cands = append(cands,
			strings.Join(words, " "),
			strings.Join(words, "-"),
			strings.Join(words, ""),
		)
	}

	words := strings.Fields(split)
	if len(words) > 1 {
		last := words[len(words)-1]
		if utf8.RuneCountInString(last) >= 5 && !genericWords[strings.ToLower(last)] {
			cands = append(cands, last)
		}
	}
	return Dedupe(name, cands)
}

// Dedupe drops empty, too-short and case-insensitive duplicate aliases as well
// as any alias equal to the canonical name.
func Dedupe(canonical string, cands []string) []string {
	seen := map[string]bool{key(canonical): true}
	var out []string
	for _, c := range cands {
		c = strings.TrimSpace(c)
		k := key(c)
		if utf8.RuneCountInString(c) < minAliasLen || seen[k] || genericWords[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}
