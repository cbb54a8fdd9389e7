package domain

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Registrable returns the eTLD+1 of a URL or bare host, lowercased. Hosts the
// public suffix list cannot reduce are returned as-is.
func Registrable(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return ""
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return registrable
}
