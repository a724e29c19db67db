package automod

import (
	"net"
	"net/url"
	"strings"

	"github.com/snap-point/moderation-api/classifier"
)

var (
	shortenerHosts = map[string]bool{
		"bit.ly": true, "tinyurl.com": true, "t.co": true, "goo.gl": true, "ow.ly": true,
		"is.gd": true, "buff.ly": true, "cutt.ly": true, "rebrand.ly": true, "shorturl.at": true,
	}
	suspiciousTLDs = []string{".tk", ".ml", ".ga", ".cf", ".gq", ".xyz", ".top", ".zip", ".mov", ".click"}
)

// SuspiciousLinks returns the links in text that point to URL shorteners,
// bare IP addresses, punycode hosts or throwaway TLDs.
func SuspiciousLinks(text string) []string {
	var out []string
	for _, raw := range classifier.ExtractURLs(text) {
		if suspiciousLink(raw) {
			out = append(out, raw)
		}
	}
	return out
}

func suspiciousLink(raw string) bool {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(strings.TrimRight(raw, ".,;:!?)"))
	if err != nil {
		// unparseable links are not trusted
		return true
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return true
	}
	if net.ParseIP(host) != nil {
		return true
	}
	if shortenerHosts[strings.TrimPrefix(host, "www.")] {
		return true
	}
	if strings.HasPrefix(host, "xn--") || strings.Contains(host, ".xn--") {
		return true
	}
	for _, tld := range suspiciousTLDs {
		if strings.HasSuffix(host, tld) {
			return true
		}
	}
	return u.User != nil
}
