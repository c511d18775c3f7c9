// Package safeurl validates URLs scraped from upstream pages before the
// gateway fetches them or hands them to a player.
package safeurl

import (
	"fmt"
	"net/url"
	"strings"
)

// IsHTTPOrHTTPS returns true if u is an absolute http(s) URL with a host.
// file://, javascript: and the like are rejected.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	s := strings.ToLower(parsed.Scheme)
	return (s == "http" || s == "https") && parsed.Host != ""
}

// Normalize completes a protocol-relative reference ("//host/path") to https
// and rejects anything that is not an absolute http(s) URL.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	if !IsHTTPOrHTTPS(raw) {
		return "", fmt.Errorf("safeurl: refusing %q", raw)
	}
	return raw, nil
}
