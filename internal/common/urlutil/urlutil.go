// Package urlutil holds small URL helpers shared by the renderers.
package urlutil

import (
	"net/url"
	"strings"
)

// Absolutize resolves href against base and returns the absolute URL string.
// Returns empty string when href cannot be resolved to an absolute http(s)
// URL, when it is a javascript: pseudo-link, or when it is a pure fragment.
func Absolutize(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := ref
	if base != nil {
		resolved = base.ResolveReference(ref)
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	if resolved.Host == "" {
		return ""
	}
	return resolved.String()
}

// ExtractHost extracts and lowercases the host from a URL string.
// Returns empty string if the URL is invalid or has no host.
func ExtractHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Host)
}

// IsAbsolute reports whether raw parses as an absolute http(s) URL.
func IsAbsolute(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
