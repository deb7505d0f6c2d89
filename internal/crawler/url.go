package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// ResolveURL resolves href against base and normalizes the result: scheme and
// host are lowercased, default ports and fragments removed.
func ResolveURL(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	u := ref
	if base != nil {
		u = base.ResolveReference(ref)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("href %q does not resolve to an absolute url", href)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	return u.String(), nil
}
