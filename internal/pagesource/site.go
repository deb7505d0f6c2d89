// Package pagesource discovers how many result pages every bucket of the
// site's search index has and turns that into a finite stream of page URLs.
package pagesource

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/JakeFAU/etym-crawler/internal/crawler"
)

// DefaultSearchPath is the listing endpoint relative to the base URL.
const DefaultSearchPath = "/search"

// Site builds listing URLs for a base address.
type Site struct {
	base       *url.URL
	searchPath string
}

// NewSite parses baseURL, which must be absolute http(s).
func NewSite(baseURL, searchPath string) (Site, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return Site{}, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return Site{}, fmt.Errorf("base url %q must be absolute http(s)", baseURL)
	}
	if searchPath == "" {
		searchPath = DefaultSearchPath
	}
	if !strings.HasPrefix(searchPath, "/") {
		searchPath = "/" + searchPath
	}
	return Site{base: u, searchPath: searchPath}, nil
}

// BucketURL returns the listing URL of page n (1-based) of bucket b.
func (s Site) BucketURL(b crawler.Bucket, page int) string {
	u := *s.base
	u.Path = strings.TrimRight(u.Path, "/") + s.searchPath
	u.RawQuery = "q=" + url.QueryEscape(b.String()) + "&page=" + strconv.Itoa(page)
	return u.String()
}
