package crawler

import (
	"fmt"
	"strings"
)

// Bucket is one alphabetic partition of the site's search index.
type Bucket byte

const alphabet = "abcdefghijklmnopqrstuvwxyz"

// Alphabet returns the fixed, ordered set of 26 index buckets.
func Alphabet() []Bucket {
	out := make([]Bucket, 0, len(alphabet))
	for i := 0; i < len(alphabet); i++ {
		out = append(out, Bucket(alphabet[i]))
	}
	return out
}

// ParseBuckets converts a string of letters such as "abc" into buckets,
// preserving alphabetical order and dropping duplicates.
func ParseBuckets(raw string) ([]Bucket, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return Alphabet(), nil
	}
	seen := make(map[Bucket]struct{}, len(raw))
	for _, r := range raw {
		b := Bucket(r)
		if r > 0x7f || !b.Valid() {
			return nil, fmt.Errorf("invalid bucket %q", r)
		}
		seen[b] = struct{}{}
	}
	out := make([]Bucket, 0, len(seen))
	for _, b := range Alphabet() {
		if _, ok := seen[b]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

// Valid reports whether b is one of the 26 lowercase letters.
func (b Bucket) Valid() bool {
	return b >= 'a' && b <= 'z'
}

// String returns the letter.
func (b Bucket) String() string {
	return string(rune(b))
}

// PageURL addresses one page of search results for one bucket.
type PageURL struct {
	Bucket Bucket
	Page   int
	URL    string
}

// DetailURL is the address of a single term's detail page.
type DetailURL string

// Record is one extracted term/text pair. Terms are not unique.
type Record struct {
	Term string
	Text string
}

// OnErrorPolicy selects how a worker reacts to a fatal per-page error.
type OnErrorPolicy string

// Supported page error policies.
const (
	// OnErrorAbort ends the worker and cancels the run.
	OnErrorAbort OnErrorPolicy = "abort"
	// OnErrorSkip logs the failing page and moves on to the next one.
	OnErrorSkip OnErrorPolicy = "skip"
)

// ParseOnErrorPolicy validates a policy name. Empty selects OnErrorAbort.
func ParseOnErrorPolicy(raw string) (OnErrorPolicy, error) {
	switch p := OnErrorPolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return OnErrorAbort, nil
	case OnErrorAbort, OnErrorSkip:
		return p, nil
	default:
		return "", fmt.Errorf("unknown page error policy %q", raw)
	}
}
