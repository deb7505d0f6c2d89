package pagesource

import (
	"fmt"

	"github.com/JakeFAU/etym-crawler/internal/crawler"
)

// Plan is the immutable outcome of discovery: the page count of every
// bucket. Page URLs can only be produced from a Plan.
type Plan struct {
	site       Site
	buckets    []crawler.Bucket
	pageCounts map[crawler.Bucket]int
	totalItems int
}

// Buckets returns the indexed buckets in crawl order.
func (p *Plan) Buckets() []crawler.Bucket {
	return append([]crawler.Bucket(nil), p.buckets...)
}

// PageCount returns the number of result pages of b and whether b was indexed.
func (p *Plan) PageCount(b crawler.Bucket) (int, bool) {
	n, ok := p.pageCounts[b]
	return n, ok
}

// PageURL builds the address of page n of bucket b. Buckets that were not
// indexed and pages outside 1..PageCount are rejected.
func (p *Plan) PageURL(b crawler.Bucket, page int) (crawler.PageURL, error) {
	n, ok := p.pageCounts[b]
	if !ok {
		return crawler.PageURL{}, fmt.Errorf("bucket %s has no page count", b)
	}
	if page < 1 || page > n {
		return crawler.PageURL{}, fmt.Errorf("page %d out of range 1..%d for bucket %s", page, n, b)
	}
	return crawler.PageURL{Bucket: b, Page: page, URL: p.site.BucketURL(b, page)}, nil
}

// TotalPages is the sum of all page counts.
func (p *Plan) TotalPages() int {
	total := 0
	for _, n := range p.pageCounts {
		total += n
	}
	return total
}

// TotalItems is the sum of the item counts reported by the listings.
func (p *Plan) TotalItems() int {
	return p.totalItems
}

// Pages returns a fresh sequence over every page URL, ordered by bucket then
// page number.
func (p *Plan) Pages() *Sequence {
	return &Sequence{plan: p, page: 1}
}

// Sequence lazily yields the page URLs of a Plan. It is finite and cannot be
// restarted. A Sequence is not safe for concurrent use.
type Sequence struct {
	plan   *Plan
	bucket int
	page   int
}

// Next returns the next page URL, or false once the sequence is exhausted.
func (s *Sequence) Next() (crawler.PageURL, bool) {
	for s.bucket < len(s.plan.buckets) {
		b := s.plan.buckets[s.bucket]
		if s.page <= s.plan.pageCounts[b] {
			page := s.page
			s.page++
			return crawler.PageURL{Bucket: b, Page: page, URL: s.plan.site.BucketURL(b, page)}, true
		}
		s.bucket++
		s.page = 1
	}
	return crawler.PageURL{}, false
}
