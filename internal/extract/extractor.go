// Package extract pulls detail links, records and pagination figures out of
// parsed result-listing and detail pages using CSS selectors.
package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/etym-crawler/internal/crawler"
)

// Selectors names the CSS selectors that locate each piece of structure.
type Selectors struct {
	WordLink       string `mapstructure:"word_link"`
	WordName       string `mapstructure:"word_name"`
	WordDefinition string `mapstructure:"word_definition"`
	PaginationItem string `mapstructure:"pagination_item"`
	PageNumberAttr string `mapstructure:"page_number_attr"`
	TotalCount     string `mapstructure:"total_count"`
}

// DefaultSelectors matches the etymonline search listing and word pages.
// "defination" is the site's own class name.
func DefaultSelectors() Selectors {
	return Selectors{
		WordLink:       "a[class^=word--]",
		WordName:       "h1[class^=word__name--]",
		WordDefinition: "section[class^=word__defination--]",
		PaginationItem: ".ant-pagination-item",
		PageNumberAttr: "title",
		TotalCount:     "div[class^=searchList__pageCount--]",
	}
}

// Extractor implements crawler.Extractor with goquery.
type Extractor struct {
	sel Selectors
}

var _ crawler.Extractor = (*Extractor)(nil)

// New builds an Extractor. Empty selectors fall back to DefaultSelectors.
func New(sel Selectors) *Extractor {
	def := DefaultSelectors()
	if sel.WordLink == "" {
		sel.WordLink = def.WordLink
	}
	if sel.WordName == "" {
		sel.WordName = def.WordName
	}
	if sel.WordDefinition == "" {
		sel.WordDefinition = def.WordDefinition
	}
	if sel.PaginationItem == "" {
		sel.PaginationItem = def.PaginationItem
	}
	if sel.PageNumberAttr == "" {
		sel.PageNumberAttr = def.PageNumberAttr
	}
	if sel.TotalCount == "" {
		sel.TotalCount = def.TotalCount
	}
	return &Extractor{sel: sel}
}

// DetailLinks returns the absolute detail URL of every word link on a
// listing page. A word link without href fails the whole page.
func (e *Extractor) DetailLinks(doc *goquery.Document) ([]crawler.DetailURL, error) {
	pageURL := documentURL(doc)
	var (
		links []crawler.DetailURL
		err   error
	)
	doc.Find(e.sel.WordLink).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			err = crawler.ExtractionError(pageURL, "href attribute not found on link")
			return false
		}
		resolved, rerr := crawler.ResolveURL(doc.Url, href)
		if rerr != nil {
			err = crawler.ExtractionError(pageURL, rerr.Error())
			return false
		}
		links = append(links, crawler.DetailURL(resolved))
		return true
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}

// Record extracts the term and its text from a detail page. Whitespace runs
// inside the term collapse to one space so a term always fits on one line.
func (e *Extractor) Record(doc *goquery.Document) (crawler.Record, error) {
	pageURL := documentURL(doc)
	name := doc.Find(e.sel.WordName).First()
	if name.Length() == 0 {
		return crawler.Record{}, crawler.ExtractionError(pageURL, "word name not found")
	}
	definition := doc.Find(e.sel.WordDefinition).First()
	if definition.Length() == 0 {
		return crawler.Record{}, crawler.ExtractionError(pageURL, "word definition not found")
	}
	return crawler.Record{
		Term: strings.Join(strings.Fields(name.Text()), " "),
		Text: strings.TrimSpace(definition.Text()),
	}, nil
}

// PageCount returns the highest page number advertised by the pagination
// control. Every pagination item must carry a numeric page attribute.
func (e *Extractor) PageCount(doc *goquery.Document) (int, error) {
	pageURL := documentURL(doc)
	items := doc.Find(e.sel.PaginationItem)
	if items.Length() == 0 {
		return 0, crawler.ExtractionError(pageURL, "pagination control not found")
	}
	maxPage := 0
	var err error
	items.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw, ok := s.Attr(e.sel.PageNumberAttr)
		if !ok {
			err = crawler.ExtractionError(pageURL, e.sel.PageNumberAttr+" attribute not found on pagination item")
			return false
		}
		n, perr := strconv.Atoi(strings.TrimSpace(raw))
		if perr != nil || n <= 0 {
			err = crawler.ExtractionError(pageURL, fmt.Sprintf("invalid page number %q", raw))
			return false
		}
		maxPage = max(maxPage, n)
		return true
	})
	if err != nil {
		return 0, err
	}
	return maxPage, nil
}

// ItemCount parses the displayed total, e.g. "1234 results" yields 1234.
func (e *Extractor) ItemCount(doc *goquery.Document) (int, error) {
	pageURL := documentURL(doc)
	el := doc.Find(e.sel.TotalCount).First()
	if el.Length() == 0 {
		return 0, crawler.ExtractionError(pageURL, "total count not found")
	}
	fields := strings.Fields(el.Text())
	if len(fields) == 0 {
		return 0, crawler.ExtractionError(pageURL, "total count is empty")
	}
	n, err := strconv.Atoi(strings.ReplaceAll(fields[0], ",", ""))
	if err != nil || n < 0 {
		return 0, crawler.ExtractionError(pageURL, fmt.Sprintf("failed to parse number of words from %q", fields[0]))
	}
	return n, nil
}

func documentURL(doc *goquery.Document) string {
	if doc == nil || doc.Url == nil {
		return ""
	}
	return doc.Url.String()
}
