package cache

import (
	"strings"

	"github.com/JakeFAU/etym-crawler/internal/crawler"
)

// Separator divides records inside a cache file.
const Separator = "\n*\n"

// Encode renders records as term-newline-text blocks joined by Separator.
func Encode(records []crawler.Record) []byte {
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteString(Separator)
		}
		b.WriteString(r.Term)
		b.WriteByte('\n')
		b.WriteString(r.Text)
	}
	return []byte(b.String())
}

// Decode parses the output of Encode. The term ends at the first newline of
// each block; the rest is the text.
func Decode(data []byte) []crawler.Record {
	if len(data) == 0 {
		return nil
	}
	blocks := strings.Split(string(data), Separator)
	out := make([]crawler.Record, 0, len(blocks))
	for _, block := range blocks {
		term, text, _ := strings.Cut(block, "\n")
		out = append(out, crawler.Record{Term: term, Text: text})
	}
	return out
}
