// Package source splits diagram documents into independently addressable pages.
//
// A document consists of one or more blocks bracketed by @start<kind> and
// @end<kind> markers (for example @startdot ... @enddot). Inside a block, a
// line consisting of "newpage" (optionally followed by text) separates pages.
// Text without any markers is treated as a single unnamed block.
//
// Per-page slices are what the partial renderer diffs against the previous
// render. [Wrap] turns a slice back into a standalone single-diagram
// document so it can be compiled in isolation.
package source

import (
	"strings"
)

// Block is one @start/@end bracketed region of a document.
type Block struct {
	// Kind is the marker suffix ("dot" for @startdot). Empty for unmarked text.
	Kind string

	// Pages holds the text between newpage separators, without markers.
	Pages []string

	// StartLine and EndLine are zero-based line numbers of the markers.
	// EndLine is -1 if the block is not terminated.
	StartLine int
	EndLine   int
}

// Document is the parsed page structure of a source text.
type Document struct {
	Blocks []Block
}

// Parse splits text into blocks and pages. It never fails: an
// unterminated block runs to the end of the text.
func Parse(text string) Document {
	lines := splitLines(text)

	var doc Document
	var cur *Block
	var page []string

	flush := func() {
		cur.Pages = append(cur.Pages, strings.Join(page, "\n"))
		page = nil
	}

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if cur == nil {
			if kind, ok := startMarker(trimmed); ok {
				cur = &Block{Kind: kind, StartLine: i, EndLine: -1}
			}
			continue
		}
		if endMarker(trimmed, cur.Kind) {
			flush()
			cur.EndLine = i
			doc.Blocks = append(doc.Blocks, *cur)
			cur = nil
			continue
		}
		if IsNewPage(trimmed) {
			flush()
			continue
		}
		page = append(page, line)
	}

	if cur != nil {
		flush()
		doc.Blocks = append(doc.Blocks, *cur)
	}

	if len(doc.Blocks) == 0 && strings.TrimSpace(text) != "" {
		b := Block{StartLine: 0, EndLine: -1}
		page = nil
		for _, line := range lines {
			if IsNewPage(strings.TrimSpace(line)) {
				b.Pages = append(b.Pages, strings.Join(page, "\n"))
				page = nil
				continue
			}
			page = append(page, line)
		}
		b.Pages = append(b.Pages, strings.Join(page, "\n"))
		doc.Blocks = append(doc.Blocks, b)
	}

	return doc
}

// Pages returns the per-page slices when the document is a single block.
// The second result is false for documents with zero or several blocks,
// which cannot be split page by page.
func (d Document) Pages() ([]string, bool) {
	if len(d.Blocks) != 1 {
		return nil, false
	}
	return d.Blocks[0].Pages, true
}

// Kind returns the marker kind of a single-block document.
func (d Document) Kind() string {
	if len(d.Blocks) == 0 {
		return ""
	}
	return d.Blocks[0].Kind
}

// AllPages returns the pages of every block in document order.
func (d Document) AllPages() []string {
	var pages []string
	for _, b := range d.Blocks {
		pages = append(pages, b.Pages...)
	}
	return pages
}

// PageTitles returns one title per page. A lone page reports every title
// it declares, so callers can notice a page that claims several.
func PageTitles(pages []string) []string {
	if len(pages) == 1 {
		return Titles(pages[0])
	}
	titles := make([]string, len(pages))
	for i, p := range pages {
		titles[i] = Title(p)
	}
	return titles
}

// PageCount returns the number of pages across all blocks.
func (d Document) PageCount() int {
	n := 0
	for _, b := range d.Blocks {
		n += len(b.Pages)
	}
	return n
}

// Wrap brackets a page slice into a standalone single-diagram document.
// Slices of unmarked documents are returned unchanged.
func Wrap(kind, slice string) string {
	if kind == "" {
		return slice
	}
	return "@start" + kind + "\n" + slice + "\n@end" + kind
}

// IsNewPage reports whether a trimmed line is a page separator.
func IsNewPage(trimmed string) bool {
	if !strings.HasPrefix(strings.ToLower(trimmed), "newpage") {
		return false
	}
	rest := trimmed[len("newpage"):]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t'
}

// Titles returns the values of every "title ..." line in text, in order.
func Titles(text string) []string {
	var titles []string
	for _, line := range splitLines(text) {
		if t, ok := titleLine(strings.TrimSpace(line)); ok {
			titles = append(titles, t)
		}
	}
	return titles
}

// Title returns the first title in text, or "" if there is none.
func Title(text string) string {
	if t := Titles(text); len(t) > 0 {
		return t[0]
	}
	return ""
}

// StripTitles returns text without its "title ..." lines.
func StripTitles(text string) string {
	lines := splitLines(text)
	kept := lines[:0]
	for _, line := range lines {
		if _, ok := titleLine(strings.TrimSpace(line)); !ok {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func titleLine(trimmed string) (string, bool) {
	if len(trimmed) < len("title ") || !strings.EqualFold(trimmed[:len("title ")], "title ") {
		return "", false
	}
	return strings.TrimSpace(trimmed[len("title "):]), true
}

func startMarker(trimmed string) (string, bool) {
	if !strings.HasPrefix(trimmed, "@start") {
		return "", false
	}
	kind := markerWord(trimmed[len("@start"):])
	return strings.ToLower(kind), kind != ""
}

func endMarker(trimmed, kind string) bool {
	if !strings.HasPrefix(trimmed, "@end") {
		return false
	}
	return strings.EqualFold(markerWord(trimmed[len("@end"):]), kind)
}

func markerWord(s string) string {
	end := 0
	for end < len(s) {
		c := s[end]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			break
		}
		end++
	}
	return s[:end]
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
