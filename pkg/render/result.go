package render

import (
	"sort"
)

// Outcome says how a page was handled in one render pass.
type Outcome string

// Page outcomes.
const (
	OutcomeNone      Outcome = ""
	OutcomeRendered  Outcome = "rendered"
	OutcomeTitleOnly Outcome = "title"
	OutcomeCached    Outcome = "cached"
)

// Diagnostic is a non-fatal observation made while rendering a page.
type Diagnostic struct {
	Page    int    `json:"page"`
	Message string `json:"message"`
}

// Result is the outcome of one render pass. Every processed page index
// appears in exactly one of Rendered, TitleOnly and Cached.
type Result struct {
	Mode Mode `json:"mode"`

	// PageCount is the number of pages of the document.
	PageCount int `json:"page_count"`

	Rendered  []*Image `json:"rendered,omitempty"`
	TitleOnly []*Image `json:"title_only,omitempty"`
	Cached    []*Image `json:"cached,omitempty"`

	Warnings []Diagnostic `json:"warnings,omitempty"`

	// Fallback is set when partial rendering of this source could not
	// isolate a page and the document was rendered as a whole instead.
	Fallback bool `json:"fallback,omitempty"`
}

func newResult(mode Mode, pages int) *Result {
	return &Result{Mode: mode, PageCount: pages}
}

func (r *Result) addRendered(img *Image)  { r.Rendered = append(r.Rendered, img) }
func (r *Result) addTitleOnly(img *Image) { r.TitleOnly = append(r.TitleOnly, img) }
func (r *Result) addCached(img *Image)    { r.Cached = append(r.Cached, img) }

func (r *Result) warn(page int, msg string) {
	r.Warnings = append(r.Warnings, Diagnostic{Page: page, Message: msg})
}

// Images returns all entries of the pass ordered by page index.
func (r *Result) Images() []*Image {
	all := make([]*Image, 0, len(r.Rendered)+len(r.TitleOnly)+len(r.Cached))
	all = append(all, r.Rendered...)
	all = append(all, r.TitleOnly...)
	all = append(all, r.Cached...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Page < all[j].Page })
	return all
}

// Image returns the entry for page p and how it was produced.
func (r *Result) Image(p int) (*Image, Outcome) {
	for _, set := range []struct {
		images  []*Image
		outcome Outcome
	}{
		{r.Rendered, OutcomeRendered},
		{r.TitleOnly, OutcomeTitleOnly},
		{r.Cached, OutcomeCached},
	} {
		for _, img := range set.images {
			if img.Page == p {
				return img, set.outcome
			}
		}
	}
	return nil, OutcomeNone
}

// Errors returns the error placeholders of this pass ordered by page.
func (r *Result) Errors() []*Image {
	var errs []*Image
	for _, img := range r.Images() {
		if img.Error {
			errs = append(errs, img)
		}
	}
	return errs
}

// AllCached reports whether the pass reused every page unchanged.
func (r *Result) AllCached() bool {
	return len(r.Rendered) == 0 && len(r.TitleOnly) == 0
}

// Titles returns the page titles ordered by page index. Pages missing
// from the pass have an empty title.
func (r *Result) Titles() []string {
	titles := make([]string, r.PageCount)
	for _, img := range r.Images() {
		if img.Page >= 0 && img.Page < len(titles) {
			titles[img.Page] = img.Title
		}
	}
	return titles
}
