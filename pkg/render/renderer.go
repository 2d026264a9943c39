package render

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	perrors "github.com/matzehuels/pagewise/pkg/errors"
	"github.com/matzehuels/pagewise/pkg/observability"
	"github.com/matzehuels/pagewise/pkg/source"
)

// Renderer decides per page whether to reuse, refresh or re-render, and
// invokes the compiler only when needed.
//
// The Renderer keeps no state between calls: the previous pass is handed in
// as a [Snapshot] and the caller builds the next one with [Snapshot.Merge].
// Callers must not run two passes for the same document concurrently, since
// pages of one pass share the compiler's sequencing state.
type Renderer struct {
	Compiler Compiler
	Logger   *log.Logger

	// Partial enables per-page isolation for single-block documents.
	Partial bool

	// MinPartialPages is the smallest page count rendered page by page.
	MinPartialPages int
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *log.Logger) Option {
	return func(r *Renderer) { r.Logger = l }
}

// WithPartial enables or disables partial rendering.
func WithPartial(enabled bool) Option {
	return func(r *Renderer) { r.Partial = enabled }
}

// WithMinPartialPages sets the page threshold for partial rendering.
func WithMinPartialPages(n int) Option {
	return func(r *Renderer) { r.MinPartialPages = n }
}

// NewRenderer creates a renderer for c with partial rendering enabled.
func NewRenderer(c Compiler, opts ...Option) *Renderer {
	r := &Renderer{
		Compiler:        c,
		Partial:         true,
		MinPartialPages: DefaultMinPartialPages,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Logger == nil {
		r.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if r.MinPartialPages < 1 {
		r.MinPartialPages = DefaultMinPartialPages
	}
	return r
}

// Render runs one pass for req against the previous snapshot prev, which
// may be nil. It fails only on an invalid request or on cancellation; page
// failures become error images inside the result. A cancelled pass returns
// no result and leaves prev valid for the next call.
func (r *Renderer) Render(ctx context.Context, req Request, prev *Snapshot) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if r.Compiler == nil {
		return nil, perrors.New(perrors.ErrCodeInvalidConfig, "renderer has no compiler")
	}
	if r.Logger == nil {
		// Zero-value renderer: log to a discard logger on a copy, the
		// receiver is never written.
		rc := *r
		rc.Logger = log.NewWithOptions(io.Discard, log.Options{})
		r = &rc
	}

	hooks := observability.Render()
	hooks.OnRenderStart(ctx, string(req.Format), req.Page)
	start := time.Now()

	res, err := r.render(ctx, req, prev)

	var mode string
	var stats observability.PassStats
	if res != nil {
		mode = string(res.Mode)
		stats = observability.PassStats{
			Rendered:  len(res.Rendered),
			TitleOnly: len(res.TitleOnly),
			Cached:    len(res.Cached),
			Errors:    len(res.Errors()),
		}
	}
	hooks.OnRenderComplete(ctx, mode, stats, time.Since(start), err)

	if err != nil {
		r.Logger.Debug("render aborted", "request", req, "error", err)
		return nil, err
	}
	r.Logger.Debug("render complete",
		"mode", res.Mode,
		"pages", res.PageCount,
		"rendered", stats.Rendered,
		"title_only", stats.TitleOnly,
		"cached", stats.Cached,
		"duration", time.Since(start))
	return res, nil
}

func (r *Renderer) render(ctx context.Context, req Request, prev *Snapshot) (*Result, error) {
	doc := source.Parse(req.Source)
	pages, ok := r.partialPages(doc)
	if !ok {
		return r.renderFull(ctx, req, prev)
	}
	if !r.knownFallback(req, prev) {
		res, err := r.renderPartial(ctx, req, prev, doc.Kind(), pages)
		if !perrors.Is(err, perrors.ErrCodeStructuralFallback) {
			return res, err
		}
		r.Logger.Info("falling back to full render", "reason", perrors.UserMessage(err))
	}
	res, err := r.renderFull(ctx, req, prev)
	if res != nil {
		res.Fallback = true
	}
	return res, err
}

// partialPages returns the page slices if doc qualifies for partial mode.
func (r *Renderer) partialPages(doc source.Document) ([]string, bool) {
	if !r.Partial {
		return nil, false
	}
	pages, ok := doc.Pages()
	if !ok || len(pages) < r.MinPartialPages {
		return nil, false
	}
	return pages, true
}

// knownFallback reports whether prev is the fallback render of the very
// same source in the same context. Partial rendering of that text already
// fell back once and would again.
func (r *Renderer) knownFallback(req Request, prev *Snapshot) bool {
	return prev.Fallback() &&
		prev.Source() == req.Source &&
		prev.compatible(req, CompilerVersion(r.Compiler))
}

// firstTitle keeps the first of titles, recording a warning when a single
// page declares several.
func (r *Renderer) firstTitle(res *Result, page int, titles []string) string {
	if len(titles) == 0 {
		return ""
	}
	if len(titles) > 1 {
		msg := fmt.Sprintf("page %d declares %d titles, keeping %q", page+1, len(titles), titles[0])
		res.warn(page, msg)
		r.Logger.Warn("multiple titles", "page", page, "titles", len(titles), "kept", titles[0])
	}
	return titles[0]
}
