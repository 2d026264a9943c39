// Package render provides incremental rendering of multi-page diagram
// documents.
//
// # Overview
//
// A document is split into pages (see [source.Parse]). Given a [Request]
// and the [Snapshot] of the previous successful pass, a [Renderer] decides
// for every page whether to:
//
//   - reuse the cached image unchanged
//   - refresh only its title, without rasterizing (page not selected)
//   - render it again
//
// The decision depends on the page's source slice, the zoom, the rendering
// mode and the force flags of the request. The pass returns a [Result]
// whose entries the caller folds into the next snapshot:
//
//	r := render.NewRenderer(compiler, render.WithLogger(logger))
//	res, err := r.Render(ctx, req, prev)
//	if err != nil {
//	    return err // invalid request or cancelled; prev is still valid
//	}
//	next := prev.Merge(req, res, render.CompilerVersion(compiler))
//
// # Partial and Full Modes
//
// Single-block documents with at least [DefaultMinPartialPages] pages are
// rendered in partial mode: each page slice is wrapped into a standalone
// document and compiled alone. When an isolated page turns out to span
// several pages, the whole pass silently switches to full mode, which
// compiles the document once and tracks obsolescence for the document as
// a whole.
//
// # Errors
//
// A page whose compilation fails becomes an error image titled
// [ErrorTitle] instead of failing the pass. Only two failures escape
// [Renderer.Render]: an invalid request (INVALID_REQUEST) and cancellation
// (CANCELLED, which also matches context.Canceled or
// context.DeadlineExceeded). Cancellation discards the whole pass.
//
// # Compilers
//
// The diagram engine is injected as a [Compiler]. Concrete compilers live
// in [github.com/matzehuels/pagewise/pkg/compiler].
package render
