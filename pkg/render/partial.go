package render

import (
	"context"
	"time"

	perrors "github.com/matzehuels/pagewise/pkg/errors"
	"github.com/matzehuels/pagewise/pkg/observability"
	"github.com/matzehuels/pagewise/pkg/source"
)

// renderPartial renders each page in isolation. It returns a
// STRUCTURAL_FALLBACK error as soon as one page cannot stand alone.
func (r *Renderer) renderPartial(ctx context.Context, req Request, prev *Snapshot, kind string, pages []string) (*Result, error) {
	compatible := prev.compatible(req, CompilerVersion(r.Compiler))
	res := newResult(ModePartial, len(pages))

	for p, slice := range pages {
		if err := checkCancelled(ctx, p); err != nil {
			return nil, err
		}

		src := source.Wrap(kind, slice)
		cached := prev.Image(p)
		obsolete := !compatible ||
			req.RefreshOrIncludesChanged() ||
			prev.Mode() != ModePartial ||
			req.Zoom != prev.Zoom() ||
			cached == nil ||
			cached.Source != src

		switch {
		case req.PageSelected(p) && (obsolete || !cached.HasImage()):
			img, err := r.renderPage(ctx, req, res, p, src)
			if err != nil {
				return nil, err
			}
			res.addRendered(img)
		case obsolete:
			img, err := r.refreshTitle(ctx, req, res, p, src, cached)
			if err != nil {
				return nil, err
			}
			res.addTitleOnly(img)
		default:
			res.addCached(cached)
		}
	}
	return res, nil
}

// renderPage compiles and rasterizes the wrapped slice src as page p.
// Compiler failures come back as an error image; only cancellation and the
// structural fallback are returned as errors.
func (r *Renderer) renderPage(ctx context.Context, req Request, res *Result, p int, src string) (*Image, error) {
	start := time.Now()
	var img *Image
	err := guard(func() error {
		d, err := r.Compiler.Compile(ctx, src, req.CompileOptions())
		if err != nil {
			return err
		}
		info := d.Info()
		if info.TotalPages > 1 {
			return perrors.Wrap(perrors.ErrCodeStructuralFallback, ErrStructuralFallback,
				"page %d yields %d pages when isolated", p+1, info.TotalPages)
		}
		title := r.firstTitle(res, p, info.Titles)
		data, err := d.Rasterize(ctx, 0)
		if err != nil {
			return err
		}
		// The isolated run believes it rendered page 0.
		img = (&Image{
			Page:     0,
			Data:     data,
			Title:    title,
			Filename: info.Filename,
			Format:   req.Format,
			Mode:     ModePartial,
			Source:   src,
		}).withPage(p)
		return nil
	})

	hooks := observability.Render()
	switch {
	case err == nil:
		hooks.OnPageRender(ctx, string(ModePartial), p, time.Since(start), nil)
		return img, nil
	case perrors.Is(err, perrors.ErrCodeStructuralFallback):
		hooks.OnFallback(ctx, p)
		return nil, err
	}

	err = pageError(p, err)
	if IsCancelled(err) {
		return nil, err
	}
	hooks.OnPageRender(ctx, string(ModePartial), p, time.Since(start), err)
	r.Logger.Warn("page failed", "page", p, "error", perrors.UserMessage(err))
	return newErrorImage(req, p, ModePartial, src, err), nil
}

// refreshTitle recomputes the title of page p without rasterizing it.
func (r *Renderer) refreshTitle(ctx context.Context, req Request, res *Result, p int, src string, cached *Image) (*Image, error) {
	var titles []string
	err := guard(func() (err error) {
		titles, err = r.Compiler.Titles(ctx, src, req.CompileOptions())
		return err
	})

	img := &Image{
		Page:   p,
		Format: req.Format,
		Mode:   ModePartial,
		Source: src,
	}
	if cached != nil {
		img.Filename = cached.Filename
	}

	if err != nil {
		err = pageError(p, err)
		if IsCancelled(err) {
			return nil, err
		}
		r.Logger.Warn("title refresh failed", "page", p, "error", perrors.UserMessage(err))
		img.Title = ErrorTitle
		img.Error = true
		img.Filename = "error"
	} else {
		img.Title = r.firstTitle(res, p, titles)
	}
	img.Description = describe(img.Filename, p)
	return img, nil
}
