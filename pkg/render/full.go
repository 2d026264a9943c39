package render

import (
	"context"
	"time"

	perrors "github.com/matzehuels/pagewise/pkg/errors"
	"github.com/matzehuels/pagewise/pkg/observability"
)

// renderFull renders the whole document in one compile. Obsolescence has
// no page granularity here: either the snapshot is current as a whole or
// every page is refreshed.
func (r *Renderer) renderFull(ctx context.Context, req Request, prev *Snapshot) (*Result, error) {
	obsolete := !prev.compatible(req, CompilerVersion(r.Compiler)) ||
		req.RefreshOrIncludesChanged() ||
		prev.Mode() != ModeFull ||
		req.Zoom != prev.Zoom() ||
		req.Source != prev.Source()

	if !obsolete && selectedCached(req, prev) {
		res := newResult(ModeFull, prev.PageCount())
		for _, img := range prev.Images() {
			if img != nil {
				res.addCached(img)
			}
		}
		return res, nil
	}

	if err := checkCancelled(ctx, 0); err != nil {
		return nil, err
	}

	var d Diagram
	err := guard(func() (err error) {
		d, err = r.Compiler.Compile(ctx, req.Source, req.CompileOptions())
		return err
	})
	if err != nil {
		err = pageError(WholeDocument, err)
		if IsCancelled(err) {
			return nil, err
		}
		r.Logger.Warn("document failed", "error", perrors.UserMessage(err))
		res := newResult(ModeFull, 1)
		res.addRendered(newErrorImage(req, 0, ModeFull, req.Source, err))
		return res, nil
	}

	info := d.Info()
	res := newResult(ModeFull, info.TotalPages)
	for p := 0; p < info.TotalPages; p++ {
		if err := checkCancelled(ctx, p); err != nil {
			return nil, err
		}

		cached := prev.Image(p)
		switch {
		case req.PageSelected(p) && (obsolete || !cached.HasImage()):
			img, err := r.rasterizeFull(ctx, req, d, info, p)
			if err != nil {
				return nil, err
			}
			res.addRendered(img)
		case obsolete || cached == nil:
			res.addTitleOnly(&Image{
				Page:        p,
				Title:       info.Title(p),
				Filename:    info.Filename,
				Format:      req.Format,
				Mode:        ModeFull,
				Source:      req.Source,
				Description: describe(info.Filename, p),
			})
		default:
			res.addCached(cached)
		}
	}
	return res, nil
}

// rasterizeFull encodes page p of the compiled document d. A failure
// becomes an error image at p.
func (r *Renderer) rasterizeFull(ctx context.Context, req Request, d Diagram, info Info, p int) (*Image, error) {
	start := time.Now()
	var data []byte
	err := guard(func() (err error) {
		data, err = d.Rasterize(ctx, p)
		return err
	})

	hooks := observability.Render()
	if err != nil {
		err = pageError(p, err)
		if IsCancelled(err) {
			return nil, err
		}
		hooks.OnPageRender(ctx, string(ModeFull), p, time.Since(start), err)
		r.Logger.Warn("page failed", "page", p, "error", perrors.UserMessage(err))
		return newErrorImage(req, p, ModeFull, req.Source, err), nil
	}

	hooks.OnPageRender(ctx, string(ModeFull), p, time.Since(start), nil)
	return &Image{
		Page:        p,
		Data:        data,
		Title:       info.Title(p),
		Filename:    info.Filename,
		Format:      req.Format,
		Mode:        ModeFull,
		Source:      req.Source,
		Description: describe(info.Filename, p),
	}, nil
}

// selectedCached reports whether every selected page of prev has an image.
func selectedCached(req Request, prev *Snapshot) bool {
	if prev.PageCount() == 0 {
		return false
	}
	for p := 0; p < prev.PageCount(); p++ {
		if req.PageSelected(p) && !prev.HasImage(p) {
			return false
		}
	}
	return true
}
