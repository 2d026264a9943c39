// Package text is a diagram compiler that draws page text verbatim.
//
// It accepts any block kind and needs no external engine, which makes it
// the fallback compiler and the one used by tests. A page's title becomes
// the image header. A line of the form "!error <message>" makes the page
// fail, which is handy to exercise error images.
package text

import (
	"context"
	"strings"

	perrors "github.com/matzehuels/pagewise/pkg/errors"
	"github.com/matzehuels/pagewise/pkg/raster"
	"github.com/matzehuels/pagewise/pkg/render"
	"github.com/matzehuels/pagewise/pkg/source"
)

// Name is the registry name of this compiler.
const Name = "text"

// Version is bumped whenever the drawing changes.
const Version = "text/1"

// maxColumns is the wrap width of page text.
const maxColumns = 120

// Compiler draws monospace text pages.
type Compiler struct {
	Style raster.Style
}

// New returns a text compiler with the default style.
func New() *Compiler {
	return &Compiler{Style: raster.DefaultStyle}
}

// Version implements render.Versioned.
func (c *Compiler) Version() string { return Version }

// Compile splits doc into pages.
func (c *Compiler) Compile(ctx context.Context, doc string, opts render.CompileOptions) (render.Diagram, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pages := source.Parse(doc).AllPages()
	if len(pages) == 0 {
		pages = []string{""}
	}
	return &diagram{
		style: c.Style,
		pages: pages,
		opts:  opts,
		info: render.Info{
			TotalPages: len(pages),
			Titles:     source.PageTitles(pages),
			Filename:   "text",
		},
	}, nil
}

// Titles returns the page titles of doc.
func (c *Compiler) Titles(ctx context.Context, doc string, opts render.CompileOptions) ([]string, error) {
	return source.PageTitles(source.Parse(doc).AllPages()), nil
}

type diagram struct {
	style raster.Style
	pages []string
	opts  render.CompileOptions
	info  render.Info
}

func (d *diagram) Info() render.Info { return d.info }

func (d *diagram) Rasterize(ctx context.Context, page int) ([]byte, error) {
	if page < 0 || page >= len(d.pages) {
		return nil, perrors.New(perrors.ErrCodePageNotFound, "page %d out of range (document has %d)", page+1, len(d.pages))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, err := source.ExpandIncludes(source.StripTitles(d.pages[page]), d.opts.BaseDir)
	if err != nil {
		return nil, err
	}
	for _, line := range strings.Split(body, "\n") {
		if msg, ok := strings.CutPrefix(strings.TrimSpace(line), "!error"); ok {
			return nil, perrors.New(perrors.ErrCodeCompiler, "%s", strings.TrimSpace(msg))
		}
	}

	st := d.style
	st.Header = source.Title(d.pages[page])
	st.Scale = d.opts.Zoom
	lines := raster.Wrap(strings.Trim(body, "\n"), maxColumns, 0)

	if d.opts.Format == render.FormatSVG {
		return raster.SVG(lines, st), nil
	}
	return raster.PNG(lines, st)
}
