// Package dot compiles Graphviz documents into page images.
//
// A document holds one or more @startdot ... @enddot blocks (unmarked text
// is accepted as a single block). Pages are separated by "newpage" lines.
// Every page may declare a "title ..." line; the rest of the page must be
// a DOT graph:
//
//	@startdot
//	title Services
//	digraph services { api -> db }
//	newpage
//	title Jobs
//	digraph jobs { cron -> worker }
//	@enddot
//
// Pages are laid out in-process with [github.com/goccy/go-graphviz], so no
// Graphviz installation is required.
package dot

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	perrors "github.com/matzehuels/pagewise/pkg/errors"
	"github.com/matzehuels/pagewise/pkg/render"
	"github.com/matzehuels/pagewise/pkg/source"
)

// Name is the registry name of this compiler.
const Name = "dot"

// baseDPI is the Graphviz default resolution for bitmap output.
const baseDPI = 96.0

// Kinds are the block kinds this compiler accepts.
var Kinds = map[string]bool{"": true, "dot": true, "graphviz": true}

// Compiler renders DOT pages with an embedded Graphviz.
type Compiler struct{}

// New returns a DOT compiler.
func New() *Compiler { return &Compiler{} }

// Version identifies the embedded Graphviz build.
func (c *Compiler) Version() string {
	return Name + "/" + moduleVersion("github.com/goccy/go-graphviz")
}

// Compile splits doc into pages. DOT syntax is checked page by page when a
// page is rasterized, so one broken page does not fail the document.
func (c *Compiler) Compile(ctx context.Context, doc string, opts render.CompileOptions) (render.Diagram, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pages, err := split(doc)
	if err != nil {
		return nil, err
	}
	return &diagram{
		pages: pages,
		opts:  opts,
		info: render.Info{
			TotalPages: len(pages),
			Titles:     source.PageTitles(pages),
			Filename:   filename(pages),
		},
	}, nil
}

// Titles returns the page titles of doc without running Graphviz.
func (c *Compiler) Titles(ctx context.Context, doc string, opts render.CompileOptions) ([]string, error) {
	pages, err := split(doc)
	if err != nil {
		return nil, err
	}
	return source.PageTitles(pages), nil
}

func split(doc string) ([]string, error) {
	parsed := source.Parse(doc)
	for _, b := range parsed.Blocks {
		if !Kinds[b.Kind] {
			return nil, perrors.New(perrors.ErrCodeUnsupported, "dot compiler cannot render @start%s blocks", b.Kind)
		}
	}
	pages := parsed.AllPages()
	if len(pages) == 0 {
		return nil, perrors.New(perrors.ErrCodeCompiler, "document contains no diagram")
	}
	return pages, nil
}

type diagram struct {
	pages []string
	opts  render.CompileOptions
	info  render.Info
}

func (d *diagram) Info() render.Info { return d.info }

// Rasterize lays out page and encodes it as PNG or SVG.
func (d *diagram) Rasterize(ctx context.Context, page int) ([]byte, error) {
	if page < 0 || page >= len(d.pages) {
		return nil, perrors.New(perrors.ErrCodePageNotFound, "page %d out of range (document has %d)", page+1, len(d.pages))
	}
	body, err := source.ExpandIncludes(source.StripTitles(d.pages[page]), d.opts.BaseDir)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, perrors.New(perrors.ErrCodeCompiler, "page %d is empty", page+1)
	}

	if d.opts.Format == render.FormatSVG {
		svg, err := Render(ctx, body, graphviz.SVG)
		if err != nil {
			return nil, err
		}
		return scaleSVG(svg, d.opts.Zoom), nil
	}
	return Render(ctx, withDPI(body, baseDPI*d.opts.Zoom), graphviz.PNG)
}

// Render lays out one DOT graph and encodes it in format.
func Render(ctx context.Context, dot string, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeCompiler, err, "parse DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, perrors.Wrap(perrors.ErrCodeCompiler, err, "render %s", format)
	}
	return buf.Bytes(), nil
}

var graphOpenRe = regexp.MustCompile(`(?s)^(\s*(?:strict\s+)?(?:di)?graph\b[^{]*\{)`)

// withDPI sets the graph resolution by adding a graph attribute right after
// the opening brace. Text that is not a graph is returned unchanged and
// left for the parser to reject.
func withDPI(dot string, dpi float64) string {
	loc := graphOpenRe.FindStringSubmatchIndex(dot)
	if loc == nil {
		return dot
	}
	attr := " graph [dpi=" + strconv.FormatFloat(dpi, 'f', 2, 64) + "];"
	return dot[:loc[3]] + attr + dot[loc[3]:]
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// scaleSVG rewrites the root element so the drawing keeps its viewBox but
// is displayed at zoom times its natural size.
func scaleSVG(svg []byte, zoom float64) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w*zoom, h*zoom)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}

var graphNameRe = regexp.MustCompile(`(?m)^\s*(?:strict\s+)?(?:di)?graph\s+"?([A-Za-z0-9_.-]+)"?\s*\{`)

// filename derives the output name hint from the first named graph.
func filename(pages []string) string {
	for _, p := range pages {
		if m := graphNameRe.FindStringSubmatch(p); m != nil {
			return m[1]
		}
	}
	return "diagram"
}

func moduleVersion(path string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "devel"
	}
	for _, dep := range info.Deps {
		if dep.Path == path {
			return dep.Version
		}
	}
	return "devel"
}
