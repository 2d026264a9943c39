package dot

import (
	"bytes"
	"context"
	"image/png"
	"strings"
	"testing"

	perrors "github.com/matzehuels/pagewise/pkg/errors"
	"github.com/matzehuels/pagewise/pkg/render"
)

const twoPages = `@startdot
title Services
digraph services { api -> db }
newpage
title Jobs
digraph jobs { cron -> worker }
@enddot
`

func opts(format render.Format, zoom float64) render.CompileOptions {
	return render.CompileOptions{Format: format, Zoom: zoom}
}

func TestCompileInfo(t *testing.T) {
	d, err := New().Compile(context.Background(), twoPages, opts(render.FormatPNG, 1))
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	info := d.Info()
	if info.TotalPages != 2 {
		t.Errorf("TotalPages = %d, want 2", info.TotalPages)
	}
	if strings.Join(info.Titles, ",") != "Services,Jobs" {
		t.Errorf("Titles = %q", info.Titles)
	}
	if info.Filename != "services" {
		t.Errorf("Filename = %q, want services", info.Filename)
	}
}

func TestRasterizePNG(t *testing.T) {
	ctx := context.Background()
	c := New()

	size := func(zoom float64) int {
		d, err := c.Compile(ctx, twoPages, opts(render.FormatPNG, zoom))
		if err != nil {
			t.Fatalf("Compile() error: %v", err)
		}
		data, err := d.Rasterize(ctx, 1)
		if err != nil {
			t.Fatalf("Rasterize() error: %v", err)
		}
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("not a PNG: %v", err)
		}
		return img.Bounds().Dx()
	}

	if w1, w2 := size(1), size(2); w2 <= w1 {
		t.Errorf("zoom 2 width %d should exceed zoom 1 width %d", w2, w1)
	}
}

func TestRasterizeSVG(t *testing.T) {
	ctx := context.Background()
	d, err := New().Compile(ctx, twoPages, opts(render.FormatSVG, 1))
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	data, err := d.Rasterize(ctx, 0)
	if err != nil {
		t.Fatalf("Rasterize() error: %v", err)
	}
	svg := string(data)
	if !strings.Contains(svg, "<svg") || !strings.Contains(svg, "api") {
		t.Errorf("unexpected SVG output: %.200s", svg)
	}
}

func TestRasterizeErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		doc  string
		page int
		code perrors.Code
	}{
		{"syntax", "@startdot\ndigraph { a -> }\n@enddot", 0, perrors.ErrCodeCompiler},
		{"empty page", "@startdot\ntitle Only\n@enddot", 0, perrors.ErrCodeCompiler},
		{"out of range", twoPages, 5, perrors.ErrCodePageNotFound},
		{"missing include", "@startdot\n!include missing.dot\n@enddot", 0, perrors.ErrCodeFileNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New().Compile(ctx, tt.doc, opts(render.FormatSVG, 1))
			if err != nil {
				t.Fatalf("Compile() error: %v", err)
			}
			_, err = d.Rasterize(ctx, tt.page)
			if !perrors.Is(err, tt.code) {
				t.Errorf("code = %s, want %s (%v)", perrors.GetCode(err), tt.code, err)
			}
		})
	}
}

func TestCompileRejectsOtherKinds(t *testing.T) {
	_, err := New().Compile(context.Background(), "@startuml\na -> b\n@enduml", opts(render.FormatPNG, 1))
	if !perrors.Is(err, perrors.ErrCodeUnsupported) {
		t.Errorf("code = %s, want UNSUPPORTED", perrors.GetCode(err))
	}
}

func TestTitles(t *testing.T) {
	titles, err := New().Titles(context.Background(), "@startdot\ntitle A\ntitle B\ndigraph {}\n@enddot", opts(render.FormatPNG, 1))
	if err != nil {
		t.Fatalf("Titles() error: %v", err)
	}
	if strings.Join(titles, ",") != "A,B" {
		t.Errorf("Titles() = %q, want both titles of the lone page", titles)
	}
}

func TestWithDPI(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"digraph g { a }", "digraph g { graph [dpi=192.00]; a }"},
		{"strict graph {a--b}", "strict graph { graph [dpi=192.00];a--b}"},
		{"not a graph", "not a graph"},
	}
	for _, tt := range tests {
		if got := withDPI(tt.in, 192); got != tt.want {
			t.Errorf("withDPI(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScaleSVG(t *testing.T) {
	in := []byte(`<svg width="62pt" height="116pt" viewBox="0.00 0.00 62.00 116.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	got := string(scaleSVG(in, 2))
	if !strings.Contains(got, `width="124" height="232"`) {
		t.Errorf("scaleSVG() = %s", got)
	}
	if !strings.Contains(got, `viewBox="0 0 62.00 116.00"`) {
		t.Errorf("scaleSVG() should keep the viewBox: %s", got)
	}
}

func TestVersion(t *testing.T) {
	if v := New().Version(); !strings.HasPrefix(v, "dot/") {
		t.Errorf("Version() = %q", v)
	}
}
