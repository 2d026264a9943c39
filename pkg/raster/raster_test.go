package raster

import (
	"bytes"
	"image/png"
	"strings"
	"testing"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		cols     int
		maxLines int
		want     []string
	}{
		{"short", "hello", 10, 0, []string{"hello"}},
		{"newlines", "a\nb", 10, 0, []string{"a", "b"}},
		{"hard wrap", "abcdefgh", 3, 0, []string{"abc", "def", "gh"}},
		{"exact width", "abc", 3, 0, []string{"abc"}},
		{"truncated", "a\nb\nc\nd", 10, 3, []string{"a", "b", "..."}},
		{"multibyte", "äöüß", 2, 0, []string{"äö", "üß"}},
		{"tabs", "\tx", 10, 0, []string{"    x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Wrap(tt.text, tt.cols, tt.maxLines)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("Wrap() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPNG(t *testing.T) {
	data, err := PNG([]string{"syntax error", "line 3"}, ErrorStyle)
	if err != nil {
		t.Fatalf("PNG() error: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a valid PNG: %v", err)
	}

	// 12 columns, 3 rows (header + 2 lines), 10px padding.
	b := img.Bounds()
	if b.Dx() != 12*glyphWidth+20 {
		t.Errorf("width = %d, want %d", b.Dx(), 12*glyphWidth+20)
	}
	if b.Dy() != 3*lineHeight+20 {
		t.Errorf("height = %d, want %d", b.Dy(), 3*lineHeight+20)
	}
}

func TestPNGScale(t *testing.T) {
	st := DefaultStyle
	st.Scale = 2

	data, err := PNG([]string{"ab"}, st)
	if err != nil {
		t.Fatalf("PNG() error: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	w, h := canvasSize([]string{"ab"}, st)
	if img.Bounds().Dx() != 2*w || img.Bounds().Dy() != 2*h {
		t.Errorf("scaled size = %v, want %dx%d", img.Bounds().Size(), 2*w, 2*h)
	}
}

func TestSVGEscapes(t *testing.T) {
	svg := string(SVG([]string{"a < b & c"}, ErrorStyle))

	if !strings.HasPrefix(svg, "<svg") {
		t.Error("SVG() output should start with <svg")
	}
	if !strings.Contains(svg, "a &lt; b &amp; c") {
		t.Errorf("SVG() should escape text, got %s", svg)
	}
	if !strings.Contains(svg, ">Error</text>") {
		t.Error("SVG() should include the header")
	}
}
