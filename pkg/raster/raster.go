// Package raster draws monospace text onto PNG and SVG canvases.
//
// It backs the synthetic error images produced when a page fails to render
// and the plain-text diagram compiler. PNG output uses the 7x13 bitmap face
// from golang.org/x/image so no font files are needed at runtime.
package raster

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"unicode/utf8"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	glyphWidth  = 7
	lineHeight  = 15
	glyphAscent = 11
)

// Style configures a text canvas.
type Style struct {
	// Header is drawn above the body in HeaderColor. Optional.
	Header      string
	HeaderColor color.RGBA

	TextColor  color.RGBA
	Background color.RGBA

	// Padding around the text block in pixels (before scaling).
	Padding int

	// Scale multiplies the canvas size. Values <= 0 mean 1.
	Scale float64
}

// DefaultStyle is black text on white with an 8px margin.
var DefaultStyle = Style{
	TextColor:  color.RGBA{33, 33, 33, 255},
	Background: color.RGBA{255, 255, 255, 255},
	Padding:    8,
	Scale:      1,
}

// ErrorStyle is the style of error placeholders.
var ErrorStyle = Style{
	Header:      "Error",
	HeaderColor: color.RGBA{192, 32, 32, 255},
	TextColor:   color.RGBA{33, 33, 33, 255},
	Background:  color.RGBA{255, 250, 240, 255},
	Padding:     10,
	Scale:       1,
}

// Wrap splits text into lines no longer than cols runes, also breaking on
// newlines. At most maxLines lines are returned; a truncated result ends
// with "...". A non-positive maxLines means no limit.
func Wrap(text string, cols, maxLines int) []string {
	if cols <= 0 {
		cols = 80
	}
	var lines []string
	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		raw = strings.ReplaceAll(raw, "\t", "    ")
		for utf8.RuneCountInString(raw) > cols {
			cut := byteOffset(raw, cols)
			lines = append(lines, raw[:cut])
			raw = raw[cut:]
		}
		lines = append(lines, raw)
	}
	if maxLines > 0 && len(lines) > maxLines {
		lines = append(lines[:maxLines-1], "...")
	}
	return lines
}

func byteOffset(s string, runes int) int {
	n := 0
	for i := range s {
		if n == runes {
			return i
		}
		n++
	}
	return len(s)
}

// PNG renders lines as a PNG image.
func PNG(lines []string, st Style) ([]byte, error) {
	w, h := canvasSize(lines, st)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(img, img.Bounds(), image.NewUniform(st.Background), image.Point{}, xdraw.Src)

	y := st.Padding + glyphAscent
	if st.Header != "" {
		drawString(img, st.Header, st.Padding, y, st.HeaderColor)
		y += lineHeight
	}
	for _, line := range lines {
		drawString(img, line, st.Padding, y, st.TextColor)
		y += lineHeight
	}

	var out image.Image = img
	if scale := st.scale(); scale != 1 {
		sw, sh := int(float64(w)*scale), int(float64(h)*scale)
		if sw < 1 {
			sw = 1
		}
		if sh < 1 {
			sh = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, sw, sh))
		xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// SVG renders lines as an SVG document.
func SVG(lines []string, st Style) []byte {
	w, h := canvasSize(lines, st)
	scale := st.scale()
	sw, sh := float64(w)*scale, float64(h)*scale

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="%.0f" height="%.0f">`, w, h, sw, sh)
	fmt.Fprintf(&buf, `<rect width="%d" height="%d" fill="%s"/>`, w, h, hex(st.Background))

	y := st.Padding + glyphAscent
	if st.Header != "" {
		writeText(&buf, st.Header, st.Padding, y, st.HeaderColor)
		y += lineHeight
	}
	for _, line := range lines {
		writeText(&buf, line, st.Padding, y, st.TextColor)
		y += lineHeight
	}
	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

func (st Style) scale() float64 {
	if st.Scale <= 0 {
		return 1
	}
	return st.Scale
}

func canvasSize(lines []string, st Style) (int, int) {
	cols := utf8.RuneCountInString(st.Header)
	for _, l := range lines {
		if n := utf8.RuneCountInString(l); n > cols {
			cols = n
		}
	}
	rows := len(lines)
	if st.Header != "" {
		rows++
	}
	if cols == 0 {
		cols = 1
	}
	if rows == 0 {
		rows = 1
	}
	return cols*glyphWidth + 2*st.Padding, rows*lineHeight + 2*st.Padding
}

func drawString(img *image.RGBA, s string, x, y int, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func writeText(buf *bytes.Buffer, s string, x, y int, c color.RGBA) {
	fmt.Fprintf(buf, `<text x="%d" y="%d" font-family="monospace" font-size="12" fill="%s" xml:space="preserve">`, x, y, hex(c))
	_ = xml.EscapeText(buf, []byte(s))
	buf.WriteString("</text>")
}

func hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
