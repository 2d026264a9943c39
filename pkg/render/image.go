package render

import (
	"fmt"

	"github.com/matzehuels/pagewise/pkg/raster"
)

// Image is one rendered page, a title-only refresh or an error placeholder.
// Images are never mutated once created; a later render supersedes them
// with new values.
type Image struct {
	// Page is the zero-based page index, or WholeDocument.
	Page int `json:"page"`

	// Data holds the encoded image. It is nil for title-only entries, which
	// encode as null; an empty image encodes as "".
	Data []byte `json:"data"`

	Title    string `json:"title,omitempty"`
	Filename string `json:"filename,omitempty"`
	Format   Format `json:"format"`
	Mode     Mode   `json:"mode"`
	Error    bool   `json:"error,omitempty"`

	// Source is the text that produced this image: the wrapped page slice
	// in partial mode, the whole document in full mode.
	Source string `json:"source,omitempty"`

	// Description cross-references the image to its document and page.
	Description string `json:"description,omitempty"`
}

// HasImage reports whether the entry carries image bytes.
// A nil *Image has no image.
func (i *Image) HasImage() bool {
	return i != nil && i.Data != nil
}

// TitleOnly reports whether the entry only refreshed the title.
func (i *Image) TitleOnly() bool {
	return i != nil && i.Data == nil
}

// withPage returns a copy pinned to page p.
func (i *Image) withPage(p int) *Image {
	c := *i
	c.Page = p
	c.Description = describe(c.Filename, p)
	return &c
}

func describe(filename string, page int) string {
	if filename == "" {
		filename = "diagram"
	}
	if page == WholeDocument {
		return filename
	}
	return fmt.Sprintf("%s#page=%d", filename, page+1)
}

// ErrorImage renders text as an error placeholder in the given format.
func ErrorImage(format Format, text string) []byte {
	lines := raster.Wrap(text, 100, 40)
	if format == FormatSVG {
		return raster.SVG(lines, raster.ErrorStyle)
	}
	data, err := raster.PNG(lines, raster.ErrorStyle)
	if err != nil {
		return raster.SVG(lines, raster.ErrorStyle)
	}
	return data
}

// newErrorImage builds the error entry for page, keeping src so that the
// next render can tell whether the broken text changed.
func newErrorImage(req Request, page int, mode Mode, src string, cause error) *Image {
	filename := "error"
	return &Image{
		Page:        page,
		Data:        ErrorImage(req.Format, errorText(cause)),
		Title:       ErrorTitle,
		Filename:    filename,
		Format:      req.Format,
		Mode:        mode,
		Error:       true,
		Source:      src,
		Description: describe(filename, page),
	}
}
