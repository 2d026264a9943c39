package render

import (
	"fmt"

	perrors "github.com/matzehuels/pagewise/pkg/errors"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI, Server and Library
// =============================================================================

const (
	// AllPages is the page selector that renders every page.
	AllPages = -1

	// WholeDocument is the page index of an image that stands for the whole
	// document rather than a single page.
	WholeDocument = -1

	// DefaultZoom renders at 100%.
	DefaultZoom = 1.0

	// DefaultMinPartialPages is the smallest page count for which per-page
	// isolation is used. Smaller documents are always rendered in full.
	DefaultMinPartialPages = 2

	// ErrorTitle is the title of synthetic error images.
	ErrorTitle = "(Error)"
)

// Format is an output image format.
type Format string

// Supported output formats.
const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

// DefaultFormat is the default output format.
const DefaultFormat = FormatPNG

// ValidFormats is the set of supported output formats.
var ValidFormats = map[Format]bool{
	FormatPNG: true,
	FormatSVG: true,
}

// ParseFormat converts a user-supplied string into a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(s)
	if !ValidFormats[f] {
		return "", perrors.New(perrors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: png, svg)", s)
	}
	return f, nil
}

// Mode is the rendering strategy a result or snapshot was produced with.
type Mode string

// Rendering modes.
const (
	ModeFull    Mode = "full"
	ModePartial Mode = "partial"
)

// Request describes one desired render. It is a value type; callers build
// a new request per invocation.
type Request struct {
	Source  string  `json:"source"`
	BaseDir string  `json:"base_dir,omitempty"`
	Format  Format  `json:"format"`
	Zoom    float64 `json:"zoom"`

	// Page is AllPages or a zero-based page index.
	Page int `json:"page"`

	UseSettings     bool `json:"use_settings,omitempty"`
	Refresh         bool `json:"refresh,omitempty"`
	IncludesChanged bool `json:"includes_changed,omitempty"`

	// IncludeDigest identifies the content of the files the source
	// includes. It is recorded in the next snapshot so that a later
	// process can tell whether those files changed in between.
	IncludeDigest string `json:"include_digest,omitempty"`
}

// NewRequest creates a request for source with default format and zoom
// that selects all pages.
func NewRequest(source string) Request {
	return Request{
		Source: source,
		Format: DefaultFormat,
		Zoom:   DefaultZoom,
		Page:   AllPages,
	}
}

// Validate fails fast on malformed requests, before any rendering work.
func (r Request) Validate() error {
	if err := perrors.ValidateZoom(r.Zoom); err != nil {
		return err
	}
	if err := perrors.ValidatePageSelector(r.Page, AllPages); err != nil {
		return err
	}
	if !ValidFormats[r.Format] {
		return perrors.New(perrors.ErrCodeInvalidRequest, "invalid format: %q (must be one of: png, svg)", r.Format)
	}
	return perrors.ValidateBaseDir(r.BaseDir)
}

// PageSelected reports whether page p is in scope for this request.
func (r Request) PageSelected(p int) bool {
	return r.Page == AllPages || r.Page == p
}

// RefreshOrIncludesChanged reports whether the caller forced a re-render.
func (r Request) RefreshOrIncludesChanged() bool {
	return r.Refresh || r.IncludesChanged
}

// WithPage returns a copy of r selecting page p.
func (r Request) WithPage(p int) Request {
	r.Page = p
	return r
}

// CompileOptions returns the compiler options derived from r.
func (r Request) CompileOptions() CompileOptions {
	return CompileOptions{
		Format:      r.Format,
		Zoom:        r.Zoom,
		BaseDir:     r.BaseDir,
		UseSettings: r.UseSettings,
	}
}

// String implements fmt.Stringer for log output.
func (r Request) String() string {
	page := "all"
	if r.Page != AllPages {
		page = fmt.Sprint(r.Page)
	}
	return fmt.Sprintf("format=%s zoom=%g page=%s refresh=%t includes_changed=%t", r.Format, r.Zoom, page, r.Refresh, r.IncludesChanged)
}
