package render

import "context"

// CompileOptions are the rendering options handed to a [Compiler].
type CompileOptions struct {
	Format      Format
	Zoom        float64
	BaseDir     string
	UseSettings bool
}

// Info describes a compiled document.
type Info struct {
	TotalPages int
	Titles     []string
	Filename   string
}

// Title returns the title of page p, or "" when the compiler reported none.
func (i Info) Title(p int) string {
	if p < 0 || p >= len(i.Titles) {
		return ""
	}
	return i.Titles[p]
}

// Diagram is a compiled document that can be rasterized page by page.
type Diagram interface {
	Info() Info

	// Rasterize encodes one page in the format the diagram was compiled with.
	Rasterize(ctx context.Context, page int) ([]byte, error)
}

// Compiler turns document text into diagrams. Implementations are shared
// by every page of a pass and are invoked sequentially, never concurrently,
// for one document.
type Compiler interface {
	Compile(ctx context.Context, doc string, opts CompileOptions) (Diagram, error)

	// Titles extracts the page titles without rasterizing anything.
	Titles(ctx context.Context, doc string, opts CompileOptions) ([]string, error)
}

// Versioned is implemented by compilers that identify the engine version
// producing their images. Snapshots taken with another version are obsolete.
type Versioned interface {
	Version() string
}

// CompilerVersion returns c's version, or "" if c is not [Versioned].
func CompilerVersion(c Compiler) string {
	if v, ok := c.(Versioned); ok {
		return v.Version()
	}
	return ""
}
