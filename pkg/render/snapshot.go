package render

import (
	"encoding/json"
	"fmt"
)

// Snapshot is the last successful render of one document. It is immutable:
// each successful pass produces a new Snapshot via [Snapshot.Merge] that
// replaces the previous one wholesale.
//
// Images are index-aligned with pages. A nil entry is a page that was never
// rendered, which differs from a title-only entry (non-nil, no bytes).
//
// All methods accept a nil receiver, which behaves as an empty cache.
type Snapshot struct {
	mode        Mode
	zoom        float64
	format      Format
	baseDir     string
	useSettings bool
	compiler    string
	source      string
	includes    string
	fallback    bool
	images      []*Image
}

// Merge returns the snapshot that follows s once res succeeded for req,
// rendered by a compiler identified by compilerVersion. Pages missing from
// res keep their previous entry if the mode did not change.
func (s *Snapshot) Merge(req Request, res *Result, compilerVersion string) *Snapshot {
	next := &Snapshot{
		mode:        res.Mode,
		zoom:        req.Zoom,
		format:      req.Format,
		baseDir:     req.BaseDir,
		useSettings: req.UseSettings,
		compiler:    compilerVersion,
		source:      req.Source,
		includes:    req.IncludeDigest,
		fallback:    res.Fallback,
		images:      make([]*Image, res.PageCount),
	}
	if s != nil && s.mode == res.Mode {
		for i := 0; i < len(next.images) && i < len(s.images); i++ {
			next.images[i] = s.images[i]
		}
	}
	for _, img := range res.Images() {
		if img.Page >= 0 && img.Page < len(next.images) {
			next.images[img.Page] = img
		}
	}
	return next
}

// Mode returns the rendering mode the snapshot was captured with.
func (s *Snapshot) Mode() Mode {
	if s == nil {
		return ""
	}
	return s.mode
}

// Zoom returns the zoom at capture time.
func (s *Snapshot) Zoom() float64 {
	if s == nil {
		return 0
	}
	return s.zoom
}

// Format returns the output format at capture time.
func (s *Snapshot) Format() Format {
	if s == nil {
		return ""
	}
	return s.format
}

// Source returns the full document text at capture time.
func (s *Snapshot) Source() string {
	if s == nil {
		return ""
	}
	return s.source
}

// IncludeDigest returns the digest of the included files at capture time.
func (s *Snapshot) IncludeDigest() string {
	if s == nil {
		return ""
	}
	return s.includes
}

// Fallback reports whether the snapshot is a full render taken after
// partial rendering of the same source failed to isolate a page.
func (s *Snapshot) Fallback() bool {
	return s != nil && s.fallback
}

// CompilerVersion identifies the compiler that produced the images.
func (s *Snapshot) CompilerVersion() string {
	if s == nil {
		return ""
	}
	return s.compiler
}

// PageCount returns the number of pages at capture time.
func (s *Snapshot) PageCount() int {
	if s == nil {
		return 0
	}
	return len(s.images)
}

// Image returns the entry for page p, or nil.
func (s *Snapshot) Image(p int) *Image {
	if s == nil || p < 0 || p >= len(s.images) {
		return nil
	}
	return s.images[p]
}

// HasImage reports whether page p has image bytes.
func (s *Snapshot) HasImage(p int) bool {
	return s.Image(p).HasImage()
}

// PageSource returns the source that produced page p, or "".
func (s *Snapshot) PageSource(p int) string {
	if img := s.Image(p); img != nil {
		return img.Source
	}
	return ""
}

// Images returns a copy of the index-aligned entries.
func (s *Snapshot) Images() []*Image {
	if s == nil {
		return nil
	}
	return append([]*Image(nil), s.images...)
}

// compatible reports whether s was captured in the same rendering context
// as req with the given compiler. Incompatible snapshots are obsolete.
func (s *Snapshot) compatible(req Request, compilerVersion string) bool {
	return s != nil &&
		s.format == req.Format &&
		s.baseDir == req.BaseDir &&
		s.useSettings == req.UseSettings &&
		s.compiler == compilerVersion
}

// Validate checks index alignment: every entry sits at its own page index
// and, in partial mode, carries the page source used for diffing.
func (s *Snapshot) Validate() error {
	if s == nil {
		return nil
	}
	if s.mode != ModeFull && s.mode != ModePartial {
		return fmt.Errorf("snapshot: invalid mode %q", s.mode)
	}
	for i, img := range s.images {
		if img == nil {
			continue
		}
		if img.Page != i {
			return fmt.Errorf("snapshot: entry %d has page index %d", i, img.Page)
		}
		if s.mode == ModePartial && img.Source == "" {
			return fmt.Errorf("snapshot: partial entry %d has no page source", i)
		}
	}
	return nil
}

// snapshotJSON is the serialized form of a Snapshot.
type snapshotJSON struct {
	Mode        Mode     `json:"mode"`
	Zoom        float64  `json:"zoom"`
	Format      Format   `json:"format"`
	BaseDir     string   `json:"base_dir,omitempty"`
	UseSettings bool     `json:"use_settings,omitempty"`
	Compiler    string   `json:"compiler,omitempty"`
	Source      string   `json:"source"`
	Includes    string   `json:"include_digest,omitempty"`
	Fallback    bool     `json:"fallback,omitempty"`
	Images      []*Image `json:"images"`
}

// MarshalJSON implements json.Marshaler.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{
		Mode:        s.mode,
		Zoom:        s.zoom,
		Format:      s.format,
		BaseDir:     s.baseDir,
		UseSettings: s.useSettings,
		Compiler:    s.compiler,
		Source:      s.source,
		Includes:    s.includes,
		Fallback:    s.fallback,
		Images:      s.images,
	})
}

// UnmarshalJSON implements json.Unmarshaler. The decoded snapshot must
// satisfy [Snapshot.Validate].
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded := Snapshot{
		mode:        raw.Mode,
		zoom:        raw.Zoom,
		format:      raw.Format,
		baseDir:     raw.BaseDir,
		useSettings: raw.UseSettings,
		compiler:    raw.Compiler,
		source:      raw.Source,
		includes:    raw.Includes,
		fallback:    raw.Fallback,
		images:      raw.Images,
	}
	if err := decoded.Validate(); err != nil {
		return err
	}
	*s = decoded
	return nil
}
