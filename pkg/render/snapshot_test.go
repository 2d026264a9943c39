package render

import (
	"bytes"
	"encoding/json"
	"image/png"
	"strings"
	"testing"
)

func TestNilSnapshot(t *testing.T) {
	var s *Snapshot

	if s.Mode() != "" || s.PageCount() != 0 || s.Zoom() != 0 {
		t.Error("nil snapshot should be empty")
	}
	if s.Image(0) != nil || s.HasImage(0) || s.PageSource(0) != "" {
		t.Error("nil snapshot should have no pages")
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() on nil = %v", err)
	}
	if s.compatible(NewRequest("a"), "") {
		t.Error("nil snapshot is never compatible")
	}
}

func TestSnapshotMerge(t *testing.T) {
	req := NewRequest(dotDoc("a", "b", "c"))
	req.Page = 1

	res := newResult(ModePartial, 3)
	res.addTitleOnly(&Image{Page: 0, Title: "A", Mode: ModePartial, Source: "sa"})
	res.addRendered(&Image{Page: 1, Data: []byte("b"), Mode: ModePartial, Source: "sb"})
	res.addTitleOnly(&Image{Page: 2, Title: "C", Mode: ModePartial, Source: "sc"})

	var prev *Snapshot
	snap := prev.Merge(req, res, "v1")

	if err := snap.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if snap.Mode() != ModePartial || snap.PageCount() != 3 || snap.CompilerVersion() != "v1" {
		t.Errorf("mode=%s pages=%d version=%q", snap.Mode(), snap.PageCount(), snap.CompilerVersion())
	}
	if !snap.HasImage(1) || snap.HasImage(0) {
		t.Error("only page 1 should have image bytes")
	}
	if snap.PageSource(2) != "sc" {
		t.Errorf("PageSource(2) = %q", snap.PageSource(2))
	}

	// Pages missing from a later result keep their entry in the same mode.
	partialRes := newResult(ModePartial, 3)
	partialRes.addRendered(&Image{Page: 0, Data: []byte("a"), Mode: ModePartial, Source: "sa"})
	next := snap.Merge(req, partialRes, "v1")
	if next.Image(1) != snap.Image(1) {
		t.Error("page 1 should carry over")
	}
	if snap.HasImage(0) {
		t.Error("Merge must not mutate the previous snapshot")
	}

	// A mode switch drops the old entries.
	fullRes := newResult(ModeFull, 2)
	fullRes.addRendered(&Image{Page: 0, Data: []byte("x"), Mode: ModeFull})
	full := snap.Merge(req, fullRes, "v1")
	if full.PageCount() != 2 || full.Image(1) != nil {
		t.Errorf("full merge kept stale entries: pages=%d", full.PageCount())
	}
}

func TestSnapshotValidate(t *testing.T) {
	tests := []struct {
		name    string
		snap    *Snapshot
		wantErr string
	}{
		{"valid", &Snapshot{mode: ModePartial, images: []*Image{{Page: 0, Source: "a"}, nil}}, ""},
		{"bad mode", &Snapshot{mode: "weird"}, "invalid mode"},
		{"misaligned", &Snapshot{mode: ModeFull, images: []*Image{{Page: 1}}}, "page index"},
		{"partial without source", &Snapshot{mode: ModePartial, images: []*Image{{Page: 0}}}, "no page source"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.snap.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestSnapshotJSON(t *testing.T) {
	r := NewRenderer(&fakeCompiler{version: "1.0"})
	req := NewRequest(dotDoc("title A\na", "b"))
	req.Page = 0
	_, snap := pass(t, r, req, nil)

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Snapshot
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.PageCount() != 2 || !decoded.HasImage(0) || decoded.HasImage(1) {
		t.Errorf("decoded pages=%d", decoded.PageCount())
	}
	if decoded.Image(1) == nil {
		t.Error("title-only entry should survive the round trip")
	}

	// A decoded snapshot drives the next pass like the original would.
	res, _ := pass(t, r, req, &decoded)
	if !res.AllCached() {
		t.Error("decoded snapshot should make the pass fully cached")
	}
}

func TestSnapshotUnmarshalRejectsMisaligned(t *testing.T) {
	raw := `{"mode":"full","zoom":1,"format":"png","source":"x","images":[{"page":3,"format":"png","mode":"full"}]}`

	var s Snapshot
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		t.Error("expected an alignment error")
	}
}

func TestErrorImage(t *testing.T) {
	svg := string(ErrorImage(FormatSVG, "line <1>"))
	if !strings.HasPrefix(svg, "<svg") || !strings.Contains(svg, "line &lt;1&gt;") {
		t.Errorf("SVG error image = %s", svg)
	}

	data := ErrorImage(FormatPNG, "syntax error")
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("PNG error image does not decode: %v", err)
	}
}

func TestResultImages(t *testing.T) {
	res := newResult(ModePartial, 3)
	res.addCached(&Image{Page: 2, Title: "c"})
	res.addRendered(&Image{Page: 0, Title: "a", Data: []byte{1}})
	res.addTitleOnly(&Image{Page: 1, Title: "b", Error: true})

	if got := pageIndices(res.Images()); !sameInts(got, []int{0, 1, 2}) {
		t.Errorf("Images() order = %v", got)
	}
	if _, outcome := res.Image(2); outcome != OutcomeCached {
		t.Errorf("Image(2) outcome = %s", outcome)
	}
	if img, outcome := res.Image(9); img != nil || outcome != OutcomeNone {
		t.Error("Image(9) should be absent")
	}
	if len(res.Errors()) != 1 {
		t.Errorf("Errors() = %d, want 1", len(res.Errors()))
	}
	if res.AllCached() {
		t.Error("AllCached() should be false")
	}
}

func TestSnapshotJSONKeepsPassState(t *testing.T) {
	r := NewRenderer(&fakeCompiler{})
	req := NewRequest(dotDoc("a", "SPAN", "c"))
	req.IncludeDigest = "abc123"
	_, snap := pass(t, r, req, nil)

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Snapshot
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !decoded.Fallback() {
		t.Error("fallback flag lost in the round trip")
	}
	if decoded.IncludeDigest() != "abc123" {
		t.Errorf("IncludeDigest() = %q", decoded.IncludeDigest())
	}
}

func TestImageJSONEmptyVersusTitleOnly(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		wantImage bool
	}{
		{"empty image", []byte{}, true},
		{"title only", nil, false},
		{"image", []byte("png"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(&Image{Page: 0, Data: tt.data, Format: FormatPNG, Mode: ModeFull})
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var img Image
			if err := json.Unmarshal(raw, &img); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if img.HasImage() != tt.wantImage || img.TitleOnly() == tt.wantImage {
				t.Errorf("%s: HasImage=%t TitleOnly=%t", raw, img.HasImage(), img.TitleOnly())
			}
		})
	}
}
