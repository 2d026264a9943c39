package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/pagewise/pkg/cache"
	"github.com/matzehuels/pagewise/pkg/compiler/text"
	"github.com/matzehuels/pagewise/pkg/document"
	"github.com/matzehuels/pagewise/pkg/observability"
	"github.com/matzehuels/pagewise/pkg/observability/prom"
	"github.com/matzehuels/pagewise/pkg/render"
)

const doc = "@startnote\ntitle Intro\nhello\nnewpage\ntitle Body\nworld\n@endnote\n"

func newTestServer(t *testing.T, content string) (*httptest.Server, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	sess := document.NewSession(path, render.NewRenderer(text.New()))
	ts := httptest.NewServer(New(sess, WithGatherer(prometheus.NewRegistry())).Handler())
	t.Cleanup(ts.Close)
	return ts, path
}

func getPages(t *testing.T, url string) pagesResponse {
	t.Helper()
	resp, err := http.Get(url + "/pages")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /pages status = %d", resp.StatusCode)
	}
	var body pagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	return body
}

func TestListPages(t *testing.T) {
	ts, path := newTestServer(t, doc)

	body := getPages(t, ts.URL)
	if len(body.Pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(body.Pages))
	}
	if body.Pages[0].Title != "Intro" || body.Pages[1].Title != "Body" {
		t.Errorf("titles = %q, %q", body.Pages[0].Title, body.Pages[1].Title)
	}
	for _, p := range body.Pages {
		if p.Status != render.OutcomeRendered {
			t.Errorf("page %d status = %q on first listing", p.Index, p.Status)
		}
	}

	// Unchanged file: everything cached.
	for _, p := range getPages(t, ts.URL).Pages {
		if p.Status != render.OutcomeCached {
			t.Errorf("page %d status = %q, want cached", p.Index, p.Status)
		}
	}

	// Editing one page re-renders only that page.
	edited := strings.Replace(doc, "world", "world, again", 1)
	if err := os.WriteFile(path, []byte(edited), 0o644); err != nil {
		t.Fatal(err)
	}
	pages := getPages(t, ts.URL).Pages
	if pages[0].Status != render.OutcomeCached || pages[1].Status != render.OutcomeRendered {
		t.Errorf("after edit: statuses %q, %q", pages[0].Status, pages[1].Status)
	}
}

func TestGetPage(t *testing.T) {
	ts, _ := newTestServer(t, doc)

	resp, err := http.Get(ts.URL + "/pages/1?format=svg")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	if resp.Header.Get("X-Page-Title") != "Body" {
		t.Errorf("X-Page-Title = %q", resp.Header.Get("X-Page-Title"))
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/pages/1?format=svg", nil)
	req.Header.Set("If-None-Match", etag)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotModified {
		t.Errorf("conditional GET status = %d, want 304", resp.StatusCode)
	}
	if resp.Header.Get("X-Page-Status") != string(render.OutcomeCached) {
		t.Errorf("X-Page-Status = %q, want cached", resp.Header.Get("X-Page-Status"))
	}
}

func TestErrors(t *testing.T) {
	ts, _ := newTestServer(t, doc)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"bad page", "/pages/x", http.StatusBadRequest},
		{"negative page", "/pages/-2", http.StatusBadRequest},
		{"page out of range", "/pages/7", http.StatusNotFound},
		{"bad format", "/pages/0?format=gif", http.StatusBadRequest},
		{"bad zoom", "/pages/0?zoom=big", http.StatusBadRequest},
		{"zero zoom", "/pages/0?zoom=0", http.StatusBadRequest},
		{"unknown route", "/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("GET %s status = %d, want %d", tt.path, resp.StatusCode, tt.want)
			}
		})
	}
}

func TestMissingFile(t *testing.T) {
	ts, path := newTestServer(t, doc)
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(ts.URL + "/pages")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Code != "FILE_NOT_FOUND" {
		t.Errorf("code = %q", body.Code)
	}
}

func TestErrorPageIsServed(t *testing.T) {
	ts, _ := newTestServer(t, "@startnote\nfine\nnewpage\n!error broken page\n@endnote\n")

	resp, err := http.Get(ts.URL + "/pages/1")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("X-Page-Error") != "true" {
		t.Errorf("status=%d error=%q, want error image", resp.StatusCode, resp.Header.Get("X-Page-Error"))
	}
}

func TestConcurrentRequests(t *testing.T) {
	ts, _ := newTestServer(t, doc)

	var wg sync.WaitGroup
	codes := make(chan int, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Get(ts.URL + "/pages/0")
			if err != nil {
				codes <- 0
				return
			}
			resp.Body.Close()
			codes <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(codes)
	for code := range codes {
		if code != http.StatusOK {
			t.Errorf("status = %d", code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := prom.New(reg)
	observability.SetHTTPHooks(m)
	observability.SetRenderHooks(m)
	defer observability.Reset()

	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	sess := document.NewSession(path, render.NewRenderer(text.New()))
	ts := httptest.NewServer(New(sess, WithGatherer(reg)).Handler())
	defer ts.Close()

	getPages(t, ts.URL)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"pagewise_render_passes_total",
		`pagewise_http_requests_total{method="GET",route="/pages",status="200"} 1`,
	} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

func TestListenAndServeStops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	sess := document.NewSession(path, render.NewRenderer(text.New()))
	srv := New(sess)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("ListenAndServe() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestIncludedFileEdit(t *testing.T) {
	ts, path := newTestServer(t, "@startnote\ntitle Intro\nhello\nnewpage\ntitle Body\n!include part.txt\n@endnote\n")
	part := filepath.Join(filepath.Dir(path), "part.txt")
	if err := os.WriteFile(part, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}

	getPages(t, ts.URL)
	for _, p := range getPages(t, ts.URL).Pages {
		if p.Status != render.OutcomeCached {
			t.Fatalf("page %d status = %q before edit, want cached", p.Index, p.Status)
		}
	}

	if err := os.WriteFile(part, []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, p := range getPages(t, ts.URL).Pages {
		if p.Status != render.OutcomeRendered {
			t.Errorf("page %d status = %q after include edit, want rendered", p.Index, p.Status)
		}
	}
	for _, p := range getPages(t, ts.URL).Pages {
		if p.Status != render.OutcomeCached {
			t.Errorf("page %d status = %q once include is unchanged, want cached", p.Index, p.Status)
		}
	}
}

func TestIncludeEditAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	part := filepath.Join(dir, "part.txt")
	content := "@startnote\ntitle Intro\nhello\nnewpage\ntitle Body\n!include part.txt\n@endnote\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(part, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}
	fc, err := cache.NewFileCache(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}

	start := func() *httptest.Server {
		sess := document.NewSession(path, render.NewRenderer(text.New()),
			document.WithStore(document.NewStore(fc, nil, nil), text.Name))
		ts := httptest.NewServer(New(sess, WithGatherer(prometheus.NewRegistry())).Handler())
		t.Cleanup(ts.Close)
		return ts
	}
	getPage := func(ts *httptest.Server) (string, []byte) {
		t.Helper()
		resp, err := http.Get(ts.URL + "/pages/1")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET /pages/1 status = %d: %s", resp.StatusCode, body)
		}
		return resp.Header.Get("X-Page-Status"), body
	}

	first := start()
	_, before := getPage(first)
	first.Close()

	if status, _ := getPage(start()); status != string(render.OutcomeCached) {
		t.Fatalf("restart without edits: status = %q, want cached", status)
	}

	if err := os.WriteFile(part, []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}
	status, after := getPage(start())
	if status != string(render.OutcomeRendered) {
		t.Errorf("restart after include edit: status = %q, want rendered", status)
	}
	if bytes.Equal(before, after) {
		t.Error("page image did not change after its included file was edited")
	}
}
