// Package server serves a live preview of one document over HTTP.
//
// Routes:
//
//	GET /pages          JSON listing of every page (renders what changed)
//	GET /pages/{page}   image of one page, rendered on demand
//	GET /metrics        Prometheus metrics
//	GET /healthz        liveness
//
// The source file is re-read on every request, so editing the document
// and reloading the page shows the new rendering. Unchanged pages come
// from the session snapshot. Concurrent identical requests share one pass.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/pagewise/pkg/cache"
	"github.com/matzehuels/pagewise/pkg/document"
	perrors "github.com/matzehuels/pagewise/pkg/errors"
	"github.com/matzehuels/pagewise/pkg/render"
)

// DefaultRenderTimeout bounds one render pass started by a request.
const DefaultRenderTimeout = 2 * time.Minute

// Server is the preview server of one document.
type Server struct {
	sess     *document.Session
	defaults render.Request
	logger   *log.Logger
	gatherer prometheus.Gatherer
	timeout  time.Duration

	group singleflight.Group
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithGatherer sets the metrics source of /metrics.
// Defaults to [prometheus.DefaultGatherer].
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithDefaults sets the format, zoom and settings flag used when a request
// does not override them.
func WithDefaults(req render.Request) Option {
	return func(s *Server) { s.defaults = req }
}

// WithRenderTimeout bounds each render pass.
func WithRenderTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// New creates a server for the document of sess.
func New(sess *document.Session, opts ...Option) *Server {
	s := &Server{
		sess:     sess,
		defaults: render.NewRequest(""),
		gatherer: prometheus.DefaultGatherer,
		timeout:  DefaultRenderTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.instrument)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/pages", s.handlePages)
	r.Get("/pages/{page}", s.handlePage)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("serving preview", "addr", addr, "path", s.sess.Path())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return ctx.Err()
	}
}

func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	req, err := s.request(r, render.AllPages)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	pass, err := s.render(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pagesResponse{
		Path:     s.sess.Path(),
		Mode:     pass.Result.Mode,
		Pages:    document.Pages(pass.Snapshot, pass.Result),
		Warnings: pass.Result.Warnings,
	})
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil || page < 0 {
		s.fail(w, r, perrors.New(perrors.ErrCodeInvalidRequest, "invalid page %q", chi.URLParam(r, "page")))
		return
	}
	req, err := s.request(r, page)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	pass, err := s.render(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	img, outcome := pass.Result.Image(page)
	if img == nil {
		img = pass.Snapshot.Image(page)
	}
	if !img.HasImage() {
		s.fail(w, r, perrors.New(perrors.ErrCodePageNotFound, "page %d not found (document has %d)", page, pass.Snapshot.PageCount()))
		return
	}

	etag := `"` + cache.Hash(img.Data) + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Page-Title", img.Title)
	if outcome != render.OutcomeNone {
		w.Header().Set("X-Page-Status", string(outcome))
	}
	if img.Error {
		w.Header().Set("X-Page-Error", "true")
	}
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", contentType(img.Format))
	_, _ = w.Write(img.Data)
}

// request builds the render request for the current file contents.
// The zoom, format and refresh query parameters override the defaults.
func (s *Server) request(r *http.Request, page int) (render.Request, error) {
	path := s.sess.Path()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return render.Request{}, perrors.Wrap(perrors.ErrCodeFileNotFound, err, "read %s", path)
		}
		return render.Request{}, fmt.Errorf("read %s: %w", path, err)
	}

	req := s.defaults
	req.Source = string(data)
	req.BaseDir = filepath.Dir(path)
	req.Page = page

	q := r.URL.Query()
	if v := q.Get("format"); v != "" {
		f, err := render.ParseFormat(v)
		if err != nil {
			return render.Request{}, err
		}
		req.Format = f
	}
	if v := q.Get("zoom"); v != "" {
		z, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return render.Request{}, perrors.New(perrors.ErrCodeInvalidRequest, "invalid zoom %q", v)
		}
		req.Zoom = z
	}
	if v := q.Get("refresh"); v != "" {
		req.Refresh, _ = strconv.ParseBool(v)
	}
	return req, req.Validate()
}

// render runs a pass, sharing it with identical concurrent requests.
// The pass outlives a disconnecting client so that others waiting on it
// still get a result.
func (s *Server) render(ctx context.Context, req render.Request) (*document.Pass, error) {
	key := fmt.Sprintf("%s|%s", req, cache.Hash([]byte(req.Source)))
	ch := s.group.DoChan(key, func() (any, error) {
		passCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.sess.Render(passCtx, req)
	})

	select {
	case <-ctx.Done():
		return nil, perrors.Wrap(perrors.ErrCodeCancelled, ctx.Err(), "request cancelled")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("shared render pass", "page", req.Page)
		}
		return res.Val.(*document.Pass), nil
	}
}

type pagesResponse struct {
	Path     string              `json:"path"`
	Mode     render.Mode         `json:"mode"`
	Pages    []document.PageInfo `json:"pages"`
	Warnings []render.Diagnostic `json:"warnings,omitempty"`
}

func contentType(f render.Format) string {
	if f == render.FormatSVG {
		return "image/svg+xml"
	}
	return "image/png"
}
