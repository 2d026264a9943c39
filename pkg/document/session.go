// Package document keeps the render state of open documents.
//
// A [Session] owns the current [render.Snapshot] of one document and runs
// its render passes one at a time. The snapshot is replaced only after a
// pass succeeds; an invalid request or a cancelled pass leaves it as it
// was. With a [Store] attached, snapshots survive process restarts:
//
//	store := document.NewStore(fileCache, nil, logger)
//	sess := document.NewSession("diagram.dot", renderer,
//	    document.WithStore(store, "dot"),
//	    document.WithLogger(logger))
//	pass, err := sess.Render(ctx, req)
package document

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/pagewise/pkg/cache"
	"github.com/matzehuels/pagewise/pkg/render"
)

// Pass is one completed render of a session.
type Pass struct {
	// ID identifies the pass in logs.
	ID string

	Request  render.Request
	Result   *render.Result
	Snapshot *render.Snapshot
	Duration time.Duration

	// Restored is set when the previous snapshot came from the store.
	Restored bool
}

// Session serialises the render passes of one document.
type Session struct {
	path     string
	renderer *render.Renderer
	store    *Store
	compiler string
	logger   *log.Logger

	mu       sync.Mutex
	snap     *render.Snapshot
	loadedAs string // format whose stored snapshot was looked up
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithStore persists snapshots in store. compiler names the engine in
// the key, so that switching engines never restores a foreign snapshot.
func WithStore(store *Store, compiler string) SessionOption {
	return func(s *Session) {
		s.store = store
		s.compiler = compiler
	}
}

// WithLogger sets the session logger.
func WithLogger(l *log.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// NewSession creates a session for the document at path.
func NewSession(path string, r *render.Renderer, opts ...SessionOption) *Session {
	s := &Session{path: path, renderer: r}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return s
}

// Path returns the document path.
func (s *Session) Path() string { return s.path }

// Snapshot returns the snapshot of the last successful pass, or nil.
func (s *Session) Snapshot() *render.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Render runs one pass against the current snapshot. Only one pass runs at
// a time; concurrent callers wait for their turn. The request is marked
// IncludesChanged when the included files differ from those the snapshot
// was taken with, including a snapshot restored from the store.
func (s *Session) Render(ctx context.Context, req render.Request) (*Pass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pass := &Pass{ID: uuid.NewString(), Request: req}
	logger := s.logger.With("pass", pass.ID[:8], "path", s.path)
	start := time.Now()

	pass.Restored = s.restore(ctx, req, logger)

	req.IncludeDigest = IncludeDigest(req.Source, req.BaseDir)
	if s.snap != nil && s.snap.IncludeDigest() != req.IncludeDigest && !req.IncludesChanged {
		logger.Debug("included files changed since the snapshot")
		req.IncludesChanged = true
	}
	pass.Request = req

	res, err := s.renderer.Render(ctx, req, s.snap)
	if err != nil {
		logger.Debug("pass failed, keeping previous snapshot", "error", err)
		return nil, err
	}

	next := s.snap.Merge(req, res, render.CompilerVersion(s.renderer.Compiler))
	if err := next.Validate(); err != nil {
		// Merge only produces aligned snapshots; keep the old one if not.
		logger.Error("discarding misaligned snapshot", "error", err)
		return nil, err
	}
	s.snap = next

	if s.store != nil {
		if err := s.store.Save(ctx, s.path, s.keyOpts(req), next); err != nil {
			logger.Warn("snapshot not persisted", "error", err)
		}
	}

	pass.Result = res
	pass.Snapshot = next
	pass.Duration = time.Since(start)
	logger.Info("rendered",
		"mode", res.Mode,
		"pages", res.PageCount,
		"rendered", len(res.Rendered),
		"title_only", len(res.TitleOnly),
		"cached", len(res.Cached),
		"duration", pass.Duration)
	return pass, nil
}

// Invalidate drops the in-memory snapshot and its stored copy for format.
// Call it after swapping the compiler.
func (s *Session) Invalidate(ctx context.Context, format render.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap = nil
	s.loadedAs = string(format)
	if s.store == nil {
		return nil
	}
	return s.store.Delete(ctx, s.path, cache.SnapshotKeyOpts{Compiler: s.compiler, Format: string(format)})
}

// restore loads the stored snapshot the first time a format is requested.
func (s *Session) restore(ctx context.Context, req render.Request, logger *log.Logger) bool {
	if s.store == nil || s.loadedAs == string(req.Format) {
		return false
	}
	s.loadedAs = string(req.Format)
	if s.snap != nil && s.snap.Format() == req.Format {
		return false
	}

	snap, err := s.store.Load(ctx, s.path, s.keyOpts(req))
	if err != nil {
		logger.Warn("snapshot not restored", "error", err)
		return false
	}
	if snap == nil {
		return false
	}
	s.snap = snap
	logger.Debug("restored snapshot", "pages", snap.PageCount(), "mode", snap.Mode())
	return true
}

func (s *Session) keyOpts(req render.Request) cache.SnapshotKeyOpts {
	return cache.SnapshotKeyOpts{Compiler: s.compiler, Format: string(req.Format)}
}
