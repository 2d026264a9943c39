package document

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pagewise/pkg/cache"
	"github.com/matzehuels/pagewise/pkg/observability"
	"github.com/matzehuels/pagewise/pkg/render"
)

// Store persists snapshots through a [cache.Cache] so that a later process
// can continue incrementally where the previous one stopped.
type Store struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
	TTL    time.Duration
}

// NewStore creates a store on c. A nil cache disables persistence and a nil
// keyer uses [cache.DefaultKeyer].
func NewStore(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Store {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Store{Cache: c, Keyer: keyer, Logger: logger, TTL: cache.TTLSnapshot}
}

// Load returns the stored snapshot for the document at path.
// Returns nil, nil if there is none. A corrupt entry counts as a miss and
// is removed.
func (s *Store) Load(ctx context.Context, path string, opts cache.SnapshotKeyOpts) (*render.Snapshot, error) {
	key := s.Keyer.SnapshotKey(path, opts)
	hooks := observability.Cache()

	data, hit, err := s.Cache.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if !hit {
		hooks.OnCacheMiss(ctx, cache.KeyType(key))
		return nil, nil
	}

	var snap render.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.Logger.Warn("discarding unreadable snapshot", "path", path, "error", err)
		_ = s.Cache.Delete(ctx, key)
		hooks.OnCacheMiss(ctx, cache.KeyType(key))
		return nil, nil
	}
	hooks.OnCacheHit(ctx, cache.KeyType(key))
	return &snap, nil
}

// Save stores snap for the document at path.
func (s *Store) Save(ctx context.Context, path string, opts cache.SnapshotKeyOpts, snap *render.Snapshot) error {
	if snap == nil {
		return nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	key := s.Keyer.SnapshotKey(path, opts)
	if err := s.Cache.Set(ctx, key, data, s.TTL); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	observability.Cache().OnCacheSet(ctx, cache.KeyType(key), len(data))
	return nil
}

// Delete removes the stored snapshot for the document at path.
func (s *Store) Delete(ctx context.Context, path string, opts cache.SnapshotKeyOpts) error {
	return s.Cache.Delete(ctx, s.Keyer.SnapshotKey(path, opts))
}
