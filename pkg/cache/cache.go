// Package cache provides byte-level storage for render snapshots.
//
// # Overview
//
// The renderer itself keeps no state; callers persist the snapshot of the
// last successful pass so the next CLI run or server request can start
// incrementally. This package offers interchangeable backends behind the
// [Cache] interface:
//
//   - [FileCache]: one file per key under a directory (CLI default)
//   - [RedisCache]: shared storage for several preview servers
//   - [MongoCache]: shared storage in a MongoDB collection with a TTL index
//   - [NullCache]: stores nothing (--no-cache)
//
// Keys are built by a [Keyer] so that every backend agrees on them, and
// [ScopedKeyer] adds a namespace prefix.
//
// # Usage
//
//	c, err := cache.NewFileCache(dir)
//	key := cache.NewDefaultKeyer().SnapshotKey(path, cache.SnapshotKeyOpts{Compiler: "dot", Format: "png"})
//	data, hit, err := c.Get(ctx, key)
package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
)

// =============================================================================
// TTLs - Single Source of Truth
// =============================================================================

const (
	// TTLSnapshot keeps the snapshot of a document for a week after its last render.
	TTLSnapshot = 7 * 24 * time.Hour
)

// Cache stores opaque bytes under string keys.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the data for key and whether it was found.
	// A miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl <= 0 never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// =============================================================================
// Keyer
// =============================================================================

// SnapshotKeyOpts are the parts of the render context a snapshot key covers.
type SnapshotKeyOpts struct {
	Compiler string `json:"compiler"`
	Format   string `json:"format"`
}

// Keyer builds cache keys.
type Keyer interface {
	// SnapshotKey is the key of the snapshot for the document at path.
	SnapshotKey(path string, opts SnapshotKeyOpts) string
}

// DefaultKeyer hashes the key parts so keys have a fixed length.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// SnapshotKey generates "snapshot:<sha256>" from the absolute document path
// and the options. Relative paths are made absolute first so that runs
// from different directories share a snapshot.
func (DefaultKeyer) SnapshotKey(path string, opts SnapshotKeyOpts) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return hashKey("snapshot", path, opts)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = DefaultKeyer{}

// KeyType returns the key prefix (the part before the first colon),
// used to label cache metrics.
func KeyType(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return key
}

// describe is used in error messages of network backends.
func describe(op, key string) string {
	return fmt.Sprintf("%s %s", op, KeyType(key))
}
