package cache

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation.
// Preview servers sharing one Redis use it so that their snapshots never
// collide.
//
// Example usage:
//
//	// Keys of one workspace
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "ws:docs:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// SnapshotKey generates a prefixed snapshot key.
func (k *ScopedKeyer) SnapshotKey(path string, opts SnapshotKeyOpts) string {
	return k.prefix + k.inner.SnapshotKey(path, opts)
}
