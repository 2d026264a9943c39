package document

import (
	"context"
	"testing"
	"time"

	"github.com/matzehuels/pagewise/pkg/cache"
	"github.com/matzehuels/pagewise/pkg/compiler/text"
	"github.com/matzehuels/pagewise/pkg/observability"
	"github.com/matzehuels/pagewise/pkg/render"
)

type countingCacheHooks struct {
	observability.NoopCacheHooks
	hits, misses, sets int
}

func (h *countingCacheHooks) OnCacheHit(context.Context, string)      { h.hits++ }
func (h *countingCacheHooks) OnCacheMiss(context.Context, string)     { h.misses++ }
func (h *countingCacheHooks) OnCacheSet(context.Context, string, int) { h.sets++ }

func renderedSnapshot(t *testing.T) *render.Snapshot {
	t.Helper()
	req := render.NewRequest(threePages)
	c := text.New()
	res, err := render.NewRenderer(c).Render(context.Background(), req, nil)
	if err != nil {
		t.Fatal(err)
	}
	return (*render.Snapshot)(nil).Merge(req, res, render.CompilerVersion(c))
}

func TestStoreRoundTrip(t *testing.T) {
	hooks := &countingCacheHooks{}
	observability.SetCacheHooks(hooks)
	defer observability.Reset()

	ctx := context.Background()
	store := newStore(t)
	opts := cache.SnapshotKeyOpts{Compiler: text.Name, Format: "png"}

	got, err := store.Load(ctx, "doc.txt", opts)
	if err != nil || got != nil {
		t.Fatalf("Load() on empty store = %v, %v", got, err)
	}

	snap := renderedSnapshot(t)
	if err := store.Save(ctx, "doc.txt", opts, snap); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err = store.Load(ctx, "doc.txt", opts)
	if err != nil || got == nil {
		t.Fatalf("Load() = %v, %v", got, err)
	}
	if got.PageCount() != 3 || got.Mode() != snap.Mode() || got.Source() != snap.Source() {
		t.Errorf("loaded snapshot differs: pages=%d mode=%s", got.PageCount(), got.Mode())
	}

	if hooks.misses != 1 || hooks.hits != 1 || hooks.sets != 1 {
		t.Errorf("hooks: hits=%d misses=%d sets=%d", hooks.hits, hooks.misses, hooks.sets)
	}
}

func TestStoreSaveNil(t *testing.T) {
	if err := newStore(t).Save(context.Background(), "doc.txt", cache.SnapshotKeyOpts{}, nil); err != nil {
		t.Errorf("Save(nil) error: %v", err)
	}
}

func TestStoreCorruptEntry(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	opts := cache.SnapshotKeyOpts{Compiler: text.Name, Format: "png"}
	key := store.Keyer.SnapshotKey("doc.txt", opts)

	tests := map[string]string{
		"not json":   "{broken",
		"misaligned": `{"mode":"partial","zoom":1,"format":"png","images":[{"page":3,"format":"png","mode":"partial"}]}`,
		"bad mode":   `{"mode":"sideways","zoom":1,"format":"png"}`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if err := store.Cache.Set(ctx, key, []byte(data), time.Hour); err != nil {
				t.Fatal(err)
			}
			snap, err := store.Load(ctx, "doc.txt", opts)
			if err != nil || snap != nil {
				t.Errorf("Load() = %v, %v, want clean miss", snap, err)
			}
			if _, hit, _ := store.Cache.Get(ctx, key); hit {
				t.Error("corrupt entry should be removed")
			}
		})
	}
}

func TestNewStoreDefaults(t *testing.T) {
	store := NewStore(nil, nil, nil)
	ctx := context.Background()
	snap := renderedSnapshot(t)

	if err := store.Save(ctx, "doc.txt", cache.SnapshotKeyOpts{}, snap); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if got, _ := store.Load(ctx, "doc.txt", cache.SnapshotKeyOpts{}); got != nil {
		t.Error("store without cache should never hit")
	}
}
