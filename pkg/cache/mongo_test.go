package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

// Set PAGEWISE_TEST_MONGO_URI (e.g. mongodb://localhost:27017) to run
// against a real server.
func testMongo(t *testing.T) *MongoCache {
	t.Helper()
	uri := os.Getenv("PAGEWISE_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("PAGEWISE_TEST_MONGO_URI not set")
	}
	c, err := NewMongoCache(context.Background(), uri, "pagewise_test", "")
	if err != nil {
		t.Fatalf("NewMongoCache error: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestMongoCache(t *testing.T) {
	ctx := context.Background()
	c := testMongo(t)
	key := "test:" + t.Name()

	if err := c.Set(ctx, key, []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if err := c.Set(ctx, key, []byte("v2"), 0); err != nil {
		t.Fatalf("Set (overwrite) error: %v", err)
	}
	data, hit, err := c.Get(ctx, key)
	if err != nil || !hit || string(data) != "v2" {
		t.Fatalf("Get = %q, %v, %v", data, hit, err)
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, key); hit {
		t.Error("deleted key should miss")
	}
}

func TestMongoCacheExpired(t *testing.T) {
	ctx := context.Background()
	c := testMongo(t)
	key := "test:" + t.Name()

	if err := c.Set(ctx, key, []byte("old"), time.Millisecond); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, hit, err := c.Get(ctx, key); hit || err != nil {
		t.Errorf("expired entry: hit=%v err=%v", hit, err)
	}
}

func TestNewMongoCacheRequiresDatabase(t *testing.T) {
	if _, err := NewMongoCache(context.Background(), "mongodb://localhost:27017", "", ""); err == nil {
		t.Error("expected an error without a database name")
	}
}
