package cli

import (
	"os"
	"path/filepath"
	"testing"

	perrors "github.com/matzehuels/pagewise/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg != defaultConfig() {
		t.Errorf("loadConfig() without a file = %+v, want defaults", cfg)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
compiler = "text"
format = "svg"
zoom = 2.5

[cache]
redis_url = "redis://localhost:6379/1"
prefix = "ws:docs:"

[serve]
addr = ":9000"
`)
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Compiler != "text" || cfg.Format != "svg" || cfg.Zoom != 2.5 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Cache.RedisURL != "redis://localhost:6379/1" || cfg.Cache.Prefix != "ws:docs:" || cfg.Serve.Addr != ":9000" {
		t.Errorf("nested tables not decoded: %+v", cfg)
	}
	// Keys absent from the file keep their defaults.
	if !cfg.Partial || cfg.MinPartialPages != defaultConfig().MinPartialPages {
		t.Errorf("defaults lost: partial=%t min=%d", cfg.Partial, cfg.MinPartialPages)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "compiler = "},
		{"unknown compiler", `compiler = "mermaid"`},
		{"bad format", `format = "gif"`},
		{"bad zoom", `zoom = -1.0`},
		{"bad min pages", `min_partial_pages = 0`},
		{"two shared caches", "[cache]\nredis_url = \"redis://localhost\"\nmongo_uri = \"mongodb://localhost\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, tt.content))
			if !perrors.Is(err, perrors.ErrCodeInvalidConfig) {
				t.Errorf("loadConfig() error = %v, want INVALID_CONFIG", err)
			}
		})
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("an explicit config path that does not exist should fail")
	}
}
