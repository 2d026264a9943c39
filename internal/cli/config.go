package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/pagewise/pkg/compiler"
	perrors "github.com/matzehuels/pagewise/pkg/errors"
	"github.com/matzehuels/pagewise/pkg/render"
)

// defaultAddr is the listen address of the preview server.
const defaultAddr = "127.0.0.1:8642"

// Config is the user configuration read from config.toml.
// Command-line flags override every field.
type Config struct {
	Compiler        string  `toml:"compiler"`
	Format          string  `toml:"format"`
	Zoom            float64 `toml:"zoom"`
	Partial         bool    `toml:"partial"`
	MinPartialPages int     `toml:"min_partial_pages"`
	UseSettings     bool    `toml:"use_settings"`

	Cache CacheConfig `toml:"cache"`
	Serve ServeConfig `toml:"serve"`
}

// CacheConfig selects where snapshots are kept between runs.
// Prefix namespaces the keys, so that several workspaces can share one
// redis database.
type CacheConfig struct {
	Disabled bool   `toml:"disabled"`
	Dir      string `toml:"dir"`
	RedisURL string `toml:"redis_url"`
	Prefix   string `toml:"prefix"`

	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

// ServeConfig configures the preview server.
type ServeConfig struct {
	Addr string `toml:"addr"`
}

// defaultConfig returns the configuration used when no file exists.
func defaultConfig() Config {
	return Config{
		Compiler:        compiler.Default,
		Format:          string(render.DefaultFormat),
		Zoom:            render.DefaultZoom,
		Partial:         true,
		MinPartialPages: render.DefaultMinPartialPages,
		Cache:           CacheConfig{MongoDatabase: appName},
		Serve:           ServeConfig{Addr: defaultAddr},
	}
}

// loadConfig reads the configuration at path on top of the defaults.
// An empty path reads the default location, where a missing file is fine;
// an explicit path must exist.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if !explicit {
		p, err := configPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, perrors.Wrap(perrors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if _, err := compiler.New(c.Compiler); err != nil {
		return err
	}
	if _, err := render.ParseFormat(c.Format); err != nil {
		return perrors.Wrap(perrors.ErrCodeInvalidConfig, err, "config format")
	}
	if err := perrors.ValidateZoom(c.Zoom); err != nil {
		return perrors.Wrap(perrors.ErrCodeInvalidConfig, err, "config zoom")
	}
	if c.MinPartialPages < 1 {
		return perrors.New(perrors.ErrCodeInvalidConfig, "min_partial_pages must be >= 1, got %d", c.MinPartialPages)
	}
	if c.Cache.RedisURL != "" && c.Cache.MongoURI != "" {
		return perrors.New(perrors.ErrCodeInvalidConfig, "cache: set only one of redis_url and mongo_uri")
	}
	return nil
}

// configPath returns the config file location using XDG standard
// (~/.config/pagewise/config.toml).
func configPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}
