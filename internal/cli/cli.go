package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pagewise/pkg/cache"
	"github.com/matzehuels/pagewise/pkg/compiler"
	"github.com/matzehuels/pagewise/pkg/document"
	"github.com/matzehuels/pagewise/pkg/render"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "pagewise"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// configFile is the --config flag; empty reads the default location.
	configFile string
	config     Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		config: defaultConfig(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// loadConfig reads the configuration file selected by --config.
func (c *CLI) loadConfig() error {
	cfg, err := loadConfig(c.configFile)
	if err != nil {
		return err
	}
	c.config = cfg
	c.Logger.Debug("loaded config", "compiler", cfg.Compiler, "format", cfg.Format)
	return nil
}

// =============================================================================
// Session Factory
// =============================================================================

// sessionOpts are the per-invocation choices that shape a session.
type sessionOpts struct {
	compiler string
	partial  bool
	noCache  bool
	redisURL string
	mongoURI string
}

// newSession creates a render session for the document at path, restoring
// the snapshot a previous run left in the cache. The returned close func
// releases the cache.
func (c *CLI) newSession(ctx context.Context, path string, opts sessionOpts) (*document.Session, func() error, error) {
	if opts.compiler == "" {
		opts.compiler = compiler.Default
	}
	comp, err := compiler.New(opts.compiler)
	if err != nil {
		return nil, nil, err
	}
	renderer := render.NewRenderer(comp,
		render.WithLogger(c.Logger),
		render.WithPartial(opts.partial),
		render.WithMinPartialPages(c.config.MinPartialPages))

	store, err := c.newCache(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	var keyer cache.Keyer
	if c.config.Cache.Prefix != "" {
		keyer = cache.NewScopedKeyer(nil, c.config.Cache.Prefix)
	}
	sess := document.NewSession(abs, renderer,
		document.WithStore(document.NewStore(store, keyer, c.Logger), opts.compiler),
		document.WithLogger(c.Logger))
	return sess, store.Close, nil
}

// newCache opens the snapshot cache: redis or mongo when configured, the
// file cache otherwise. A cache directory that cannot be created disables
// caching.
func (c *CLI) newCache(ctx context.Context, opts sessionOpts) (cache.Cache, error) {
	if opts.noCache {
		return cache.NewNullCache(), nil
	}
	if opts.redisURL != "" {
		return cache.NewRedisCache(ctx, opts.redisURL)
	}
	if opts.mongoURI != "" {
		return cache.NewMongoCache(ctx, opts.mongoURI, c.config.Cache.MongoDatabase, "")
	}
	dir := c.config.Cache.Dir
	if dir == "" {
		d, err := cacheDir()
		if err != nil {
			c.Logger.Warn("no cache directory, snapshots are not kept", "error", err)
			return cache.NewNullCache(), nil
		}
		dir = d
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		c.Logger.Warn("cache unavailable, snapshots are not kept", "dir", dir, "error", err)
		return cache.NewNullCache(), nil
	}
	return fc, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/pagewise/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
