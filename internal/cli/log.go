// Package cli implements the pagewise command-line interface.
//
// The CLI renders multi-page diagram documents incrementally, lists their
// pages, serves a live preview and manages the snapshot cache. It is built
// using cobra and logs via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - render: Render changed pages of a document to PNG or SVG
//   - pages: List page titles, or pick one interactively and render it
//   - serve: Live preview server with Prometheus metrics
//   - cache: Manage the snapshot cache
//
// # Configuration
//
// Defaults are read from $XDG_CONFIG_HOME/pagewise/config.toml (or the file
// given by --config). Flags override the file.
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging.
//
// # Example
//
//	c := cli.New(os.Stderr, cli.LogInfo)
//	if err := c.RootCommand().ExecuteContext(ctx); err != nil {
//	    os.Exit(1)
//	}
package cli

import (
	"io"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// The logger writes to w and filters messages at the specified level.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}
