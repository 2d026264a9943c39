package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pagewise/internal/server"
	"github.com/matzehuels/pagewise/pkg/observability"
	"github.com/matzehuels/pagewise/pkg/observability/prom"
	"github.com/matzehuels/pagewise/pkg/render"
)

// serveCommand creates the serve command for the live preview server.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "serve [file]",
		Short: "Serve a live preview of a document",
		Long: `Serve a live preview of a document over HTTP.

The document is read again on every request, so saved edits show up on
reload. Only the edited pages are rendered again.

  GET /pages          page listing as JSON
  GET /pages/{n}      image of page n (0-based)
  GET /metrics        Prometheus metrics`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.applyRenderDefaults(cmd, &opts)
			if addr == "" {
				addr = c.config.Serve.Addr
			}
			return c.runServe(cmd.Context(), args[0], addr, opts)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default "+defaultAddr+")")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "default output format: png, svg")
	cmd.Flags().Float64VarP(&opts.zoom, "zoom", "z", 0, "default zoom factor")
	cmd.Flags().StringVar(&opts.compiler, "compiler", "", "diagram compiler: dot (default), text")
	cmd.Flags().BoolVar(&opts.full, "full", false, "render the whole document at once instead of page by page")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "do not load or save snapshots")
	cmd.Flags().StringVar(&opts.redisURL, "redis", "", "redis URL of a shared snapshot store")
	cmd.Flags().StringVar(&opts.mongoURI, "mongo", "", "MongoDB URI of a shared snapshot store")
	cmd.MarkFlagsMutuallyExclusive("redis", "mongo")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, path, addr string, opts renderOpts) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("open document: %w", err)
	}
	defaults, err := opts.request("", path)
	if err != nil {
		return err
	}
	defaults.Page = render.AllPages

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := prom.New(reg)
	observability.SetRenderHooks(metrics)
	observability.SetCacheHooks(metrics)
	observability.SetHTTPHooks(metrics)
	defer observability.Reset()

	sess, closeCache, err := c.newSession(ctx, path, opts.sessionOpts())
	if err != nil {
		return err
	}
	defer closeCache()

	srv := server.New(sess,
		server.WithLogger(c.Logger),
		server.WithGatherer(reg),
		server.WithDefaults(defaults))

	printSuccess("Serving %s", StyleValue.Render(path))
	printKeyValue("pages", StyleLink.Render("http://"+addr+"/pages"))
	printKeyValue("metrics", StyleLink.Render("http://"+addr+"/metrics"))

	err = srv.ListenAndServe(ctx, addr)
	if errors.Is(err, context.Canceled) {
		printNewline()
		printInfo("Server stopped")
	}
	return err
}
