package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pagewise/pkg/document"
	perrors "github.com/matzehuels/pagewise/pkg/errors"
	"github.com/matzehuels/pagewise/pkg/render"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output          string  // directory for page images (default: next to the document)
	name            string  // base name of page images (default: document name)
	page            int     // 1-based page to render; 0 renders all pages
	format          string  // output format: "png" or "svg"
	zoom            float64 // scale factor
	refresh         bool    // re-render every selected page
	includesChanged bool    // included files changed since the last run
	useSettings     bool    // apply user settings in the compiler
	full            bool    // disable per-page isolation
	noCache         bool    // do not load or save snapshots
	compiler        string  // diagram engine
	redisURL        string  // shared snapshot store
	mongoURI        string  // shared snapshot store
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render the pages of a document to images",
		Long: `Render the pages of a document to images.

Only pages whose text changed since the last run are rendered again; the
others are reused from the snapshot kept in the cache. Page images are
written as <name>-<page>.<format>, or <name>.<format> for single-page
documents.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.applyRenderDefaults(cmd, &opts)
			return c.runRender(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output directory (default: next to the document)")
	cmd.Flags().StringVar(&opts.name, "name", "", "base name of page images (default: document name)")
	cmd.Flags().IntVarP(&opts.page, "page", "p", 0, "render only this page (1-based); other titles are refreshed")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: png (default), svg")
	cmd.Flags().Float64VarP(&opts.zoom, "zoom", "z", 0, "zoom factor (default 1)")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "re-render selected pages even if unchanged")
	cmd.Flags().BoolVar(&opts.includesChanged, "includes-changed", false, "included files changed; re-render selected pages")
	cmd.Flags().BoolVar(&opts.useSettings, "use-settings", false, "apply user settings in the compiler")
	cmd.Flags().BoolVar(&opts.full, "full", false, "render the whole document at once instead of page by page")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "do not load or save snapshots")
	cmd.Flags().StringVar(&opts.compiler, "compiler", "", "diagram compiler: dot (default), text")
	cmd.Flags().StringVar(&opts.redisURL, "redis", "", "redis URL of a shared snapshot store")
	cmd.Flags().StringVar(&opts.mongoURI, "mongo", "", "MongoDB URI of a shared snapshot store")
	cmd.MarkFlagsMutuallyExclusive("redis", "mongo")

	return cmd
}

// applyRenderDefaults fills flags the user did not set from the config.
func (c *CLI) applyRenderDefaults(cmd *cobra.Command, opts *renderOpts) {
	cfg := c.config
	if opts.format == "" {
		opts.format = cfg.Format
	}
	if opts.zoom == 0 {
		opts.zoom = cfg.Zoom
	}
	if opts.compiler == "" {
		opts.compiler = cfg.Compiler
	}
	if opts.redisURL == "" && opts.mongoURI == "" {
		opts.redisURL = cfg.Cache.RedisURL
		opts.mongoURI = cfg.Cache.MongoURI
	}
	if !cmd.Flags().Changed("use-settings") {
		opts.useSettings = cfg.UseSettings
	}
	if !cmd.Flags().Changed("no-cache") {
		opts.noCache = cfg.Cache.Disabled
	}
	if !cmd.Flags().Changed("full") {
		opts.full = !cfg.Partial
	}
}

// request builds the render request for src from opts.
func (o renderOpts) request(src, path string) (render.Request, error) {
	format, err := render.ParseFormat(o.format)
	if err != nil {
		return render.Request{}, err
	}
	if o.page < 0 {
		return render.Request{}, perrors.New(perrors.ErrCodeInvalidRequest, "page must be >= 1, got %d", o.page)
	}

	req := render.NewRequest(src)
	req.Format = format
	req.Zoom = o.zoom
	req.BaseDir = filepath.Dir(path)
	req.Refresh = o.refresh
	req.IncludesChanged = o.includesChanged
	req.UseSettings = o.useSettings
	if o.page > 0 {
		req.Page = o.page - 1
	}
	return req, req.Validate()
}

func (o renderOpts) sessionOpts() sessionOpts {
	return sessionOpts{
		compiler: o.compiler,
		partial:  !o.full,
		noCache:  o.noCache,
		redisURL: o.redisURL,
		mongoURI: o.mongoURI,
	}
}

func (c *CLI) runRender(ctx context.Context, path string, opts renderOpts) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	req, err := opts.request(string(data), path)
	if err != nil {
		return err
	}
	writer, err := newPageWriter(path, opts.output, opts.name, req.Format)
	if err != nil {
		return err
	}

	sess, closeCache, err := c.newSession(ctx, path, opts.sessionOpts())
	if err != nil {
		return err
	}
	defer closeCache()

	spinner := newSpinnerWithContext(ctx, "Rendering "+filepath.Base(path)+"...")
	spinner.Start()
	pass, err := sess.Render(ctx, req)
	if err != nil {
		spinner.Stop()
		if render.IsCancelled(err) {
			return context.Canceled
		}
		return err
	}

	spinner.Update("Writing images...")
	written, err := writer.write(pass)
	spinner.Stop()
	if err != nil {
		return err
	}
	printPass(pass)
	for _, f := range written {
		printFile(f)
	}
	for _, w := range pass.Result.Warnings {
		printWarning("page %d: %s", w.Page+1, w.Message)
	}
	return nil
}

// =============================================================================
// Page Output
// =============================================================================

// pageWriter writes page images into one directory.
type pageWriter struct {
	dir    string
	name   string
	format render.Format
}

func newPageWriter(docPath, dir, name string, format render.Format) (*pageWriter, error) {
	if dir == "" {
		dir = filepath.Dir(docPath)
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath))
	}
	if err := perrors.ValidateOutputName(name); err != nil {
		return nil, err
	}
	return &pageWriter{dir: dir, name: name, format: format}, nil
}

// path returns the image file of page p in a document of count pages.
func (w *pageWriter) path(p, count int) string {
	if count <= 1 {
		return filepath.Join(w.dir, fmt.Sprintf("%s.%s", w.name, w.format))
	}
	return filepath.Join(w.dir, fmt.Sprintf("%s-%d.%s", w.name, p+1, w.format))
}

// write stores the images rendered by pass, plus cached images whose file
// is missing. Title-only pages are left alone.
func (w *pageWriter) write(pass *document.Pass) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	count := pass.Snapshot.PageCount()
	var written []string
	for _, img := range pass.Result.Images() {
		if !img.HasImage() {
			continue
		}
		path := w.path(img.Page, count)
		if _, outcome := pass.Result.Image(img.Page); outcome == render.OutcomeCached {
			if _, err := os.Stat(path); err == nil {
				continue
			}
		}
		if err := os.WriteFile(path, img.Data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
