package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pagewise/pkg/compiler"
)

// pagesCommand creates the pages command.
func (c *CLI) pagesCommand() *cobra.Command {
	var interactive bool
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "pages [file]",
		Short: "List the page titles of a document",
		Long: `List the page titles of a document without rendering any page.

With --interactive a picker opens and the chosen page is rendered.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.applyRenderDefaults(cmd, &opts)
			titles, err := c.pageTitles(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			if !interactive {
				printTitles(args[0], titles)
				return nil
			}

			page, err := pickPage(titles)
			if err != nil || page < 0 {
				return err
			}
			opts.page = page + 1
			return c.runRender(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "pick a page and render it")
	cmd.Flags().StringVar(&opts.compiler, "compiler", "", "diagram compiler: dot (default), text")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output directory of the picked page")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format of the picked page")

	return cmd
}

// pageTitles returns the titles of the document at path through the
// compiler's cheap title path.
func (c *CLI) pageTitles(ctx context.Context, path string, opts renderOpts) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	comp, err := compiler.New(opts.compiler)
	if err != nil {
		return nil, err
	}
	req, err := opts.request(string(data), path)
	if err != nil {
		return nil, err
	}
	return comp.Titles(ctx, req.Source, req.CompileOptions())
}

func printTitles(path string, titles []string) {
	fmt.Println(StyleTitle.Render(filepath.Base(path)))
	for i, t := range titles {
		if t == "" {
			t = StyleDim.Render("(untitled)")
		}
		fmt.Printf("  %s %s\n", StyleNumber.Render(fmt.Sprintf("%3d", i+1)), StyleValue.Render(t))
	}
	printDetail("%d pages", len(titles))
}

// pickPage runs the page picker. Returns -1 if the user quit.
func pickPage(titles []string) (int, error) {
	if len(titles) == 0 {
		printInfo("Document has no pages")
		return -1, nil
	}
	final, err := tea.NewProgram(NewPageListModel(titles)).Run()
	if err != nil {
		return -1, fmt.Errorf("page picker: %w", err)
	}
	return final.(PageListModel).Selected, nil
}
