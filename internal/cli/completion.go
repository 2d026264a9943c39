package cli

import (
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pagewise/pkg/compiler"
	"github.com/matzehuels/pagewise/pkg/render"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for pagewise.

Bash:
  $ source <(pagewise completion bash)

Zsh:
  $ pagewise completion zsh > "${fpath[1]}/_pagewise"

Fish:
  $ pagewise completion fish | source

PowerShell:
  PS> pagewise completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}

	return cmd
}

// registerFlagCompletions completes the values of the --compiler and
// --format flags of cmd, if it has them.
func registerFlagCompletions(cmd *cobra.Command) {
	if cmd.Flags().Lookup("compiler") != nil {
		_ = cmd.RegisterFlagCompletionFunc("compiler", fixedCompletions(compiler.Names()...))
	}
	if cmd.Flags().Lookup("format") != nil {
		formats := make([]string, 0, len(render.ValidFormats))
		for f := range render.ValidFormats {
			formats = append(formats, string(f))
		}
		sort.Strings(formats)
		_ = cmd.RegisterFlagCompletionFunc("format", fixedCompletions(formats...))
	}
}

func fixedCompletions(values ...string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}
