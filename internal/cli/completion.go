package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/Benxalil/EcoGest-07-sub004/pkg/reqcache"
)

// completionScripts maps a shell name to the cobra generator for it.
var completionScripts = map[string]func(root *cobra.Command, w io.Writer) error{
	"bash":       func(root *cobra.Command, w io.Writer) error { return root.GenBashCompletionV2(w, true) },
	"zsh":        func(root *cobra.Command, w io.Writer) error { return root.GenZshCompletion(w) },
	"fish":       func(root *cobra.Command, w io.Writer) error { return root.GenFishCompletion(w, true) },
	"powershell": func(root *cobra.Command, w io.Writer) error { return root.GenPowerShellCompletionWithDesc(w) },
}

// completionCommand creates the completion command.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion bash|zsh|fish|powershell",
		Short: "Generate shell completion scripts",
		Long: `Print a completion script for ecogest to stdout.

Completions cover the commands, their flags and the cache strategies accepted
by fetch --strategy. Table names are not completed: they come from the backend.

  $ source <(ecogest completion bash)
  $ ecogest completion zsh > "${fpath[1]}/_ecogest"
  $ ecogest completion fish > ~/.config/fish/completions/ecogest.fish`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return completionScripts[args[0]](cmd.Root(), cmd.OutOrStdout())
		},
	}
}

// completeStrategies completes the value of a --strategy flag.
func completeStrategies(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	names := make([]string, 0, len(reqcache.Strategies))
	for _, s := range reqcache.Strategies {
		names = append(names, s.String())
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
