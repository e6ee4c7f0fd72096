package cmd

import (
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"
)

// completionScripts writes the completion script for each supported shell.
var completionScripts = map[string]func(root *cobra.Command, w io.Writer) error{
	"bash":       func(root *cobra.Command, w io.Writer) error { return root.GenBashCompletionV2(w, true) },
	"zsh":        func(root *cobra.Command, w io.Writer) error { return root.GenZshCompletion(w) },
	"fish":       func(root *cobra.Command, w io.Writer) error { return root.GenFishCompletion(w, true) },
	"powershell": func(root *cobra.Command, w io.Writer) error { return root.GenPowerShellCompletionWithDesc(w) },
}

var completionCmd = &cobra.Command{
	Use:   "completion <shell>",
	Short: "Print a tab-completion script for your shell",
	Long: `Print a script that teaches your shell to tab-complete bitlum commands
and flags.

Try it in the current shell:
  bash        source <(bitlum completion bash)
  zsh         source <(bitlum completion zsh)
  fish        bitlum completion fish | source
  powershell  bitlum completion powershell | Out-String | Invoke-Expression

Keep it for new shells by writing the script where your shell looks for
completions, for example:
  bitlum completion bash > ~/.local/share/bash-completion/completions/bitlum
  bitlum completion zsh  > "${fpath[1]}/_bitlum"
  bitlum completion fish > ~/.config/fish/completions/bitlum.fish
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             completionShells(),
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		return completionScripts[args[0]](cmd.Root(), os.Stdout)
	},
}

func completionShells() []string {
	shells := make([]string, 0, len(completionScripts))
	for s := range completionScripts {
		shells = append(shells, s)
	}
	slices.Sort(shells)
	return shells
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
