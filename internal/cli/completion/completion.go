// Package completion builds the shell completion command shared by the
// cntfs and cntctl binaries.
package completion

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// Shells lists the supported shells in the order they are documented.
var Shells = []string{"bash", "zsh", "fish", "powershell"}

const helpTemplate = `Generate a shell completion script for {bin}.

Load it once per shell:

  bash        {bin} completion bash > /etc/bash_completion.d/{bin}
  zsh         {bin} completion zsh > "${fpath[1]}/_{bin}"
              (run 'autoload -U compinit; compinit' first if completion is off)
  fish        {bin} completion fish > ~/.config/fish/completions/{bin}.fish
  powershell  {bin} completion powershell | Out-String | Invoke-Expression
`

// NewCommand returns the "completion" subcommand for binary. Scripts are
// generated from the root of the tree the command is attached to and written
// to the command's output stream.
func NewCommand(binary string) *cobra.Command {
	return &cobra.Command{
		Use:                   fmt.Sprintf("completion [%s]", strings.Join(Shells, "|")),
		Short:                 "Generate shell completion script",
		Long:                  strings.ReplaceAll(helpTemplate, "{bin}", binary),
		DisableFlagsInUseLine: true,
		ValidArgs:             Shells,
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, w := cmd.Root(), cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(w, true)
			case "zsh":
				return root.GenZshCompletion(w)
			case "fish":
				return root.GenFishCompletion(w, true)
			default:
				return root.GenPowerShellCompletionWithDesc(w)
			}
		},
	}
}
