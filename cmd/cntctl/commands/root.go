// Package commands implements the CLI commands of the cntctl client.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/cntfs/cmd/cntctl/cmdutil"
	ctxcmd "github.com/marmos91/cntfs/cmd/cntctl/commands/context"
	"github.com/marmos91/cntfs/internal/cli/completion"
	"github.com/marmos91/cntfs/pkg/client"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "cntctl",
	Short: "cntctl - cntfs file-sharing client",
	Long: `cntctl talks to a cntfs server over its TCP protocol.

Log in once with 'cntctl login <server>'; later commands reuse the saved
context. Each command opens its own connection, so paths are relative to
the sandbox root.

Use "cntctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Sync flags to cmdutil.Flags for subcommands
		cmdutil.Flags.Server, _ = cmd.Flags().GetString("server")
		cmdutil.Flags.User, _ = cmd.Flags().GetString("user")
		cmdutil.Flags.APIURL, _ = cmd.Flags().GetString("api-url")
		cmdutil.Flags.Output, _ = cmd.Flags().GetString("output")
		cmdutil.Flags.NoColor, _ = cmd.Flags().GetBool("no-color")
		cmdutil.Flags.Timeout, _ = cmd.Flags().GetDuration("timeout")
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().String("server", "", "Server address host[:port] (overrides stored context)")
	rootCmd.PersistentFlags().String("user", "", "Username (overrides stored context)")
	rootCmd.PersistentFlags().String("api-url", "", "HTTP API base URL (overrides stored context)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().Duration("timeout", client.DefaultTimeout, "Per-request timeout")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(ctxcmd.Cmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(rmdirCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(completion.NewCommand("cntctl"))

	// Hide the default completion command (we provide our own)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
