// Package commands implements the CLI commands of the cntfs server.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/cntfs/cmd/cntfs/commands/config"
	"github.com/marmos91/cntfs/cmd/cntfs/commands/user"
	"github.com/marmos91/cntfs/internal/cli/completion"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "cntfs",
	Short: "cntfs - sandboxed file-sharing server",
	Long: `cntfs serves a sandboxed directory tree over a small TCP protocol.

Clients authenticate with a username and password hash, then upload,
download, delete and organize files inside the sandbox. Every file is owned
by the user that uploaded it.

Use "cntfs [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/cntfs/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(config.Cmd)
	rootCmd.AddCommand(user.Cmd)
	rootCmd.AddCommand(completion.NewCommand("cntfs"))

	// Hide the default completion command (we provide our own)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}
