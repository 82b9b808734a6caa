package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/cntfs/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample cntfs configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/cntfs/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  cntfs init

  # Initialize with custom path
  cntfs init --config /etc/cntfs/config.yaml

  # Force overwrite existing config
  cntfs init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var (
		configPath string
		err        error
	)
	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Set server.root to the directory you want to share")
	_, _ = fmt.Fprintln(out, "  2. Start the server with: cntfs start")
	_, _ = fmt.Fprintf(out, "  3. Or specify custom config: cntfs start --config %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nUsers register themselves on their first connect.")
	_, _ = fmt.Fprintln(out, "Use 'cntfs user list' to see who has an account.")
	return nil
}
