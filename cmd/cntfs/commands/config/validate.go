package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/cntfs/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the cntfs configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  cntfs config validate

  # Validate specific config file
  cntfs config validate --config /etc/cntfs/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string
	if cfg.Store.Type == config.StoreMemory {
		warnings = append(warnings, "store.type is memory: users and file ownership are lost on restart")
	}
	if cfg.Stats.HistoryPath == "" {
		warnings = append(warnings, "stats.history_path is empty: transfer history is not persisted")
	}
	if cfg.Server.Timeouts.Idle == 0 {
		warnings = append(warnings, "server.timeouts.idle is 0: idle sessions are never closed")
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(out, "  Sandbox root:    %s\n", cfg.Server.Root)
	_, _ = fmt.Fprintf(out, "  Listen address:  %s:%d\n", cfg.Server.BindAddress, cfg.Server.Port)
	_, _ = fmt.Fprintf(out, "  Store type:      %s\n", cfg.Store.Type)
	_, _ = fmt.Fprintf(out, "  Max upload size: %s\n", cfg.Server.MaxUploadSize)
	if cfg.API.IsEnabled() {
		_, _ = fmt.Fprintf(out, "  API port:        %d\n", cfg.API.Port)
	}
	_, _ = fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)
	return nil
}
