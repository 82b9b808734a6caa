// Package config implements the "cntfs config" subcommands, which inspect
// and edit the YAML file the server reads at start.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the config subcommand.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the server configuration",
	Long: `Inspect and edit the cntfs configuration file.

The file is created by 'cntfs init'. Every subcommand honours the global
--config flag and otherwise uses $XDG_CONFIG_HOME/cntfs/config.yaml.`,
}

func init() {
	Cmd.AddCommand(editCmd, validateCmd, showCmd, schemaCmd)
}
