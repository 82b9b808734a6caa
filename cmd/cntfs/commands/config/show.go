package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/cntfs/internal/cli/output"
	"github.com/marmos91/cntfs/pkg/config"
)

var (
	showOutput  string
	showSection string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration cntfs would run with: built-in defaults,
overlaid by the configuration file, overlaid by CNTFS_* environment
variables.

Examples:
  cntfs config show
  cntfs config show --section server
  CNTFS_SERVER_PORT=7000 cntfs config show -o json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
	showCmd.Flags().StringVar(&showSection, "section", "", "Print only one top-level section, e.g. server or store")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var doc any = cfg
	if showSection != "" {
		if doc, err = section(cfg, showSection); err != nil {
			return err
		}
	}

	if format == output.FormatJSON {
		return output.PrintJSON(cmd.OutOrStdout(), doc)
	}
	return output.PrintYAML(cmd.OutOrStdout(), doc)
}

// section returns the top-level key name of cfg as it appears in the file.
func section(cfg *config.Config, name string) (any, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var top map[string]any
	if err := yaml.Unmarshal(raw, &top); err != nil {
		return nil, err
	}

	if v, ok := top[name]; ok {
		return v, nil
	}
	names := make([]string, 0, len(top))
	for k := range top {
		names = append(names, k)
	}
	sort.Strings(names)
	return nil, fmt.Errorf("unknown section %q (have: %s)", name, strings.Join(names, ", "))
}
