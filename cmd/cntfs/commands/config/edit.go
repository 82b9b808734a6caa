package config

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/cntfs/pkg/config"
)

var editKeepInvalid bool

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit the configuration file",
	Long: `Open the configuration file in $EDITOR (or $VISUAL, or vi).

The file is validated when the editor exits. An invalid edit is rolled back
to the previous contents unless --keep-invalid is given.

Examples:
  cntfs config edit
  EDITOR="code --wait" cntfs config edit --config /etc/cntfs/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runConfigEdit,
}

func init() {
	editCmd.Flags().BoolVar(&editKeepInvalid, "keep-invalid", false, "Keep the edited file even if it does not validate")
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	before, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("configuration file not found: %s\n\nCreate it first with:\n  cntfs init --config %s",
			configPath, configPath)
	}
	if err != nil {
		return err
	}

	editor := editorCommand(configPath)
	editor.Stdin, editor.Stdout, editor.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := editor.Run(); err != nil {
		return fmt.Errorf("editor failed: %w", err)
	}

	_, loadErr := config.MustLoad(configPath)
	if loadErr == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved: %s\n", configPath)
		return nil
	}
	if editKeepInvalid {
		return fmt.Errorf("edited configuration is invalid (kept as is): %w", loadErr)
	}
	if err := os.WriteFile(configPath, before, 0644); err != nil {
		return fmt.Errorf("edited configuration is invalid and could not be restored: %w", err)
	}
	return fmt.Errorf("edited configuration is invalid, previous version restored: %w", loadErr)
}

// editorCommand builds the editor invocation for path. $EDITOR may carry
// arguments, as in "code --wait".
func editorCommand(path string) *exec.Cmd {
	line := os.Getenv("EDITOR")
	if line == "" {
		line = os.Getenv("VISUAL")
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		fields = []string{"vi"}
	}
	return exec.Command(fields[0], append(fields[1:], path)...)
}
