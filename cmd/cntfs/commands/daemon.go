package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/cntfs/internal/daemon"
	"github.com/marmos91/cntfs/pkg/config"
)

// startDaemon runs this binary again as "start --foreground" in the
// background and reports where its PID and log files live.
func startDaemon(cmd *cobra.Command) error {
	if err := os.MkdirAll(config.GetStateDir(), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	pidPath := orDefault(pidFile, GetDefaultPidFile())
	if rec, running := daemon.Running(pidPath); running {
		return fmt.Errorf("cntfs is already serving %s on %s (PID %d)\nUse 'cntfs stop' first",
			orDefault(rec.Root, "?"), orDefault(rec.Listen, "?"), rec.PID)
	}
	_ = os.Remove(pidPath)

	logPath := orDefault(logFile, GetDefaultLogFile())
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate the cntfs binary: %w", err)
	}

	args := []string{"start", "--foreground", "--pid-file", pidPath}
	if GetConfigFile() != "" {
		args = append(args, "--config", GetConfigFile())
	}
	pid, err := daemon.Spawn(executable, args, logPath)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "cntfs started in background (PID %d)\n", pid)
	fmt.Fprintf(w, "  PID file: %s\n", pidPath)
	fmt.Fprintf(w, "  Log file: %s\n", logPath)
	fmt.Fprintln(w, "\nFollow the log with 'cntfs logs -f'; stop the server with 'cntfs stop'")
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
