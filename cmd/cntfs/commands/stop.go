package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/cntfs/internal/daemon"
)

var (
	stopPidFile string
	stopForce   bool
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the cntfs server",
	Long: `Stop a cntfs server started with 'cntfs start'.

The server is found through its PID file. By default it is asked to shut
down gracefully: it stops accepting, lets every session finish the request
it is serving, then exits. --force kills it at once; uploads in flight are
discarded.

Examples:
  cntfs stop
  cntfs stop --pid-file /var/run/cntfs.pid
  cntfs stop --force`,
	Args: cobra.NoArgs,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().StringVar(&stopPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/cntfs/cntfs.pid)")
	stopCmd.Flags().BoolVarP(&stopForce, "force", "f", false, "Kill the server instead of shutting it down gracefully")
}

func runStop(cmd *cobra.Command, args []string) error {
	pidPath := orDefault(stopPidFile, GetDefaultPidFile())
	rec, err := daemon.Read(pidPath)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	sent, err := daemon.Signal(rec, stopForce)
	if errors.Is(err, daemon.ErrExited) {
		_ = os.Remove(pidPath)
		fmt.Fprintf(w, "cntfs (PID %d) was not running; removed stale PID file\n", rec.PID)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Sent %s to cntfs (PID %d) serving %s\n", sent, rec.PID, orDefault(rec.Root, "?"))
	if stopForce {
		_ = os.Remove(pidPath)
		fmt.Fprintln(w, "Server killed")
		return nil
	}
	fmt.Fprintln(w, "Sessions finish their current request, then the server exits.")
	return nil
}
