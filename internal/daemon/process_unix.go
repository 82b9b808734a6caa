//go:build !windows

package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func alive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Signal asks the server in r to stop with SIGTERM, or SIGKILL when force is
// set, and returns the name of the signal sent.
func Signal(r Record, force bool) (string, error) {
	sig, name := unix.SIGTERM, "SIGTERM"
	if force {
		sig, name = unix.SIGKILL, "SIGKILL"
	}
	err := unix.Kill(r.PID, sig)
	if errors.Is(err, unix.ESRCH) {
		return name, ErrExited
	}
	if err != nil {
		return name, fmt.Errorf("send %s to PID %d: %w", name, r.PID, err)
	}
	return name, nil
}

// Spawn starts executable with args as the leader of a new session, so it
// outlives the terminal, with stdout and stderr appended to logPath. It
// returns the child's PID without waiting for it.
func Spawn(executable string, args []string, logPath string) (int, error) {
	logf, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = logf.Close() }()

	cmd := exec.Command(executable, args...)
	cmd.Stdout = logf
	cmd.Stderr = logf
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start daemon: %w", err)
	}

	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}
