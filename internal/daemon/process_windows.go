//go:build windows

package daemon

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// stillActive is the exit code GetExitCodeProcess reports for a live process.
const stillActive = 259

func alive(pid int) bool {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer func() { _ = windows.CloseHandle(h) }()

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == stillActive
}

// Signal stops the server in r. Windows has no SIGTERM: graceful mode sends
// an interrupt and force mode kills the process.
func Signal(r Record, force bool) (string, error) {
	if !alive(r.PID) {
		return "", ErrExited
	}
	p, err := os.FindProcess(r.PID)
	if err != nil {
		return "", fmt.Errorf("find PID %d: %w", r.PID, err)
	}

	name := "interrupt"
	if force {
		name = "kill"
		err = p.Kill()
	} else {
		err = p.Signal(os.Interrupt)
	}
	if errors.Is(err, os.ErrProcessDone) {
		return name, ErrExited
	}
	if err != nil {
		return name, fmt.Errorf("send %s to PID %d: %w", name, r.PID, err)
	}
	return name, nil
}

// Spawn is not available on Windows; run the server under a service manager
// with --foreground instead.
func Spawn(string, []string, string) (int, error) {
	return 0, ErrUnsupported
}
