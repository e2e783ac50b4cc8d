//go:build unix

package cli

import (
	"fmt"
	"os/exec"
	"syscall"
)

// spawnDaemon runs `<executable> daemon run` detached from the terminal
// and returns its PID.
func spawnDaemon(executable string, env []string) (int, error) {
	cmd := exec.Command(executable, "daemon", "run") //nolint:gosec // executable from os.Executable()
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil
	cmd.Env = env
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // new session, no controlling terminal
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon process: %w", err)
	}
	pid := cmd.Process.Pid

	// Release, never Wait: the parent exits right after and the daemon is
	// adopted by init.
	if err := cmd.Process.Release(); err != nil {
		return 0, fmt.Errorf("failed to release daemon process: %w", err)
	}
	return pid, nil
}
