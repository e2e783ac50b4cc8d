package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/leonletto/comodoro/internal/daemon"
	"github.com/leonletto/comodoro/internal/paths"
)

// DaemonStartTimeout bounds how long `init` waits for the sockets to appear.
const DaemonStartTimeout = 10 * time.Second

// spawn starts the detached daemon process.
var spawn = spawnDaemon

// DaemonStatusResult contains daemon status information.
type DaemonStatusResult struct {
	Running    bool   `json:"running"`
	Status     string `json:"status"`
	PID        int    `json:"pid,omitempty"`
	RuntimeDir string `json:"runtime_dir,omitempty"`
	Uptime     string `json:"uptime,omitempty"`
	Version    string `json:"version,omitempty"`
}

// DaemonStart starts the daemon in the background and waits until it
// accepts commands.
//
// The flock alone decides whether a daemon runs. A PID file can outlive
// its daemon and name a reused PID.
func DaemonStart(p paths.Paths) (int, error) {
	if daemon.IsLocked(p.LockFile) {
		return 0, fmt.Errorf("%w (lock %s)", daemon.ErrAlreadyRunning, p.LockFile)
	}

	if err := p.EnsureRuntimeDir(); err != nil {
		return 0, err
	}

	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to get executable path: %w", err)
	}

	// Keep the runtime dir the parent resolved, whatever the child's env.
	env := append(os.Environ(), paths.RuntimeDirEnv+"="+p.RuntimeDir)
	pid, err := spawn(executable, env)
	if err != nil {
		return 0, err
	}

	if err := waitForSockets(DaemonStartTimeout, p.CommandSocket, p.ControlSocket); err != nil {
		return pid, fmt.Errorf("%w; see %s", err, p.LogFile)
	}
	return pid, nil
}

// waitForSockets polls until every path exists.
func waitForSockets(timeout time.Duration, socketPaths ...string) error {
	deadline := time.After(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		ready := true
		for _, path := range socketPaths {
			if _, err := os.Stat(path); err != nil {
				ready = false
				break
			}
		}
		if ready {
			return nil
		}

		select {
		case <-deadline:
			return fmt.Errorf("timeout waiting for daemon to start")
		case <-ticker.C:
		}
	}
}

// DaemonStatus reads the PID file to report whether the daemon is up.
func DaemonStatus(p paths.Paths) (*DaemonStatusResult, error) {
	running, pidInfo, err := daemon.CheckPIDFile(p.PIDFile)
	if err != nil {
		return nil, fmt.Errorf("failed to check daemon status: %w", err)
	}

	result := &DaemonStatusResult{
		Running:    running,
		Status:     "stopped",
		RuntimeDir: p.RuntimeDir,
	}
	if !running {
		return result, nil
	}

	result.Status = "running"
	result.PID = pidInfo.PID
	result.Version = pidInfo.Version
	if !pidInfo.StartedAt.IsZero() {
		result.Uptime = formatDuration(time.Since(pidInfo.StartedAt))
	}
	return result, nil
}

// FormatDaemonStatus formats the daemon status for display.
func FormatDaemonStatus(result *DaemonStatusResult) string {
	if !result.Running {
		return "Daemon:   not running\n"
	}

	status := fmt.Sprintf("Daemon:   running (PID %d)\n", result.PID)
	if result.Uptime != "" {
		status += fmt.Sprintf("Uptime:   %s\n", result.Uptime)
	}
	if result.Version != "" {
		status += fmt.Sprintf("Version:  %s\n", result.Version)
	}
	if result.RuntimeDir != "" {
		status += fmt.Sprintf("Runtime:  %s\n", result.RuntimeDir)
	}
	return status
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		minutes := int(d.Minutes()) % 60
		if minutes > 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	}
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	if hours > 0 {
		return fmt.Sprintf("%dd%dh", days, hours)
	}
	return fmt.Sprintf("%dd", days)
}
