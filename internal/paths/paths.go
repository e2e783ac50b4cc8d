package paths

import (
	"fmt"
	"hash/fnv"
	"net"
	"os"
	"path/filepath"
	"strconv"
)

const (
	// AppName names the runtime and config directories.
	AppName = "comodoro"

	// RuntimeDirEnv overrides the runtime directory.
	RuntimeDirEnv = "COMODORO_RUNTIME_DIR"

	// StatusAddrEnv overrides the loopback status address.
	StatusAddrEnv = "COMODORO_STATUS_ADDR"
)

// Paths is the set of local endpoints and files shared by the daemon and
// its clients.
type Paths struct {
	RuntimeDir    string
	CommandSocket string // start / kill
	ControlSocket string // pause / resume / stop
	StatusAddr    string // loopback TCP; the daemon dials, `status` listens
	PIDFile       string
	LockFile      string
	LogFile       string
}

// Resolve returns the paths for the current user.
//
// Resolution order for the runtime directory:
// 1. $COMODORO_RUNTIME_DIR
// 2. $XDG_RUNTIME_DIR/comodoro
// 3. <tmp>/comodoro-<uid>
func Resolve() Paths {
	return ForDir(RuntimeDir())
}

// ForDir lays out every endpoint under dir.
func ForDir(dir string) Paths {
	return Paths{
		RuntimeDir:    dir,
		CommandSocket: filepath.Join(dir, "command.sock"),
		ControlSocket: filepath.Join(dir, "control.sock"),
		StatusAddr:    StatusAddr(),
		PIDFile:       filepath.Join(dir, AppName+".pid"),
		LockFile:      filepath.Join(dir, AppName+".lock"),
		LogFile:       filepath.Join(dir, "daemon.log"),
	}
}

// RuntimeDir returns the directory holding sockets, pid and lock files.
func RuntimeDir() string {
	if dir := os.Getenv(RuntimeDirEnv); dir != "" {
		return dir
	}
	if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("%s-%d", AppName, os.Getuid()))
}

// StatusAddr returns the loopback address status snapshots are pushed to.
// Without an override the port is derived from the app name and uid so two
// users on one machine do not collide.
func StatusAddr() string {
	if addr := os.Getenv(StatusAddrEnv); addr != "" {
		return addr
	}
	port := portFromName(AppName + "-" + strconv.Itoa(os.Getuid()))
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
}

func portFromName(name string) int {
	const (
		minPort = 20000
		maxPort = 39999
	)
	hash := fnv.New32a()
	_, _ = hash.Write([]byte(name))
	rangeSize := maxPort - minPort + 1
	return minPort + int(hash.Sum32()%uint32(rangeSize))
}

// EnsureRuntimeDir creates the runtime directory with owner-only access.
func (p Paths) EnsureRuntimeDir() error {
	if err := os.MkdirAll(p.RuntimeDir, 0700); err != nil {
		return fmt.Errorf("create runtime directory: %w", err)
	}
	return nil
}

// UserConfigFile returns the default location of the TOML config file.
func UserConfigFile() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(configDir, AppName, AppName+".toml"), nil
}
