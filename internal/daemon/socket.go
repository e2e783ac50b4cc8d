package daemon

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrSocketInUse means a live listener already owns the socket path.
	ErrSocketInUse = errors.New("socket in use by another daemon")

	// ErrStaleSocket means a dead socket file could not be removed.
	ErrStaleSocket = errors.New("stale socket file")
)

// listenUnix binds an owner-only unix socket at path, clearing a stale
// socket file left behind by a previous daemon.
func listenUnix(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}
	if err := removeStaleSocket(path); err != nil {
		return nil, err
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", path, err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}
	return listener, nil
}

// removeStaleSocket removes path if nothing is accepting on it.
func removeStaleSocket(path string) error {
	if _, err := os.Lstat(path); err != nil {
		return nil
	}

	conn, err := net.DialTimeout("unix", path, 500*time.Millisecond)
	if err == nil {
		_ = conn.Close()
		return fmt.Errorf("%w: %s", ErrSocketInUse, path)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove %s: %v", ErrStaleSocket, path, err)
	}
	return nil
}

// removeSocket deletes a socket file, ignoring a missing one.
func removeSocket(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove socket: %w", err)
	}
	return nil
}
