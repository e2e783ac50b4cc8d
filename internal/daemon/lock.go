package daemon

import (
	"errors"
	"os"
)

// ErrAlreadyRunning indicates another daemon holds the lock.
var ErrAlreadyRunning = errors.New("daemon already running")

// FileLock is an exclusive lock the OS drops when the holder dies, even on
// SIGKILL, so a crashed daemon never blocks `init`.
type FileLock struct {
	path string
	file *os.File
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}
