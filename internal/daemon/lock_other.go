//go:build !unix

package daemon

// AcquireLock is a no-op where flock is unavailable.
func AcquireLock(path string) (*FileLock, error) {
	return &FileLock{path: path}, nil
}

// Release is a no-op where flock is unavailable.
func (l *FileLock) Release() error {
	return nil
}

// IsLocked always reports false where flock is unavailable.
func IsLocked(path string) bool {
	return false
}
