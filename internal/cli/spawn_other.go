//go:build !unix

package cli

import "errors"

// errSpawnUnsupported is returned where the daemon cannot be detached.
var errSpawnUnsupported = errors.New("starting the daemon in the background is not supported on this platform; run 'comodoro daemon run'")

func spawnDaemon(string, []string) (int, error) {
	return 0, errSpawnUnsupported
}
