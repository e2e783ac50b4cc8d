package session

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a sortable identifier for a session run.
// Format: "ses_" + ulid().
func NewID(now time.Time) string {
	ulidMu.Lock()
	defer ulidMu.Unlock()
	return "ses_" + ulid.MustNew(ulid.Timestamp(now), ulidEntropy).String()
}
