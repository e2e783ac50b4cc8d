package daemon

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/leonletto/comodoro/internal/session"
)

// DefaultStatusDialTimeout keeps a status push from stalling a tick.
const DefaultStatusDialTimeout = 100 * time.Millisecond

// StatusReporter pushes snapshots to whoever is listening on the status
// address. With no listener the push fails fast and is dropped.
type StatusReporter struct {
	addr    string
	timeout time.Duration
}

// NewStatusReporter creates a reporter dialing addr.
func NewStatusReporter(addr string) *StatusReporter {
	return &StatusReporter{addr: addr, timeout: DefaultStatusDialTimeout}
}

// Publish sends snap. Every failure is silently ignored.
func (r *StatusReporter) Publish(ctx context.Context, snap session.Snapshot) {
	dialer := net.Dialer{Timeout: r.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", r.addr)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	_ = conn.SetWriteDeadline(time.Now().Add(r.timeout))
	_, _ = io.WriteString(conn, snap.String())
}
