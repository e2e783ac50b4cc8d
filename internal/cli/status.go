package cli

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/leonletto/comodoro/internal/session"
)

// ErrNoSession means no snapshot arrived within the polling budget.
var ErrNoSession = errors.New("no session running")

// ErrStatusAddrInUse means another process is bound to the status address,
// usually a second `status` still waiting. It also matches
// ErrEndpointUnavailable.
var ErrStatusAddrInUse = errors.New("status address in use")

const (
	// DefaultStatusAttempts and DefaultStatusWait give the daemon a few
	// ticks to push a snapshot before concluding nothing is running.
	DefaultStatusAttempts = 4
	DefaultStatusWait     = 500 * time.Millisecond

	// checkWait is a single attempt, long enough to span one daemon tick.
	checkWait = 400 * time.Millisecond

	maxSnapshotSize = 4 << 10
)

// Status binds addr and waits for the daemon to push a snapshot, giving up
// after attempts waits of wait each.
func Status(addr string, attempts int, wait time.Duration) (session.Snapshot, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("%w: %w: bind %s: %v", ErrEndpointUnavailable, ErrStatusAddrInUse, addr, err)
	}
	defer func() { _ = ln.Close() }()
	tcp := ln.(*net.TCPListener)

	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		_ = tcp.SetDeadline(time.Now().Add(wait))
		conn, err := tcp.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return session.Snapshot{}, fmt.Errorf("accept status push: %w", err)
		}

		snap, err := readSnapshot(conn, wait)
		if err != nil {
			// A half-written push; the next tick sends another.
			continue
		}
		return snap, nil
	}
	return session.Snapshot{}, ErrNoSession
}

func readSnapshot(conn net.Conn, wait time.Duration) (session.Snapshot, error) {
	defer func() { _ = conn.Close() }()
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	data, err := io.ReadAll(io.LimitReader(conn, maxSnapshotSize))
	if err != nil {
		return session.Snapshot{}, err
	}
	return session.ParseSnapshot(string(data))
}

// ActiveSession reports the session the daemon is running, if any, from a
// single short listen. A busy status address reads as no session.
func ActiveSession(addr string) (session.Snapshot, bool) {
	snap, err := Status(addr, 1, checkWait)
	if err != nil || snap.Status == session.StatusStopped {
		return session.Snapshot{}, false
	}
	return snap, true
}

var (
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	focusingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	restingStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("78"))
	pausedStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	stoppedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// FormatStatus renders snap for a terminal. Colour is applied only when
// color is set.
func FormatStatus(snap session.Snapshot, color bool) string {
	status := snap.Status
	label := func(s string) string { return s }
	if color {
		status = statusStyle(snap.Status).Render(snap.Status)
		label = func(s string) string { return labelStyle.Render(s) }
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", label("Status:   "), status)
	fmt.Fprintf(&b, "%s %s left\n", label("Remaining:"), session.FormatClock(snap.Remaining))
	fmt.Fprintf(&b, "%s %d/%d\n", label("Pomodoro: "), snap.Iteration, snap.Iterations)
	fmt.Fprintf(&b, "%s %s focus, %s rest\n", label("Cycle:    "),
		session.FormatClock(snap.Focus), session.FormatClock(snap.Rest))
	fmt.Fprintf(&b, "%s %s\n", label("Session:  "), snap.SessionID)
	return b.String()
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case session.StatusFocusing:
		return focusingStyle
	case session.StatusResting:
		return restingStyle
	case session.StatusPaused:
		return pausedStyle
	default:
		return stoppedStyle
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
