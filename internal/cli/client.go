package cli

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/leonletto/comodoro/internal/paths"
	"github.com/leonletto/comodoro/internal/session"
	"github.com/leonletto/comodoro/internal/wire"
)

// ErrEndpointUnavailable means a daemon socket could not be reached or the
// status address could not be bound. The command is not retried.
var ErrEndpointUnavailable = errors.New("endpoint unavailable")

// DefaultDialTimeout bounds connecting to and writing on a daemon socket.
const DefaultDialTimeout = 2 * time.Second

// send delivers payload on a fresh unix connection. The daemon never
// replies, so a completed write is success.
func send(socketPath string, payload []byte) error {
	conn, err := net.DialTimeout("unix", socketPath, DefaultDialTimeout)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrEndpointUnavailable, socketPath, err)
	}
	defer func() { _ = conn.Close() }()

	_ = conn.SetWriteDeadline(time.Now().Add(DefaultDialTimeout))
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("failed to send to %s: %w", socketPath, err)
	}
	return nil
}

// Start asks the daemon to begin a session launched at launchedAt.
func Start(p paths.Paths, cfg session.Config, launchedAt time.Time) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := wire.EncodeStart(cfg, launchedAt)
	if err != nil {
		return err
	}
	return send(p.CommandSocket, payload)
}

// Kill asks the daemon to shut down.
func Kill(p paths.Paths) error {
	return send(p.CommandSocket, wire.EncodeKill())
}

// SendSignal delivers one pause, resume or stop byte to the control socket.
func SendSignal(p paths.Paths, sig session.Signal) error {
	b, err := wire.EncodeSignal(sig)
	if err != nil {
		return err
	}
	return send(p.ControlSocket, []byte{b})
}

// Hint suggests a next step for err, or returns "".
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrStatusAddrInUse):
		return "Another process holds the status address; wait for it or set " + paths.StatusAddrEnv + "."
	case errors.Is(err, ErrEndpointUnavailable):
		return "Is the daemon running? Start it with 'comodoro init'."
	default:
		return ""
	}
}
