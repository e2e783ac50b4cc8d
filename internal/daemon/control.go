package daemon

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/leonletto/comodoro/internal/session"
	"github.com/leonletto/comodoro/internal/wire"
)

const (
	// controlBuffer is how many signals may queue between two ticks.
	controlBuffer = 64

	defaultControlReadTimeout = 500 * time.Millisecond
)

// ControlChannel receives pause/resume/stop bytes on the control socket and
// queues them for the running session. Connections are served one at a time
// so signals keep their arrival order.
type ControlChannel struct {
	socketPath  string
	listener    net.Listener
	signals     chan session.Signal
	readTimeout time.Duration
	mu          sync.Mutex
	shutdown    bool
	done        chan struct{}
}

// NewControlChannel creates a control channel bound to socketPath on Start.
func NewControlChannel(socketPath string) *ControlChannel {
	return &ControlChannel{
		socketPath:  socketPath,
		signals:     make(chan session.Signal, controlBuffer),
		readTimeout: defaultControlReadTimeout,
		done:        make(chan struct{}),
	}
}

// Start binds the control socket and begins accepting connections.
func (c *ControlChannel) Start(_ context.Context) error {
	listener, err := listenUnix(c.socketPath)
	if err != nil {
		return err
	}
	c.listener = listener

	go c.acceptLoop()
	return nil
}

// Drain returns every queued signal in arrival order without blocking.
func (c *ControlChannel) Drain() []session.Signal {
	var out []session.Signal
	for {
		select {
		case sig := <-c.signals:
			out = append(out, sig)
		default:
			return out
		}
	}
}

// Discard drops queued signals, returning how many were dropped. Signals
// sent while no session runs must not leak into the next one.
func (c *ControlChannel) Discard() int {
	return len(c.Drain())
}

// Stop closes the listener and removes the socket file.
func (c *ControlChannel) Stop() error {
	c.mu.Lock()
	c.shutdown = true
	c.mu.Unlock()

	if c.listener == nil {
		return nil
	}
	if err := c.listener.Close(); err != nil {
		return fmt.Errorf("failed to close control listener: %w", err)
	}
	select {
	case <-c.done:
	case <-time.After(2 * c.readTimeout):
	}
	return removeSocket(c.socketPath)
}

func (c *ControlChannel) acceptLoop() {
	defer close(c.done)
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			c.mu.Lock()
			shutdown := c.shutdown
			c.mu.Unlock()
			if shutdown {
				return
			}
			log.Printf("control: accept error: %v", err)
			continue
		}
		c.handle(conn)
	}
}

// handle reads exactly one byte. Read failures and unknown bytes only cost
// this connection.
func (c *ControlChannel) handle(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	_ = conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	var b [1]byte
	if _, err := io.ReadFull(conn, b[:]); err != nil {
		log.Printf("control: read failed: %v", err)
		return
	}

	sig, ok := wire.ParseSignal(b[0])
	if !ok {
		log.Printf("control: ignoring unknown byte %d", b[0])
		return
	}

	select {
	case c.signals <- sig:
	default:
		log.Printf("control: queue full, dropping %s", sig)
	}
}
