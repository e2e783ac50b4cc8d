package daemon

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/leonletto/comodoro/internal/wire"
)

// DefaultCommandTimeout bounds how long one command connection may take to
// deliver its payload.
const DefaultCommandTimeout = 2 * time.Second

// Handler handles one decoded command.
type Handler func(ctx context.Context, req wire.Request) error

// Server accepts start and kill commands on the command socket. Each
// connection carries exactly one command; the server never replies.
type Server struct {
	socketPath string
	listener   net.Listener
	handlers   map[wire.Tag]Handler
	timeout    time.Duration
	mu         sync.RWMutex
	shutdown   bool
	wg         sync.WaitGroup
}

// NewServer creates a command server bound to socketPath on Start.
func NewServer(socketPath string) *Server {
	return &Server{
		socketPath: socketPath,
		handlers:   make(map[wire.Tag]Handler),
		timeout:    DefaultCommandTimeout,
	}
}

// RegisterHandler registers the handler for a command tag.
func (s *Server) RegisterHandler(tag wire.Tag, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[tag] = h
}

// Start binds the socket and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	listener, err := listenUnix(s.socketPath)
	if err != nil {
		return err
	}
	s.listener = listener

	go s.acceptLoop(ctx)
	return nil
}

// Stop closes the listener, waits for in-flight commands and removes the
// socket file.
func (s *Server) Stop() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	// Never bound: the socket file, if any, belongs to someone else.
	if s.listener == nil {
		return nil
	}
	if err := s.listener.Close(); err != nil {
		return fmt.Errorf("failed to close listener: %w", err)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}

	return removeSocket(s.socketPath)
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.RLock()
			shutdown := s.shutdown
			s.mu.RUnlock()
			if shutdown {
				return
			}
			log.Printf("daemon: accept error: %v", err)
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(ctx, conn)
	}
}

// handleConnection decodes one command. Malformed payloads are logged and
// dropped; they never take the daemon down.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer func() { _ = conn.Close() }()

	_ = conn.SetReadDeadline(time.Now().Add(s.timeout))
	req, err := wire.ReadRequest(conn)
	if err != nil {
		log.Printf("daemon: rejected command: %v", err)
		return
	}

	s.mu.RLock()
	handler, ok := s.handlers[req.Tag]
	s.mu.RUnlock()
	if !ok {
		log.Printf("daemon: no handler for command tag %d", req.Tag)
		return
	}

	if err := handler(ctx, req); err != nil {
		log.Printf("daemon: command tag %d failed: %v", req.Tag, err)
	}
}
