package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/leonletto/comodoro/internal/wire"
)

// Lifecycle owns the daemon from lock acquisition to socket cleanup.
type Lifecycle struct {
	server       *Server
	control      *ControlChannel
	runner       *Runner
	pidFile      string
	lockFile     string
	runtimeDir   string
	version      string
	lock         *FileLock
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// NewLifecycle wires the command server, control channel and runner.
// The server's kill handler is registered here; start is routed to runner.
func NewLifecycle(server *Server, control *ControlChannel, runner *Runner, pidFile string) *Lifecycle {
	l := &Lifecycle{
		server:     server,
		control:    control,
		runner:     runner,
		pidFile:    pidFile,
		shutdownCh: make(chan struct{}),
	}
	server.RegisterHandler(wire.TagStart, runner.HandleStart)
	server.RegisterHandler(wire.TagKill, func(context.Context, wire.Request) error {
		log.Printf("daemon: kill received")
		l.Shutdown()
		return nil
	})
	return l
}

// SetLockFile sets the flock path. Call before Run.
func (l *Lifecycle) SetLockFile(lockFile string) {
	l.lockFile = lockFile
}

// SetInfo sets the metadata written into the PID file. Call before Run.
func (l *Lifecycle) SetInfo(runtimeDir, version string) {
	l.runtimeDir = runtimeDir
	l.version = version
}

// Run starts every endpoint and blocks until Shutdown, a kill command, a
// termination signal, or ctx cancellation.
func (l *Lifecycle) Run(ctx context.Context) error {
	if l.lockFile != "" {
		lock, err := AcquireLock(l.lockFile)
		if err != nil {
			return fmt.Errorf("failed to acquire daemon lock: %w", err)
		}
		l.lock = lock
		log.Printf("daemon: holding lock %s", lock.Path())
		defer func() {
			if err := l.lock.Release(); err != nil {
				log.Printf("daemon: failed to release lock: %v", err)
			}
		}()
	}

	// With the flock held any PID file is stale, even one naming a live
	// process that reused the PID. Without a lock the PID file is all there is.
	if l.lock == nil {
		running, existing, err := CheckPIDFile(l.pidFile)
		if err != nil {
			log.Printf("daemon: ignoring unreadable PID file: %v", err)
		} else if running && existing.PID != os.Getpid() {
			return fmt.Errorf("%w (PID %d)", ErrAlreadyRunning, existing.PID)
		}
	}

	if err := WritePIDFile(l.pidFile, PIDInfo{
		PID:        os.Getpid(),
		StartedAt:  time.Now().UTC(),
		RuntimeDir: l.runtimeDir,
		Version:    l.version,
	}); err != nil {
		return err
	}

	var shutdownComplete atomic.Bool
	defer func() {
		if !shutdownComplete.Load() {
			_ = l.teardown()
		}
	}()

	if err := l.control.Start(ctx); err != nil {
		return fmt.Errorf("failed to start control channel: %w", err)
	}
	if err := l.server.Start(ctx); err != nil {
		return fmt.Errorf("failed to start command server: %w", err)
	}
	log.Printf("daemon: ready (PID %d)", os.Getpid())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	select {
	case <-l.shutdownCh:
	case sig := <-sigCh:
		log.Printf("daemon: received signal %v, shutting down", sig)
	case <-ctx.Done():
	}

	shutdownComplete.Store(true)
	return l.teardown()
}

// teardown stops accepting commands, cancels the active run, then removes
// sockets and the PID file. Every step runs even when an earlier one fails.
func (l *Lifecycle) teardown() error {
	var firstErr error
	keep := func(err error) {
		if err != nil {
			log.Printf("daemon: shutdown: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	keep(l.server.Stop())
	if id := l.runner.Active(); id != "" {
		log.Printf("daemon: canceling session %s", id)
	}
	if n := l.runner.Pending(); n > 0 {
		log.Printf("daemon: dropping %d queued start(s)", n)
	}
	l.runner.Close()
	keep(l.control.Stop())
	keep(RemovePIDFile(l.pidFile))
	if l.lock != nil {
		keep(l.lock.Release())
	}

	log.Printf("daemon: shutdown complete")
	return firstErr
}

// Shutdown triggers a graceful shutdown. Safe to call more than once.
func (l *Lifecycle) Shutdown() {
	l.shutdownOnce.Do(func() {
		close(l.shutdownCh)
	})
}
