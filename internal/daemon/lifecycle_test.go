package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/leonletto/comodoro/internal/paths"
	"github.com/leonletto/comodoro/internal/session"
	"github.com/leonletto/comodoro/internal/wire"
)

type recordingNotifier struct {
	mu     sync.Mutex
	bodies []string
}

func (n *recordingNotifier) Notify(_ context.Context, _, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bodies = append(n.bodies, body)
	return nil
}

// waitBody blocks until body has been shown.
func (n *recordingNotifier) waitBody(t *testing.T, body string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, b := range n.Bodies() {
			if b == body {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("notification %q never shown; got %q", body, n.Bodies())
}

func (n *recordingNotifier) Bodies() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.bodies...)
}

// statusSink collects snapshots pushed to a loopback listener.
type statusSink struct {
	ln    net.Listener
	snaps chan session.Snapshot
}

func newStatusSink(t *testing.T) *statusSink {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	s := &statusSink{ln: ln, snaps: make(chan session.Snapshot, 256)}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			data, _ := io.ReadAll(conn)
			_ = conn.Close()
			snap, err := session.ParseSnapshot(string(data))
			if err != nil {
				continue
			}
			select {
			case s.snaps <- snap:
			default:
			}
		}
	}()
	return s
}

// drain empties the buffer and returns how many snapshots it held.
func (s *statusSink) drain() int {
	n := 0
	for {
		select {
		case <-s.snaps:
			n++
		default:
			return n
		}
	}
}

// waitStatus returns the first snapshot carrying status.
func (s *statusSink) waitStatus(t *testing.T, status string) session.Snapshot {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case snap := <-s.snaps:
			if snap.Status == status {
				return snap
			}
		case <-timeout:
			t.Fatalf("no %q snapshot received", status)
		}
	}
}

type testDaemon struct {
	*Lifecycle
	paths    paths.Paths
	runner   *Runner
	notifier *recordingNotifier
	sink     *statusSink
	done     chan struct{}
	err      error
}

// startTestDaemon runs a full daemon in a temp runtime dir and waits until
// both sockets accept.
func startTestDaemon(t *testing.T) *testDaemon {
	t.Helper()

	p := paths.ForDir(t.TempDir())
	sink := newStatusSink(t)
	notifier := &recordingNotifier{}

	control := NewControlChannel(p.ControlSocket)
	scheduler := session.NewScheduler(session.Options{
		TickInterval: 20 * time.Millisecond,
		Notifier:     notifier,
		Publisher:    NewStatusReporter(sink.ln.Addr().String()),
		Signals:      control,
	})
	runner := NewRunner(scheduler, control)
	server := NewServer(p.CommandSocket)

	l := NewLifecycle(server, control, runner, p.PIDFile)
	l.SetLockFile(p.LockFile)
	l.SetInfo(p.RuntimeDir, "test")

	td := &testDaemon{Lifecycle: l, paths: p, runner: runner, notifier: notifier, sink: sink, done: make(chan struct{})}
	go func() {
		td.err = l.Run(context.Background())
		close(td.done)
	}()
	t.Cleanup(func() {
		l.Shutdown()
		select {
		case <-td.done:
		case <-time.After(5 * time.Second):
		}
	})

	waitForSocketReady(t, p.CommandSocket)
	waitForSocketReady(t, p.ControlSocket)
	return td
}

func (td *testDaemon) wait(t *testing.T) error {
	t.Helper()
	select {
	case <-td.done:
		return td.err
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not shut down")
		return nil
	}
}

func TestLifecyclePauseResumeStop(t *testing.T) {
	td := startTestDaemon(t)

	cfg := session.DefaultConfig()
	cfg.Iterations = 2
	cfg.Focus = time.Hour
	cfg.Rest = time.Minute
	payload, err := wire.EncodeStart(cfg, time.Now())
	if err != nil {
		t.Fatalf("EncodeStart failed: %v", err)
	}
	sendUnix(t, td.paths.CommandSocket, payload)

	focusing := td.sink.waitStatus(t, session.StatusFocusing)
	if focusing.Iteration != 1 || focusing.Iterations != 2 {
		t.Fatalf("iteration = %d/%d, want 1/2", focusing.Iteration, focusing.Iterations)
	}

	sendUnix(t, td.paths.ControlSocket, []byte{byte(session.SignalPause)})
	td.sink.waitStatus(t, session.StatusPaused)

	sendUnix(t, td.paths.ControlSocket, []byte{byte(session.SignalResume)})
	td.sink.waitStatus(t, session.StatusFocusing)

	sendUnix(t, td.paths.ControlSocket, []byte{byte(session.SignalStop)})
	stopped := td.sink.waitStatus(t, session.StatusStopped)
	if stopped.SessionID != focusing.SessionID {
		t.Fatalf("stopped session %q, want %q", stopped.SessionID, focusing.SessionID)
	}

	bodies := td.notifier.Bodies()
	if len(bodies) == 0 || bodies[0] != "Start of Pomodoro 1" {
		t.Fatalf("notifications = %q, want first banner %q", bodies, "Start of Pomodoro 1")
	}
}

func TestLifecycleKill(t *testing.T) {
	td := startTestDaemon(t)

	sendUnix(t, td.paths.CommandSocket, wire.EncodeKill())
	if err := td.wait(t); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	for _, path := range []string{td.paths.CommandSocket, td.paths.ControlSocket, td.paths.PIDFile} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatalf("%s still present after kill", filepath.Base(path))
		}
	}
	if IsLocked(td.paths.LockFile) {
		t.Fatal("lock still held after kill")
	}
}

func TestLifecycleWritesPIDFile(t *testing.T) {
	td := startTestDaemon(t)

	info, err := ReadPIDFile(td.paths.PIDFile)
	if err != nil {
		t.Fatalf("ReadPIDFile failed: %v", err)
	}
	if info.PID != os.Getpid() || info.RuntimeDir != td.paths.RuntimeDir || info.Version != "test" {
		t.Fatalf("PID info = %+v", info)
	}
}

func TestLifecycleQueuesSecondStart(t *testing.T) {
	td := startTestDaemon(t)

	cfg := session.DefaultConfig()
	cfg.Focus = time.Hour
	payload, err := wire.EncodeStart(cfg, time.Now())
	if err != nil {
		t.Fatalf("EncodeStart failed: %v", err)
	}
	sendUnix(t, td.paths.CommandSocket, payload)
	first := td.sink.waitStatus(t, session.StatusFocusing)

	sendUnix(t, td.paths.CommandSocket, payload)
	deadline := time.Now().Add(2 * time.Second)
	for td.runner.Pending() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if td.runner.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", td.runner.Pending())
	}
	again := td.sink.waitStatus(t, session.StatusFocusing)
	if again.SessionID != first.SessionID {
		t.Fatalf("second start replaced session %q with %q", first.SessionID, again.SessionID)
	}

	sendUnix(t, td.paths.ControlSocket, []byte{byte(session.SignalStop)})
	td.sink.waitStatus(t, session.StatusStopped)
	next := td.sink.waitStatus(t, session.StatusFocusing)
	if next.SessionID == first.SessionID {
		t.Fatal("queued start did not run after stop")
	}
}

func TestLifecycleSessionRunsToCompletion(t *testing.T) {
	td := startTestDaemon(t)

	cfg := session.DefaultConfig()
	cfg.Iterations = 1
	cfg.Focus = time.Second
	cfg.Rest = time.Second
	// Launch times travel as whole seconds; start just past a boundary so
	// the one-second focus phase is not truncated away.
	time.Sleep(time.Until(time.Now().Truncate(time.Second).Add(time.Second + 20*time.Millisecond)))
	payload, err := wire.EncodeStart(cfg, time.Now())
	if err != nil {
		t.Fatalf("EncodeStart failed: %v", err)
	}
	sendUnix(t, td.paths.CommandSocket, payload)

	focusing := td.sink.waitStatus(t, session.StatusFocusing)
	resting := td.sink.waitStatus(t, session.StatusResting)
	if resting.SessionID != focusing.SessionID {
		t.Fatalf("resting session %q, want %q", resting.SessionID, focusing.SessionID)
	}

	td.notifier.waitBody(t, session.EndOfSession)
	want := []string{"Start of Pomodoro 1", "Start of Rest 1", session.EndOfSession}
	if got := td.notifier.Bodies(); !reflect.DeepEqual(got, want) {
		t.Fatalf("notifications = %q, want %q", got, want)
	}

	// Let pushes from before the end land, then expect silence.
	time.Sleep(100 * time.Millisecond)
	td.sink.drain()
	time.Sleep(300 * time.Millisecond)
	if n := td.sink.drain(); n != 0 {
		t.Fatalf("%d snapshot(s) published after the session finished", n)
	}
	if td.runner.Active() != "" {
		t.Fatalf("Active = %q after finish", td.runner.Active())
	}

	cfg.Focus = time.Hour
	payload, err = wire.EncodeStart(cfg, time.Now())
	if err != nil {
		t.Fatalf("EncodeStart failed: %v", err)
	}
	sendUnix(t, td.paths.CommandSocket, payload)
	next := td.sink.waitStatus(t, session.StatusFocusing)
	if next.SessionID == focusing.SessionID {
		t.Fatal("daemon did not accept a start after the session finished")
	}
}

func TestLifecycleIgnoresStalePIDFileWhenLocked(t *testing.T) {
	p := paths.ForDir(t.TempDir())

	// A live process that is not a daemon, as after PID reuse.
	if err := WritePIDFile(p.PIDFile, PIDInfo{PID: os.Getppid()}); err != nil {
		t.Fatalf("WritePIDFile failed: %v", err)
	}

	control := NewControlChannel(p.ControlSocket)
	l := NewLifecycle(NewServer(p.CommandSocket), control,
		NewRunner(session.NewScheduler(session.Options{}), control), p.PIDFile)
	l.SetLockFile(p.LockFile)

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	select {
	case err := <-done:
		t.Fatalf("Run returned early: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
	info, err := ReadPIDFile(p.PIDFile)
	if err != nil || info.PID != os.Getpid() {
		t.Fatalf("PID file = %+v, %v; want own PID", info, err)
	}

	l.Shutdown()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not shut down")
	}
}

func TestLifecycleLockPreventsDuplicateStart(t *testing.T) {
	p := paths.ForDir(t.TempDir())

	held, err := AcquireLock(p.LockFile)
	if err != nil {
		t.Fatalf("failed to acquire lock: %v", err)
	}
	defer func() { _ = held.Release() }()

	control := NewControlChannel(p.ControlSocket)
	l := NewLifecycle(NewServer(p.CommandSocket), control,
		NewRunner(session.NewScheduler(session.Options{}), control), p.PIDFile)
	l.SetLockFile(p.LockFile)

	err = l.Run(context.Background())
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("Run error = %v, want ErrAlreadyRunning", err)
	}
	if _, err := os.Stat(p.CommandSocket); !os.IsNotExist(err) {
		t.Fatal("command socket bound despite held lock")
	}
}

func TestLifecycleShutdownIdempotent(t *testing.T) {
	td := startTestDaemon(t)

	td.Shutdown()
	td.Shutdown()
	if err := td.wait(t); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}
