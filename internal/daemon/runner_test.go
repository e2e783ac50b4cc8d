package daemon

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leonletto/comodoro/internal/session"
)

type countingDiscarder struct {
	mu    sync.Mutex
	calls int
}

func (d *countingDiscarder) Discard() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return 0
}

func (d *countingDiscarder) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// fakeClock is a settable wall clock shared by runner and scheduler.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func testConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.Iterations = 1
	cfg.Focus = time.Minute
	cfg.Rest = time.Minute
	cfg.Popup = false
	return cfg
}

// waitActive polls until the runner reports want as the active session.
func waitActive(t *testing.T, r *Runner, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.Active() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Active = %q, want %q", r.Active(), want)
}

func TestRunnerQueuesWhileActive(t *testing.T) {
	launched := time.Unix(1_700_000_000, 0)
	clock := &fakeClock{now: launched.Add(5 * time.Second)}
	scheduler := session.NewScheduler(session.Options{
		TickInterval: 5 * time.Millisecond,
		Now:          clock.Now,
	})
	discarder := &countingDiscarder{}
	r := NewRunner(scheduler, discarder)
	r.now = clock.Now
	defer r.Close()

	first, err := r.Start(testConfig(), launched)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	second, err := r.Start(testConfig(), launched)
	if err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	if first == second {
		t.Fatalf("queued start reused id %q", first)
	}
	if r.Active() != first || r.Pending() != 1 {
		t.Fatalf("Active = %q, Pending = %d; want %q, 1", r.Active(), r.Pending(), first)
	}

	// Jump past the first session's end. The queued one starts its clock
	// on activation, so it does not finish on the same jump.
	clock.Set(launched.Add(time.Hour))
	waitActive(t, r, second)
	time.Sleep(30 * time.Millisecond)
	if r.Active() != second || r.Pending() != 0 {
		t.Fatalf("Active = %q, Pending = %d; want %q, 0", r.Active(), r.Pending(), second)
	}
	if calls := discarder.Calls(); calls != 2 {
		t.Fatalf("Discard called %d times, want 2", calls)
	}

	clock.Set(launched.Add(3 * time.Hour))
	waitActive(t, r, "")
}

func TestRunnerQueueFull(t *testing.T) {
	launched := time.Unix(1_700_000_000, 0)
	scheduler := session.NewScheduler(session.Options{
		TickInterval: time.Hour,
		Now:          func() time.Time { return launched },
	})
	r := NewRunner(scheduler, nil)
	defer r.Close()

	for i := 0; i <= maxPending; i++ {
		if _, err := r.Start(testConfig(), launched); err != nil {
			t.Fatalf("Start %d failed: %v", i+1, err)
		}
	}
	if _, err := r.Start(testConfig(), launched); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Start error = %v, want ErrQueueFull", err)
	}
}

func TestRunnerCloseDropsQueue(t *testing.T) {
	launched := time.Unix(1_700_000_000, 0)
	scheduler := session.NewScheduler(session.Options{
		TickInterval: 10 * time.Millisecond,
		Now:          func() time.Time { return launched.Add(5 * time.Second) },
	})
	r := NewRunner(scheduler, nil)

	if _, err := r.Start(testConfig(), launched); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := r.Start(testConfig(), launched); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}

	r.Close()
	if r.Active() != "" || r.Pending() != 0 {
		t.Fatalf("after Close: Active = %q, Pending = %d", r.Active(), r.Pending())
	}
	if _, err := r.Start(testConfig(), launched); err == nil {
		t.Fatal("Start after Close succeeded")
	}
}

func TestRunnerRejectsInvalidConfig(t *testing.T) {
	r := NewRunner(session.NewScheduler(session.Options{}), nil)
	defer r.Close()

	cfg := testConfig()
	cfg.Iterations = 0
	if _, err := r.Start(cfg, time.Now()); !errors.Is(err, session.ErrConfig) {
		t.Fatalf("Start error = %v, want ErrConfig", err)
	}
	if r.Active() != "" {
		t.Fatal("rejected config left a session active")
	}
}

func TestRunnerFinishFreesSlot(t *testing.T) {
	launched := time.Unix(1_700_000_000, 0)
	scheduler := session.NewScheduler(session.Options{
		TickInterval: 5 * time.Millisecond,
		// Already past focus+rest of the single iteration.
		Now: func() time.Time { return launched.Add(10 * time.Minute) },
	})
	r := NewRunner(scheduler, nil)
	defer r.Close()

	for i := 0; i < 2; i++ {
		id, err := r.Start(testConfig(), launched)
		if err != nil {
			t.Fatalf("Start %d failed: %v", i+1, err)
		}
		if id == "" {
			t.Fatalf("Start %d returned empty id", i+1)
		}
		waitActive(t, r, "")
	}
}
