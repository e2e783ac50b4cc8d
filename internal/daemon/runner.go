package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/leonletto/comodoro/internal/session"
	"github.com/leonletto/comodoro/internal/wire"
)

// ErrQueueFull is returned when too many starts are waiting behind the
// running session.
var ErrQueueFull = errors.New("start queue full")

// maxPending bounds starts queued behind the running session.
const maxPending = 16

// Discarder drops control signals queued while no session was running.
type Discarder interface {
	Discard() int
}

// Runner runs one session at a time. A start that arrives while a session
// runs waits in a queue and begins when the current session finishes or is
// stopped.
type Runner struct {
	scheduler *session.Scheduler
	control   Discarder
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	active  string
	pending []*session.Run
	wg      sync.WaitGroup
}

// NewRunner creates a runner driving scheduler. control may be nil.
func NewRunner(scheduler *session.Scheduler, control Discarder) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		scheduler: scheduler,
		control:   control,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// HandleStart is the Handler for wire.TagStart.
func (r *Runner) HandleStart(_ context.Context, req wire.Request) error {
	_, err := r.Start(req.Config, req.LaunchedAt)
	return err
}

// Start launches a run, or queues it behind the active one, and returns
// its id. A bad config rejects only this request.
func (r *Runner) Start(cfg session.Config, launchedAt time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx.Err() != nil {
		return "", fmt.Errorf("runner closed")
	}

	id := session.NewID(r.now())
	run, err := session.NewRun(id, cfg, launchedAt)
	if err != nil {
		return "", err
	}

	if r.active != "" {
		if len(r.pending) >= maxPending {
			return "", fmt.Errorf("%w: %d waiting behind %s", ErrQueueFull, len(r.pending), r.active)
		}
		r.pending = append(r.pending, run)
		log.Printf("daemon: %s queued behind %s", id, r.active)
		return id, nil
	}

	r.activateLocked(run)
	r.wg.Add(1)
	go r.run(run)
	return id, nil
}

// activateLocked marks run active and drops control signals sent before it.
func (r *Runner) activateLocked(run *session.Run) {
	r.active = run.ID
	if r.control != nil {
		if n := r.control.Discard(); n > 0 {
			log.Printf("daemon: discarded %d control signal(s) sent before %s", n, run.ID)
		}
	}
}

// run drives run, then every start queued behind it, until the queue is
// empty or the runner is closed.
func (r *Runner) run(run *session.Run) {
	defer r.wg.Done()

	for run != nil {
		outcome := r.scheduler.Run(r.ctx, run)

		r.mu.Lock()
		r.active = ""
		run = nil
		if outcome != session.OutcomeCanceled && r.ctx.Err() == nil && len(r.pending) > 0 {
			run = r.pending[0]
			r.pending = r.pending[1:]
			// Time spent waiting in the queue is not session time.
			run.Clock = session.NewClock(r.now())
			r.activateLocked(run)
		}
		r.mu.Unlock()
	}
}

// Active returns the id of the running session, or "".
func (r *Runner) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Pending returns how many starts wait behind the active session.
func (r *Runner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Close cancels the active run, drops queued starts and waits for the
// run goroutine to return.
func (r *Runner) Close() {
	r.mu.Lock()
	r.cancel()
	r.pending = nil
	r.mu.Unlock()
	r.wg.Wait()
}
