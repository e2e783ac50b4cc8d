package session

import (
	"context"
	"log"
	"time"
)

// DefaultTickInterval bounds how quickly a run reacts to control signals.
const DefaultTickInterval = 250 * time.Millisecond

// Notification text shared by every run.
const (
	NotifySummary = "comodoro:pomodoro"
	EndOfSession  = "End of Session!"
)

// Notifier shows a desktop popup.
type Notifier interface {
	Notify(ctx context.Context, summary, body string) error
}

// Player plays an audio cue from a file path.
type Player interface {
	Play(ctx context.Context, path string) error
}

// Publisher delivers status snapshots. Delivery is best-effort.
type Publisher interface {
	Publish(ctx context.Context, snap Snapshot)
}

// SignalSource yields the control signals that arrived since the last call,
// in arrival order. It must never block.
type SignalSource interface {
	Drain() []Signal
}

// Outcome is how a run (or one step of it) ended.
type Outcome int

const (
	OutcomeRunning Outcome = iota
	OutcomeFinished
	OutcomeStopped
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRunning:
		return "running"
	case OutcomeFinished:
		return "finished"
	case OutcomeStopped:
		return "stopped"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Run is everything owned by a single session run.
type Run struct {
	ID     string
	Config Config
	Clock  Clock
	State  RunState
}

// NewRun validates cfg and prepares a run whose clock starts at launchedAt.
func NewRun(id string, cfg Config, launchedAt time.Time) (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Run{
		ID:     id,
		Config: cfg,
		Clock:  NewClock(launchedAt),
	}, nil
}

// Options wires a Scheduler to its collaborators. Nil collaborators are
// replaced with no-ops.
type Options struct {
	TickInterval time.Duration
	Now          func() time.Time
	Notifier     Notifier
	Player       Player
	Publisher    Publisher
	Signals      SignalSource
}

// Scheduler drives runs tick by tick.
type Scheduler struct {
	opts Options
}

// NewScheduler creates a Scheduler with the provided options.
func NewScheduler(opts Options) *Scheduler {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Player == nil {
		opts.Player = nopPlayer{}
	}
	if opts.Publisher == nil {
		opts.Publisher = nopPublisher{}
	}
	if opts.Signals == nil {
		opts.Signals = nopSignals{}
	}
	return &Scheduler{opts: opts}
}

// Run ticks until the run finishes, is stopped, or ctx is canceled.
func (s *Scheduler) Run(ctx context.Context, run *Run) Outcome {
	log.Printf("session %s: started (iterations=%d focus=%s rest=%s)",
		run.ID, run.Config.Iterations, FormatClock(run.Config.Focus), FormatClock(run.Config.Rest))

	timer := time.NewTimer(s.opts.TickInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("session %s: canceled", run.ID)
			return OutcomeCanceled
		case <-timer.C:
		}

		outcome := s.Step(ctx, run, s.opts.Signals.Drain(), s.opts.Now())
		if outcome != OutcomeRunning {
			log.Printf("session %s: %s", run.ID, outcome)
			return outcome
		}
		timer.Reset(s.opts.TickInterval)
	}
}

// Step performs one tick at wall time now with the signals drained for it.
func (s *Scheduler) Step(ctx context.Context, run *Run, signals []Signal, now time.Time) Outcome {
	nowSec := now.Unix()
	for _, sig := range signals {
		Apply(&run.State, &run.Clock, sig, nowSec)
	}

	if run.State.Stopping {
		snap := s.snapshot(run, Locate(run.Config, run.Clock.Elapsed(s.frozenNow(run, nowSec))))
		snap.Status = StatusStopped
		s.opts.Publisher.Publish(ctx, snap)
		return OutcomeStopped
	}

	if run.State.Pausing {
		snap := s.snapshot(run, Locate(run.Config, run.Clock.Elapsed(run.Clock.PauseStarted)))
		snap.Status = StatusPaused
		s.opts.Publisher.Publish(ctx, snap)
		return OutcomeRunning
	}

	pos := Locate(run.Config, run.Clock.Elapsed(nowSec))
	if pos.Finished {
		s.finish(ctx, run)
		return OutcomeFinished
	}

	if pos.Phase != run.State.LastPhase {
		s.enterPhase(ctx, run, pos)
	}

	s.opts.Publisher.Publish(ctx, s.snapshot(run, pos))
	run.State.LastPhase = pos.Phase
	return OutcomeRunning
}

// frozenNow is the instant the clock reads: the pause start while pausing.
func (s *Scheduler) frozenNow(run *Run, now int64) int64 {
	if run.State.Pausing {
		return run.Clock.PauseStarted
	}
	return now
}

func (s *Scheduler) enterPhase(ctx context.Context, run *Run, pos Position) {
	cfg := run.Config
	if cfg.Popup {
		s.notify(ctx, run, cfg.Banner(pos.Phase, pos.Cycle))
	}
	// The cue belongs to the phase being left: entering rest plays the
	// focus sound, entering focus plays the rest sound.
	if cfg.Sound {
		switch run.State.LastPhase {
		case PhaseFocusing:
			s.play(ctx, run, cfg.FocusAudio)
		case PhaseResting:
			s.play(ctx, run, cfg.RestAudio)
		}
	}
}

func (s *Scheduler) finish(ctx context.Context, run *Run) {
	if run.Config.Popup {
		s.notify(ctx, run, EndOfSession)
	}
	if run.Config.Sound {
		s.play(ctx, run, run.Config.RestAudio)
	}
}

func (s *Scheduler) notify(ctx context.Context, run *Run, body string) {
	if err := s.opts.Notifier.Notify(ctx, NotifySummary, body); err != nil {
		log.Printf("session %s: notify failed: %v", run.ID, err)
	}
}

func (s *Scheduler) play(ctx context.Context, run *Run, path string) {
	if path == "" {
		return
	}
	if err := s.opts.Player.Play(ctx, path); err != nil {
		log.Printf("session %s: audio cue %s failed: %v", run.ID, path, err)
	}
}

func (s *Scheduler) snapshot(run *Run, pos Position) Snapshot {
	iteration := pos.Cycle + 1
	if iteration > int64(run.Config.Iterations) {
		iteration = int64(run.Config.Iterations)
	}
	status := StatusFocusing
	if pos.Phase == PhaseResting {
		status = StatusResting
	}
	return Snapshot{
		SessionID:  run.ID,
		Status:     status,
		Iteration:  iteration,
		Iterations: run.Config.Iterations,
		Remaining:  time.Duration(pos.Remaining) * time.Second,
		Focus:      run.Config.Focus,
		Rest:       run.Config.Rest,
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, string) error { return nil }

type nopPlayer struct{}

func (nopPlayer) Play(context.Context, string) error { return nil }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Snapshot) {}

type nopSignals struct{}

func (nopSignals) Drain() []Signal { return nil }
