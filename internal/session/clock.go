package session

import "time"

// Phase is the half of a cycle the session is in.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseFocusing
	PhaseResting
)

func (p Phase) String() string {
	switch p {
	case PhaseFocusing:
		return "focusing"
	case PhaseResting:
		return "resting"
	default:
		return "none"
	}
}

// Clock tracks wall time for a run in epoch seconds.
// Elapsed time is now - Start - Paused and never goes below zero.
type Clock struct {
	Start        int64
	Paused       int64
	PauseStarted int64 // meaningful only while the run is pausing
}

// NewClock starts a clock at the instant the client issued the start request.
func NewClock(launchedAt time.Time) Clock {
	return Clock{Start: launchedAt.Unix()}
}

// Elapsed returns the unpaused seconds since Start as of now.
func (c Clock) Elapsed(now int64) int64 {
	elapsed := now - c.Start - c.Paused
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// RunState is the scheduler-local mutable state of one run.
type RunState struct {
	Pausing   bool
	Stopping  bool
	LastPhase Phase
}

// Position is where a run sits inside its schedule.
type Position struct {
	Cycle     int64
	Offset    int64
	Phase     Phase
	Remaining int64 // seconds left in the current phase
	Finished  bool
}

// Locate maps elapsed seconds onto the schedule described by cfg.
// cfg must have passed Validate.
func Locate(cfg Config, elapsed int64) Position {
	cycleLen := cfg.CycleSeconds()
	focus := cfg.focusSeconds()

	pos := Position{
		Cycle:  elapsed / cycleLen,
		Offset: elapsed % cycleLen,
	}
	// offset == focus belongs to rest
	if focus-pos.Offset > 0 {
		pos.Phase = PhaseFocusing
		pos.Remaining = focus - pos.Offset
	} else {
		pos.Phase = PhaseResting
		pos.Remaining = cycleLen - pos.Offset
	}
	pos.Finished = pos.Cycle >= int64(cfg.Iterations)
	return pos
}
