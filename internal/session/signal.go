package session

// Signal is an out-of-band control event steering a running session.
type Signal int

const (
	SignalPause Signal = iota + 1
	SignalResume
	SignalStop
)

func (s Signal) String() string {
	switch s {
	case SignalPause:
		return "pause"
	case SignalResume:
		return "resume"
	case SignalStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Apply folds one control signal into the run state at time now.
// Pause while pausing and Resume while running are no-ops.
func Apply(state *RunState, clock *Clock, sig Signal, now int64) {
	switch sig {
	case SignalPause:
		if !state.Pausing {
			clock.PauseStarted = now
			state.Pausing = true
		}
	case SignalResume:
		if state.Pausing {
			if gap := now - clock.PauseStarted; gap > 0 {
				clock.Paused += gap
			}
			state.Pausing = false
		}
	case SignalStop:
		state.Stopping = true
	}
}
