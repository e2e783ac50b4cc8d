package session

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status labels carried in a Snapshot.
const (
	StatusFocusing = "focusing"
	StatusResting  = "resting"
	StatusPaused   = "Pause"
	StatusStopped  = "stopped"
)

// Snapshot is the human-readable status pushed to a polling client.
type Snapshot struct {
	SessionID  string
	Status     string
	Iteration  int64 // 1-based
	Iterations uint8
	Remaining  time.Duration
	Focus      time.Duration
	Rest       time.Duration
}

// String renders the snapshot in its wire form: one "key: value" per line.
func (s Snapshot) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "session: %s\n", s.SessionID)
	fmt.Fprintf(&b, "status: %s\n", s.Status)
	fmt.Fprintf(&b, "iteration: %d/%d\n", s.Iteration, s.Iterations)
	fmt.Fprintf(&b, "remaining: %s\n", FormatClock(s.Remaining))
	fmt.Fprintf(&b, "focus: %s\n", FormatClock(s.Focus))
	fmt.Fprintf(&b, "rest: %s\n", FormatClock(s.Rest))
	return b.String()
}

// ParseSnapshot reads back the text produced by Snapshot.String.
func ParseSnapshot(text string) (Snapshot, error) {
	var snap Snapshot
	seen := 0
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ": ")
		if !ok {
			continue
		}
		var err error
		switch key {
		case "session":
			snap.SessionID = value
		case "status":
			snap.Status = value
		case "iteration":
			err = parseIteration(value, &snap)
		case "remaining":
			snap.Remaining, err = ParseClock(value)
		case "focus":
			snap.Focus, err = ParseClock(value)
		case "rest":
			snap.Rest, err = ParseClock(value)
		default:
			continue
		}
		if err != nil {
			return Snapshot{}, fmt.Errorf("snapshot field %s: %w", key, err)
		}
		seen++
	}
	if seen == 0 {
		return Snapshot{}, fmt.Errorf("snapshot has no fields")
	}
	return snap, nil
}

func parseIteration(value string, snap *Snapshot) error {
	cur, total, ok := strings.Cut(value, "/")
	if !ok {
		return fmt.Errorf("want i/n, got %q", value)
	}
	i, err := strconv.ParseInt(cur, 10, 64)
	if err != nil {
		return err
	}
	n, err := strconv.ParseUint(total, 10, 8)
	if err != nil {
		return err
	}
	snap.Iteration = i
	snap.Iterations = uint8(n)
	return nil
}
