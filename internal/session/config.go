package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrConfig marks a session configuration that cannot be run.
var ErrConfig = errors.New("invalid session config")

// Defaults applied when neither a config file nor a flag sets a value.
const (
	DefaultFocus       = 25 * time.Minute
	DefaultRest        = 5 * time.Minute
	DefaultIterations  = 4
	DefaultFocusBanner = "Start of Pomodoro #"
	DefaultRestBanner  = "Start of Rest #"
)

// Config is the immutable description of one session run.
type Config struct {
	Iterations uint8
	Focus      time.Duration
	Rest       time.Duration

	Popup bool
	Sound bool

	FocusBanner string
	RestBanner  string

	// Audio paths are empty when absent.
	FocusAudio string
	RestAudio  string
}

// DefaultConfig returns the configuration used by a bare `start`.
func DefaultConfig() Config {
	return Config{
		Iterations:  DefaultIterations,
		Focus:       DefaultFocus,
		Rest:        DefaultRest,
		Popup:       true,
		FocusBanner: DefaultFocusBanner,
		RestBanner:  DefaultRestBanner,
	}
}

// Validate reports whether the config describes a runnable session.
func (c Config) Validate() error {
	if c.Iterations == 0 {
		return fmt.Errorf("%w: iterations must be at least 1", ErrConfig)
	}
	if c.Focus < 0 || c.Rest < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrConfig)
	}
	if c.focusSeconds()+c.restSeconds() == 0 {
		return fmt.Errorf("%w: focus and rest are both zero", ErrConfig)
	}
	return nil
}

// CycleSeconds is the length of one focus+rest pair in whole seconds.
func (c Config) CycleSeconds() int64 {
	return c.focusSeconds() + c.restSeconds()
}

func (c Config) focusSeconds() int64 { return int64(c.Focus / time.Second) }
func (c Config) restSeconds() int64  { return int64(c.Rest / time.Second) }

// Banner returns the popup text for entering phase p during cycle (0-based).
// Every '#' is replaced by the 1-based cycle number.
func (c Config) Banner(p Phase, cycle int64) string {
	text := c.FocusBanner
	if p == PhaseResting {
		text = c.RestBanner
	}
	return strings.ReplaceAll(text, "#", strconv.FormatInt(cycle+1, 10))
}

// FormatClock renders a duration as mm:ss. Minutes are not wrapped at 60.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// ParseClock parses the mm:ss form written by FormatClock.
func ParseClock(s string) (time.Duration, error) {
	minutes, seconds, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: duration %q is not mm:ss", ErrConfig, s)
	}
	m, err := strconv.ParseUint(minutes, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: duration %q: bad minutes", ErrConfig, s)
	}
	sec, err := strconv.ParseUint(seconds, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: duration %q: bad seconds", ErrConfig, s)
	}
	return time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}
