package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/leonletto/comodoro/internal/session"
)

// ParseSeconds reads a duration flag given either as whole seconds ("1500")
// or as a clock ("25:00").
func ParseSeconds(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if strings.Contains(value, ":") {
		return session.ParseClock(value)
	}
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: duration %q: want seconds or mm:ss", session.ErrConfig, value)
	}
	return time.Duration(n) * time.Second, nil
}
