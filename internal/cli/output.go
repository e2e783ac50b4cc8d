package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/leonletto/comodoro/internal/session"
)

// StatusView is a snapshot shaped for machine-readable output.
type StatusView struct {
	Session    string `json:"session" yaml:"session"`
	Status     string `json:"status" yaml:"status"`
	Iteration  int64  `json:"iteration" yaml:"iteration"`
	Iterations uint8  `json:"iterations" yaml:"iterations"`
	Remaining  string `json:"remaining" yaml:"remaining"`
	Focus      string `json:"focus" yaml:"focus"`
	Rest       string `json:"rest" yaml:"rest"`
}

// NewStatusView converts snap, rendering durations as mm:ss.
func NewStatusView(snap session.Snapshot) StatusView {
	return StatusView{
		Session:    snap.SessionID,
		Status:     snap.Status,
		Iteration:  snap.Iteration,
		Iterations: snap.Iterations,
		Remaining:  session.FormatClock(snap.Remaining),
		Focus:      session.FormatClock(snap.Focus),
		Rest:       session.FormatClock(snap.Rest),
	}
}

// WriteStatus writes snap to w in the given format: "text", "raw", "json"
// or "yaml". color only affects text.
func WriteStatus(w io.Writer, snap session.Snapshot, format string, color bool) error {
	switch format {
	case "", "text":
		_, err := io.WriteString(w, FormatStatus(snap, color))
		return err
	case "raw":
		_, err := io.WriteString(w, snap.String())
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(NewStatusView(snap))
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		return enc.Encode(NewStatusView(snap))
	default:
		return fmt.Errorf("unknown output format %q (want text, raw, json or yaml)", format)
	}
}
