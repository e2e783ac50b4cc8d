package notify

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
)

// playerCandidates are tried in order; args precede the file path.
var playerCandidates = []struct {
	name string
	args []string
}{
	{name: "paplay"},
	{name: "pw-play"},
	{name: "aplay", args: []string{"-q"}},
	{name: "afplay"},
	{name: "ffplay", args: []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}},
}

// Player plays audio files.
type Player interface {
	Play(ctx context.Context, path string) error
}

// NewPlayer returns a player backed by the first audio tool found in PATH.
func NewPlayer() Player {
	for _, c := range playerCandidates {
		if path, err := exec.LookPath(c.name); err == nil {
			return &ExecPlayer{Path: path, Args: c.args}
		}
	}
	return unsupportedPlayer{}
}

// ExecPlayer runs an external command per cue.
type ExecPlayer struct {
	Path string
	Args []string
}

// Play starts playback and returns without waiting for it to end, so a long
// clip never holds up the caller.
func (p *ExecPlayer) Play(_ context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("audio file: %w", err)
	}
	args := append(append([]string(nil), p.Args...), path)
	cmd := exec.Command(p.Path, args...) //nolint:gosec // player from PATH lookup, path from session config
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.Path, err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Printf("notify: %s %s: %v", p.Path, path, err)
		}
	}()
	return nil
}

type unsupportedPlayer struct{}

func (unsupportedPlayer) Play(context.Context, string) error {
	return ErrUnsupported
}
