package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/leonletto/comodoro/internal/paths"
	"github.com/leonletto/comodoro/internal/session"
)

// ErrConfig is session.ErrConfig; config problems and session validation
// failures are the same error kind.
var ErrConfig = session.ErrConfig

// File is the on-disk TOML layout.
type File struct {
	Comodo Comodo `toml:"comodo"`
}

// Comodo is the [comodo] table. Durations are "mm:ss" strings.
type Comodo struct {
	Iterations        int    `toml:"iterations"`
	Focus             string `toml:"focus"`
	Rest              string `toml:"rest"`
	PopupNotification bool   `toml:"popup_notification"`
	SoundNotification bool   `toml:"sound_notification"`
	FocusBanner       string `toml:"focus_notification_banner"`
	RestBanner        string `toml:"rest_notification_banner"`
	FocusAudioPath    string `toml:"focus_audio_notification_path,omitempty"`
	RestAudioPath     string `toml:"rest_audio_notification_path,omitempty"`
}

// Defaults returns the table a missing file or missing keys fall back to.
func Defaults() File {
	return FromSession(session.DefaultConfig())
}

// FromSession converts a session config to its file form.
func FromSession(cfg session.Config) File {
	return File{Comodo: Comodo{
		Iterations:        int(cfg.Iterations),
		Focus:             session.FormatClock(cfg.Focus),
		Rest:              session.FormatClock(cfg.Rest),
		PopupNotification: cfg.Popup,
		SoundNotification: cfg.Sound,
		FocusBanner:       cfg.FocusBanner,
		RestBanner:        cfg.RestBanner,
		FocusAudioPath:    cfg.FocusAudio,
		RestAudioPath:     cfg.RestAudio,
	}}
}

// Load reads and validates the TOML config at path.
func Load(path string) (session.Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304 - user-supplied config path
	if err != nil {
		return session.Config{}, fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return session.Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML text on top of the defaults.
// Audio paths that do not exist on disk are treated as absent.
func Parse(data []byte) (session.Config, error) {
	file := Defaults()
	md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&file)
	if err != nil {
		return session.Config{}, fmt.Errorf("%w: parse toml: %v", ErrConfig, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return session.Config{}, fmt.Errorf("%w: unknown key %s", ErrConfig, undecoded[0])
	}
	return file.Comodo.Session()
}

// Session converts the table into a validated session config.
func (c Comodo) Session() (session.Config, error) {
	if c.Iterations < 1 || c.Iterations > 255 {
		return session.Config{}, fmt.Errorf("%w: iterations %d not in 1..255", ErrConfig, c.Iterations)
	}
	focus, err := session.ParseClock(c.Focus)
	if err != nil {
		return session.Config{}, fmt.Errorf("focus: %w", err)
	}
	rest, err := session.ParseClock(c.Rest)
	if err != nil {
		return session.Config{}, fmt.Errorf("rest: %w", err)
	}

	cfg := session.Config{
		Iterations:  uint8(c.Iterations),
		Focus:       focus,
		Rest:        rest,
		Popup:       c.PopupNotification,
		Sound:       c.SoundNotification,
		FocusBanner: c.FocusBanner,
		RestBanner:  c.RestBanner,
		FocusAudio:  AudioPath(c.FocusAudioPath),
		RestAudio:   AudioPath(c.RestAudioPath),
	}
	if err := cfg.Validate(); err != nil {
		return session.Config{}, err
	}
	return cfg, nil
}

// AudioPath returns path made absolute, or "" when no such file exists.
func AudioPath(path string) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// Write encodes cfg as TOML.
func Write(w io.Writer, cfg session.Config) error {
	if err := toml.NewEncoder(w).Encode(FromSession(cfg)); err != nil {
		return fmt.Errorf("encode toml: %w", err)
	}
	return nil
}

// ErrExists is returned by WriteDefault when the file is already present.
var ErrExists = errors.New("config file already exists")

// WriteDefault writes the default config to path, creating its directory.
// An existing file is left alone unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, session.DefaultConfig()); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Resolve loads the session config for a command. An explicit path must
// exist; otherwise the user config file is used when present, then the
// defaults. The returned source names where the values came from.
func Resolve(explicit string) (session.Config, string, error) {
	if explicit != "" {
		cfg, err := Load(explicit)
		return cfg, explicit, err
	}

	path, err := paths.UserConfigFile()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			cfg, err := Load(path)
			return cfg, path, err
		}
	}
	return session.DefaultConfig(), "defaults", nil
}
