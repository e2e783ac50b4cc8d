package main

import (
	"errors"
	"fmt"
	"os"
	goruntime "runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/leonletto/comodoro/internal/cli"
	"github.com/leonletto/comodoro/internal/config"
	"github.com/leonletto/comodoro/internal/paths"
	"github.com/leonletto/comodoro/internal/session"
)

var (
	// Build info (set via ldflags).
	Version = "dev"
	Build   = "unknown"
)

var flagQuiet bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "comodoro",
		Short: "Pomodoro timer daemon",
		Long: `Comodoro runs pomodoro sessions in a background daemon.

Start the daemon once with 'comodoro init', then drive sessions with
start, pause, resume, stop and status. 'comodoro kill' shuts it down.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&flagQuiet, "quiet", false, "Suppress non-essential output")

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("comodoro v{{.Version}} (build: " + Build + ", " + goruntime.Version() + ")\n")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(signalCmd("pause", "Pause the running session", session.SignalPause))
	rootCmd.AddCommand(signalCmd("resume", "Resume a paused session", session.SignalResume))
	rootCmd.AddCommand(signalCmd("stop", "Stop the running session", session.SignalStop))
	rootCmd.AddCommand(killCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(configGroupCmd())
	rootCmd.AddCommand(daemonCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := cli.Hint(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Start the daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := cli.DaemonStart(paths.Resolve())
			if err != nil {
				return err
			}
			if !flagQuiet {
				fmt.Printf("✓ Daemon started (PID %d)\n", pid)
			}
			return nil
		},
	}
}

func startCmd() *cobra.Command {
	var (
		flagConfig      string
		flagFocus       string
		flagRest        string
		flagIterations  uint8
		flagPopup       bool
		flagSound       bool
		flagFocusBanner string
		flagRestBanner  string
		flagFocusAudio  string
		flagRestAudio   string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a pomodoro session",
		Long: `Start a pomodoro session on the running daemon.

Values come from --config, else the user config file, else the defaults
(4 x 25:00 focus / 05:00 rest). Flags given on the command line override
all of them. Durations accept seconds ("1500") or mm:ss ("25:00").

A start sent while a session runs is queued and begins when that session
finishes or is stopped.

Examples:
  comodoro start
  comodoro start --focus 50:00 --rest 10:00 --iterations 2
  comodoro start --config ~/pomodoro-short.toml --sound`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.Resolve(flagConfig)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("focus") {
				if cfg.Focus, err = cli.ParseSeconds(flagFocus); err != nil {
					return fmt.Errorf("--focus: %w", err)
				}
			}
			if flags.Changed("rest") {
				if cfg.Rest, err = cli.ParseSeconds(flagRest); err != nil {
					return fmt.Errorf("--rest: %w", err)
				}
			}
			if flags.Changed("iterations") {
				cfg.Iterations = flagIterations
			}
			if flags.Changed("popup") {
				cfg.Popup = flagPopup
			}
			if flags.Changed("sound") {
				cfg.Sound = flagSound
			}
			if flags.Changed("focus-banner") {
				cfg.FocusBanner = flagFocusBanner
			}
			if flags.Changed("rest-banner") {
				cfg.RestBanner = flagRestBanner
			}
			if flags.Changed("focus-audio") {
				cfg.FocusAudio = config.AudioPath(flagFocusAudio)
			}
			if flags.Changed("rest-audio") {
				cfg.RestAudio = config.AudioPath(flagRestAudio)
			}

			p := paths.Resolve()
			running, busy := cli.ActiveSession(p.StatusAddr)
			if err := cli.Start(p, cfg, time.Now()); err != nil {
				return err
			}

			if flagQuiet {
				return nil
			}
			if busy {
				fmt.Printf("✓ Session queued: starts when %s ends (or is stopped)\n", running.SessionID)
			} else {
				fmt.Printf("✓ Session started: %d x %s focus / %s rest\n",
					cfg.Iterations, session.FormatClock(cfg.Focus), session.FormatClock(cfg.Rest))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagConfig, "config", "", "TOML config file")
	cmd.Flags().StringVar(&flagFocus, "focus", "", "Focus duration (seconds or mm:ss)")
	cmd.Flags().StringVar(&flagRest, "rest", "", "Rest duration (seconds or mm:ss)")
	cmd.Flags().Uint8Var(&flagIterations, "iterations", session.DefaultIterations, "Number of focus/rest cycles")
	cmd.Flags().BoolVar(&flagPopup, "popup", true, "Show desktop notifications")
	cmd.Flags().BoolVar(&flagSound, "sound", false, "Play audio cues")
	cmd.Flags().StringVar(&flagFocusBanner, "focus-banner", session.DefaultFocusBanner, "Banner when a focus phase begins (# is the pomodoro number)")
	cmd.Flags().StringVar(&flagRestBanner, "rest-banner", session.DefaultRestBanner, "Banner when a rest phase begins (# is the pomodoro number)")
	cmd.Flags().StringVar(&flagFocusAudio, "focus-audio", "", "Audio file played when a focus phase ends")
	cmd.Flags().StringVar(&flagRestAudio, "rest-audio", "", "Audio file played when a rest phase ends")

	return cmd
}

func signalCmd(name, short string, sig session.Signal) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.SendSignal(paths.Resolve(), sig); err != nil {
				return err
			}
			if !flagQuiet {
				fmt.Printf("✓ %s sent\n", name)
			}
			return nil
		},
	}
}

func killCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kill",
		Short: "Shut the daemon down",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.Kill(paths.Resolve()); err != nil {
				return err
			}
			if !flagQuiet {
				fmt.Println("✓ Daemon stopping")
			}
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	var (
		flagAttempts int
		flagWait     time.Duration
		flagFormat   string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running session",
		Long: `Wait for the daemon to report the running session.

The daemon pushes a snapshot every tick; status listens for one and gives
up after --attempts waits of --wait each.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := cli.Status(paths.Resolve().StatusAddr, flagAttempts, flagWait)
			if errors.Is(err, cli.ErrNoSession) {
				fmt.Println("No session running")
				return nil
			}
			if err != nil {
				return err
			}

			return cli.WriteStatus(os.Stdout, snap, flagFormat, cli.IsTerminal(os.Stdout))
		},
	}

	cmd.Flags().IntVar(&flagAttempts, "attempts", cli.DefaultStatusAttempts, "How many times to wait for a snapshot")
	cmd.Flags().DurationVar(&flagWait, "wait", cli.DefaultStatusWait, "How long each attempt waits")
	cmd.Flags().StringVarP(&flagFormat, "output", "o", "text", "Output format: text, raw, json or yaml")

	return cmd
}

func configGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and manage configuration",
		Long:  `View and manage the session defaults stored in the TOML config file.`,
	}

	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configInitCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	var flagConfig string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective session configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, source, err := config.Resolve(flagConfig)
			if err != nil {
				return err
			}
			if !flagQuiet {
				fmt.Printf("# source: %s\n", source)
			}
			return config.Write(os.Stdout, cfg)
		},
	}

	cmd.Flags().StringVar(&flagConfig, "config", "", "TOML config file")
	return cmd
}

func configInitCmd() *cobra.Command {
	var flagForce bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := paths.UserConfigFile()
			if err != nil {
				return err
			}
			if err := config.WriteDefault(path, flagForce); err != nil {
				return err
			}
			if !flagQuiet {
				fmt.Printf("✓ Wrote %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagForce, "force", false, "Overwrite an existing file")
	return cmd
}
