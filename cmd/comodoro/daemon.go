package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/leonletto/comodoro/internal/cli"
	"github.com/leonletto/comodoro/internal/daemon"
	"github.com/leonletto/comodoro/internal/notify"
	"github.com/leonletto/comodoro/internal/paths"
	"github.com/leonletto/comodoro/internal/session"
)

func daemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the comodoro daemon",
	}

	var flagJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := cli.DaemonStatus(paths.Resolve())
			if err != nil {
				return err
			}

			if flagJSON {
				output, _ := json.MarshalIndent(result, "", "  ")
				fmt.Println(string(output))
			} else {
				fmt.Print(cli.FormatDaemonStatus(result))
			}
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&flagJSON, "json", false, "JSON output for scripting")

	cmd.AddCommand(statusCmd)
	cmd.AddCommand(daemonRunCmd())
	return cmd
}

func daemonRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "run",
		Short:  "Run the daemon in the foreground (internal use)",
		Hidden: true, // started by `comodoro init`
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(paths.Resolve())
		},
	}
}

func runDaemon(p paths.Paths) error {
	if err := p.EnsureRuntimeDir(); err != nil {
		return err
	}

	logFile, err := os.OpenFile(p.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600) //nolint:gosec // G304 - path from runtime directory
	if err != nil {
		return fmt.Errorf("failed to open daemon log: %w", err)
	}
	defer func() { _ = logFile.Close() }()
	// Foreground runs keep stderr; detached runs have it pointed at /dev/null.
	log.SetOutput(io.MultiWriter(os.Stderr, logFile))

	var notifier session.Notifier = notify.LogNotifier{}
	desktop, err := notify.NewDesktopNotifier(paths.AppName)
	if err != nil {
		log.Printf("daemon: desktop notifications unavailable, logging them instead: %v", err)
	} else {
		defer func() { _ = desktop.Close() }()
		notifier = desktop
	}

	control := daemon.NewControlChannel(p.ControlSocket)
	scheduler := session.NewScheduler(session.Options{
		Notifier:  notifier,
		Player:    notify.NewPlayer(),
		Publisher: daemon.NewStatusReporter(p.StatusAddr),
		Signals:   control,
	})
	runner := daemon.NewRunner(scheduler, control)
	server := daemon.NewServer(p.CommandSocket)

	lifecycle := daemon.NewLifecycle(server, control, runner, p.PIDFile)
	lifecycle.SetLockFile(p.LockFile)
	lifecycle.SetInfo(p.RuntimeDir, Version)

	log.Printf("daemon: starting in %s (status %s)", p.RuntimeDir, p.StatusAddr)
	return lifecycle.Run(context.Background())
}
