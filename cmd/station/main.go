// Command station is the station runtime's command-line entry point. It
// exposes exactly two subcommands: run-station, which drives the
// scan-to-iteration loop against real instruments, and
// run-config-update, which applies one on-disk YAML config mirror
// straight to ConfigStore without starting the scan loop — the path an
// operator or CI job uses to push a revision out of band from the
// filesystem watcher.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Exit codes per the CLI surface this binary implements.
const (
	exitSuccess       = 0
	exitStationFatal  = 1
	exitMisconfigured = 2
	exitUserInterrupt = 130
)

// errMisconfiguration marks a failure as a config/flag problem (exit 2)
// rather than a runtime fault (exit 1) — wrap a returned error with this
// sentinel via fmt.Errorf("...: %w", errMisconfiguration) to route it.
var errMisconfiguration = errors.New("misconfiguration")

var configFile string

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := &cobra.Command{
		Use:   "station",
		Short: "station runtime: drives a test station's scan-to-iteration loop",
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a JSON config file (optional, env vars and defaults apply otherwise)")

	rootCmd.AddCommand(
		runStationCmd(),
		runConfigUpdateCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, context.Canceled):
		return exitUserInterrupt
	case errors.Is(err, errMisconfiguration):
		fmt.Fprintln(os.Stderr, err)
		return exitMisconfigured
	default:
		fmt.Fprintln(os.Stderr, err)
		return exitStationFatal
	}
}
