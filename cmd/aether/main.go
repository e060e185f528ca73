package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbrittain/aether-throughput/internal/config"
	"github.com/benbrittain/aether-throughput/internal/probe"
	"github.com/benbrittain/aether-throughput/internal/responder"
)

func main() {
	args, err := config.ParseArgs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Setup logging
	logFile, err := config.SetupLogging(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logging: %v\n", err)
		os.Exit(1)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	if args.Respond {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		r, err := responder.New(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create responder: %v\n", err)
			os.Exit(1)
		}
		slog.Debug("Starting echo responder", "bind", args.Bind, "metrics_addr", args.MetricsAddr)
		if err := r.Run(ctx); err != nil {
			slog.Error("Responder error", "error", err)
			os.Exit(1)
		}
		slog.Debug("Echo responder stopped")
		return
	}

	sweep := config.DefaultSweep()
	if args.Config != "" {
		var fileRounds uint
		sweep, fileRounds, err = config.LoadSweep(args.Config)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load sweep: %v\n", err)
			os.Exit(1)
		}
		// An explicit --rounds beats the file's value
		if fileRounds > 0 && !args.RoundsSet {
			args.Rounds = fileRounds
		}
	}

	slog.Debug("Starting throughput probe",
		"target", args.Target,
		"mode", args.ModeName(),
		"configurations", len(sweep),
		"rounds", args.Rounds,
	)

	pm, err := probe.NewProbeManager(args, sweep)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create probe manager: %v\n", err)
		os.Exit(1)
	}

	// Set up signal handling for Ctrl+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Run in a goroutine so we can handle signals
	done := make(chan error)
	go func() {
		done <- pm.Run()
	}()

	// Wait for either completion or interrupt
	select {
	case err = <-done:
		// Sweep completed naturally
		if err != nil {
			slog.Error("Probe manager error", "error", err)
			os.Exit(1)
		}
	case <-sigChan:
		// User pressed Ctrl+C
		slog.Debug("Received interrupt signal, stopping...")
		pm.Stop()
		// Wait for Run() to finish cleanup
		if err = <-done; err != nil {
			slog.Error("Error during shutdown", "error", err)
			os.Exit(1)
		}
	}

	// Configurations cut short by transport failures are reported but do
	// not fail the process; the rest of the sweep was still measured
	for id, ferr := range pm.Failures() {
		slog.Warn("Configuration ended early", "config_id", id, "error", ferr)
	}

	slog.Debug("Throughput probe completed")
}
