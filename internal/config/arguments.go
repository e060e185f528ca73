package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/benbrittain/aether-throughput/internal/version"
)

type Args struct {
	Target string
	Bind   string

	// Sweep
	Config    string
	Rounds    uint
	RoundsSet bool // --rounds given explicitly; wins over a file's rounds
	Parallel  bool

	// Responder mode
	Respond     bool
	MetricsAddr string
	MaxPPS      float64
	IdleTimeout time.Duration

	// Output
	Json     bool   // output json to stdout
	JsonFile string // output json to file while showing TUI

	// Logging
	Log      string // log file path, empty means no logging
	LogLevel string // log level: debug, info, warn, error
}

func ParseArgs() (Args, error) {
	var args Args
	var showVersion bool

	// Set custom usage message
	flag.Usage = func() {
		println("Aether - UDP round-trip throughput probe")
		println()
		println("Sweeps rate and payload size combinations against a UDP echo")
		println("responder and reports delivered versus missed round trips live.")
		println()
		println("Usage:")
		println("  aether [OPTIONS] TARGET")
		println("  aether --respond --bind ADDR [OPTIONS]")
		println()
		println("Examples:")
		println("  aether 192.0.2.10:7777               # Probe with the default sweep")
		println("  aether -p -j 192.0.2.10:7777         # Parallel sweep, JSON to stdout")
		println("  aether -c sweep.yaml 192.0.2.10:7777 # Sweep from a config file")
		println("  aether --respond --bind :7777        # Run the echo responder")
		println()
		println("Options:")
		flag.PrintDefaults()
		println()
		println("Documentation: https://github.com/benbrittain/aether-throughput")
		println("Report issues: https://github.com/benbrittain/aether-throughput/issues")
	}

	flag.BoolVarP(&showVersion, "version", "v", false, "Show version information")
	flag.StringVarP(&args.Bind, "bind", "b", "", "Local address to bind (default: interface facing the default route)")
	flag.StringVarP(&args.Config, "config", "c", "", "Sweep configuration file (YAML)")
	flag.UintVarP(&args.Rounds, "rounds", "n", 100, "Round trips per configuration")
	flag.BoolVarP(&args.Parallel, "parallel", "p", false, "Run all configurations concurrently")

	flag.BoolVar(&args.Respond, "respond", false, "Run as echo responder instead of probing")
	flag.StringVar(&args.MetricsAddr, "metrics-addr", "", "Responder Prometheus metrics address (empty = disabled)")
	flag.Float64Var(&args.MaxPPS, "max-pps", 0, "Responder echo rate cap in packets per second (0 = unlimited)")
	flag.DurationVar(&args.IdleTimeout, "idle-timeout", time.Minute, "Responder peer table idle expiry")

	flag.StringVar(&args.JsonFile, "json-file", "", "Write JSON output to file (keeps TUI)")
	flag.BoolVarP(&args.Json, "json", "j", false, "Write JSON output to stdout (disables TUI)")
	flag.StringVar(&args.Log, "log-file", "", "Diagnostic log file (empty = no logging)")
	flag.StringVarP(&args.LogLevel, "log-level", "l", "error", "Log level: debug, info, warn, error")
	flag.Parse()

	// Handle version flag
	if showVersion {
		fmt.Println(version.FullVersion())
		os.Exit(0)
	}

	args.RoundsSet = flag.CommandLine.Changed("rounds")
	args.Target = flag.Arg(0)

	switch {
	case args.Respond && args.Target != "":
		return args, errors.New("cannot probe a target in --respond mode")
	case args.Respond && args.Bind == "":
		return args, errors.New("--respond requires --bind")
	case args.Respond && args.Config != "":
		return args, errors.New("--config has no effect in --respond mode")
	case !args.Respond && args.Target == "":
		return args, errors.New("target is required")
	case args.Json && args.JsonFile != "":
		return args, errors.New("cannot use both --json and --json-file")
	case args.Rounds == 0:
		return args, errors.New("rounds must be greater than zero")
	case args.MaxPPS < 0:
		return args, errors.New("max-pps must not be negative")
	case args.IdleTimeout <= 0:
		return args, errors.New("idle-timeout must be greater than zero")
	}

	return args, nil
}

// ModeName returns the operating mode based on args
func (a Args) ModeName() string {
	if a.Respond {
		return "responder"
	}
	if a.Parallel {
		return "parallel probe"
	}
	return "serial probe"
}
