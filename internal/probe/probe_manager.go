package probe

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/jackpal/gateway"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/benbrittain/aether-throughput/internal/config"
	"github.com/benbrittain/aether-throughput/internal/output"
	"github.com/benbrittain/aether-throughput/internal/shared"
)

// demuxIDShift places the configuration id in the upper bits of the wire
// sequence number when probes share the socket concurrently, so every
// outstanding round trip expects a distinct value
const demuxIDShift = 48

type outputConfig struct {
	json     bool
	jsonFile string
}

// ProbeManager owns the shared socket and drives the configuration sweep,
// recording every outcome into the aggregator and fanning snapshots out to
// the registered display sinks.
type ProbeManager struct {
	// Coordination
	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once

	// Shared resources
	conn   *net.UDPConn
	target *net.UDPAddr

	// Sweep configuration
	sweep    []shared.RunConfig
	rounds   uint64
	parallel bool

	agg          *Aggregator
	outputConfig outputConfig

	failMu   sync.Mutex
	failures map[uint16]error
}

// NewProbeManager binds the local endpoint and prepares the sweep. Any
// error here is fatal before measurement begins.
func NewProbeManager(args config.Args, sweep []shared.RunConfig) (*ProbeManager, error) {
	for _, cfg := range sweep {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("configuration %d: %w", cfg.ID, err)
		}
	}

	target, err := net.ResolveUDPAddr("udp", args.Target)
	if err != nil {
		return nil, fmt.Errorf("resolve target %q: %w", args.Target, err)
	}

	laddr, err := resolveBindAddr(args.Bind)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("bind %v: %w", laddr, err)
	}
	slog.Debug("Bound local endpoint", "local", conn.LocalAddr(), "target", target)

	pm := &ProbeManager{
		stop:     make(chan struct{}),
		conn:     conn,
		target:   target,
		sweep:    sweep,
		rounds:   uint64(args.Rounds),
		parallel: args.Parallel,
		agg:      NewAggregator(),
		outputConfig: outputConfig{
			json:     args.Json,
			jsonFile: args.JsonFile,
		},
		failures: make(map[uint16]error),
	}
	return pm, nil
}

// resolveBindAddr turns the --bind flag into a local UDP address. With no
// flag, the interface holding the default route is used with an ephemeral
// port, falling back to the wildcard address.
func resolveBindAddr(bind string) (*net.UDPAddr, error) {
	if bind != "" {
		addr, err := net.ResolveUDPAddr("udp", bind)
		if err != nil {
			return nil, fmt.Errorf("resolve bind address %q: %w", bind, err)
		}
		return addr, nil
	}
	ip, err := gateway.DiscoverInterface()
	if err != nil {
		slog.Debug("Default interface discovery failed, binding to wildcard", "error", err)
		return &net.UDPAddr{}, nil
	}
	return &net.UDPAddr{IP: ip}, nil
}

// Run executes the sweep to completion, or until the user quits the TUI.
// Probe failures are isolated to their configuration; Run only returns an
// error for process-level problems.
func (pm *ProbeManager) Run() error {
	tui, om := pm.createOutputs()

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		if pm.parallel {
			pm.runParallel(om)
		} else {
			pm.runSerial(om)
		}
	}()

	if tui != nil {
		select {
		case <-sweepDone:
			slog.Debug("Sweep completed, signaling stop for cleanup")
			pm.stopOnce.Do(func() { close(pm.stop) })
		case <-tui.QuitChan():
			slog.Debug("User quit TUI, stopping sweep")
			pm.stopOnce.Do(func() { close(pm.stop) })
			<-sweepDone
		}
	} else {
		<-sweepDone
		pm.stopOnce.Do(func() { close(pm.stop) })
	}

	// Wait for the receive loop before closing outputs
	pm.wg.Wait()
	om.Close()
	return nil
}

// Stop terminates the sweep and releases the socket
func (pm *ProbeManager) Stop() {
	pm.stopOnce.Do(func() {
		slog.Debug("Stopping probe manager")
		close(pm.stop)
	})
	pm.wg.Wait()
	pm.conn.Close()
}

// Failures returns the per-configuration transport failures observed so far
func (pm *ProbeManager) Failures() map[uint16]error {
	pm.failMu.Lock()
	defer pm.failMu.Unlock()
	out := make(map[uint16]error, len(pm.failures))
	for id, err := range pm.failures {
		out[id] = err
	}
	return out
}

func (pm *ProbeManager) setFailure(id uint16, err error) {
	pm.failMu.Lock()
	pm.failures[id] = err
	pm.failMu.Unlock()
}

func (pm *ProbeManager) stopped() bool {
	select {
	case <-pm.stop:
		return true
	default:
		return false
	}
}

// recorder feeds one configuration's outcomes into the aggregator and
// pushes a fresh snapshot to the sinks after each one
func (pm *ProbeManager) recorder(id uint16, om *output.OutputManager) func(uint64, shared.Outcome) {
	return func(_ uint64, out shared.Outcome) {
		pm.agg.Record(id, out)
		om.UpdateStats(id, pm.agg.Snapshot())
	}
}

// runSerial drives one configuration at a time in enumeration order; a
// configuration's round trips complete before the next one starts. A
// transport failure ends only the offending configuration's run.
func (pm *ProbeManager) runSerial(om *output.OutputManager) {
	for _, cfg := range pm.sweep {
		if pm.stopped() {
			return
		}
		p := newProbe(cfg, pm.conn, pm.target, pm.rounds, pm.stop)
		if err := p.Run(pm.recorder(cfg.ID, om)); err != nil {
			// Socket errors during shutdown are not failures
			if pm.stopped() {
				return
			}
			slog.Error("Probe run failed", "config_id", cfg.ID, "error", err)
			pm.setFailure(cfg.ID, err)
			om.CompleteRun(cfg.ID, err)
			continue
		}
		if pm.stopped() {
			return
		}
		om.CompleteRun(cfg.ID, nil)
	}
}

// runParallel drives all configurations concurrently over the shared
// socket behind the receive demultiplexer
func (pm *ProbeManager) runParallel(om *output.OutputManager) {
	d := newDemux(pm.conn, pm.stop)
	pm.wg.Add(1)
	go func() {
		defer pm.wg.Done()
		d.run()
	}()

	g := new(errgroup.Group)
	for _, cfg := range pm.sweep {
		p := newProbe(cfg, pm.conn, pm.target, pm.rounds, pm.stop)
		p.seqBase = uint64(cfg.ID) << demuxIDShift
		p.waiterFor = func(seq uint64) waiter { return d.expect(seq) }
		g.Go(func() error {
			if err := p.Run(pm.recorder(p.config.ID, om)); err != nil {
				if pm.stopped() {
					return nil
				}
				slog.Error("Probe run failed", "config_id", p.config.ID, "error", err)
				pm.setFailure(p.config.ID, err)
				om.CompleteRun(p.config.ID, err)
				return nil
			}
			if !pm.stopped() {
				om.CompleteRun(p.config.ID, nil)
			}
			return nil
		})
	}
	g.Wait()
}

// createOutputs selects and initializes the display sinks: JSON on stdout
// when requested, the TUI on a terminal, plain line output otherwise.
// Returns the TUI instance (may be nil) and the output manager.
func (pm *ProbeManager) createOutputs() (*output.TUIOutput, *output.OutputManager) {
	om := &output.OutputManager{}

	info := shared.OutputInfo{
		Target:   pm.target.String(),
		Rounds:   pm.rounds,
		Parallel: pm.parallel,
		Configs:  pm.sweep,
	}

	var tui *output.TUIOutput
	switch {
	case pm.outputConfig.json:
		jsonOut, err := output.NewJSONOutput("", info)
		if err == nil {
			om.Register(jsonOut)
		}
	case term.IsTerminal(int(os.Stdout.Fd())):
		tui = output.NewTUIOutput(info)
		tui.Start()
		om.Register(tui)
	default:
		om.Register(output.NewPlainOutput(os.Stdout, info))
	}

	// JSON file output runs alongside whichever sink owns the terminal
	if pm.outputConfig.jsonFile != "" {
		jsonOut, err := output.NewJSONOutput(pm.outputConfig.jsonFile, info)
		if err == nil {
			om.Register(jsonOut)
		} else {
			slog.Warn("Failed to create JSON file output", "error", err)
		}
	}

	return tui, om
}
