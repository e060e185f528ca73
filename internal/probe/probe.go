package probe

import (
	"fmt"
	"net"
	"time"

	"github.com/benbrittain/aether-throughput/internal/shared"
)

// Probe drives the bounded sequence of round trips for one configuration.
// A Probe runs once and is not restartable; construct a fresh one to
// measure again.
type Probe struct {
	config  shared.RunConfig
	conn    net.PacketConn
	target  net.Addr
	rounds  uint64
	timeout time.Duration

	// seqBase is folded into every wire sequence number. Zero in the
	// serial path; carries the configuration id in the upper bits when
	// probes share the socket concurrently.
	seqBase   uint64
	waiterFor func(seq uint64) waiter

	stop <-chan struct{}
}

// newProbe derives the per-message timeout from the configured rate once;
// it is shared by every round trip in the run.
func newProbe(cfg shared.RunConfig, conn net.PacketConn, target net.Addr, rounds uint64, stop <-chan struct{}) *Probe {
	p := &Probe{
		config:  cfg,
		conn:    conn,
		target:  target,
		rounds:  rounds,
		timeout: cfg.Timeout(),
		stop:    stop,
	}
	p.waiterFor = func(uint64) waiter {
		return &socketWaiter{conn: conn}
	}
	return p
}

// Run executes the round trips in strict sequence order, calling record
// after each settled outcome. Round trip i+1 does not begin until i has
// finalized. A transport failure terminates the sequence early; the
// remaining iterations are not attempted.
func (p *Probe) Run(record func(seq uint64, out shared.Outcome)) error {
	for seq := uint64(0); seq < p.rounds; seq++ {
		select {
		case <-p.stop:
			return nil
		default:
		}
		out, err := p.roundTrip(p.seqBase | seq)
		if err != nil {
			return fmt.Errorf("round trip %d: %w", seq, err)
		}
		record(seq, out)
	}
	return nil
}
