package probe

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/benbrittain/aether-throughput/internal/shared"
)

// waiter is one armed reception slot for a single round trip. The serial
// path reads the shared socket directly; the parallel path is fed by the
// receive demultiplexer.
type waiter interface {
	// wait blocks until an echoed sequence number arrives or the deadline
	// passes. A deadline pass is reported as os.ErrDeadlineExceeded.
	wait(deadline time.Time) (uint64, error)
	// cancel releases the slot once the round trip settles
	cancel()
}

// errShortEcho marks an inbound datagram too short to carry a sequence
// number. It spends the round trip's single receive without matching.
var errShortEcho = errors.New("echo shorter than sequence header")

// socketWaiter reads echoes straight off the socket. Only one round trip
// may use the socket at a time, which the serial driver guarantees.
type socketWaiter struct {
	conn net.PacketConn
}

func (w *socketWaiter) wait(deadline time.Time) (uint64, error) {
	if err := w.conn.SetReadDeadline(deadline); err != nil {
		return 0, fmt.Errorf("set read deadline: %w", err)
	}
	// The kernel truncates the rest of the datagram; only the leading
	// header matters
	buf := make([]byte, shared.SeqBytes)
	n, _, err := w.conn.ReadFrom(buf)
	if err != nil {
		return 0, err
	}
	seq, ok := decodeSeq(buf[:n])
	if !ok {
		return 0, errShortEcho
	}
	return seq, nil
}

func (w *socketWaiter) cancel() {}

type exchangeResult struct {
	seq uint64
	err error
}

// roundTrip performs exactly one probe for wireSeq: send the payload, then
// race the echo against the timeout timer. The timer is the deciding arm: a
// matching echo is recorded but only finalizes as Delivered once the timer
// elapses, and an echo that arrives on the boundary has lost the race.
// Timeouts and mismatches are normal outcomes; only transport failures
// return an error.
func (p *Probe) roundTrip(wireSeq uint64) (shared.Outcome, error) {
	payload, err := encodePayload(wireSeq, p.config.PayloadSize)
	if err != nil {
		return shared.OutcomeMissed, err
	}

	// Arm reception before the send so a fast echo cannot slip past
	w := p.waiterFor(wireSeq)
	defer w.cancel()

	deadline := time.Now().Add(p.timeout)
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	results := make(chan exchangeResult, 1)
	go func() {
		if _, err := p.conn.WriteTo(payload, p.target); err != nil {
			results <- exchangeResult{err: fmt.Errorf("send: %w", err)}
			return
		}
		seq, err := w.wait(deadline)
		results <- exchangeResult{seq: seq, err: err}
	}()

	matched := false
	settled := false
	for {
		select {
		case <-timer.C:
			if !settled {
				// Join the exchange; its deadline lands with the timer
				res := <-results
				if isFatal(res.err) {
					return shared.OutcomeMissed, res.err
				}
			}
			if matched {
				return shared.OutcomeDelivered, nil
			}
			return shared.OutcomeMissed, nil
		case res := <-results:
			settled = true
			switch {
			case res.err == nil && res.seq == wireSeq:
				// Keep racing the timer; Delivered is only final once it
				// elapses
				matched = true
			case res.err == nil:
				// Mismatched echo spends the single receive for this round
				// trip; whatever was recorded stands when the timer fires
				slog.Debug("Sequence mismatch", "sent", wireSeq, "received", res.seq)
			case isFatal(res.err):
				return shared.OutcomeMissed, res.err
			}
			// No usable echo within the window otherwise; wait out the timer
		}
	}
}

// isFatal separates transport failures from the benign ends of an exchange
// (window expiry, malformed echo)
func isFatal(err error) bool {
	return err != nil &&
		!errors.Is(err, os.ErrDeadlineExceeded) &&
		!errors.Is(err, errShortEcho)
}
