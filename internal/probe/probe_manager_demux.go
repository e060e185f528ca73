package probe

import (
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

// pollInterval bounds how long the receive loop blocks before rechecking
// the stop channel
const pollInterval = 100 * time.Millisecond

// demux owns all reads from the shared socket when probes run
// concurrently. Inbound datagrams are attributed to the round trip that
// expects them by the full sequence number embedded in the payload; a probe
// never consumes another probe's echo. Datagrams nobody expects are
// dropped.
type demux struct {
	conn net.PacketConn
	stop <-chan struct{}

	mu      sync.Mutex
	waiters map[uint64]chan uint64

	// done is closed on a socket-level failure; err is set first so every
	// blocked waiter can propagate it
	done     chan struct{}
	failOnce sync.Once
	err      error
}

func newDemux(conn net.PacketConn, stop <-chan struct{}) *demux {
	return &demux{
		conn:    conn,
		stop:    stop,
		waiters: make(map[uint64]chan uint64),
		done:    make(chan struct{}),
	}
}

// run is the single receive loop. It exits on stop or on a socket-level
// failure, which it reports to all outstanding waiters.
func (d *demux) run() {
	buf := make([]byte, 64*1024)
	for {
		select {
		case <-d.stop:
			slog.Debug("Stopping receive demultiplexer")
			return
		default:
		}

		if err := d.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			d.fail(err)
			return
		}
		n, _, err := d.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				slog.Debug("Socket closed, stopping receive demultiplexer")
				return
			}
			d.fail(err)
			return
		}

		seq, ok := decodeSeq(buf[:n])
		if !ok {
			slog.Debug("Dropping short datagram", "bytes", n)
			continue
		}

		d.mu.Lock()
		ch, expected := d.waiters[seq]
		d.mu.Unlock()
		if !expected {
			slog.Debug("Dropping unexpected echo", "seq", seq)
			continue
		}
		select {
		case ch <- seq:
		default:
			// Waiter already satisfied; duplicate echo
		}
	}
}

func (d *demux) fail(err error) {
	d.failOnce.Do(func() {
		slog.Error("Receive demultiplexer failed", "error", err)
		d.err = err
		close(d.done)
	})
}

// expect arms a reception slot for one wire sequence number. Must be called
// before the matching send so a fast echo cannot arrive unclaimed.
func (d *demux) expect(seq uint64) *demuxWaiter {
	ch := make(chan uint64, 1)
	d.mu.Lock()
	d.waiters[seq] = ch
	d.mu.Unlock()
	return &demuxWaiter{d: d, seq: seq, ch: ch}
}

type demuxWaiter struct {
	d   *demux
	seq uint64
	ch  chan uint64
}

func (w *demuxWaiter) wait(deadline time.Time) (uint64, error) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case seq := <-w.ch:
		return seq, nil
	case <-w.d.done:
		return 0, w.d.err
	case <-timer.C:
		return 0, os.ErrDeadlineExceeded
	}
}

func (w *demuxWaiter) cancel() {
	w.d.mu.Lock()
	delete(w.d.waiters, w.seq)
	w.d.mu.Unlock()
}
