package shared

import (
	"fmt"
	"time"
)

// Wire format: the first SeqBytes of every datagram carry the sequence
// number as an unsigned 64-bit little-endian integer, the rest is padding.
const (
	SeqBytes    = 8
	PaddingByte = 0xff
)

// RunConfig identifies one sweep entry: a target send rate and a payload
// size. IDs are assigned by enumeration order at startup and never change.
type RunConfig struct {
	ID          uint16  `json:"id"`
	Hertz       float64 `json:"hertz"`
	PayloadSize int     `json:"payload_size"`
}

// Timeout derives the per-message response window from the target rate.
// One message per 1/hertz seconds; the window is the full send interval.
func (c RunConfig) Timeout() time.Duration {
	return time.Duration(float64(time.Second) / c.Hertz)
}

func (c RunConfig) Validate() error {
	if c.Hertz <= 0 {
		return fmt.Errorf("rate must be greater than zero, got %g", c.Hertz)
	}
	if c.PayloadSize < SeqBytes {
		return fmt.Errorf("payload size must be at least %d bytes, got %d", SeqBytes, c.PayloadSize)
	}
	return nil
}

// Label returns the configuration identity used by display sinks
func (c RunConfig) Label() string {
	return fmt.Sprintf("%ghz/%dB", c.Hertz, c.PayloadSize)
}

// Outcome classifies a single round trip
type Outcome int

const (
	// OutcomeDelivered means a matching echo arrived within the timeout
	OutcomeDelivered Outcome = iota
	// OutcomeMissed means no matching echo arrived before the timer
	// elapsed, including late and mismatched echoes
	OutcomeMissed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeMissed:
		return "missed"
	default:
		return "unknown"
	}
}

// Stat holds the running totals for one configuration. Sent counts every
// round trip attempted; Missed counts the Missed outcomes. Missed never
// exceeds Sent.
type Stat struct {
	Sent   uint `json:"sent"`
	Missed uint `json:"missed"`
}

// LossPct returns the percentage of round trips that were missed
func (s Stat) LossPct() float64 {
	if s.Sent == 0 {
		return 0
	}
	return float64(s.Missed) / float64(s.Sent) * 100
}

// Snapshot is a point-in-time copy of the per-configuration stats. Sinks
// receive snapshots, never the live aggregator state, so a render can
// never observe a write in progress.
type Snapshot map[uint16]Stat

// OutputInfo carries the static run identity consumed by display sinks
type OutputInfo struct {
	Target   string
	Rounds   uint64
	Parallel bool
	Configs  []RunConfig
}
