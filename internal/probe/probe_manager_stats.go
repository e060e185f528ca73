package probe

import (
	"sync"

	"github.com/benbrittain/aether-throughput/internal/shared"
)

// Aggregator keeps the process-wide running totals per configuration id.
// Entries are created lazily on the first recorded outcome and are never
// removed or reset. All access goes through the mutex so a snapshot taken
// concurrently with an update sees either the pre- or post-update value,
// never a torn one.
type Aggregator struct {
	mu    sync.RWMutex
	stats map[uint16]*shared.Stat
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		stats: make(map[uint16]*shared.Stat),
	}
}

// Record counts one settled round trip: sent always, missed only for a
// Missed outcome. Updates to different ids do not interfere.
func (a *Aggregator) Record(id uint16, out shared.Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, exists := a.stats[id]
	if !exists {
		st = &shared.Stat{}
		a.stats[id] = st
	}
	st.Sent++
	if out == shared.OutcomeMissed {
		st.Missed++
	}
}

// Get returns a copy of the stats for one configuration
func (a *Aggregator) Get(id uint16) (shared.Stat, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	st, exists := a.stats[id]
	if !exists {
		return shared.Stat{}, false
	}
	return *st, true
}

// Snapshot returns an independent copy of the full mapping for display
// sinks. The live map is never handed out.
func (a *Aggregator) Snapshot() shared.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	snap := make(shared.Snapshot, len(a.stats))
	for id, st := range a.stats {
		snap[id] = *st
	}
	return snap
}
