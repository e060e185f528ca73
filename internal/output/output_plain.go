package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/benbrittain/aether-throughput/internal/shared"
)

// PlainOutput renders one line per stat update, for pipes and dumb terminals
type PlainOutput struct {
	mu      sync.Mutex
	w       io.Writer
	configs map[uint16]shared.RunConfig
}

func NewPlainOutput(w io.Writer, info shared.OutputInfo) *PlainOutput {
	p := &PlainOutput{
		w:       w,
		configs: make(map[uint16]shared.RunConfig, len(info.Configs)),
	}
	for _, cfg := range info.Configs {
		p.configs[cfg.ID] = cfg
	}

	mode := "serial"
	if info.Parallel {
		mode = "parallel"
	}
	fmt.Fprintf(w, "Probing %s: %d rounds per configuration, %d configurations, %s\n",
		info.Target, info.Rounds, len(info.Configs), mode)
	return p
}

// UpdateStats implements the Output interface
func (p *PlainOutput) UpdateStats(configID uint16, snap shared.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stat := snap[configID]
	fmt.Fprintf(p.w, "%s Sent: %d Missed: %d\n", p.describe(configID), stat.Sent, stat.Missed)
}

// CompleteRun implements the Output interface
func (p *PlainOutput) CompleteRun(configID uint16, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		fmt.Fprintf(p.w, "%s failed: %v\n", p.describe(configID), err)
		return
	}
	fmt.Fprintf(p.w, "%s complete\n", p.describe(configID))
}

// Close implements the Output interface
func (p *PlainOutput) Close() error {
	return nil
}

func (p *PlainOutput) describe(configID uint16) string {
	cfg, ok := p.configs[configID]
	if !ok {
		return fmt.Sprintf("%d.", configID)
	}
	return fmt.Sprintf("%d. Rate: %ghz / Packet Size: %d bytes /", cfg.ID, cfg.Hertz, cfg.PayloadSize)
}
