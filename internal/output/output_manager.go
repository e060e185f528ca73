package output

import "github.com/benbrittain/aether-throughput/internal/shared"

// Output interface for different output types
type Output interface {
	UpdateStats(configID uint16, snap shared.Snapshot)
	CompleteRun(configID uint16, err error)
	Close() error
}

// OutputManager manages multiple outputs
type OutputManager struct {
	outputs []Output
}

func (om *OutputManager) Register(o Output) {
	om.outputs = append(om.outputs, o)
}

func (om *OutputManager) UpdateStats(configID uint16, snap shared.Snapshot) {
	for _, o := range om.outputs {
		o.UpdateStats(configID, snap)
	}
}

func (om *OutputManager) CompleteRun(configID uint16, err error) {
	for _, o := range om.outputs {
		o.CompleteRun(configID, err)
	}
}

func (om *OutputManager) Close() {
	for _, o := range om.outputs {
		o.Close()
	}
}
