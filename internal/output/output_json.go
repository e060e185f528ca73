package output

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/benbrittain/aether-throughput/internal/shared"
)

// statRecord is one line of JSON telemetry
type statRecord struct {
	RunID       string    `json:"run_id"`
	Timestamp   time.Time `json:"timestamp"`
	Target      string    `json:"target"`
	ConfigID    uint16    `json:"config_id"`
	Hertz       float64   `json:"hertz"`
	PayloadSize int       `json:"payload_size"`
	Sent        uint      `json:"sent"`
	Missed      uint      `json:"missed"`
	LossPct     float64   `json:"loss_pct"`
	Complete    bool      `json:"complete,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// JSONOutput writes one JSON object per stat update to a file or stdout
type JSONOutput struct {
	mu       sync.Mutex
	file     *os.File
	enc      *json.Encoder
	toStdout bool

	runID   string
	target  string
	configs map[uint16]shared.RunConfig
	last    shared.Snapshot
}

func NewJSONOutput(filename string, info shared.OutputInfo) (*JSONOutput, error) {
	j := &JSONOutput{
		runID:   uuid.NewString(),
		target:  info.Target,
		configs: make(map[uint16]shared.RunConfig, len(info.Configs)),
		last:    make(shared.Snapshot),
	}
	for _, cfg := range info.Configs {
		j.configs[cfg.ID] = cfg
	}

	if filename == "" {
		// Output to stdout
		j.file = os.Stdout
		j.enc = json.NewEncoder(os.Stdout)
		j.toStdout = true
		return j, nil
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	j.file = f
	j.enc = json.NewEncoder(f)
	return j, nil
}

// UpdateStats implements the Output interface
func (j *JSONOutput) UpdateStats(configID uint16, snap shared.Snapshot) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.last = snap
	_ = j.enc.Encode(j.record(configID, snap[configID]))
}

// CompleteRun implements the Output interface
func (j *JSONOutput) CompleteRun(configID uint16, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rec := j.record(configID, j.last[configID])
	rec.Complete = true
	if err != nil {
		rec.Error = err.Error()
	}
	_ = j.enc.Encode(rec)
}

// Close implements the Output interface
func (j *JSONOutput) Close() error {
	if j.toStdout {
		return nil
	}
	return j.file.Close()
}

func (j *JSONOutput) record(configID uint16, stat shared.Stat) statRecord {
	cfg := j.configs[configID]
	return statRecord{
		RunID:       j.runID,
		Timestamp:   time.Now().UTC(),
		Target:      j.target,
		ConfigID:    configID,
		Hertz:       cfg.Hertz,
		PayloadSize: cfg.PayloadSize,
		Sent:        stat.Sent,
		Missed:      stat.Missed,
		LossPct:     stat.LossPct(),
	}
}
