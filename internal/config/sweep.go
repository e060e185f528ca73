package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/benbrittain/aether-throughput/internal/shared"
)

// Sweep is the YAML shape of a probe sweep definition. Rounds is optional;
// zero means the file does not override the flag.
type Sweep struct {
	Rounds  uint         `yaml:"rounds"`
	Entries []SweepEntry `yaml:"entries"`
}

type SweepEntry struct {
	Hertz       float64 `yaml:"hertz"`
	PayloadSize int     `yaml:"payload_size"`
}

// DefaultSweep returns the built-in rate and payload size grid.
// Configuration ids follow enumeration order.
func DefaultSweep() []shared.RunConfig {
	rates := []float64{4, 8, 16}
	sizes := []int{50, 100, 200}

	configs := make([]shared.RunConfig, 0, len(rates)*len(sizes))
	for _, hz := range rates {
		for _, size := range sizes {
			configs = append(configs, shared.RunConfig{
				ID:          uint16(len(configs)),
				Hertz:       hz,
				PayloadSize: size,
			})
		}
	}
	return configs
}

// LoadSweep reads a sweep definition file and returns the configurations
// in file order with ids assigned by position, plus the file's optional
// rounds override (zero when absent)
func LoadSweep(path string) ([]shared.RunConfig, uint, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, 0, fmt.Errorf("open sweep %q: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, 0, fmt.Errorf("read sweep %q: %w", path, err)
	}

	var sweep Sweep
	if err := yaml.Unmarshal(data, &sweep); err != nil {
		return nil, 0, fmt.Errorf("parse sweep %q: %w", path, err)
	}

	if len(sweep.Entries) == 0 {
		return nil, 0, fmt.Errorf("sweep %q has no entries", path)
	}

	configs := make([]shared.RunConfig, 0, len(sweep.Entries))
	for i, entry := range sweep.Entries {
		cfg := shared.RunConfig{
			ID:          uint16(i),
			Hertz:       entry.Hertz,
			PayloadSize: entry.PayloadSize,
		}
		if err := cfg.Validate(); err != nil {
			return nil, 0, fmt.Errorf("sweep %q entry %d: %w", path, i, err)
		}
		configs = append(configs, cfg)
	}
	return configs, sweep.Rounds, nil
}
