package output

import (
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/benbrittain/aether-throughput/internal/shared"
)

func TestTruncateToWidth(t *testing.T) {
	tests := []struct {
		name  string
		value string
		width int
		want  string
	}{
		{
			name:  "shorter than width",
			value: "short",
			width: 10,
			want:  "short",
		},
		{
			name:  "exact width",
			value: "exact",
			width: 5,
			want:  "exact",
		},
		{
			name:  "zero width",
			value: "anything",
			width: 0,
			want:  "",
		},
		{
			name:  "negative width",
			value: "test",
			width: -1,
			want:  "",
		},
		{
			name:  "empty string",
			value: "",
			width: 5,
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateToWidth(tt.value, tt.width)
			if got != tt.want {
				t.Errorf("truncateToWidth(%q, %d) = %q, want %q", tt.value, tt.width, got, tt.want)
			}
		})
	}
}

func TestLossStyleFor(t *testing.T) {
	tests := []struct {
		name    string
		lossPct float64
		want    string
	}{
		{"no loss", 0, "#34D399"},
		{"low loss", 10, "#34D399"},
		{"warning loss", 10.1, "#FBBF24"},
		{"warning boundary", 25, "#FBBF24"},
		{"bad loss", 25.1, "#F87171"},
		{"total loss", 100, "#F87171"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lossStyleFor(tt.lossPct).GetForeground()
			if got != lipgloss.Color(tt.want) {
				t.Errorf("lossStyleFor(%g) foreground = %v, want %v", tt.lossPct, got, tt.want)
			}
		})
	}
}

func TestTUIModel_StatsMsg(t *testing.T) {
	tui := NewTUIOutput(shared.OutputInfo{
		Target: "203.0.113.1:7",
		Rounds: 100,
		Configs: []shared.RunConfig{
			{ID: 0, Hertz: 4, PayloadSize: 50},
		},
	})
	m := tui.model

	m.Update(tuiStatsMsg{snap: shared.Snapshot{0: {Sent: 42, Missed: 3}}})

	got, ok := m.stats[0]
	if !ok {
		t.Fatal("stats[0] missing after update")
	}
	if got.Sent != 42 || got.Missed != 3 {
		t.Errorf("stats[0] = %+v, want Sent 42 Missed 3", got)
	}
}

func TestTUIModel_DoneMsg(t *testing.T) {
	tui := NewTUIOutput(shared.OutputInfo{
		Configs: []shared.RunConfig{
			{ID: 0, Hertz: 4, PayloadSize: 50},
			{ID: 1, Hertz: 8, PayloadSize: 100},
		},
	})
	m := tui.model

	m.Update(tuiDoneMsg{configID: 0})
	m.Update(tuiDoneMsg{configID: 1, err: errors.New("socket closed")})

	if m.states[0] != runComplete {
		t.Errorf("states[0] = %v, want runComplete", m.states[0])
	}
	if m.states[1] != runFailed {
		t.Errorf("states[1] = %v, want runFailed", m.states[1])
	}
	if m.failures[1] != "socket closed" {
		t.Errorf("failures[1] = %q, want \"socket closed\"", m.failures[1])
	}
}

func TestTUIModel_RenderStatLine(t *testing.T) {
	tui := NewTUIOutput(shared.OutputInfo{
		Configs: []shared.RunConfig{
			{ID: 0, Hertz: 4, PayloadSize: 50},
			{ID: 1, Hertz: 8, PayloadSize: 100},
			{ID: 2, Hertz: 16, PayloadSize: 200},
		},
	})
	m := tui.model

	m.Update(tuiStatsMsg{snap: shared.Snapshot{
		1: {Sent: 10, Missed: 1},
		2: {Sent: 100, Missed: 50},
	}})
	m.Update(tuiDoneMsg{configID: 2, err: errors.New("socket closed")})

	if got := m.renderStatLine(0); !strings.Contains(got, "Not Started") {
		t.Errorf("renderStatLine(0) = %q, want Not Started", got)
	}

	got := m.renderStatLine(1)
	if !strings.Contains(got, "Sent: 10") || !strings.Contains(got, "Missed: 1") {
		t.Errorf("renderStatLine(1) = %q, want sent and missed counters", got)
	}

	got = m.renderStatLine(2)
	if !strings.Contains(got, "failed: socket closed") {
		t.Errorf("renderStatLine(2) = %q, want failure annotation", got)
	}
}

func TestTUIOutput_UpdateStatsNonBlocking(t *testing.T) {
	tui := NewTUIOutput(shared.OutputInfo{
		Configs: []shared.RunConfig{{ID: 0, Hertz: 4, PayloadSize: 50}},
	})

	// Nothing drains updateCh; sends beyond its capacity must not block
	for i := 0; i < 500; i++ {
		tui.UpdateStats(0, shared.Snapshot{0: {Sent: uint(i)}})
	}
	tui.CompleteRun(0, nil)
}
