package output

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/benbrittain/aether-throughput/internal/shared"
)

// TUIOutput renders one live block per configuration using Bubble Tea
type TUIOutput struct {
	mu       sync.RWMutex
	program  *tea.Program
	model    *tuiModel
	updateCh chan tea.Msg
	quitCh   chan struct{}
	doneCh   chan struct{}
}

// tuiStatsMsg carries a fresh snapshot of all configuration counters
type tuiStatsMsg struct {
	snap shared.Snapshot
}

// tuiDoneMsg is sent when one configuration's run ends
type tuiDoneMsg struct {
	configID uint16
	err      error
}

// tickMsg is sent periodically to refresh the display
type tickMsg time.Time

type runState int

const (
	runActive runState = iota
	runComplete
	runFailed
)

// tuiModel holds the Bubble Tea model state
type tuiModel struct {
	// Data
	mu        sync.RWMutex
	stats     shared.Snapshot
	states    map[uint16]runState
	failures  map[uint16]string
	info      shared.OutputInfo
	startTime time.Time

	// UI state
	width  int
	height int
	scroll int
	help   help.Model
	keys   keyMap

	// Channel for receiving updates
	updateCh chan tea.Msg
	quitCh   chan struct{}
}

// keyMap defines keyboard shortcuts
type keyMap struct {
	Up   key.Binding
	Down key.Binding
	Quit key.Binding
	Help key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Help}
}

// FullHelp returns keybindings for the expanded help view
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Quit, k.Help},
	}
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "scroll up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "scroll down"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "toggle help"),
	),
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	configStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FBBF24"))

	sentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#60A5FA"))

	missedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24"))

	notStartedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F87171"))

	statsGoodStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#34D399"))

	statsWarningStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FBBF24"))

	statsBadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171"))

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

func truncateToWidth(value string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(value) <= width {
		return value
	}
	return lipgloss.NewStyle().Width(width).Render(value)
}

// lossStyleFor color codes a loss percentage
func lossStyleFor(lossPct float64) lipgloss.Style {
	style := statsGoodStyle
	if lossPct > 10 {
		style = statsWarningStyle
	}
	if lossPct > 25 {
		style = statsBadStyle
	}
	return style
}

// NewTUIOutput creates a new Bubble Tea TUI output
func NewTUIOutput(info shared.OutputInfo) *TUIOutput {
	updateCh := make(chan tea.Msg, 100)
	quitCh := make(chan struct{})

	model := &tuiModel{
		stats:     make(shared.Snapshot),
		states:    make(map[uint16]runState),
		failures:  make(map[uint16]string),
		info:      info,
		startTime: time.Now(),
		help:      help.New(),
		keys:      keys,
		updateCh:  updateCh,
		quitCh:    quitCh,
	}

	return &TUIOutput{
		model:    model,
		updateCh: updateCh,
		quitCh:   quitCh,
		doneCh:   make(chan struct{}),
	}
}

// Start initializes and starts the Bubble Tea program
func (t *TUIOutput) Start() {
	// Create program with proper cleanup options
	doneCh := make(chan struct{})
	t.doneCh = doneCh
	t.program = tea.NewProgram(
		t.model,
		tea.WithAltScreen(), // Use alternate screen buffer
	)

	go func() {
		// Ensure cleanup happens even if there's a panic
		defer func() {
			close(doneCh)
			if r := recover(); r != nil {
				slog.Error("TUI panic", "panic", r)
				// Force cleanup
				t.program.Kill()
			}
		}()

		if _, err := t.program.Run(); err != nil {
			slog.Error("Error running TUI", "error", err)
		}
	}()
}

// QuitChan returns the channel that signals when the user quits the TUI
func (t *TUIOutput) QuitChan() <-chan struct{} {
	return t.quitCh
}

// UpdateStats implements the Output interface
func (t *TUIOutput) UpdateStats(configID uint16, snap shared.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	select {
	case t.updateCh <- tuiStatsMsg{snap: snap}:
	default:
		// Channel full, skip update
	}
}

// CompleteRun implements the Output interface
func (t *TUIOutput) CompleteRun(configID uint16, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	select {
	case t.updateCh <- tuiDoneMsg{configID: configID, err: err}:
	default:
	}
}

// Close implements the Output interface
func (t *TUIOutput) Close() error {
	t.mu.Lock()
	program := t.program
	doneCh := t.doneCh
	quitCh := t.quitCh
	t.mu.Unlock()

	if program != nil {
		// Request graceful shutdown
		program.Quit()

		if doneCh != nil {
			select {
			case <-doneCh:
				// Clean exit
			case <-time.After(500 * time.Millisecond):
				// Force cleanup if it takes too long
				program.Kill()
				<-doneCh
			}
		}
	}

	if quitCh != nil {
		select {
		case <-quitCh:
			// Already closed
		default:
			close(quitCh)
		}
	}

	t.mu.Lock()
	t.program = nil
	t.doneCh = nil
	t.mu.Unlock()

	return nil
}

// Init is the initial I/O for Bubble Tea
func (m *tuiModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		waitForUpdate(m.updateCh),
	)
}

// Update handles messages and updates the model
func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			// Signal quit to the main program
			select {
			case m.quitCh <- struct{}{}:
			default:
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.Up):
			m.scrollBlocks(-1)
		case key.Matches(msg, m.keys.Down):
			m.scrollBlocks(1)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tuiStatsMsg:
		m.mu.Lock()
		m.stats = msg.snap
		m.mu.Unlock()
		return m, waitForUpdate(m.updateCh)

	case tuiDoneMsg:
		m.mu.Lock()
		if msg.err != nil {
			m.states[msg.configID] = runFailed
			m.failures[msg.configID] = msg.err.Error()
		} else {
			m.states[msg.configID] = runComplete
		}
		m.mu.Unlock()
		return m, waitForUpdate(m.updateCh)

	case tickMsg:
		return m, tickCmd()
	}

	return m, nil
}

func (m *tuiModel) scrollBlocks(delta int) {
	next := m.scroll + delta
	next = max(next, 0)
	m.scroll = next
}

// View renders the UI
func (m *tuiModel) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var b strings.Builder

	// Title bar
	mode := "serial"
	if m.info.Parallel {
		mode = "parallel"
	}
	elapsed := time.Since(m.startTime)
	title := fmt.Sprintf(" UDP Throughput Probe to %s | Rounds: %d | Mode: %s | Elapsed: %s ",
		m.info.Target, m.info.Rounds, mode, elapsed.Round(time.Second))
	b.WriteString(titleStyle.Width(m.width).Render(title))
	b.WriteString("\n")

	// Calculate available height for content
	helpHeight := lipgloss.Height(m.help.View(m.keys))
	contentHeight := m.height - 4 - helpHeight // title + spacing + help

	b.WriteString(m.renderBlocks(contentHeight))

	// Help
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

// renderBlocks renders the per-configuration stat blocks
func (m *tuiModel) renderBlocks(maxHeight int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	contentWidth := m.width - 4
	contentWidth = max(contentWidth, 20)

	configs := slices.Clone(m.info.Configs)
	slices.SortFunc(configs, func(a, b shared.RunConfig) int {
		return int(a.ID) - int(b.ID)
	})

	bodyLines := make([]string, 0, 2*len(configs))
	for _, cfg := range configs {
		header := fmt.Sprintf("%d. Rate: %ghz / Packet Size: %d bytes", cfg.ID, cfg.Hertz, cfg.PayloadSize)
		bodyLines = append(bodyLines, configStyle.Render(truncateToWidth(header, contentWidth)))
		bodyLines = append(bodyLines, truncateToWidth(m.renderStatLine(cfg.ID), contentWidth))
	}

	visibleLines := maxHeight - 2
	visibleLines = max(visibleLines, 2)

	maxScroll := 0
	if len(bodyLines) > visibleLines {
		maxScroll = len(bodyLines) - visibleLines
	}
	m.scroll = min(m.scroll, maxScroll)

	start := min(m.scroll, len(bodyLines))
	end := min(start+visibleLines, len(bodyLines))

	var b strings.Builder
	for _, line := range bodyLines[start:end] {
		b.WriteString(line)
		b.WriteString("\n")
	}

	return borderStyle.Width(m.width - 2).Render(b.String())
}

// renderStatLine renders the second line of one configuration block
func (m *tuiModel) renderStatLine(configID uint16) string {
	stat, started := m.stats[configID]
	state := m.states[configID]

	if !started && state == runActive {
		return "   " + notStartedStyle.Render("Not Started")
	}

	line := fmt.Sprintf("   %s %s",
		sentStyle.Render(fmt.Sprintf("Sent: %d", stat.Sent)),
		missedStyle.Render(fmt.Sprintf("Missed: %d", stat.Missed)))

	switch state {
	case runComplete:
		loss := fmt.Sprintf("%.1f%% loss", stat.LossPct())
		line += " " + lossStyleFor(stat.LossPct()).Render(loss)
		line += " " + statsGoodStyle.Render("(complete)")
	case runFailed:
		line += " " + statsBadStyle.Render("(failed: "+m.failures[configID]+")")
	}

	return line
}

// waitForUpdate waits for the next update message
func waitForUpdate(updateCh chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-updateCh
	}
}

// tickCmd returns a command that sends a tick message periodically
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
