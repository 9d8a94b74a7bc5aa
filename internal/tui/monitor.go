// SPDX-License-Identifier: MIT
//
// Package tui implements the live terminal monitor of the shared store:
// the published bin vector, the activation scalar and the simulate-sine
// control, with keys to drive the two controls.
package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/MatthiasKeysermann/ICALA/internal/store"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	activationStep = 0.1
	defaultWidth   = 40
	minBarWidth    = 10
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F"))
)

type keyMap struct {
	Simulate key.Binding
	Up       key.Binding
	Down     key.Binding
	Quit     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Simulate, k.Up, k.Down, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var defaultKeys = keyMap{
	Simulate: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "toggle sine")),
	Up:       key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "activation up")),
	Down:     key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "activation down")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// MonitorConfig names the store keys the monitor reads and writes.
type MonitorConfig struct {
	Bins          store.BinKeys
	ActivationKey string
	SimulateKey   string
	Interval      time.Duration
}

type tickMsg time.Time

// Monitor is the Bubble Tea model of the live monitor.
type Monitor struct {
	cfg   MonitorConfig
	store store.Store
	keys  keyMap
	help  help.Model

	bins       []float64
	missing    int
	activation float64
	simulate   bool
	width      int
	err        error
}

// NewMonitor returns a monitor refreshing from s every cfg.Interval.
func NewMonitor(s store.Store, cfg MonitorConfig) Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	m := Monitor{
		cfg:   cfg,
		store: s,
		keys:  defaultKeys,
		help:  help.New(),
		bins:  make([]float64, len(cfg.Bins)),
		width: defaultWidth,
	}
	m.refresh()
	return m
}

func (m Monitor) tick() tea.Cmd {
	return tea.Tick(m.cfg.Interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the refresh ticker.
func (m Monitor) Init() tea.Cmd {
	return m.tick()
}

// refresh reads the current values. The bins slice is replaced, not
// reused, since models are passed by value.
func (m *Monitor) refresh() {
	bins := make([]float64, len(m.cfg.Bins))
	m.missing = m.cfg.Bins.Read(m.store, bins)
	m.bins = bins
	m.activation, _ = store.Scalar(m.store, m.cfg.ActivationKey)
	m.simulate = store.Flag(m.store, m.cfg.SimulateKey)
}

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = max(msg.Width-20, minBarWidth)
		m.help.Width = msg.Width

	case tickMsg:
		m.refresh()
		return m, m.tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Simulate):
			v := 1.0
			if m.simulate {
				v = 0
			}
			m.err = m.store.Set(m.cfg.SimulateKey, v)
			m.refresh()

		case key.Matches(msg, m.keys.Up):
			m.err = m.setActivation(m.activation + activationStep)
			m.refresh()

		case key.Matches(msg, m.keys.Down):
			m.err = m.setActivation(m.activation - activationStep)
			m.refresh()
		}
	}
	return m, nil
}

// setActivation stores v clamped to [0, 1] and rounded to one decimal.
func (m *Monitor) setActivation(v float64) error {
	v = math.Round(min(max(v, 0), 1)*10) / 10
	return m.store.Set(m.cfg.ActivationKey, v)
}

// View renders the UI.
func (m Monitor) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Spectrum Monitor"))
	sb.WriteString("\n\n")

	for i, v := range m.bins {
		fmt.Fprintf(&sb, "%2d %s %.3f\n", i, m.bar(v), v)
	}
	sb.WriteString("\n")

	simulate := "off"
	if m.simulate {
		simulate = highlightStyle.Render("on")
	}
	sb.WriteString(infoStyle.Render(fmt.Sprintf("Activation: %.1f   Simulated sine: ", m.activation)))
	sb.WriteString(simulate)
	sb.WriteString("\n")
	if m.missing > 0 {
		sb.WriteString(infoStyle.Render(fmt.Sprintf("%d bins unavailable", m.missing)))
		sb.WriteString("\n")
	}
	if m.err != nil {
		sb.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

func (m Monitor) bar(v float64) string {
	n := int(math.Round(min(max(v, 0), 1) * float64(m.width)))
	return barStyle.Render(strings.Repeat("█", n)) + strings.Repeat("·", m.width-n)
}

// Run shows the monitor until the user quits or ctx is done.
func Run(ctx context.Context, s store.Store, cfg MonitorConfig) error {
	p := tea.NewProgram(NewMonitor(s, cfg), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
