// Package ui is the terminal control panel: a delay slider, start/stop
// controls and readouts for the realized delay and the input level. It
// drives the engine through the Controller interface and receives
// engine events as Bubble Tea messages.
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/snovvcrash/dafgen/internal/monitor"
)

// Controller is the engine surface the panel needs.
type Controller interface {
	Start(delay time.Duration) error
	Stop() error
	SetDelay(delay time.Duration)
	Running() bool
}

// DelayMeasuredMsg carries the realized delay of one full ring traversal.
type DelayMeasuredMsg time.Duration

// LevelMsg carries an input monitor reading.
type LevelMsg monitor.Reading

// StoppedMsg reports that the session loop exited. Err is nil for a
// normal stop.
type StoppedMsg struct {
	Err error
}

const sliderWidth = 30

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			PaddingLeft(2).
			PaddingRight(2).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CCCCCC"))

	valueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA"))

	runningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FF00"))

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF0000"))

	sliderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4"))
)

// Model is the panel state.
type Model struct {
	ctrl Controller

	minMs   int
	maxMs   int
	delayMs int

	running   bool
	actual    time.Duration
	hasActual bool
	level     *monitor.Reading
	errText   string

	width  int
	height int
}

// NewModel creates a panel with the delay control bounded to
// [minMs, maxMs] and positioned at defaultMs.
func NewModel(ctrl Controller, minMs, maxMs, defaultMs int) Model {
	return Model{
		ctrl:    ctrl,
		minMs:   minMs,
		maxMs:   maxMs,
		delayMs: defaultMs,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case DelayMeasuredMsg:
		m.actual = time.Duration(msg)
		m.hasActual = true

	case LevelMsg:
		r := monitor.Reading(msg)
		m.level = &r

	case StoppedMsg:
		m.running = false
		m.hasActual = false
		if msg.Err != nil {
			m.errText = msg.Err.Error()
		}
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.running {
			m.ctrl.Stop()
		}
		return m, tea.Quit

	case "s":
		if m.running {
			return m, nil
		}
		m.errText = ""
		if err := m.ctrl.Start(m.delay()); err != nil {
			m.errText = err.Error()
			return m, nil
		}
		m.running = true
		m.hasActual = false

	case "x":
		if !m.running {
			return m, nil
		}
		m.ctrl.Stop()
		m.running = false
		m.hasActual = false

	case "left":
		m.adjustDelay(-1)
	case "right":
		m.adjustDelay(1)
	case "shift+left":
		m.adjustDelay(-10)
	case "shift+right":
		m.adjustDelay(10)
	}
	return m, nil
}

func (m *Model) adjustDelay(deltaMs int) {
	v := m.delayMs + deltaMs
	if v < m.minMs {
		v = m.minMs
	}
	if v > m.maxMs {
		v = m.maxMs
	}
	if v == m.delayMs {
		return
	}
	m.delayMs = v
	if m.running {
		m.ctrl.SetDelay(m.delay())
	}
}

func (m Model) delay() time.Duration {
	return time.Duration(m.delayMs) * time.Millisecond
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("DAFGen - Delayed Auditory Feedback"))
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Delay   "))
	b.WriteString(sliderStyle.Render(renderSlider(m.minMs, m.maxMs, m.delayMs)))
	b.WriteString(valueStyle.Render(fmt.Sprintf(" %d ms", m.delayMs)))
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Actual  "))
	if m.hasActual {
		b.WriteString(valueStyle.Render(fmt.Sprintf("%d ms", m.actual.Milliseconds())))
	} else {
		b.WriteString(idleStyle.Render("-"))
	}
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Input   "))
	if m.level != nil {
		b.WriteString(valueStyle.Render(fmt.Sprintf("%.1f dB", m.level.DB)))
		if m.level.Dominant > 0 {
			b.WriteString(labelStyle.Render(fmt.Sprintf("  %.0f Hz", m.level.Dominant)))
		}
	} else {
		b.WriteString(idleStyle.Render("-"))
	}
	b.WriteString("\n\n")

	if m.running {
		b.WriteString(runningStyle.Render("* running"))
	} else {
		b.WriteString(idleStyle.Render("o stopped"))
	}
	b.WriteString("\n")

	if m.errText != "" {
		b.WriteString(errorStyle.Render("Error: " + m.errText))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(labelStyle.Render("left/right delay (shift: 10ms) | s start | x stop | q quit"))
	return b.String()
}

// renderSlider draws the delay position as a track with a handle.
func renderSlider(min, max, val int) string {
	pos := 0
	if max > min {
		pos = (val - min) * (sliderWidth - 1) / (max - min)
	}
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < sliderWidth; i++ {
		if i == pos {
			b.WriteString("*")
		} else {
			b.WriteString("-")
		}
	}
	b.WriteString("]")
	return b.String()
}
