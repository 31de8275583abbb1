package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/snovvcrash/dafgen/internal/monitor"
)

type fakeController struct {
	running   bool
	startErr  error
	starts    []time.Duration
	stops     int
	setDelays []time.Duration
}

func (c *fakeController) Start(d time.Duration) error {
	if c.startErr != nil {
		return c.startErr
	}
	c.starts = append(c.starts, d)
	c.running = true
	return nil
}

func (c *fakeController) Stop() error {
	c.stops++
	c.running = false
	return nil
}

func (c *fakeController) SetDelay(d time.Duration) {
	c.setDelays = append(c.setDelays, d)
}

func (c *fakeController) Running() bool { return c.running }

func key(s string) tea.KeyMsg {
	switch s {
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "shift+left":
		return tea.KeyMsg{Type: tea.KeyShiftLeft}
	case "shift+right":
		return tea.KeyMsg{Type: tea.KeyShiftRight}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestAdjustDelay_Clamps(t *testing.T) {
	ctrl := &fakeController{}
	m := NewModel(ctrl, 50, 200, 100)

	m = update(m, key("right"))
	if m.delayMs != 101 {
		t.Errorf("delay %d after right, want 101", m.delayMs)
	}
	m = update(m, key("shift+right"))
	if m.delayMs != 111 {
		t.Errorf("delay %d after shift+right, want 111", m.delayMs)
	}

	for i := 0; i < 30; i++ {
		m = update(m, key("shift+right"))
	}
	if m.delayMs != 200 {
		t.Errorf("delay %d, want clamp at 200", m.delayMs)
	}

	for i := 0; i < 30; i++ {
		m = update(m, key("shift+left"))
	}
	if m.delayMs != 50 {
		t.Errorf("delay %d, want clamp at 50", m.delayMs)
	}
}

func TestAdjustDelay_ForwardsWhileRunning(t *testing.T) {
	ctrl := &fakeController{}
	m := NewModel(ctrl, 50, 200, 100)

	m = update(m, key("right"))
	if len(ctrl.setDelays) != 0 {
		t.Errorf("SetDelay called while idle: %v", ctrl.setDelays)
	}

	m = update(m, key("s"))
	m = update(m, key("right"))
	if len(ctrl.setDelays) != 1 || ctrl.setDelays[0] != 102*time.Millisecond {
		t.Errorf("SetDelay calls = %v, want one at 102ms", ctrl.setDelays)
	}

	// A step against the clamp boundary changes nothing and sends nothing.
	m.delayMs = 200
	update(m, key("right"))
	if len(ctrl.setDelays) != 1 {
		t.Errorf("SetDelay called for a clamped no-op step: %v", ctrl.setDelays)
	}
}

func TestStartStop(t *testing.T) {
	ctrl := &fakeController{}
	m := NewModel(ctrl, 50, 200, 120)

	m = update(m, key("s"))
	if len(ctrl.starts) != 1 || ctrl.starts[0] != 120*time.Millisecond {
		t.Fatalf("starts = %v, want one at 120ms", ctrl.starts)
	}
	if !m.running {
		t.Error("model should be running after start")
	}

	// Second start is a no-op while running.
	m = update(m, key("s"))
	if len(ctrl.starts) != 1 {
		t.Errorf("starts = %v, second s should be ignored", ctrl.starts)
	}

	m = update(m, key("x"))
	if ctrl.stops != 1 {
		t.Errorf("stops = %d, want 1", ctrl.stops)
	}
	if m.running {
		t.Error("model should be idle after stop")
	}

	m = update(m, key("x"))
	if ctrl.stops != 1 {
		t.Errorf("stops = %d, x while idle should be ignored", ctrl.stops)
	}
}

func TestStart_ErrorShown(t *testing.T) {
	ctrl := &fakeController{startErr: errors.New("no input/output device available")}
	m := NewModel(ctrl, 50, 200, 100)

	m = update(m, key("s"))
	if m.running {
		t.Error("model must stay idle after a failed start")
	}
	if !strings.Contains(m.View(), "no input/output device") {
		t.Error("view should surface the device error")
	}
}

func TestStop_ClearsActualDelay(t *testing.T) {
	ctrl := &fakeController{}
	m := NewModel(ctrl, 50, 200, 100)

	m = update(m, key("s"))
	m = update(m, DelayMeasuredMsg(104*time.Millisecond))
	if !strings.Contains(m.View(), "104 ms") {
		t.Fatal("view should show the measured delay")
	}

	m = update(m, key("x"))
	if strings.Contains(m.View(), "104 ms") {
		t.Error("measured delay readout should be cleared on stop")
	}
}

func TestStoppedMsg(t *testing.T) {
	ctrl := &fakeController{}
	m := NewModel(ctrl, 50, 200, 100)
	m = update(m, key("s"))

	m = update(m, StoppedMsg{Err: errors.New("playback died")})
	if m.running {
		t.Error("model should go idle on StoppedMsg")
	}
	if !strings.Contains(m.View(), "playback died") {
		t.Error("view should surface the stop error")
	}

	// Clean stop carries no error text.
	m2 := NewModel(ctrl, 50, 200, 100)
	m2 = update(m2, key("s"))
	m2 = update(m2, StoppedMsg{})
	if strings.Contains(m2.View(), "Error:") {
		t.Error("clean stop should not show an error")
	}
}

func TestLevelMsg(t *testing.T) {
	m := NewModel(&fakeController{}, 50, 200, 100)
	m = update(m, LevelMsg(monitor.Reading{RMS: 0.3, DB: -10.5, Dominant: 440}))

	view := m.View()
	if !strings.Contains(view, "-10.5 dB") || !strings.Contains(view, "440 Hz") {
		t.Errorf("view missing level readout:\n%s", view)
	}
}

func TestQuitStopsEngine(t *testing.T) {
	ctrl := &fakeController{}
	m := NewModel(ctrl, 50, 200, 100)
	m = update(m, key("s"))

	_, cmd := m.Update(key("q"))
	if ctrl.stops != 1 {
		t.Errorf("stops = %d, quit while running should stop the engine", ctrl.stops)
	}
	if cmd == nil {
		t.Fatal("quit should return a command")
	}
}
