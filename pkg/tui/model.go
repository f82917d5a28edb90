// Package tui is the terminal front-end of the dashboard. It draws the
// frames the dashboard publishes and turns keys and mouse clicks into
// dashboard intents; it never touches the shell state directly.
package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"

	"gitlab.com/tinyland/lab/ace-dash/pkg/dashboard"
	"gitlab.com/tinyland/lab/ace-dash/pkg/layout"
)

const (
	topBarHeight    = 2
	statusBarHeight = 1
	homeZoneID      = "home"
	iconZonePrefix  = "icon:"
)

// Controller receives the intents raised by the front-end.
type Controller interface {
	Click(name string) error
	Home() error
	Resize(width, height int) error
}

// FrameMsg delivers a newly published dashboard frame.
type FrameMsg dashboard.Frame

// Model is the bubbletea model for the dashboard.
type Model struct {
	ctrl   Controller
	frames <-chan dashboard.Frame

	frame         dashboard.Frame
	width, height int
	ready         bool
	focused       int
	showHelp      bool
	status        string

	keys  keyMap
	help  help.Model
	zones *zone.Manager
}

// New creates a Model showing initial and fed by frames. frames may be nil
// when frames are delivered as FrameMsg by other means.
func New(ctrl Controller, initial dashboard.Frame, frames <-chan dashboard.Frame) Model {
	return Model{
		ctrl:   ctrl,
		frames: frames,
		frame:  initial,
		keys:   defaultKeyMap(),
		help:   help.New(),
		zones:  zone.New(),
	}
}

// Init starts listening for frames.
func (m Model) Init() tea.Cmd {
	return waitForFrame(m.frames)
}

// waitForFrame blocks on the next frame from ch.
func waitForFrame(ch <-chan dashboard.Frame) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		f, ok := <-ch
		if !ok {
			return nil
		}
		return FrameMsg(f)
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.help.Width = msg.Width
		m.report(m.ctrl.Resize(msg.Width, m.bodyHeight()))
		return m, nil

	case FrameMsg:
		m.frame = dashboard.Frame(msg)
		m.clampFocus()
		return m, waitForFrame(m.frames)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp

	case key.Matches(msg, m.keys.Home):
		if m.showHelp {
			m.showHelp = false
			m.help.ShowAll = false
			break
		}
		m.report(m.ctrl.Home())

	case key.Matches(msg, m.keys.Open):
		if m.frame.View.Kind != dashboard.ViewGrid || len(m.frame.Icons) == 0 {
			break
		}
		m.report(m.ctrl.Click(m.frame.Icons[m.focused].Name))

	case key.Matches(msg, m.keys.Left):
		m.move(layout.MoveLeft)
	case key.Matches(msg, m.keys.Right):
		m.move(layout.MoveRight)
	case key.Matches(msg, m.keys.Up):
		m.move(layout.MoveUp)
	case key.Matches(msg, m.keys.Down):
		m.move(layout.MoveDown)
	case key.Matches(msg, m.keys.Next):
		m.move(layout.MoveNext)
	case key.Matches(msg, m.keys.Prev):
		m.move(layout.MovePrev)
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionRelease || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}
	if m.zones.Get(homeZoneID).InBounds(msg) {
		m.report(m.ctrl.Home())
		return m, nil
	}
	if m.frame.View.Kind != dashboard.ViewGrid {
		return m, nil
	}
	for i, ic := range m.frame.Icons {
		if m.zones.Get(iconZonePrefix + ic.Name).InBounds(msg) {
			m.focused = i
			m.report(m.ctrl.Click(ic.Name))
			break
		}
	}
	return m, nil
}

// move shifts keyboard focus across the icon grid.
func (m *Model) move(mv layout.Move) {
	if m.frame.View.Kind != dashboard.ViewGrid {
		return
	}
	next := layout.Step(m.focused, len(m.frame.Icons), m.columns(), mv)
	if next >= 0 {
		m.focused = next
	}
}

func (m *Model) clampFocus() {
	if m.focused >= len(m.frame.Icons) {
		m.focused = max(len(m.frame.Icons)-1, 0)
	}
}

// report shows err on the status bar, or clears it.
func (m *Model) report(err error) {
	if err != nil {
		m.status = err.Error()
		return
	}
	m.status = ""
}

func (m Model) bodyHeight() int {
	return max(m.height-topBarHeight-statusBarHeight, 1)
}

// Focused returns the index of the focused icon.
func (m Model) Focused() int { return m.focused }

// ShowHelp reports whether the full help is visible.
func (m Model) ShowHelp() bool { return m.showHelp }

// Ready reports whether the terminal size is known.
func (m Model) Ready() bool { return m.ready }

// Width returns the terminal width.
func (m Model) Width() int { return m.width }

// Height returns the terminal height.
func (m Model) Height() int { return m.height }

// Status returns the status bar message.
func (m Model) Status() string { return m.status }

// CurrentFrame returns the frame being displayed.
func (m Model) CurrentFrame() dashboard.Frame { return m.frame }
