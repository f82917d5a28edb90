package daemon

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gitlab.com/tinyland/lab/ace-dash/pkg/app"
	"gitlab.com/tinyland/lab/ace-dash/pkg/dashboard"
	"gitlab.com/tinyland/lab/ace-dash/pkg/dispatch"
)

var (
	// ErrUnknownCommand is returned for commands the bridge does not know.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUsage is returned when a command has the wrong arguments.
	ErrUsage = errors.New("usage")
	// ErrUnknownApp is returned by OPEN for an app with no rendered icon.
	ErrUnknownApp = errors.New("unknown app")
)

// Shell is the part of the dashboard the bridge drives.
type Shell interface {
	OnAppAvailable(a app.App) error
	RemoveByName(name string) error
	Click(name string) error
	Home() error
	Frame() dashboard.Frame
	Stats() dispatch.Stats
}

// AppFactory builds an app for an ADD command.
type AppFactory func(name string, position int, glyph string) app.App

// Status is the STATUS reply.
type Status struct {
	State    dashboard.State       `json:"state"`
	Ready    bool                  `json:"ready"`
	Title    string                `json:"title"`
	View     dashboard.ViewState   `json:"view"`
	Icons    []dashboard.IconFrame `json:"icons"`
	Seq      uint64                `json:"seq"`
	Executed uint64                `json:"tasks_executed"`
	Faulted  uint64                `json:"tasks_faulted"`
	Pending  int                   `json:"tasks_pending"`
}

// Ack is the reply of commands that only change state.
type Ack struct {
	OK  bool   `json:"ok"`
	Cmd string `json:"cmd"`
	App string `json:"app,omitempty"`
}

// Bridge maps control socket commands onto a dashboard, acting as an
// external host container.
//
//	STATUS
//	ADD <name> <position> [glyph]
//	REMOVE <name>
//	OPEN <name>
//	HOME
//	QUIT
type Bridge struct {
	shell  Shell
	newApp AppFactory
	onQuit func()
}

// NewBridge creates a Bridge. onQuit runs when a QUIT command arrives and
// may be nil.
func NewBridge(shell Shell, newApp AppFactory, onQuit func()) *Bridge {
	return &Bridge{shell: shell, newApp: newApp, onQuit: onQuit}
}

// HandleCommand implements IPCHandler.
func (b *Bridge) HandleCommand(_ context.Context, cmd string, args []string) (any, error) {
	switch cmd {
	case "STATUS":
		return b.status(), nil

	case "ADD":
		if len(args) < 2 || b.newApp == nil {
			return nil, fmt.Errorf("%w: ADD <name> <position> [glyph]", ErrUsage)
		}
		pos, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("%w: position %q is not an integer", ErrUsage, args[1])
		}
		glyph := strings.Join(args[2:], " ")
		if err := b.shell.OnAppAvailable(b.newApp(args[0], pos, glyph)); err != nil {
			return nil, err
		}
		return Ack{OK: true, Cmd: cmd, App: args[0]}, nil

	case "REMOVE":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: REMOVE <name>", ErrUsage)
		}
		if err := b.shell.RemoveByName(args[0]); err != nil {
			return nil, err
		}
		return Ack{OK: true, Cmd: cmd, App: args[0]}, nil

	case "OPEN":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: OPEN <name>", ErrUsage)
		}
		if !hasIcon(b.shell.Frame(), args[0]) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownApp, args[0])
		}
		if err := b.shell.Click(args[0]); err != nil {
			return nil, err
		}
		return Ack{OK: true, Cmd: cmd, App: args[0]}, nil

	case "HOME":
		if err := b.shell.Home(); err != nil {
			return nil, err
		}
		return Ack{OK: true, Cmd: cmd}, nil

	case "QUIT":
		if b.onQuit != nil {
			go b.onQuit()
		}
		return Ack{OK: true, Cmd: cmd}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownCommand, cmd)
}

func (b *Bridge) status() Status {
	f := b.shell.Frame()
	st := b.shell.Stats()
	icons := f.Icons
	if icons == nil {
		icons = []dashboard.IconFrame{}
	}
	return Status{
		State:    f.State,
		Ready:    f.Ready,
		Title:    f.Title,
		View:     f.View,
		Icons:    icons,
		Seq:      f.Seq,
		Executed: st.Executed,
		Faulted:  st.Faulted,
		Pending:  st.Pending,
	}
}

func hasIcon(f dashboard.Frame, name string) bool {
	for _, ic := range f.Icons {
		if ic.Name == name {
			return true
		}
	}
	return false
}
