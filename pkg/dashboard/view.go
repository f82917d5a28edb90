package dashboard

import (
	"fmt"
	"log/slog"

	"gitlab.com/tinyland/lab/ace-dash/pkg/app"
	"gitlab.com/tinyland/lab/ace-dash/pkg/metrics"
)

// ViewKind identifies what the shell is showing.
type ViewKind int

const (
	// ViewGrid shows the icon grid.
	ViewGrid ViewKind = iota
	// ViewApp shows one app's main view.
	ViewApp
)

// String returns "grid" or "app".
func (k ViewKind) String() string {
	if k == ViewApp {
		return "app"
	}
	return "grid"
}

// MarshalText encodes the kind by name.
func (k ViewKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes a kind encoded by MarshalText.
func (k *ViewKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "grid":
		*k = ViewGrid
	case "app":
		*k = ViewApp
	default:
		return fmt.Errorf("unknown view kind %q", text)
	}
	return nil
}

// ViewState is the visible content: the grid, or the named active app.
type ViewState struct {
	Kind ViewKind `json:"kind"`
	App  string   `json:"app,omitempty"`
}

// ViewController switches the shell between the grid and an app's main
// view. Its methods must run on the render goroutine.
type ViewController struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// ShowGrid makes the icon grid visible and resets the title.
func (v *ViewController) ShowGrid(s *Shell) {
	s.view = ViewState{Kind: ViewGrid}
	s.content = nil
	s.active = nil
	s.titleText = s.title
	s.dirty = true

	v.metrics.RecordViewSwitch(ViewGrid.String())
	v.logger.Debug("showing grid")
}

// ShowApp makes a's main view visible and sets the title to
// "<shell title> > <app name>".
func (v *ViewController) ShowApp(s *Shell, a app.App) {
	s.view = ViewState{Kind: ViewApp, App: a.Name()}
	s.content = a.MainApp()
	s.active = a
	s.titleText = s.title + " > " + a.Name()
	s.dirty = true

	v.metrics.RecordViewSwitch(ViewApp.String())
	v.logger.Debug("showing app", "app", a.Name())
}
