// Package host simulates the host container that owns app providers: it
// announces apps to the dashboard as they become available and withdraws
// them later, each from its own goroutine.
package host

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.com/tinyland/lab/ace-dash/pkg/app"
)

// Target receives availability callbacks. The dashboard implements it.
type Target interface {
	OnAppAvailable(a app.App) error
	OnAppRemoved(a app.App) error
}

// Host schedules manifest apps onto a Target.
type Host struct {
	target  Target
	session string
	logger  *slog.Logger

	mu      sync.Mutex
	timers  []*time.Timer
	stopped bool
}

// New creates a Host with a fresh session id.
func New(target Target, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	session := uuid.NewString()
	return &Host{
		target:  target,
		session: session,
		logger:  logger.With("session", session),
	}
}

// Session returns the host session id.
func (h *Host) Session() string { return h.session }

// NewApp builds a text app. It is the factory used for apps announced over
// the control socket.
func (h *Host) NewApp(name string, position int, glyph string) app.App {
	return h.build(AppSpec{Name: name, Position: position, Glyph: glyph})
}

func (h *Host) build(spec AppSpec) app.App {
	glyph := spec.Glyph
	if glyph == "" {
		glyph = "◆"
	}
	title := spec.Title
	if title == "" {
		title = spec.Name
	}
	body := append([]string(nil), spec.Body...)
	body = append(body, "", "session "+h.session[:8])
	return app.New(spec.Name, spec.Position, app.NewTextIcon(glyph, spec.Name), app.NewTextView(title, body...))
}

// Run schedules every app in m. Apps with no delay are announced
// immediately, on their own goroutine.
func (h *Host) Run(m *Manifest) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}

	h.logger.Info("host running", "apps", len(m.Apps))
	for _, spec := range m.Apps {
		a := h.build(spec)
		h.timers = append(h.timers, time.AfterFunc(spec.AppearAfter, func() { h.announce(a) }))
		if spec.RemoveAfter > 0 {
			h.timers = append(h.timers, time.AfterFunc(spec.RemoveAfter, func() { h.withdraw(a) }))
		}
	}
}

// Stop cancels every pending announcement and withdrawal.
func (h *Host) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	for _, t := range h.timers {
		t.Stop()
	}
	h.timers = nil
}

func (h *Host) announce(a app.App) {
	if err := h.target.OnAppAvailable(a); err != nil {
		h.logger.Warn("app announcement failed", "app", a.Name(), "error", err)
		return
	}
	h.logger.Debug("app announced", "app", a.Name())
}

func (h *Host) withdraw(a app.App) {
	if err := h.target.OnAppRemoved(a); err != nil {
		h.logger.Debug("app withdrawal ignored", "app", a.Name(), "error", err)
		return
	}
	h.logger.Debug("app withdrawn", "app", a.Name())
}
