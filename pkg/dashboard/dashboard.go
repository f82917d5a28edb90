// Package dashboard implements the dashboard shell: it keeps rendered app
// icons ordered by preferred position, switches between the icon grid and
// an active app, and drives the shell lifecycle.
//
// Apps register and deregister from arbitrary goroutines through
// OnAppAvailable and OnAppRemoved. The registry is updated on the caller's
// goroutine; every visual change is queued on a single render goroutine
// (a dispatch.Dispatcher owning the Shell). A render task re-checks that
// its registry entry is still current before touching the shell, so a
// registration racing with a deregistration never leaves a stale icon.
//
// Lifecycle:
//
//	Stopped -> Starting -> Ready -> Stopping -> Stopped
//
// Rendering side effects of registry changes are gated by the readiness
// flag only. Registrations that land while the shell is starting, after
// the initial snapshot was taken, are picked up by a reconcile pass queued
// right after readiness is set.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/tinyland/lab/ace-dash/pkg/app"
	"gitlab.com/tinyland/lab/ace-dash/pkg/dispatch"
	"gitlab.com/tinyland/lab/ace-dash/pkg/metrics"
	"gitlab.com/tinyland/lab/ace-dash/pkg/registry"
)

// Task kinds. Render goroutine task names are "<kind>" or "<kind>:<app>".
const (
	taskRender = "render"
	taskRemove = "remove"
	taskClick  = "click"
	taskShow   = "show"
)

// DefaultTitle is the fixed shell title.
const DefaultTitle = "Ace Car Entertainment"

const (
	defaultWidth      = 80
	defaultHeight     = 20
	defaultIconWidth  = 14
	defaultIconHeight = 4
	homeWidth         = 6
	homeHeight        = 2
)

var (
	// ErrNotReady is returned by UI intents issued while the shell is not
	// ready.
	ErrNotReady = errors.New("dashboard: not ready")
	// ErrBadState is returned by Start and Stop when called in the wrong
	// lifecycle state.
	ErrBadState = errors.New("dashboard: invalid lifecycle state")
)

// State is the lifecycle state of the shell.
type State int32

const (
	Stopped State = iota
	Starting
	Ready
	Stopping
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Ready:
		return "ready"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a state encoded by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{Stopped, Starting, Ready, Stopping} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// ImageLoader loads a named visual asset. It is used once per start for
// the home affordance.
type ImageLoader interface {
	LoadImage(ctx context.Context, logicalName string) (app.Node, error)
}

// Config configures a Dashboard.
type Config struct {
	Title      string
	HomeIcon   string // logical image name of the home affordance
	IconWidth  int
	IconHeight int
	Loader     ImageLoader
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// Dashboard is the shell. Its exported methods are safe for concurrent use.
type Dashboard struct {
	cfg     Config
	reg     *registry.Registry
	disp    *dispatch.Dispatcher[Shell]
	view    *ViewController
	logger  *slog.Logger
	metrics *metrics.Metrics

	ready atomic.Bool
	state atomic.Int32

	// lifeMu serializes lifecycle transitions. epoch counts them; build and
	// destroy tasks only apply their final transition if no later Start or
	// Stop has been issued.
	lifeMu sync.Mutex
	epoch  uint64

	frame  atomic.Pointer[Frame]
	subsMu sync.Mutex
	subs   map[int]func(Frame)
	nextID int

	// afterSnapshot runs inside the start task between reading the registry
	// snapshot and setting readiness.
	afterSnapshot func()
}

// New creates a dashboard backed by reg and starts its render goroutine.
// The shell itself stays Stopped until Start.
func New(reg *registry.Registry, cfg Config) *Dashboard {
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	if cfg.HomeIcon == "" {
		cfg.HomeIcon = "home"
	}
	if cfg.IconWidth <= 0 {
		cfg.IconWidth = defaultIconWidth
	}
	if cfg.IconHeight <= 0 {
		cfg.IconHeight = defaultIconHeight
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dashboard{
		cfg:     cfg,
		reg:     reg,
		logger:  logger,
		metrics: cfg.Metrics,
		subs:    make(map[int]func(Frame)),
	}
	d.view = &ViewController{logger: logger, metrics: cfg.Metrics}

	shell := newShell(cfg.Title, cfg.IconWidth, cfg.IconHeight)
	d.disp = dispatch.New(shell,
		dispatch.WithLogger[Shell](logger),
		dispatch.WithIdleHook(d.publish),
		dispatch.WithTaskObserver[Shell](func(name string, took time.Duration, fault *dispatch.TaskError) {
			d.metrics.RecordTask(name, took, fault != nil)
		}),
	)
	initial := shell.snapshot(Stopped, false)
	d.frame.Store(&initial)
	d.disp.Start()
	return d
}

// Registry returns the app registry.
func (d *Dashboard) Registry() *registry.Registry { return d.reg }

// State returns the lifecycle state.
func (d *Dashboard) State() State { return State(d.state.Load()) }

// Ready reports the readiness flag.
func (d *Dashboard) Ready() bool { return d.ready.Load() }

// Stats returns render goroutine counters.
func (d *Dashboard) Stats() dispatch.Stats { return d.disp.Stats() }

// Frame returns the most recently published frame.
func (d *Dashboard) Frame() Frame { return *d.frame.Load() }

// Subscribe registers fn to receive every published frame. fn runs on the
// render goroutine and must not block. The returned func unsubscribes.
func (d *Dashboard) Subscribe(fn func(Frame)) func() {
	d.subsMu.Lock()
	id := d.nextID
	d.nextID++
	d.subs[id] = fn
	d.subsMu.Unlock()

	return func() {
		d.subsMu.Lock()
		delete(d.subs, id)
		d.subsMu.Unlock()
	}
}

// Sync waits until every task queued so far has run.
func (d *Dashboard) Sync(ctx context.Context) error { return d.disp.Sync(ctx) }

// Close stops the render goroutine. The dashboard cannot be used afterwards.
func (d *Dashboard) Close() { d.disp.Close() }

// Start builds the UI on the render goroutine and renders every app known
// at that point. It returns once the build task is queued; Sync waits for
// it. Start is accepted while a previous Stop is still tearing down, in
// which case the build runs after the teardown.
func (d *Dashboard) Start(ctx context.Context) error {
	d.lifeMu.Lock()
	defer d.lifeMu.Unlock()

	cur := d.State()
	if cur != Stopped && cur != Stopping {
		return fmt.Errorf("start in state %s: %w", cur, ErrBadState)
	}
	d.state.Store(int32(Starting))
	d.epoch++
	epoch := d.epoch
	d.logger.Info("dashboard starting")
	return d.disp.Enqueue("build", func(s *Shell) { d.build(ctx, s, epoch) })
}

// Stop tears the UI down on the render goroutine. It returns once the
// teardown task is queued.
func (d *Dashboard) Stop() error {
	d.lifeMu.Lock()
	defer d.lifeMu.Unlock()

	cur := d.State()
	if cur != Ready && cur != Starting {
		return fmt.Errorf("stop in state %s: %w", cur, ErrBadState)
	}
	d.state.Store(int32(Stopping))
	d.epoch++
	epoch := d.epoch
	err := d.disp.Enqueue("destroy", func(s *Shell) { d.destroy(s, epoch) })
	d.logger.Info("dashboard stopping")
	return err
}

// OnAppAvailable records a and, when the shell is ready, queues its icon
// for rendering. It is the host container's registration callback.
func (d *Dashboard) OnAppAvailable(a app.App) error {
	e, replaced, err := d.reg.Register(a)
	if err != nil {
		return err
	}
	d.metrics.RecordRegistration(d.reg.Len())
	d.logger.Info("app added",
		"app", e.Name(),
		"position", a.PreferredPosition(),
		"replaced", replaced,
	)

	if !d.ready.Load() {
		d.logger.Debug("ui not ready, render deferred", "app", e.Name())
		return nil
	}
	d.logger.Debug("scheduling render", "app", e.Name())
	return d.disp.Enqueue(taskRender+":"+e.Name(), func(s *Shell) { d.renderCurrent(s, e) })
}

// OnAppRemoved forgets a and, when the shell is ready, queues removal of
// its icon. Removing an unknown app is a no-op that returns an error
// wrapping registry.ErrNotFound.
func (d *Dashboard) OnAppRemoved(a app.App) error {
	if a == nil {
		return registry.ErrInvalidApp
	}
	return d.RemoveByName(a.Name())
}

// RemoveByName is OnAppRemoved keyed by name.
func (d *Dashboard) RemoveByName(name string) error {
	e, err := d.reg.Deregister(name)
	if err != nil {
		d.metrics.RecordDeregistration("not_found", d.reg.Len())
		d.logger.Debug("remove ignored", "app", name, "error", err)
		return err
	}
	d.metrics.RecordDeregistration("removed", d.reg.Len())
	d.logger.Info("app removed", "app", name)

	if !d.ready.Load() {
		return nil
	}
	return d.disp.Enqueue(taskRemove+":"+name, func(s *Shell) { d.unrender(s, e) })
}

// Click routes a click on the icon of the named app, as the front-end's
// pointer or keyboard handling would.
func (d *Dashboard) Click(name string) error {
	if !d.ready.Load() {
		return ErrNotReady
	}
	return d.disp.Enqueue(taskClick+":"+name, func(s *Shell) {
		slot, ok := s.ledger[name]
		if !ok {
			d.logger.Debug("click on unknown icon", "app", name)
			return
		}
		slot.Icon.Click()
	})
}

// Home routes a click on the home affordance.
func (d *Dashboard) Home() error {
	if !d.ready.Load() {
		return ErrNotReady
	}
	return d.disp.Enqueue("home", func(s *Shell) {
		if s.built {
			d.view.ShowGrid(s)
		}
	})
}

// Resize sets the area available to an active app's main view.
func (d *Dashboard) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("dashboard: invalid size %dx%d", width, height)
	}
	return d.disp.Enqueue("resize", func(s *Shell) {
		if s.width != width || s.height != height {
			s.width, s.height = width, height
			s.dirty = true
		}
	})
}

// build is the start task.
func (d *Dashboard) build(ctx context.Context, s *Shell, epoch uint64) {
	s.build(d.loadHome(ctx))
	d.view.ShowGrid(s)

	entries := d.reg.Snapshot()
	d.logger.Info("rendering apps", "count", len(entries))
	for _, e := range entries {
		d.renderGuarded(s, e)
	}

	if d.afterSnapshot != nil {
		d.afterSnapshot()
	}

	d.lifeMu.Lock()
	if d.epoch != epoch {
		d.lifeMu.Unlock()
		d.logger.Info("start superseded by stop")
		return
	}
	d.state.Store(int32(Ready))
	d.ready.Store(true)
	d.lifeMu.Unlock()
	d.metrics.SetReady(true)
	d.logger.Info("ui shown", "icons", s.grid.Len())

	if err := d.disp.Enqueue("reconcile", d.reconcile); err != nil {
		d.logger.Warn("reconcile not scheduled", "error", err)
	}
}

// destroy is the stop task.
func (d *Dashboard) destroy(s *Shell, epoch uint64) {
	d.ready.Store(false)
	d.metrics.SetReady(false)
	s.teardown()
	d.metrics.SetIcons(0)

	d.lifeMu.Lock()
	if d.epoch == epoch {
		d.state.Store(int32(Stopped))
	}
	d.lifeMu.Unlock()
	d.logger.Info("ui destroyed")
}

// loadHome loads the home affordance, falling back to a text glyph.
func (d *Dashboard) loadHome(ctx context.Context) app.Node {
	fallback := app.NewTextIcon("⌂", "Home")
	if d.cfg.Loader == nil {
		return fallback
	}
	node, err := d.cfg.Loader.LoadImage(ctx, d.cfg.HomeIcon)
	if err != nil || node == nil {
		d.logger.Warn("home icon unavailable", "name", d.cfg.HomeIcon, "error", err)
		return fallback
	}
	return node
}

// reconcile brings the ledger in line with the registry: it renders
// current entries that have no icon yet and drops icons whose entry is
// gone or superseded.
func (d *Dashboard) reconcile(s *Shell) {
	if !s.built {
		return
	}
	for _, slot := range s.grid.Slots() {
		if !d.reg.Current(slot.Name, slot.Generation) {
			if e, ok := d.reg.Lookup(slot.Name); ok && e.Generation > slot.Generation {
				continue // replaced below by render
			}
			d.drop(s, slot)
		}
	}
	for _, e := range d.reg.Snapshot() {
		if slot, ok := s.ledger[e.Name()]; ok && slot.Generation == e.Generation {
			continue
		}
		d.renderGuarded(s, e)
	}
	if !s.consistent() {
		d.logger.Error("icon ledger out of sync with grid", "icons", s.grid.Len(), "ledger", len(s.ledger))
	}
}

// renderCurrent renders e if it is still the registry's current entry for
// its name.
func (d *Dashboard) renderCurrent(s *Shell, e registry.Entry) {
	if !s.built {
		return
	}
	if !d.reg.Current(e.Name(), e.Generation) {
		d.metrics.RecordRenderSkipped()
		d.logger.Debug("render skipped, app no longer current", "app", e.Name())
		return
	}
	d.render(s, e)
}

// render inserts e's icon at its ordered position and wires its click
// handler. An older icon for the same name is replaced.
func (d *Dashboard) render(s *Shell, e registry.Entry) {
	name := e.Name()
	if old, ok := s.ledger[name]; ok {
		if old.Generation == e.Generation {
			return
		}
		d.drop(s, old)
	}

	icon := e.App.DashboardIcon()
	if icon == nil {
		d.logger.Warn("app has no dashboard icon", "app", name)
		return
	}

	slot := &Slot{
		Name:       name,
		Position:   e.App.PreferredPosition(),
		Generation: e.Generation,
		Icon:       icon,
	}
	a := e.App
	icon.OnClick(func() {
		// The handler may fire on any goroutine; the view switch is queued.
		err := d.disp.Enqueue(taskShow+":"+name, func(s *Shell) {
			if s.built && s.ledger[name] == slot {
				d.view.ShowApp(s, a)
			}
		})
		if err != nil {
			d.logger.Debug("icon click dropped", "app", name, "error", err)
		}
	})

	idx := s.grid.Insert(slot)
	s.ledger[name] = slot
	s.dirty = true

	d.metrics.RecordRender(s.grid.Len())
	d.logger.Debug("rendered icon",
		"app", name,
		"position", slot.Position,
		"index", idx,
		"size", s.grid.Len(),
	)
}

// renderGuarded renders e, containing a panic raised by the app's own
// handles so one faulty app cannot abort a bulk pass.
func (d *Dashboard) renderGuarded(s *Shell, e registry.Entry) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.RecordTask(taskRender, 0, true)
			d.logger.Error("render failed", "app", e.Name(), "panic", r)
		}
	}()
	d.render(s, e)
}

// unrender removes the icon rendered for e, unless a newer registration of
// the same name has already been rendered.
func (d *Dashboard) unrender(s *Shell, e registry.Entry) {
	if !s.built {
		return
	}
	slot, ok := s.ledger[e.Name()]
	if !ok || slot.Generation > e.Generation {
		return
	}
	d.drop(s, slot)
}

// drop removes slot from the grid and the ledger. If its app is active the
// view returns to the grid.
func (d *Dashboard) drop(s *Shell, slot *Slot) {
	s.grid.Remove(slot)
	if s.ledger[slot.Name] == slot {
		delete(s.ledger, slot.Name)
	}
	slot.Icon.OnClick(nil)
	s.dirty = true
	d.metrics.SetIcons(s.grid.Len())

	if s.view.Kind == ViewApp && s.view.App == slot.Name {
		d.view.ShowGrid(s)
	}
	d.logger.Debug("removed icon", "app", slot.Name, "size", s.grid.Len())
}

// publish is the dispatcher idle hook.
func (d *Dashboard) publish(s *Shell) {
	if !s.dirty {
		return
	}
	s.dirty = false

	f := s.snapshot(d.State(), d.ready.Load())
	d.frame.Store(&f)

	d.subsMu.Lock()
	subs := make([]func(Frame), 0, len(d.subs))
	for _, fn := range d.subs {
		subs = append(subs, fn)
	}
	d.subsMu.Unlock()

	for _, fn := range subs {
		fn(f)
	}
}
