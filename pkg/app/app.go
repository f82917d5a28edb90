// Package app defines the capability contract every dashboard app
// implements, together with the visual handle types the shell displays.
//
// The shell treats handles as opaque: it asks a Node to draw itself into a
// cell area and attaches a single click handler to each Icon. Concrete apps
// (music, navigation, phone, ...) live outside the shell and register
// themselves through the host container.
package app

// Node is an opaque visual handle. View renders the node into a block of
// at most width x height terminal cells.
type Node interface {
	View(width, height int) string
}

// Icon is a Node that can carry a click handler. The dashboard attaches
// exactly one handler per rendered icon. Click may be called from any
// goroutine; the attached handler only queues work for the dashboard.
type Icon interface {
	Node

	// OnClick replaces the click handler.
	OnClick(fn func())

	// Click invokes the current handler, if any.
	Click()
}

// App is a capability provider shown on the dashboard.
type App interface {
	// Name is the unique, stable identity of the app. It is the registry key.
	Name() string

	// PreferredPosition is an ordering hint. Lower values are placed first;
	// values need not be unique.
	PreferredPosition() int

	// DashboardIcon is the handle shown on the home grid.
	DashboardIcon() Icon

	// MainApp is the handle shown full-screen when the app is active.
	MainApp() Node
}

// Basic is a value-holder App, useful for hosts whose providers are plain
// data plus two handles.
type Basic struct {
	name     string
	position int
	icon     Icon
	main     Node
}

// New returns a Basic app with the given identity and handles.
func New(name string, position int, icon Icon, main Node) *Basic {
	return &Basic{name: name, position: position, icon: icon, main: main}
}

// Name returns the app name.
func (b *Basic) Name() string { return b.name }

// PreferredPosition returns the ordering hint.
func (b *Basic) PreferredPosition() int { return b.position }

// DashboardIcon returns the icon handle.
func (b *Basic) DashboardIcon() Icon { return b.icon }

// MainApp returns the main view handle.
func (b *Basic) MainApp() Node { return b.main }
