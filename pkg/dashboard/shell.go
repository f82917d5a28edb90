package dashboard

import "gitlab.com/tinyland/lab/ace-dash/pkg/app"

// Shell is the visual state of the dashboard. It is owned by the render
// goroutine and handed to every task; nothing else reads or writes it.
type Shell struct {
	title     string
	titleText string

	home    app.Node
	grid    *Orderer
	ledger  map[string]*Slot
	view    ViewState
	content app.Node
	active  app.App

	width, height int
	iconW, iconH  int

	built bool
	dirty bool
	seq   uint64
}

// newShell returns an unbuilt shell.
func newShell(title string, iconW, iconH int) *Shell {
	return &Shell{
		title:     title,
		titleText: title,
		width:     defaultWidth,
		height:    defaultHeight,
		iconW:     iconW,
		iconH:     iconH,
	}
}

// build creates the empty UI skeleton.
func (s *Shell) build(home app.Node) {
	s.home = home
	s.grid = NewOrderer()
	s.ledger = make(map[string]*Slot)
	s.view = ViewState{Kind: ViewGrid}
	s.titleText = s.title
	s.built = true
	s.dirty = true
}

// teardown releases UI resources and detaches every click handler.
func (s *Shell) teardown() {
	if s.grid != nil {
		for _, slot := range s.grid.Slots() {
			slot.Icon.OnClick(nil)
		}
		s.grid.Reset()
	}
	s.grid = nil
	s.ledger = nil
	s.home = nil
	s.content = nil
	s.active = nil
	s.view = ViewState{Kind: ViewGrid}
	s.titleText = s.title
	s.built = false
	s.dirty = true
}

// Built reports whether the UI skeleton exists.
func (s *Shell) Built() bool { return s.built }

// View returns the current view state.
func (s *Shell) View() ViewState { return s.view }

// Title returns the current title text.
func (s *Shell) Title() string { return s.titleText }

// Order returns the rendered icon names in display order.
func (s *Shell) Order() []string {
	if s.grid == nil {
		return nil
	}
	return s.grid.Names()
}

// Slot returns the ledger slot for name.
func (s *Shell) Slot(name string) (*Slot, bool) {
	slot, ok := s.ledger[name]
	return slot, ok
}

// consistent reports whether the ledger and the ordered sequence describe
// the same set of slots.
func (s *Shell) consistent() bool {
	if s.grid == nil {
		return len(s.ledger) == 0
	}
	if s.grid.Len() != len(s.ledger) {
		return false
	}
	for name, slot := range s.ledger {
		if slot.Name != name || s.grid.IndexOf(slot) < 0 {
			return false
		}
	}
	return true
}
