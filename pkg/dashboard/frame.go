package dashboard

// IconFrame is one rendered icon of a Frame.
type IconFrame struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
	View     string `json:"-"`
}

// Frame is an immutable picture of the shell, produced on the render
// goroutine and safe to read from anywhere.
type Frame struct {
	Seq     uint64      `json:"seq"`
	State   State       `json:"state"`
	Ready   bool        `json:"ready"`
	Title   string      `json:"title"`
	View    ViewState   `json:"view"`
	Home    string      `json:"-"`
	Icons   []IconFrame `json:"icons"`
	Content string      `json:"-"`
	Width   int         `json:"width"`
	Height  int         `json:"height"`
}

// Order returns the icon names in display order.
func (f Frame) Order() []string {
	out := make([]string, len(f.Icons))
	for i, ic := range f.Icons {
		out[i] = ic.Name
	}
	return out
}

// snapshot renders s into a Frame.
func (s *Shell) snapshot(state State, ready bool) Frame {
	s.seq++
	f := Frame{
		Seq:    s.seq,
		State:  state,
		Ready:  ready,
		Title:  s.titleText,
		View:   s.view,
		Width:  s.width,
		Height: s.height,
	}
	if !s.built {
		return f
	}

	if s.home != nil {
		f.Home = s.home.View(homeWidth, homeHeight)
	}
	for _, slot := range s.grid.Slots() {
		f.Icons = append(f.Icons, IconFrame{
			Name:     slot.Name,
			Position: slot.Position,
			View:     slot.Icon.View(s.iconW, s.iconH),
		})
	}
	if s.view.Kind == ViewApp && s.content != nil {
		f.Content = s.content.View(s.width, s.height)
	}
	return f
}
