package app

import (
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Text handle colors.
const (
	colorAccent = "#A78BFA"
	colorDim    = "#9CA3AF"
)

// TextIcon is a terminal icon made of a glyph above a label.
type TextIcon struct {
	glyph string
	label string

	mu      sync.Mutex
	handler func()
}

// NewTextIcon creates a TextIcon.
func NewTextIcon(glyph, label string) *TextIcon {
	return &TextIcon{glyph: glyph, label: label}
}

// Label returns the icon caption.
func (i *TextIcon) Label() string { return i.label }

// OnClick replaces the click handler.
func (i *TextIcon) OnClick(fn func()) {
	i.mu.Lock()
	i.handler = fn
	i.mu.Unlock()
}

// Click invokes the click handler. The handler runs on the caller's
// goroutine, outside the icon's lock.
func (i *TextIcon) Click() {
	i.mu.Lock()
	fn := i.handler
	i.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// HasHandler reports whether a click handler is attached.
func (i *TextIcon) HasHandler() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.handler != nil
}

// View renders the glyph and the label centered in the given area.
func (i *TextIcon) View(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}

	glyph := lipgloss.NewStyle().Bold(true).Render(ansi.Truncate(i.glyph, width, ""))
	label := lipgloss.NewStyle().
		Foreground(lipgloss.Color(colorAccent)).
		Render(ansi.Truncate(i.label, width, "…"))

	lines := []string{glyph}
	if height > 1 {
		lines = append(lines, label)
	}
	return centerBlock(lines, width, height)
}

// TextView is a full-screen app view with a heading and body lines.
type TextView struct {
	title string
	body  []string
}

// NewTextView creates a TextView.
func NewTextView(title string, body ...string) *TextView {
	return &TextView{title: title, body: body}
}

// View renders the heading and body centered vertically within the
// available height.
func (v *TextView) View(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED"))

	bodyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(colorDim))

	lines := []string{titleStyle.Render(ansi.Truncate(v.title, width, "…"))}
	for _, l := range v.body {
		lines = append(lines, bodyStyle.Render(ansi.Truncate(l, width, "…")))
	}
	return centerBlock(lines, width, height)
}

// centerBlock centers lines horizontally and vertically in a width x height
// block, truncating lines that do not fit.
func centerBlock(lines []string, width, height int) string {
	var out []string

	topPad := (height - len(lines)) / 2
	if topPad < 0 {
		topPad = 0
	}
	for i := 0; i < topPad; i++ {
		out = append(out, "")
	}

	for _, l := range lines {
		out = append(out, lipgloss.PlaceHorizontal(width, lipgloss.Center, l))
	}

	for len(out) < height {
		out = append(out, "")
	}
	if len(out) > height {
		out = out[:height]
	}

	return strings.Join(out, "\n")
}
