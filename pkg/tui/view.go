package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/ace-dash/pkg/dashboard"
	"gitlab.com/tinyland/lab/ace-dash/pkg/layout"
)

const (
	cellGap    = 1
	gridMargin = 1
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E0E0E0"))
	homeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7AA2F7")).PaddingRight(1)
	ruleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#3B4261"))
	statusText = lipgloss.NewStyle().Foreground(lipgloss.Color("#9AA5CE"))
	errorText  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7768E"))
	dimText    = lipgloss.NewStyle().Foreground(lipgloss.Color("#565F89"))

	cellStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B4261"))
	focusedCellStyle = cellStyle.BorderForeground(lipgloss.Color("#7AA2F7"))
)

// View renders the model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	rows := layout.SplitVertical(layout.Rect{Width: m.width, Height: m.height},
		layout.Length{Value: topBarHeight},
		layout.Fill{Weight: 1},
		layout.Length{Value: statusBarHeight},
	)

	out := lipgloss.JoinVertical(lipgloss.Left,
		m.renderTopBar(rows[0]),
		m.renderBody(rows[1]),
		m.renderStatus(rows[2]),
	)
	return m.zones.Scan(out)
}

func (m Model) renderTopBar(r layout.Rect) string {
	home := m.frame.Home
	if home == "" {
		home = "⌂"
	}
	// Only the first line of the home picture fits the bar.
	home, _, _ = strings.Cut(home, "\n")
	bar := lipgloss.JoinHorizontal(lipgloss.Center,
		m.zones.Mark(homeZoneID, homeStyle.Render(home)),
		titleStyle.Render(m.frame.Title),
	)
	bar = lipgloss.NewStyle().MaxWidth(r.Width).Render(bar)
	return lipgloss.JoinVertical(lipgloss.Left, bar, ruleStyle.Render(strings.Repeat("─", r.Width)))
}

func (m Model) renderBody(r layout.Rect) string {
	var body string
	switch {
	case !m.frame.Ready:
		body = lipgloss.Place(r.Width, r.Height, lipgloss.Center, lipgloss.Center,
			dimText.Render(m.frame.State.String()+"..."))
	case m.frame.View.Kind == dashboard.ViewApp:
		body = m.frame.Content
	case len(m.frame.Icons) == 0:
		body = lipgloss.Place(r.Width, r.Height, lipgloss.Center, lipgloss.Center,
			dimText.Render("no apps"))
	default:
		body = m.renderGrid(r)
	}
	return lipgloss.NewStyle().
		Width(r.Width).MaxWidth(r.Width).
		Height(r.Height).MaxHeight(r.Height).
		Render(body)
}

// renderGrid flows the icon cells into rows that fit r.
func (m Model) renderGrid(r layout.Rect) string {
	cols := m.flow().Columns(r)
	gap := strings.Repeat(" ", cellGap)

	var lines []string
	for start := 0; start < len(m.frame.Icons); start += cols {
		end := min(start+cols, len(m.frame.Icons))
		var cells []string
		for i := start; i < end; i++ {
			if i > start {
				cells = append(cells, gap)
			}
			cells = append(cells, m.renderCell(i))
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	grid := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return lipgloss.NewStyle().Margin(0, gridMargin).Render(grid)
}

func (m Model) renderCell(i int) string {
	ic := m.frame.Icons[i]
	style := cellStyle
	if i == m.focused {
		style = focusedCellStyle
	}
	return m.zones.Mark(iconZonePrefix+ic.Name, style.Render(ic.View))
}

func (m Model) renderStatus(r layout.Rect) string {
	var line string
	switch {
	case m.showHelp:
		line = m.help.View(m.keys)
	case m.status != "":
		line = errorText.Render(m.status)
	default:
		line = statusText.Render(m.frame.View.Kind.String()) + "  " + m.help.View(m.keys)
	}
	// Full help may span several lines; keep the bottom ones.
	if lines := strings.Split(line, "\n"); len(lines) > r.Height {
		line = strings.Join(lines[len(lines)-r.Height:], "\n")
	}
	return lipgloss.NewStyle().MaxWidth(r.Width).Render(line)
}

// flow describes the icon grid geometry, measured from the rendered icons.
func (m Model) flow() layout.Flow {
	w, h := 0, 0
	for _, ic := range m.frame.Icons {
		w = max(w, lipgloss.Width(ic.View))
		h = max(h, lipgloss.Height(ic.View))
	}
	frame := cellStyle.GetHorizontalFrameSize()
	return layout.Flow{
		CellWidth:  w + frame,
		CellHeight: h + cellStyle.GetVerticalFrameSize(),
		HGap:       cellGap,
		Margin:     gridMargin,
	}
}

// columns returns how many icons fit on one row of the body.
func (m Model) columns() int {
	return m.flow().Columns(layout.Rect{Width: m.width, Height: m.bodyHeight()})
}
