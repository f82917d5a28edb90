package layout

// Flow places equally sized cells left-to-right, wrapping to a new row when
// the next cell would not fit the area's width. Rows that do not fit the
// area's height are still produced, so callers can scroll or clip.
type Flow struct {
	CellWidth  int
	CellHeight int
	HGap       int
	VGap       int
	Margin     int
}

// Columns returns how many cells fit on one row of area (at least 1).
func (f Flow) Columns(area Rect) int {
	inner := area.Inner(f.Margin)
	if f.CellWidth <= 0 || inner.Width < f.CellWidth {
		return 1
	}
	return 1 + (inner.Width-f.CellWidth)/(f.CellWidth+f.HGap)
}

// Place returns the rectangles of n cells in order.
func (f Flow) Place(area Rect, n int) []Rect {
	if n <= 0 {
		return nil
	}
	inner := area.Inner(f.Margin)
	cols := f.Columns(area)

	out := make([]Rect, n)
	for i := range out {
		row, col := i/cols, i%cols
		out[i] = Rect{
			X:      inner.X + col*(f.CellWidth+f.HGap),
			Y:      inner.Y + row*(f.CellHeight+f.VGap),
			Width:  f.CellWidth,
			Height: f.CellHeight,
		}
	}
	return out
}

// Move is a focus movement across a flowed grid.
type Move int

const (
	MoveLeft Move = iota
	MoveRight
	MoveUp
	MoveDown
	MoveNext
	MovePrev
)

// Step returns the cell index reached from cur by m in a grid of n cells
// laid out in cols columns. Left and right stop at the ends; up and down
// stay put when there is no cell in that direction; next and prev wrap.
func Step(cur, n, cols int, m Move) int {
	if n <= 0 {
		return -1
	}
	if cols <= 0 {
		cols = 1
	}
	if cur < 0 || cur >= n {
		return 0
	}
	switch m {
	case MoveLeft:
		if cur > 0 {
			return cur - 1
		}
	case MoveRight:
		if cur < n-1 {
			return cur + 1
		}
	case MoveUp:
		if cur-cols >= 0 {
			return cur - cols
		}
	case MoveDown:
		if cur+cols < n {
			return cur + cols
		}
	case MoveNext:
		return (cur + 1) % n
	case MovePrev:
		return (cur - 1 + n) % n
	}
	return cur
}
