// Package layout computes terminal cell geometry for the dashboard screen:
// splitting the screen into bars and a body, and flowing icon cells across
// the body in display order.
package layout

// Rect represents a rectangular area in terminal cells.
type Rect struct {
	X, Y, Width, Height int
}

// Empty returns true if this rectangle has zero area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Right returns the X coordinate of the right edge (exclusive).
func (r Rect) Right() int {
	return r.X + r.Width
}

// Bottom returns the Y coordinate of the bottom edge (exclusive).
func (r Rect) Bottom() int {
	return r.Y + r.Height
}

// Inner returns a new Rect shrunk by margin on all sides.
// If the margin would cause negative dimensions, a zero-size rect is returned.
func (r Rect) Inner(margin int) Rect {
	if margin < 0 {
		margin = 0
	}
	return Rect{
		X:      r.X + margin,
		Y:      r.Y + margin,
		Width:  max(r.Width-2*margin, 0),
		Height: max(r.Height-2*margin, 0),
	}
}

// Contains returns true if the point (px, py) lies within this rectangle.
func (r Rect) Contains(px, py int) bool {
	return px >= r.X && px < r.Right() && py >= r.Y && py < r.Bottom()
}
