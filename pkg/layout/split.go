package layout

// Constraint sizes one region of a Split.
type Constraint interface {
	constraint() // sealed marker
}

// Length allocates exactly Value cells.
type Length struct{ Value int }

func (Length) constraint() {}

// Min allocates at least Value cells and shares any surplus with Fill
// regions.
type Min struct{ Value int }

func (Min) constraint() {}

// Fill distributes remaining space proportional to Weight.
// A Weight of 0 is treated as 1.
type Fill struct{ Weight int }

func (Fill) constraint() {}

// SplitVertical splits area top-to-bottom. Fixed sizes are allocated
// first, the rest goes to Fill and Min regions by weight (a Min region
// weighs 1). If fixed sizes overflow the area, later regions are cut.
func SplitVertical(area Rect, constraints ...Constraint) []Rect {
	sizes := allocate(area.Height, constraints)
	out := make([]Rect, len(sizes))
	y := area.Y
	for i, h := range sizes {
		out[i] = Rect{X: area.X, Y: y, Width: area.Width, Height: h}
		y += h
	}
	return out
}

// SplitHorizontal splits area left-to-right with the same rules as
// SplitVertical.
func SplitHorizontal(area Rect, constraints ...Constraint) []Rect {
	sizes := allocate(area.Width, constraints)
	out := make([]Rect, len(sizes))
	x := area.X
	for i, w := range sizes {
		out[i] = Rect{X: x, Y: area.Y, Width: w, Height: area.Height}
		x += w
	}
	return out
}

func allocate(total int, constraints []Constraint) []int {
	total = max(total, 0)
	sizes := make([]int, len(constraints))
	weights := make([]int, len(constraints))

	used, totalWeight := 0, 0
	for i, c := range constraints {
		switch v := c.(type) {
		case Length:
			sizes[i] = max(v.Value, 0)
		case Min:
			sizes[i] = max(v.Value, 0)
			weights[i] = 1
		case Fill:
			weights[i] = max(v.Weight, 1)
		}
		used += sizes[i]
		totalWeight += weights[i]
	}

	if used > total {
		left := total
		for i := range sizes {
			sizes[i] = min(sizes[i], left)
			left -= sizes[i]
		}
		return sizes
	}

	remaining := total - used
	if totalWeight == 0 || remaining == 0 {
		return sizes
	}
	last := -1
	for i, w := range weights {
		if w > 0 {
			last = i
		}
	}
	given := 0
	for i, w := range weights {
		if w == 0 {
			continue
		}
		share := remaining * w / totalWeight
		if i == last {
			// last weighted region absorbs rounding
			share = remaining - given
		}
		sizes[i] += share
		given += share
	}
	return sizes
}
