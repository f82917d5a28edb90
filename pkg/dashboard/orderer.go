package dashboard

import "gitlab.com/tinyland/lab/ace-dash/pkg/app"

// Slot is a rendered icon together with the data stamped on it at render
// time. Position is copied from the app once and never re-read.
type Slot struct {
	Name       string
	Position   int
	Generation uint64
	Icon       app.Icon
}

// Orderer keeps slots ordered by Position. For slots i < j,
// slots[i].Position <= slots[j].Position, and slots with equal positions
// keep their insertion order.
//
// An Orderer belongs to the render goroutine and is not safe for
// concurrent use.
type Orderer struct {
	slots []*Slot
}

// NewOrderer returns an empty Orderer.
func NewOrderer() *Orderer {
	return &Orderer{}
}

// Insert places s before the first slot with a strictly greater position,
// or at the end if there is none, and returns the index it was placed at.
// The scan is linear; a dashboard holds a handful of icons.
func (o *Orderer) Insert(s *Slot) int {
	for i, cur := range o.slots {
		if cur.Position > s.Position {
			o.slots = append(o.slots, nil)
			copy(o.slots[i+1:], o.slots[i:])
			o.slots[i] = s
			return i
		}
	}
	o.slots = append(o.slots, s)
	return len(o.slots) - 1
}

// Remove deletes s by identity. It reports whether s was present.
func (o *Orderer) Remove(s *Slot) bool {
	for i, cur := range o.slots {
		if cur == s {
			copy(o.slots[i:], o.slots[i+1:])
			o.slots[len(o.slots)-1] = nil
			o.slots = o.slots[:len(o.slots)-1]
			return true
		}
	}
	return false
}

// IndexOf returns the index of s, or -1.
func (o *Orderer) IndexOf(s *Slot) int {
	for i, cur := range o.slots {
		if cur == s {
			return i
		}
	}
	return -1
}

// Len returns the number of slots.
func (o *Orderer) Len() int { return len(o.slots) }

// Slots returns a copy of the ordered slots.
func (o *Orderer) Slots() []*Slot {
	out := make([]*Slot, len(o.slots))
	copy(out, o.slots)
	return out
}

// Names returns the slot names in display order.
func (o *Orderer) Names() []string {
	out := make([]string, len(o.slots))
	for i, s := range o.slots {
		out[i] = s.Name
	}
	return out
}

// Reset removes every slot.
func (o *Orderer) Reset() {
	clear(o.slots)
	o.slots = o.slots[:0]
}
