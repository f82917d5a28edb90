package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/tinyland/lab/ace-dash/pkg/app"
)

func slot(name string, pos int) *Slot {
	return &Slot{Name: name, Position: pos, Icon: app.NewTextIcon("*", name)}
}

func TestOrdererInsertsByPosition(t *testing.T) {
	o := NewOrderer()
	o.Insert(slot("music", 10))
	o.Insert(slot("nav", 5))
	o.Insert(slot("phone", 10))
	o.Insert(slot("clock", 0))
	o.Insert(slot("radio", 7))

	assert.Equal(t, []string{"clock", "nav", "radio", "music", "phone"}, o.Names())
}

func TestOrdererTiesKeepInsertionOrder(t *testing.T) {
	o := NewOrderer()
	for _, n := range []string{"a", "b", "c", "d"} {
		o.Insert(slot(n, 3))
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, o.Names())
}

func TestOrdererInsertReturnsIndex(t *testing.T) {
	o := NewOrderer()
	assert.Equal(t, 0, o.Insert(slot("a", 10)))
	assert.Equal(t, 0, o.Insert(slot("b", 1)))
	assert.Equal(t, 2, o.Insert(slot("c", 10)))
	assert.Equal(t, 1, o.Insert(slot("d", 5)))
}

func TestOrdererNegativePositions(t *testing.T) {
	o := NewOrderer()
	o.Insert(slot("zero", 0))
	o.Insert(slot("neg", -4))
	o.Insert(slot("big", 1<<30))
	assert.Equal(t, []string{"neg", "zero", "big"}, o.Names())
}

func TestOrdererRemoveByIdentity(t *testing.T) {
	o := NewOrderer()
	first := slot("x", 1)
	second := slot("x", 1)
	o.Insert(first)
	o.Insert(second)

	require.True(t, o.Remove(second))
	require.Equal(t, 1, o.Len())
	assert.Equal(t, 0, o.IndexOf(first))
	assert.Equal(t, -1, o.IndexOf(second))
}

func TestOrdererRemoveAbsent(t *testing.T) {
	o := NewOrderer()
	o.Insert(slot("a", 1))
	assert.False(t, o.Remove(slot("a", 1)))
	assert.Equal(t, 1, o.Len())
}

func TestOrdererSlotsIsCopy(t *testing.T) {
	o := NewOrderer()
	o.Insert(slot("a", 1))
	got := o.Slots()
	got[0] = nil
	assert.NotNil(t, o.Slots()[0])
}

func TestOrdererReset(t *testing.T) {
	o := NewOrderer()
	o.Insert(slot("a", 1))
	o.Insert(slot("b", 2))
	o.Reset()
	assert.Equal(t, 0, o.Len())
	assert.Empty(t, o.Names())
}
