package eventring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRing_FIFOOrder(t *testing.T) {
	r := New(4)
	r.Push(Event{Now: 1, Kind: KindMainLow})
	r.Push(Event{Now: 2, Kind: KindMainHigh})
	e1, ok := r.Pop()
	require.True(t, ok)
	require.EqualValues(t, 1, e1.Now)
	e2, ok := r.Pop()
	require.True(t, ok)
	require.EqualValues(t, 2, e2.Now)
}

func TestRing_OverflowDropsOldest(t *testing.T) {
	r := New(2)
	r.Push(Event{Now: 1})
	r.Push(Event{Now: 2})
	r.Push(Event{Now: 3}) // drops Now:1
	require.EqualValues(t, 1, r.Dropped())
	e, ok := r.Pop()
	require.True(t, ok)
	require.EqualValues(t, 2, e.Now)
}

func TestRing_PopEmpty(t *testing.T) {
	r := New(2)
	_, ok := r.Pop()
	require.False(t, ok)
}

func TestRing_LenAndCapacity(t *testing.T) {
	r := New(3)
	require.Equal(t, 3, r.Capacity())
	r.Push(Event{})
	r.Push(Event{})
	require.Equal(t, 2, r.Len())
}
