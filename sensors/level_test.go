package sensors

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mm2ul(mm uint32) uint64 { return uint64(mm) * 10 }

func TestLevel_AbsentWithoutMapping(t *testing.T) {
	l := NewLevel(nil, 0)
	require.False(t, l.Attached())
}

func TestLevel_UpdateComputesVolumeAndClearsFault(t *testing.T) {
	l := NewLevel(mm2ul, 0)
	l.SetFault(0)
	require.True(t, l.Faulted())
	l.UpdateDistance(100, 50)
	require.False(t, l.Faulted())
	require.EqualValues(t, 500, l.VolumeUL())
	require.True(t, l.Valid())
}

func TestLevel_StalenessBound(t *testing.T) {
	l := NewLevel(mm2ul, 1000)
	l.UpdateDistance(0, 10)
	require.False(t, l.Stale(500))
	require.True(t, l.Stale(1500))
}

func TestLevel_NoStaleBoundNeverStale(t *testing.T) {
	l := NewLevel(mm2ul, 0)
	l.UpdateDistance(0, 10)
	require.False(t, l.Stale(1_000_000))
}

func TestLevel_WrapSafeStaleness(t *testing.T) {
	l := NewLevel(mm2ul, 100)
	base := uint32(0xFFFFFFF0)
	l.UpdateDistance(base, 10)
	require.False(t, l.Stale(base+50))  // wraps past zero, 50 ms elapsed
	require.True(t, l.Stale(base+200)) // wraps past zero, 200 ms elapsed
}
