package hydroponic

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOverlap_SameDayWindow(t *testing.T) {
	// window [7:00,23:00) on day 0; query whole day.
	got := Overlap(0, MinutesPerDay, 7, 23)
	require.EqualValues(t, 16*60, got)
}

func TestOverlap_AlwaysOnWhenEqual(t *testing.T) {
	got := Overlap(0, 100, 9, 9)
	require.EqualValues(t, 100, got)
}

func TestOverlap_MidnightCrossingWindow(t *testing.T) {
	// window [22:00, 6:00): 8 hours per day.
	got := Overlap(0, MinutesPerDay, 22, 6)
	require.EqualValues(t, 8*60, got)
}

func TestOverlap_MonotonicInDelta(t *testing.T) {
	a := Overlap(0, 100, 7, 23)
	b := Overlap(0, 200, 7, 23)
	require.LessOrEqual(t, a, b)
}

func TestOverlap_AdditiveForNonOverlappingSegments(t *testing.T) {
	whole := Overlap(0, 2*MinutesPerDay, 7, 23)
	part1 := Overlap(0, MinutesPerDay, 7, 23)
	part2 := Overlap(MinutesPerDay, 2*MinutesPerDay, 7, 23)
	require.Equal(t, whole, part1+part2)
}

func TestOverlap_Scenario4MissedLight(t *testing.T) {
	// last_alive 08:00, boot at 10:30 same day, window [7:00,23:00).
	lastAliveMin := int64(8 * 60)
	nowMin := int64(10*60 + 30)
	got := Overlap(lastAliveMin, nowMin, 7, 23)
	require.EqualValues(t, 150, got)
}
