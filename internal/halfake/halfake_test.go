package halfake

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActuator_TracksOnOffCalls(t *testing.T) {
	a := &Actuator{}
	require.NoError(t, a.TurnOn())
	require.True(t, a.On)
	require.NoError(t, a.TurnOff())
	require.False(t, a.On)
	require.Equal(t, 1, a.OnCalls)
	require.Equal(t, 1, a.OffCalls)
}

func TestEEPROM_WriteBusyClearsAfterConfiguredPolls(t *testing.T) {
	e := NewEEPROM(1024, 32, 64)
	require.NoError(t, e.WriteAt(0, []byte{1, 2, 3}))
	require.True(t, e.WriteBusy())
	require.True(t, e.WriteBusy())
	require.False(t, e.WriteBusy())
}

func TestDistanceToVolume_ClampsAtFull(t *testing.T) {
	f := NewDistanceToVolume(200, 1000)
	require.Equal(t, uint64(0), f(200))
	require.Equal(t, uint64(0), f(250))
	require.Equal(t, uint64(50_000), f(150))
}
