package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func ok(name string) FuncProbe {
	return NewFuncProbe(name, func(ctx context.Context) ProbeResult {
		return ProbeResult{Status: StatusHealthy}
	})
}

func failing(name string, err error) FuncProbe {
	return NewFuncProbe(name, func(ctx context.Context) ProbeResult {
		return ProbeResult{Err: err}
	})
}

func degraded(name string) FuncProbe {
	return NewFuncProbe(name, func(ctx context.Context) ProbeResult {
		return ProbeResult{Status: StatusDegraded}
	})
}

func TestEvaluate_AllHealthy(t *testing.T) {
	e := NewEvaluator(ok("rtc"), ok("eeprom"))
	snap := e.Evaluate(context.Background())
	require.Equal(t, StatusHealthy, snap.Status)
	require.Len(t, snap.Probes, 2)
}

func TestEvaluate_WorstStatusWins(t *testing.T) {
	e := NewEvaluator(ok("rtc"), degraded("dht22"), failing("eeprom", errors.New("bus timeout")))
	snap := e.Evaluate(context.Background())
	require.Equal(t, StatusUnhealthy, snap.Status)
}

func TestEvaluate_ProbeErrorImpliesUnhealthy(t *testing.T) {
	e := NewEvaluator(failing("rtc", errors.New("no ack")))
	snap := e.Evaluate(context.Background())
	require.Equal(t, StatusUnhealthy, snap.Probes[0].Status)
}

func TestStatus_String(t *testing.T) {
	require.Equal(t, "healthy", StatusHealthy.String())
	require.Equal(t, "degraded", StatusDegraded.String())
	require.Equal(t, "unhealthy", StatusUnhealthy.String())
}
