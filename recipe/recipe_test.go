package recipe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func scenario3Config() Config {
	return Config{
		NutrientCount: 4,
		PerLiterStepULPerL: 1000,
		PortionMinPerMille: 200,
		PortionMaxPerMille: 1000,
		ErrFullPPM: 300,
		MaxSingleDoseUL: 1000, // 1 mL
		MaxTotalDoseUL: 1_000_000,
	}
}

func TestStep_TDSLowPlansMixAndClampsFirstChunk(t *testing.T) {
	c := New(scenario3Config())
	c.Start()
	c.SetTargets(Targets{TDSEnabled: true, TDSTargetPPM: 800, TDSTolerancePPM: 50})

	step := c.Step(Snapshot{TDSFresh: true, TDSppm: 600, MainVolumeUL: 10_000_000})
	require.Equal(t, ActionDose, step.Action)
	require.Equal(t, KindNutrient, step.Kind)
	require.Equal(t, 0, step.NutrientIndex)
	require.EqualValues(t, 1000, step.VolumeUL) // 1500 clamped to 1 mL
}

func TestStep_RoundRobinAcrossNutrients(t *testing.T) {
	c := New(scenario3Config())
	c.Start()
	c.SetTargets(Targets{TDSEnabled: true, TDSTargetPPM: 800, TDSTolerancePPM: 50})

	snap := Snapshot{TDSFresh: true, TDSppm: 600, MainVolumeUL: 10_000_000}
	first := c.Step(snap)
	require.Equal(t, 0, first.NutrientIndex)
	c.OnDoseResult(true)

	second := c.Step(snap)
	require.Equal(t, ActionDose, second.Action)
	require.Equal(t, 1, second.NutrientIndex)
	require.EqualValues(t, 1000, second.VolumeUL)
}

func TestStep_NoActionWhilePendingUncommitted(t *testing.T) {
	c := New(scenario3Config())
	c.Start()
	c.SetTargets(Targets{TDSEnabled: true, TDSTargetPPM: 800, TDSTolerancePPM: 50})

	snap := Snapshot{TDSFresh: true, TDSppm: 600, MainVolumeUL: 10_000_000}
	c.Step(snap)
	again := c.Step(snap)
	require.Equal(t, ActionNone, again.Action)
}

func TestStep_TDSAboveUpperCancelsMixAndDilutes(t *testing.T) {
	c := New(scenario3Config())
	c.Start()
	c.SetTargets(Targets{TDSEnabled: true, TDSTargetPPM: 800, TDSTolerancePPM: 50})

	low := Snapshot{TDSFresh: true, TDSppm: 600, MainVolumeUL: 10_000_000}
	c.Step(low)
	c.OnDoseResult(true)

	high := Snapshot{TDSFresh: true, TDSppm: 900, MainVolumeUL: 10_000_000}
	step := c.Step(high)
	require.Equal(t, ActionDose, step.Action)
	require.Equal(t, KindWater, step.Kind)
}

func TestStep_DoneWhenWithinTolerance(t *testing.T) {
	c := New(scenario3Config())
	c.Start()
	c.SetTargets(Targets{TDSEnabled: true, TDSTargetPPM: 800, TDSTolerancePPM: 50})
	step := c.Step(Snapshot{TDSFresh: true, TDSppm: 810, MainVolumeUL: 10_000_000})
	require.Equal(t, ActionDone, step.Action)
}

func TestOnDoseResult_FailureClearsMixAndLatchesError(t *testing.T) {
	c := New(scenario3Config())
	c.Start()
	c.SetTargets(Targets{TDSEnabled: true, TDSTargetPPM: 800, TDSTolerancePPM: 50})
	snap := Snapshot{TDSFresh: true, TDSppm: 600, MainVolumeUL: 10_000_000}
	c.Step(snap)
	c.OnDoseResult(false)
	require.True(t, c.ErrorLatched())
	require.EqualValues(t, 0, c.TotalDosedUL())
}

func TestStep_PHCorrection(t *testing.T) {
	c := New(Config{NutrientCount: 4, PHStepUL: 2000, MaxSingleDoseUL: 5000, MaxTotalDoseUL: 1_000_000})
	c.Start()
	c.SetTargets(Targets{PHEnabled: true, PHTargetX1000: 6000, PHToleranceX1000: 200})
	step := c.Step(Snapshot{PHFresh: true, PHX1000: 5000})
	require.Equal(t, ActionDose, step.Action)
	require.Equal(t, KindPHUp, step.Kind)
	require.EqualValues(t, 2000, step.VolumeUL)
}

func TestSplitWeighted_SumsToTotal(t *testing.T) {
	enabled := [4]bool{true, true, true, false}
	weights := [4]uint64{1, 1, 1, 0}
	out := splitWeighted(10, enabled, weights)
	var sum uint64
	for _, v := range out {
		sum += v
	}
	require.EqualValues(t, 10, sum)
}

func TestGate_ZeroVolumeErrors(t *testing.T) {
	c := New(Config{NutrientCount: 4, MaxSingleDoseUL: 1000, MaxTotalDoseUL: 1_000_000})
	c.Start()
	c.SetTargets(Targets{PHEnabled: true, PHTargetX1000: 6000, PHToleranceX1000: 200})
	step := c.Step(Snapshot{PHFresh: true, PHX1000: 5000})
	require.Equal(t, ActionError, step.Action)
	require.True(t, c.ErrorLatched())
}
