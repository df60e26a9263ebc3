// Command hydrosim boots a hydroponic.Scheduler once and then drives a
// coordinator.Coordinator against in-memory halfake collaborators for a
// configured number of simulated seconds, logging ring events as they
// fire. The scheduler receives no minute ticks after Boot. Grounded on a flag-based, single-main, no-subcommands CLI entry
// point reworked into a fixed-period tick loop, which is how the
// embedded firmware's main superloop drives the cores it wraps.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"hydrocore/config"
	"hydrocore/coordinator"
	"hydrocore/durable"
	"hydrocore/eventring"
	"hydrocore/guard"
	"hydrocore/hydroponic"
	"hydrocore/internal/halfake"
	"hydrocore/pump"
	"hydrocore/recipe"
	"hydrocore/sensors"
	"hydrocore/telemetry/logging"
)

func main() {
	seconds := flag.Int("seconds", 120, "simulated seconds to run")
	configPath := flag.String("config", "", "optional YAML tunables file")
	flag.Parse()

	ctx := context.Background()
	logger := logging.New(slog.Default())

	tunables := defaultTunables()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "config:", err)
			os.Exit(1)
		}
		tunables = loaded
	}

	ring := eventring.New(64)
	co := buildCoordinator(tunables, ring)
	sched := buildScheduler(tunables)

	if err := sched.Boot(); err != nil {
		logger.ErrorCtx(ctx, "scheduler boot failed", "err", err)
	}

	var now uint32
	for i := 0; i < *seconds; i++ {
		co.Process(ctx, now)
		for {
			ev, ok := ring.Pop()
			if !ok {
				break
			}
			logger.InfoCtx(ctx, "event", "kind", ev.Kind, "error", ev.Error, "block", ev.Block)
		}
		now += 1000
	}
}

func defaultTunables() *config.Tunables {
	return &config.Tunables{
		Recipe: recipe.Config{
			NutrientCount:      2,
			PortionMinPerMille: 200,
			PortionMaxPerMille: 1000,
			ErrFullPPM:         300,
			PerLiterStepULPerL: 1000,
			MaxSingleDoseUL:    1000,
			MaxTotalDoseUL:     1_000_000,
		},
		Timing: coordinator.Timing{
			AfterDoseAerateMS: 5000,
			AfterDoseSettleMS: 3000,
		},
		LevelPolicy: coordinator.LevelPolicy{
			MainLowUL:      2_000_000,
			MainResumeUL:   3_000_000,
			MainCriticalUL: 500_000,
			MainHighUL:     9_000_000,
		},
		Hydroponic: hydroponic.DefaultConfig(),
	}
}

func buildCoordinator(t *config.Tunables, ring *eventring.Ring) *coordinator.Coordinator {
	co := coordinator.New(t.LevelPolicy, t.Timing, ring)

	mainLevel := sensors.NewLevel(halfake.NewDistanceToVolume(200, 50_000), 10_000)
	mainLevel.UpdateDistance(0, 20)
	co.MainLevel = mainLevel

	waterUnit := pump.NewUnit("water_in", &halfake.Actuator{}, 10_000, 0)
	co.WaterIn = guard.New(waterUnit, mainLevel, 0, guard.FaultBlocks)

	airUnit := pump.NewUnit("air", &halfake.Actuator{}, 0, 0)
	co.Air = guard.New(airUnit, nil, 0, guard.FaultIgnored)

	co.Recipe = recipe.New(t.Recipe)

	return co
}

func buildScheduler(t *config.Tunables) *hydroponic.Scheduler {
	rtc := &halfake.RTC{}
	light := &halfake.Actuator{}
	dht := &halfake.DHT22Reader{TempMilliC: 24000, HumidityMilliPct: 55000}
	eeprom := halfake.NewEEPROM(4096, 32, 64)
	store := hydroponic.NewRecordStore(durable.NewStore(eeprom, 1000), 0)
	return hydroponic.New(t.Hydroponic, rtc, light, dht, nil, store)
}
