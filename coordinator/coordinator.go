// Package coordinator implements the Nutrient Tank Coordinator: the
// facade that wires pumps, guards, and tank levels into one
// safety-checked command state machine, emitting typed events into a
// bounded ring for an external consumer. The Recipe and Sensors fields
// are held on the struct but Process does not read them: it never calls
// the recipe controller or the sensor aggregator. Shaped after an engine
// facade pattern — a struct holding handles to every subsystem, a
// Snapshot-style read view, and a single driving loop method — reworked
// from a pipeline coordinator into a tick-driven safety interlock.
package coordinator

import (
	"context"
	"errors"

	oteltrace "go.opentelemetry.io/otel/trace"

	"hydrocore/eventring"
	"hydrocore/guard"
	"hydrocore/recipe"
	"hydrocore/sensors"
	"hydrocore/telemetry/metrics"
	"hydrocore/telemetry/tracing"
	"hydrocore/timeutil"
)

// State is the coordinator's top-level command state machine position.
type State int

const (
	StateIdle State = iota
	StateExecuting
	StateAerateAfterDose
	StateWaitSettle
	StateStopped
)

// LevelState is the three/two-zone hysteresis classification of a tank.
type LevelState int

const (
	LevelOK LevelState = iota
	LevelLow
	LevelCritical
	LevelHigh
)

// CommandKind enumerates the coordinator's command surface.
type CommandKind int

const (
	CmdAerate CommandKind = iota
	CmdCirculationSet
	CmdDrainSet
	CmdDoseVolume
	CmdControlStart
	CmdControlStop
	CmdEmergencyStop
)

// DoseTarget identifies which guard a DOSE_VOLUME command drives.
type DoseTarget int

const (
	TargetWater DoseTarget = iota
	TargetNutrient
	TargetPHUp
	TargetPHDown
	TargetReturn
)

func (t DoseTarget) String() string {
	switch t {
	case TargetWater:
		return "water"
	case TargetNutrient:
		return "nutrient"
	case TargetPHUp:
		return "ph_up"
	case TargetPHDown:
		return "ph_down"
	case TargetReturn:
		return "return"
	default:
		return "unknown"
	}
}

// Command is one request submitted to the single-slot queue.
type Command struct {
	Kind          CommandKind
	DurationMS    uint32
	On            bool
	Target        DoseTarget
	NutrientIndex int
	VolumeUL      uint64
}

var (
	ErrBusy       = errors.New("coordinator: busy")
	ErrInvalidArg = errors.New("coordinator: invalid argument")
)

// Timing holds the post-dose aerate/settle durations. Zero
// skips the corresponding phase.
type Timing struct {
	AfterDoseAerateMS   uint32 `yaml:"after_dose_aerate_ms"`
	AfterDoseSettleMS   uint32 `yaml:"after_dose_settle_ms"`
	AfterAerateSettleMS uint32 `yaml:"after_aerate_settle_ms"`
}

// LevelPolicy holds the hysteresis and permission thresholds. Zero means
// "unused" for any given field.
type LevelPolicy struct {
	MainLowUL          uint64 `yaml:"main_low_ul"`
	MainResumeUL       uint64 `yaml:"main_resume_ul"`
	MainCriticalUL     uint64 `yaml:"main_critical_ul"`
	MainHighUL         uint64 `yaml:"main_high_ul"`
	MainBlockReturnUL  uint64 `yaml:"main_block_return_ul"`
	ReturnRequestUL    uint64 `yaml:"return_request_ul"`
	ReturnResumeUL     uint64 `yaml:"return_resume_ul"`
	CirculationSliceMS uint32 `yaml:"circulation_slice_ms"`
	DrainSliceMS       uint32 `yaml:"drain_slice_ms"`
}

// Coordinator is the tank-level safety and sequencing facade.
type Coordinator struct {
	WaterIn     *guard.Guard
	Nutrient    [4]*guard.Guard
	PHUp        *guard.Guard
	PHDown      *guard.Guard
	Air         *guard.Guard
	Circulation *guard.Guard
	Drain       *guard.Guard
	Return      *guard.Guard

	MainLevel   *sensors.Level
	ReturnLevel *sensors.Level
	Sensors     *sensors.Aggregator
	Recipe      *recipe.Controller
	Ring        *eventring.Ring

	// Metrics is the backend dose totals, guard block counts, and ring
	// depth report through; New wires a noop Provider, so this is never
	// nil. Tracer, if set, wraps each Process tick in one span.
	Metrics metrics.Provider
	Tracer  *tracing.Tracer

	policy LevelPolicy
	timing Timing

	state     State
	hasActiveCmd bool
	activeCmd Command
	waitUntil uint32

	mainState     LevelState
	wasMainLow    bool
	returnState   LevelState
	wasReturnHigh bool

	circulationRequested bool
	drainRequested       bool
	requestReturnLatched bool
	requestRefillLatched bool

	lastError eventring.ErrorCode

	doseTotalUL       metrics.Counter
	guardBlockedTotal metrics.Counter
	ringDepth         metrics.Gauge
}

// New constructs a Coordinator. Guard/level/sensor/recipe/ring fields are
// set directly on the returned struct (the set this facade wires is
// variable per deployment — some tanks omit return-tank plumbing
// entirely). Metrics defaults to a noop Provider; call SetMetrics to
// attach a real backend.
func New(policy LevelPolicy, timing Timing, ring *eventring.Ring) *Coordinator {
	c := &Coordinator{policy: policy, timing: timing, Ring: ring, state: StateIdle}
	c.SetMetrics(nil)
	return c
}

// SetMetrics installs the metrics.Provider the coordinator reports
// through and (re)creates its counters and gauge from it.
func (c *Coordinator) SetMetrics(p metrics.Provider) {
	if p == nil {
		p = metrics.NewNoopProvider()
	}
	c.Metrics = p
	c.doseTotalUL = p.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "hydrocore", Subsystem: "recipe", Name: "dosed_ul_total",
		Help: "cumulative volume dosed through SubmitCommand, by target", Labels: []string{"target"},
	}})
	c.guardBlockedTotal = p.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "hydrocore", Subsystem: "guard", Name: "blocked_total",
		Help: "operations refused by a guard or permission check, by reason", Labels: []string{"reason"},
	}})
	c.ringDepth = p.NewGauge(metrics.GaugeOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "hydrocore", Subsystem: "eventring", Name: "depth",
		Help: "unread events currently buffered in the ring",
	}})
}

// State reports the current top-level state.
func (c *Coordinator) State() State { return c.state }

// HasActiveCommand reports whether the single command slot is occupied.
func (c *Coordinator) HasActiveCommand() bool { return c.hasActiveCmd }

// emit pushes an event onto the ring, stamping the tick number and, when
// ctx carries a valid span, the trace/span id an external consumer can
// correlate against the log/trace backend. Guard-block events also drive
// the guardBlockedTotal counter regardless of whether a ring is wired.
func (c *Coordinator) emit(ctx context.Context, now uint32, kind eventring.Kind, errCode eventring.ErrorCode, block eventring.BlockReason) {
	if kind == eventring.KindOperationBlocked {
		c.guardBlockedTotal.Inc(1, block.String())
	}
	if c.Ring == nil {
		return
	}
	var mainVol, returnVol uint64
	if c.MainLevel != nil {
		mainVol = c.MainLevel.VolumeUL()
	}
	if c.ReturnLevel != nil {
		returnVol = c.ReturnLevel.VolumeUL()
	}
	ev := eventring.Event{Now: now, Kind: kind, Error: errCode, Block: block, MainVolumeUL: mainVol, ReturnVolumeUL: returnVol}
	if sc := oteltrace.SpanContextFromContext(ctx); sc.IsValid() {
		ev.TraceID = sc.TraceID().String()
		ev.SpanID = sc.SpanID().String()
	}
	c.Ring.Push(ev)
	c.ringDepth.Set(float64(c.Ring.Len()))
}

// mainFaultedOrStale treats an absent main sensor as permissive and a
// faulted/stale one as critical for safety decisions.
func (c *Coordinator) mainFaultedOrStale(now uint32) bool {
	if c.MainLevel == nil || !c.MainLevel.Attached() {
		return false
	}
	return c.MainLevel.Faulted() || c.MainLevel.Stale(now)
}

func (c *Coordinator) computeMainState(now uint32) LevelState {
	if c.MainLevel == nil || !c.MainLevel.Attached() {
		return LevelOK
	}
	if c.mainFaultedOrStale(now) {
		return LevelCritical
	}
	vol := c.MainLevel.VolumeUL()
	if c.policy.MainCriticalUL > 0 && vol <= c.policy.MainCriticalUL {
		c.wasMainLow = true
		return LevelCritical
	}
	if c.wasMainLow {
		if c.policy.MainResumeUL > 0 && vol > c.policy.MainResumeUL {
			c.wasMainLow = false
		} else {
			return LevelLow
		}
	}
	if c.policy.MainLowUL > 0 && vol < c.policy.MainLowUL {
		c.wasMainLow = true
		return LevelLow
	}
	if c.policy.MainHighUL > 0 && vol > c.policy.MainHighUL {
		return LevelHigh
	}
	return LevelOK
}

func (c *Coordinator) computeReturnState() LevelState {
	if c.ReturnLevel == nil || !c.ReturnLevel.Attached() {
		return LevelOK
	}
	vol := c.ReturnLevel.VolumeUL()
	if c.wasReturnHigh {
		if c.policy.ReturnResumeUL > 0 && vol < c.policy.ReturnResumeUL {
			c.wasReturnHigh = false
		} else {
			return LevelHigh
		}
	}
	if c.policy.ReturnRequestUL > 0 && vol >= c.policy.ReturnRequestUL {
		c.wasReturnHigh = true
		return LevelHigh
	}
	return LevelOK
}

// updateLevelsAndEvents recomputes main/return zone states and emits
// rising-edge request events.
func (c *Coordinator) updateLevelsAndEvents(ctx context.Context, now uint32) {
	prevMainBad := c.mainState == LevelLow || c.mainState == LevelCritical
	prevReturnHigh := c.returnState == LevelHigh

	c.mainState = c.computeMainState(now)
	c.returnState = c.computeReturnState()

	mainBad := c.mainState == LevelLow || c.mainState == LevelCritical

	switch c.mainState {
	case LevelLow:
		c.emit(ctx, now, eventring.KindMainLow, eventring.ErrNone, eventring.BlockNone)
	case LevelCritical:
		c.emit(ctx, now, eventring.KindMainCritical, eventring.ErrNone, eventring.BlockNone)
	case LevelHigh:
		c.emit(ctx, now, eventring.KindMainHigh, eventring.ErrNone, eventring.BlockNone)
	}

	if mainBad && !prevMainBad && !c.requestReturnLatched {
		c.emit(ctx, now, eventring.KindRequestReturn, eventring.ErrNone, eventring.BlockNone)
		c.requestReturnLatched = true
		if c.returnLowOrAbsent() && !c.requestRefillLatched {
			c.emit(ctx, now, eventring.KindRequestRefill, eventring.ErrNone, eventring.BlockNone)
			c.requestRefillLatched = true
		}
	} else if !mainBad {
		c.requestReturnLatched = false
		c.requestRefillLatched = false
	}

	if c.returnState == LevelHigh && !prevReturnHigh {
		c.emit(ctx, now, eventring.KindRequestReturn, eventring.ErrNone, eventring.BlockNone)
	}
}

func (c *Coordinator) returnLowOrAbsent() bool {
	if c.ReturnLevel == nil || !c.ReturnLevel.Attached() {
		return true
	}
	return c.ReturnLevel.VolumeUL() == 0
}

// circulationPermitted / drainPermitted: forbidden if main is low/critical
// or main sensor is faulted/stale.
func (c *Coordinator) circulationPermitted(now uint32) bool {
	if c.mainFaultedOrStale(now) {
		return false
	}
	return c.mainState != LevelLow && c.mainState != LevelCritical
}

func (c *Coordinator) drainPermitted(now uint32) bool { return c.circulationPermitted(now) }

// additionsPermitted: forbidden if main >= main_high.
func (c *Coordinator) additionsPermitted() bool {
	if c.policy.MainHighUL == 0 || c.MainLevel == nil || !c.MainLevel.Attached() {
		return true
	}
	return c.MainLevel.VolumeUL() < c.policy.MainHighUL
}

// returnPermitted: additionally forbidden if main >= main_block_return.
func (c *Coordinator) returnPermitted() bool {
	if !c.additionsPermitted() {
		return false
	}
	if c.policy.MainBlockReturnUL == 0 || c.MainLevel == nil || !c.MainLevel.Attached() {
		return true
	}
	return c.MainLevel.VolumeUL() < c.policy.MainBlockReturnUL
}

// SetCirculationRequested is the CIRCULATION_SET command; it is always
// accepted regardless of the command slot's state.
func (c *Coordinator) SetCirculationRequested(on bool) { c.circulationRequested = on }

// SetDrainRequested toggles the (non-command-slot) drain request bit,
// analogous to circulation: a fixed slice is (re)started every tick the
// request is on and permitted, bounding continuous drain the same way
// circulation is bounded.
func (c *Coordinator) SetDrainRequested(on bool) { c.drainRequested = on }

func (c *Coordinator) applyCirculationPolicy(now uint32) {
	permitted := c.circulationPermitted(now)
	if c.Circulation == nil {
		return
	}
	if c.circulationRequested && permitted && !c.Circulation.Unit().IsRunning() {
		slice := c.policy.CirculationSliceMS
		if slice == 0 {
			slice = 60000
		}
		c.Circulation.StartForMS(now, slice)
	}
}

func (c *Coordinator) enforceDrainPermission(now uint32) {
	if c.Drain == nil {
		return
	}
	permitted := c.drainPermitted(now)
	if c.drainRequested && permitted && !c.Drain.Unit().IsRunning() {
		slice := c.policy.DrainSliceMS
		if slice == 0 {
			slice = 60000
		}
		c.Drain.StartForMS(now, slice)
	}
	if !permitted && c.Drain.Unit().IsRunning() {
		c.Drain.Unit().Stop()
	}
}

func (c *Coordinator) guardFor(cmd Command) *guard.Guard {
	switch cmd.Kind {
	case CmdAerate:
		return c.Air
	case CmdDoseVolume:
		switch cmd.Target {
		case TargetWater:
			return c.WaterIn
		case TargetNutrient:
			if cmd.NutrientIndex < 0 || cmd.NutrientIndex >= len(c.Nutrient) {
				return nil
			}
			return c.Nutrient[cmd.NutrientIndex]
		case TargetPHUp:
			return c.PHUp
		case TargetPHDown:
			return c.PHDown
		case TargetReturn:
			return c.Return
		}
	}
	return nil
}

func (c *Coordinator) requiresMixAfterDose(cmd Command) bool {
	if cmd.Kind != CmdDoseVolume {
		return false
	}
	switch cmd.Target {
	case TargetWater, TargetNutrient, TargetPHUp, TargetPHDown, TargetReturn:
		return true
	}
	return false
}

// SubmitCommand validates and, if permitted, starts the chosen guard,
// implementing the single-slot rule and the permission predicates above.
// CIRCULATION_SET and DRAIN_SET are delegated to SetCirculationRequested /
// SetDrainRequested regardless of the slot's state; EMERGENCY_STOP is
// handled unconditionally. ctx, if carrying a span, is
// stamped onto every event this call emits.
func (c *Coordinator) SubmitCommand(ctx context.Context, now uint32, cmd Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cmd.Kind == CmdEmergencyStop {
		c.emergencyStop(ctx, now)
		return nil
	}
	if cmd.Kind == CmdCirculationSet {
		c.SetCirculationRequested(cmd.On)
		return nil
	}
	if cmd.Kind == CmdDrainSet {
		c.SetDrainRequested(cmd.On)
		return nil
	}

	if c.state != StateIdle && c.state != StateWaitSettle {
		return ErrBusy
	}
	if c.hasActiveCmd {
		return ErrBusy
	}

	if cmd.Kind == CmdControlStart || cmd.Kind == CmdControlStop {
		c.emit(ctx, now, eventring.KindOperationBlocked, eventring.ErrInvalidArg, eventring.BlockNone)
		return ErrInvalidArg
	}

	if cmd.Kind == CmdAerate {
		if cmd.DurationMS == 0 {
			return ErrInvalidArg
		}
	} else if cmd.Kind == CmdDoseVolume {
		if cmd.VolumeUL == 0 {
			return ErrInvalidArg
		}
		switch cmd.Target {
		case TargetWater, TargetNutrient, TargetPHUp, TargetPHDown:
			if !c.additionsPermitted() {
				c.emit(ctx, now, eventring.KindOperationBlocked, eventring.ErrInvalidArg, eventring.BlockNone)
				return ErrInvalidArg
			}
		case TargetReturn:
			if !c.returnPermitted() {
				c.emit(ctx, now, eventring.KindOperationBlocked, eventring.ErrSensorFault, eventring.BlockNone)
				return ErrInvalidArg
			}
		}
	}

	g := c.guardFor(cmd)
	if g == nil {
		return ErrInvalidArg
	}

	var reason guard.BlockReason
	var err error
	if cmd.Kind == CmdAerate {
		reason, err = g.StartForMS(now, cmd.DurationMS)
	} else {
		reason, err = g.StartForVolumeUL(now, cmd.VolumeUL, nil)
	}
	if err != nil {
		return err
	}
	if reason != guard.BlockNone {
		c.emit(ctx, now, eventring.KindOperationBlocked, eventring.ErrPumpBlocked, toRingBlock(reason))
		return nil
	}

	if cmd.Kind == CmdDoseVolume {
		c.doseTotalUL.Inc(float64(cmd.VolumeUL), cmd.Target.String())
	}

	c.activeCmd = cmd
	c.hasActiveCmd = true
	c.state = StateExecuting
	c.emit(ctx, now, eventring.KindCommandStarted, eventring.ErrNone, eventring.BlockNone)
	return nil
}

func toRingBlock(r guard.BlockReason) eventring.BlockReason {
	switch r {
	case guard.BlockSensorFault:
		return eventring.BlockSensorFault
	case guard.BlockLowVolume:
		return eventring.BlockLowVolume
	case guard.BlockStaleLevel:
		return eventring.BlockStaleLevel
	default:
		return eventring.BlockNone
	}
}

func (c *Coordinator) emergencyStop(ctx context.Context, now uint32) {
	stopAll := func(g *guard.Guard) {
		if g != nil && g.Unit().IsRunning() {
			g.Unit().Stop()
		}
	}
	stopAll(c.WaterIn)
	for _, n := range c.Nutrient {
		stopAll(n)
	}
	stopAll(c.PHUp)
	stopAll(c.PHDown)
	stopAll(c.Air)
	stopAll(c.Circulation)
	stopAll(c.Drain)
	stopAll(c.Return)

	c.circulationRequested = false
	c.drainRequested = false
	c.hasActiveCmd = false
	c.activeCmd = Command{}
	c.state = StateStopped
	c.emit(ctx, now, eventring.KindEmergencyStop, eventring.ErrNone, eventring.BlockNone)
}

// Reset leaves STOPPED and returns to IDLE; it is the only way out of an
// emergency stop.
func (c *Coordinator) Reset() {
	if c.state == StateStopped {
		c.state = StateIdle
	}
}

func (c *Coordinator) advanceCommandStateMachine(ctx context.Context, now uint32) {
	switch c.state {
	case StateExecuting:
		g := c.guardFor(c.activeCmd)
		if g == nil || g.Unit().IsRunning() {
			return
		}
		if c.requiresMixAfterDose(c.activeCmd) && c.Air != nil {
			aerate := c.timing.AfterDoseAerateMS
			if aerate > 0 {
				c.Air.StartForMS(now, aerate)
				c.state = StateAerateAfterDose
				return
			}
			if c.timing.AfterDoseSettleMS > 0 {
				c.waitUntil = timeutil.AddMillis(now, c.timing.AfterDoseSettleMS)
				c.state = StateWaitSettle
				return
			}
			c.clearCommand(ctx, now)
			return
		}
		if c.activeCmd.Kind == CmdAerate && c.timing.AfterAerateSettleMS > 0 {
			c.waitUntil = timeutil.AddMillis(now, c.timing.AfterAerateSettleMS)
			c.state = StateWaitSettle
			return
		}
		c.clearCommand(ctx, now)

	case StateAerateAfterDose:
		if c.Air == nil || c.Air.Unit().IsRunning() {
			return
		}
		if c.timing.AfterDoseSettleMS > 0 {
			c.waitUntil = timeutil.AddMillis(now, c.timing.AfterDoseSettleMS)
			c.state = StateWaitSettle
			return
		}
		c.clearCommand(ctx, now)

	case StateWaitSettle:
		if !timeutil.Before(now, c.waitUntil) {
			c.clearCommand(ctx, now)
		}
	}
}

func (c *Coordinator) clearCommand(ctx context.Context, now uint32) {
	c.hasActiveCmd = false
	c.activeCmd = Command{}
	c.state = StateIdle
	c.emit(ctx, now, eventring.KindCommandCompleted, eventring.ErrNone, eventring.BlockNone)
}

// Process advances the coordinator by one tick, in a fixed order: guards
// tick first, then level/event updates, then circulation policy, then
// drain-permission enforcement, then command progress. When Tracer is
// set, the whole tick runs inside one span that every event emitted
// during it is correlated against.
func (c *Coordinator) Process(ctx context.Context, now uint32) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.Tracer != nil {
		tickCtx, span := c.Tracer.StartTick(ctx, "coordinator.process")
		ctx = tickCtx
		defer span.End()
	}

	tickGuard := func(g *guard.Guard) {
		if g != nil {
			g.Tick(now)
		}
	}
	tickGuard(c.WaterIn)
	for _, n := range c.Nutrient {
		tickGuard(n)
	}
	tickGuard(c.PHUp)
	tickGuard(c.PHDown)
	tickGuard(c.Air)
	tickGuard(c.Circulation)
	tickGuard(c.Drain)
	tickGuard(c.Return)

	if c.state != StateStopped {
		c.updateLevelsAndEvents(ctx, now)
		c.applyCirculationPolicy(now)
		c.enforceDrainPermission(now)
		c.advanceCommandStateMachine(ctx, now)
	}
}
