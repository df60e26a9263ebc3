// Package recipe implements the Recipe Controller: a closed-loop planner
// that, given one snapshot per invocation, emits at most one dosing step
// and commits it transactionally once the caller reports the outcome.
// The shape — plan once, return a single pending action, require an
// explicit commit before planning the next one — is grounded on a
// circuit-breaker half-open probe pattern: a single in-flight trial
// whose result must be reported back before the breaker advances.
package recipe

// Kind identifies what a DOSE step actuates.
type Kind int

const (
	KindNone Kind = iota
	KindWater
	KindNutrient
	KindPHUp
	KindPHDown
)

// Action identifies which of the four outcomes Step produced.
type Action int

const (
	ActionNone Action = iota
	ActionDose
	ActionDone
	ActionError
)

// Step is the single outcome of one Step invocation.
type Step struct {
	Action Action
	Kind Kind
	NutrientIndex int
	VolumeUL uint64
}

// Config is the Recipe Controller's persistent configuration.
type Config struct {
	NutrientCount int `yaml:"nutrient_count"`
	// Weights are an explicit dosing ratio per nutrient index; a zero sum
	// over the enabled subset means "not configured".
	Weights [4]uint64 `yaml:"weights"`
	// PartsPerLiter is the fallback ratio source when Weights is unset.
	PartsPerLiter [4]uint64 `yaml:"parts_per_liter"`

	// PerLiterStepULPerL, when nonzero, is preferred over AbsoluteStepUL
	// for computing a correction's total volume.
	PerLiterStepULPerL uint64 `yaml:"per_liter_step_ul_per_l"`
	AbsoluteStepUL uint64 `yaml:"absolute_step_ul"`

	PortionMinPerMille uint64 `yaml:"portion_min_per_mille"`
	PortionMaxPerMille uint64 `yaml:"portion_max_per_mille"`
	ErrFullPPM uint64 `yaml:"err_full_ppm"`

	MaxTotalDoseUL uint64 `yaml:"max_total_dose_ul"`
	MaxSingleDoseUL uint64 `yaml:"max_single_dose_ul"`
	PHStepUL uint64 `yaml:"ph_step_ul"`
}

// Targets are the dynamic setpoints the controller doses toward.
type Targets struct {
	PHEnabled bool
	PHTargetX1000 int64
	PHToleranceX1000 int64

	TDSEnabled bool
	TDSTargetPPM int64
	TDSTolerancePPM int64
}

// Snapshot is the caller-supplied input to one Step invocation. The
// freshness flags and "is this genuinely new" decision are the caller's
// responsibility — the aggregator's AreNewerThan query answers the
// latter. Coordinator.Process does not call Step.
type Snapshot struct {
	PHFresh bool
	PHX1000 int64
	TDSFresh bool
	TDSppm int64
	MainVolumeUL uint64
}

type mixPlan struct {
	remaining [4]uint64
	enabled [4]bool
	order []int // enabled indices, index order, for round-robin
	cursor int
}

func (m *mixPlan) hasRemainder() bool {
	for _, idx := range m.order {
		if m.remaining[idx] > 0 {
			return true
		}
	}
	return false
}

// Controller is the Recipe Controller's runtime state.
type Controller struct {
	cfg Config
	targets Targets

	active bool
	totalDosed uint64
	errorLatch bool
	mix mixPlan
	pending Step
	hasPending bool
}

// New constructs a Controller from its persistent configuration.
func New(cfg Config) *Controller {
	return &Controller{cfg: cfg}
}

// SetTargets installs new dynamic setpoints.
func (c *Controller) SetTargets(t Targets) { c.targets = t }

// Start arms the controller (active flag) and clears prior state.
func (c *Controller) Start() {
	c.active = true
	c.errorLatch = false
	c.totalDosed = 0
	c.mix = mixPlan{}
	c.hasPending = false
}

// Stop disarms the controller; any in-flight plan is discarded.
func (c *Controller) Stop() {
	c.active = false
	c.mix = mixPlan{}
	c.hasPending = false
}

// Active reports the armed flag.
func (c *Controller) Active() bool { return c.active }

// TotalDosedUL returns the monotonic accumulated total.
func (c *Controller) TotalDosedUL() uint64 { return c.totalDosed }

// ErrorLatched reports whether a prior failed dose latched the error state.
func (c *Controller) ErrorLatched() bool { return c.errorLatch }

func ceilDiv(num, den uint64) uint64 {
	if den == 0 {
		return 0
	}
	return (num + den - 1) / den
}

func clampU64(v, lo, hi uint64) uint64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// portion computes the error-proportional scaling factor, in per-mille,
// between PortionMinPerMille and PortionMaxPerMille, reaching full
// portion once the absolute error meets ErrFullPPM.
func (c *Controller) portion(errPPM, tolerancePPM int64) uint64 {
	if c.cfg.ErrFullPPM == 0 {
		return c.cfg.PortionMaxPerMille
	}
	over := errPPM - tolerancePPM
	if over <= 0 {
		return c.cfg.PortionMinPerMille
	}
	span := c.cfg.PortionMaxPerMille - c.cfg.PortionMinPerMille
	raw := c.cfg.PortionMinPerMille + uint64(over)*span/c.cfg.ErrFullPPM
	return clampU64(raw, c.cfg.PortionMinPerMille, c.cfg.PortionMaxPerMille)
}

// correctionBase computes the full-portion total volume for one TDS
// correction, before portion scaling: the per-liter step times the main
// volume in liters if configured, else the absolute step times the sum
// of the enabled parts-per-liter weights, else the bare absolute step.
func (c *Controller) correctionBase(mainVolumeUL uint64, enabledSum func([4]uint64) uint64) uint64 {
	if c.cfg.PerLiterStepULPerL > 0 {
		// total = per_liter_step * volume_ul / 1_000_000, kept as one
		// scaled multiply-then-divide so a later *portion/1000 stays exact
		// for the textbook case (see recipe_test.go scenario 3).
		return c.cfg.PerLiterStepULPerL * mainVolumeUL / 1_000_000
	}
	if sum := enabledSum(c.cfg.PartsPerLiter); sum > 0 {
		return c.cfg.AbsoluteStepUL * sum
	}
	return c.cfg.AbsoluteStepUL
}

func (c *Controller) enabledMask() [4]bool {
	var m [4]bool
	for i := 0; i < c.cfg.NutrientCount && i < 4; i++ {
		m[i] = true
	}
	return m
}

func sumEnabled(values [4]uint64, enabled [4]bool) uint64 {
	var s uint64
	for i, on := range enabled {
		if on {
			s += values[i]
		}
	}
	return s
}

// resolveWeights picks explicit ratio > parts-per-liter > equal, over the
// enabled subset.
func (c *Controller) resolveWeights(enabled [4]bool) [4]uint64 {
	if sumEnabled(c.cfg.Weights, enabled) > 0 {
		return c.cfg.Weights
	}
	if sumEnabled(c.cfg.PartsPerLiter, enabled) > 0 {
		return c.cfg.PartsPerLiter
	}
	var equal [4]uint64
	for i, on := range enabled {
		if on {
			equal[i] = 1
		}
	}
	return equal
}

// splitWeighted assigns floor(T*w_i/S) to each enabled nutrient, then
// distributes the remainder one microliter at a time in index order.
func splitWeighted(total uint64, enabled [4]bool, weights [4]uint64) [4]uint64 {
	var out [4]uint64
	var sum uint64
	for i, on := range enabled {
		if on {
			sum += weights[i]
		}
	}
	if sum == 0 {
		return out
	}
	var assigned uint64
	for i, on := range enabled {
		if !on {
			continue
		}
		share := total * weights[i] / sum
		out[i] = share
		assigned += share
	}
	remainder := total - assigned
	order := enabledOrder(enabled)
	for i := 0; remainder > 0 && len(order) > 0; i++ {
		out[order[i%len(order)]]++
		remainder--
	}
	return out
}

func enabledOrder(enabled [4]bool) []int {
	var order []int
	for i, on := range enabled {
		if on {
			order = append(order, i)
		}
	}
	return order
}

func (c *Controller) planMix(totalDose uint64) {
	enabled := c.enabledMask()
	weights := c.resolveWeights(enabled)
	c.mix = mixPlan{
		remaining: splitWeighted(totalDose, enabled, weights),
		enabled:   enabled,
		order:     enabledOrder(enabled),
	}
}

func (c *Controller) nextMixIndex() (int, bool) {
	n := len(c.mix.order)
	if n == 0 {
		return 0, false
	}
	for i := 0; i < n; i++ {
		idx := c.mix.order[(c.mix.cursor+i)%n]
		if c.mix.remaining[idx] > 0 {
			return idx, true
		}
	}
	return 0, false
}

func (c *Controller) gate(volumeUL uint64) (uint64, bool) {
	if volumeUL == 0 {
		return 0, false
	}
	if c.cfg.MaxSingleDoseUL > 0 {
		volumeUL = clampU64(volumeUL, 0, c.cfg.MaxSingleDoseUL)
	}
	if c.cfg.MaxTotalDoseUL > 0 && c.totalDosed+volumeUL > c.cfg.MaxTotalDoseUL {
		return 0, false
	}
	return volumeUL, true
}

func (c *Controller) emitDose(kind Kind, nutrientIndex int, volumeUL uint64) Step {
	vol, ok := c.gate(volumeUL)
	if !ok {
		c.errorLatch = true
		c.pending = Step{}
		c.hasPending = false
		return Step{Action: ActionError}
	}
	s := Step{Action: ActionDose, Kind: kind, NutrientIndex: nutrientIndex, VolumeUL: vol}
	c.pending = s
	c.hasPending = true
	return s
}

// Step produces at most one dosing step per invocation, per the ordering
// and precedence rules of the recipe: drain any in-flight mix first,
// then TDS correction, then pH correction.
func (c *Controller) Step(s Snapshot) Step {
	if c.hasPending {
		return Step{Action: ActionNone}
	}
	if !c.active {
		return Step{Action: ActionNone}
	}

	if c.mix.hasRemainder() {
		if s.TDSFresh && c.targets.TDSEnabled && s.TDSppm > c.targets.TDSTargetPPM+c.targets.TDSTolerancePPM {
			c.mix = mixPlan{}
		} else {
			idx, ok := c.nextMixIndex()
			if !ok {
				c.mix = mixPlan{}
			} else {
				return c.emitDose(KindNutrient, idx, c.mix.remaining[idx])
			}
		}
	}

	if c.targets.TDSEnabled && s.TDSFresh {
		lower := c.targets.TDSTargetPPM - c.targets.TDSTolerancePPM
		upper := c.targets.TDSTargetPPM + c.targets.TDSTolerancePPM
		if s.TDSppm < lower {
			errPPM := c.targets.TDSTargetPPM - s.TDSppm
			portion := c.portion(errPPM, c.targets.TDSTolerancePPM)
			base := c.correctionBase(s.MainVolumeUL, func(v [4]uint64) uint64 {
				return sumEnabled(v, c.enabledMask())
			})
			total := ceilDiv(base*portion, 1000)
			c.planMix(total)
			idx, ok := c.nextMixIndex()
			if !ok {
				return Step{Action: ActionError}
			}
			return c.emitDose(KindNutrient, idx, c.mix.remaining[idx])
		}
		if s.TDSppm > upper {
			errPPM := s.TDSppm - c.targets.TDSTargetPPM
			portion := c.portion(errPPM, c.targets.TDSTolerancePPM)
			base := c.correctionBase(s.MainVolumeUL, func(v [4]uint64) uint64 {
				return sumEnabled(v, c.enabledMask())
			})
			total := ceilDiv(base*portion, 1000)
			return c.emitDose(KindWater, -1, total)
		}
	}

	if c.targets.PHEnabled && s.PHFresh {
		lower := c.targets.PHTargetX1000 - c.targets.PHToleranceX1000
		upper := c.targets.PHTargetX1000 + c.targets.PHToleranceX1000
		if s.PHX1000 < lower {
			return c.emitDose(KindPHUp, -1, c.cfg.PHStepUL)
		}
		if s.PHX1000 > upper {
			return c.emitDose(KindPHDown, -1, c.cfg.PHStepUL)
		}
	}

	return Step{Action: ActionDone}
}

// OnDoseResult commits or discards the in-flight step. Only success
// increments the accumulated total and (for a mix chunk) decrements the
// remainder and advances the round-robin cursor; failure clears the mix
// and latches the error state.
func (c *Controller) OnDoseResult(success bool) {
	if !c.hasPending {
		return
	}
	step := c.pending
	c.hasPending = false
	c.pending = Step{}

	if !success {
		c.mix = mixPlan{}
		c.errorLatch = true
		return
	}

	c.totalDosed += step.VolumeUL
	if step.Kind == KindNutrient && step.NutrientIndex >= 0 {
		c.mix.remaining[step.NutrientIndex] -= step.VolumeUL
		n := len(c.mix.order)
		for i, idx := range c.mix.order {
			if idx == step.NutrientIndex {
				c.mix.cursor = (i + 1) % n
				break
			}
		}
	}
}
