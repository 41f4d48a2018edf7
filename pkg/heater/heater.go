// Package heater computes the heater plateau temperature for each
// acquisition tick. Modulating the hotplate turns film chemistry into a
// periodic resistance signal the analysis stages can work on.
package heater

import (
	"fmt"
	"time"

	"github.com/itohio/gasmox/pkg/config"
	"github.com/itohio/gasmox/pkg/sched"
)

// Phase is the heater state for one tick.
type Phase struct {
	TargetC uint16 // plateau temperature for this tick
	Level   int    // 0 low, 1 high (square wave only)
	Step    int    // profile step index (profile only)
	Cycle   uint64 // modulation cycle this tick belongs to, 0-based
}

// Controller maps a tick to a heater phase. Implementations are pure:
// the same tick always yields the same phase.
type Controller interface {
	Phase(tick sched.Tick) Phase
}

var _ Controller = (*SquareWave)(nil)
var _ Controller = (*Profile)(nil)
var _ Controller = (*Fixed)(nil)

// New builds the controller described by the configuration.
func New(cfg config.HeaterConfig) (Controller, error) {
	switch cfg.Mode {
	case "square":
		return NewSquareWave(cfg.LowC, cfg.HighC, cfg.Period, cfg.Half), nil
	case "profile":
		if len(cfg.Steps) == 0 {
			return nil, fmt.Errorf("heater profile has no steps")
		}
		return NewProfile(cfg.Steps), nil
	case "fixed":
		return NewFixed(cfg.FixedC), nil
	default:
		return nil, fmt.Errorf("unknown heater mode %q", cfg.Mode)
	}
}

// SquareWave alternates between two plateaus on a fixed period, low
// phase first. The phase is derived from the tick's nominal elapsed
// time, so a late tick lands in the same phase it would have on time.
type SquareWave struct {
	lowC   uint16
	highC  uint16
	period time.Duration
	half   time.Duration
}

// NewSquareWave creates a square wave controller. A half outside
// (0, period) falls back to a symmetric wave.
func NewSquareWave(lowC, highC uint16, period, half time.Duration) *SquareWave {
	if half <= 0 || half >= period {
		half = period / 2
	}
	return &SquareWave{lowC: lowC, highC: highC, period: period, half: half}
}

// Period returns the full modulation period.
func (s *SquareWave) Period() time.Duration {
	return s.period
}

func (s *SquareWave) Phase(tick sched.Tick) Phase {
	pos := tick.Elapsed % s.period
	cycle := uint64(tick.Elapsed / s.period)

	if pos < s.half {
		return Phase{TargetC: s.lowC, Level: 0, Cycle: cycle}
	}
	return Phase{TargetC: s.highC, Level: 1, Cycle: cycle}
}

// Profile steps through a temperature sequence, one step per tick,
// wrapping at the end. One pass through the sequence is one cycle.
type Profile struct {
	steps []uint16
}

// NewProfile creates a profile controller over the given steps.
func NewProfile(steps []uint16) *Profile {
	return &Profile{steps: steps}
}

// Len returns the number of steps in one cycle.
func (p *Profile) Len() int {
	return len(p.steps)
}

func (p *Profile) Phase(tick sched.Tick) Phase {
	n := uint64(len(p.steps))
	step := int(tick.Seq % n)
	return Phase{
		TargetC: p.steps[step],
		Step:    step,
		Cycle:   tick.Seq / n,
	}
}

// Fixed holds one constant plateau, for raw logging and sweeps.
type Fixed struct {
	targetC uint16
}

// NewFixed creates a fixed temperature controller.
func NewFixed(targetC uint16) *Fixed {
	return &Fixed{targetC: targetC}
}

func (f *Fixed) Phase(sched.Tick) Phase {
	return Phase{TargetC: f.targetC}
}
