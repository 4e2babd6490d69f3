package strategy

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/oddsbot/internal/domain"
)

// Policy is the typed view of a ParameterSet used by the hedge machine.
// Zero thresholds disable the corresponding exit rule.
type Policy struct {
	Alpha          float64
	Stake          float64 // dollars bought per team at entry
	EntryTick      int     // a team is entered on its N-th tick
	MinStart       float64
	MaxStart       float64
	ExitThreshold  float64 // take profit on smoothed >= value
	StopLoss       float64 // stop on smoothed <= value
	GainThreshold  float64 // trailing rule arm level from the entry reference; negative disables it
	TrailFloor     bool    // sell when gain falls back under GainThreshold once armed
	FallFraction   float64 // sell when gain <= MaxGain*FallFraction once armed
	CheckpointTick int     // on the team's K-th tick, sell unless gain >= GainThreshold
	MaxReentries   int
}

// TrailingOff is the gain_threshold value that disables the trailing rules.
// Zero is a real threshold: it arms at entry and sells on the first loss.
const TrailingOff = -1.0

// DefaultPolicy buys both sides on the first tick with a $2 stake and holds
// them to the end of the game: every exit rule is off until a parameter sets it.
func DefaultPolicy() Policy {
	return Policy{
		Alpha:         0.25,
		Stake:         2.0,
		EntryTick:     1,
		MinStart:      0,
		MaxStart:      1,
		GainThreshold: TrailingOff,
		TrailFloor:    true,
	}
}

// PolicyFromParams reads a ParameterSet over the defaults and validates it.
func PolicyFromParams(p domain.ParameterSet) (Policy, error) {
	def := DefaultPolicy()

	entryTick, err := wholeParam(p, domain.ParamEntryTick, float64(def.EntryTick))
	if err != nil {
		return Policy{}, err
	}
	checkpoint, err := wholeParam(p, domain.ParamCheckpointTick, 0)
	if err != nil {
		return Policy{}, err
	}
	reentries, err := wholeParam(p, domain.ParamMaxReentries, 0)
	if err != nil {
		return Policy{}, err
	}

	pol := Policy{
		Alpha:          p.Float(domain.ParamAlpha, def.Alpha),
		Stake:          p.Float(domain.ParamStake, def.Stake),
		EntryTick:      entryTick,
		MinStart:       p.Float(domain.ParamMinStart, def.MinStart),
		MaxStart:       p.Float(domain.ParamMaxStart, def.MaxStart),
		ExitThreshold:  p.Float(domain.ParamExitThreshold, 0),
		StopLoss:       p.Float(domain.ParamStopLoss, 0),
		GainThreshold:  p.Float(domain.ParamGainThreshold, def.GainThreshold),
		TrailFloor:     p.Float(domain.ParamTrailFloor, 1) != 0,
		FallFraction:   p.Float(domain.ParamFallFraction, 0),
		CheckpointTick: checkpoint,
		MaxReentries:   reentries,
	}
	if err := pol.Validate(); err != nil {
		return Policy{}, err
	}
	return pol, nil
}

// Validate checks every threshold. Errors wrap domain.ErrInvalidParameter.
func (p Policy) Validate() error {
	for name, v := range map[string]float64{
		domain.ParamAlpha:         p.Alpha,
		domain.ParamStake:         p.Stake,
		domain.ParamMinStart:      p.MinStart,
		domain.ParamMaxStart:      p.MaxStart,
		domain.ParamExitThreshold: p.ExitThreshold,
		domain.ParamStopLoss:      p.StopLoss,
		domain.ParamGainThreshold: p.GainThreshold,
		domain.ParamFallFraction:  p.FallFraction,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalid("%s is not finite", name)
		}
	}

	switch {
	case p.Alpha <= 0 || p.Alpha > 1:
		return invalid("alpha %v outside (0,1]", p.Alpha)
	case p.Stake <= 0:
		return invalid("stake %v must be positive", p.Stake)
	case p.EntryTick < 1:
		return invalid("entry_tick %d must be >= 1", p.EntryTick)
	case p.MinStart < 0 || p.MaxStart > 1 || p.MinStart > p.MaxStart:
		return invalid("entry band [%v, %v] must satisfy 0 <= min_start <= max_start <= 1", p.MinStart, p.MaxStart)
	case p.ExitThreshold < 0 || p.ExitThreshold > 1:
		return invalid("exit_threshold %v outside [0,1]", p.ExitThreshold)
	case p.StopLoss < 0 || p.StopLoss > 1:
		return invalid("stop_loss %v outside [0,1]", p.StopLoss)
	case p.ExitThreshold > 0 && p.StopLoss >= p.ExitThreshold:
		return invalid("stop_loss %v must be below exit_threshold %v", p.StopLoss, p.ExitThreshold)
	case p.FallFraction < 0 || p.FallFraction > 1:
		return invalid("fall_fraction %v outside [0,1]", p.FallFraction)
	case p.CheckpointTick < 0:
		return invalid("checkpoint_tick %d must be >= 0", p.CheckpointTick)
	case p.MaxReentries < 0:
		return invalid("max_reentries %d must be >= 0", p.MaxReentries)
	}
	return nil
}

// Trailing reports whether the gain_threshold rules are enabled.
func (p Policy) Trailing() bool { return p.GainThreshold >= 0 }

// InBand reports whether a smoothed entry reference is inside [MinStart, MaxStart].
func (p Policy) InBand(smoothed float64) bool {
	return smoothed >= p.MinStart && smoothed <= p.MaxStart
}

func wholeParam(p domain.ParameterSet, name string, def float64) (int, error) {
	v := p.Float(name, def)
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, invalid("%s %v must be a whole number", name, v)
	}
	return int(v), nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("strategy.Policy: "+format+": %w", append(args, domain.ErrInvalidParameter)...)
}
