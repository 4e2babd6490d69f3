package strategy

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/oddsbot/internal/domain"
)

// Smoother is a causal exponential moving average with one state per team.
// The value returned by Update depends only on prices already passed to it.
// Not safe for concurrent use: one instance belongs to one game.
type Smoother struct {
	alpha float64
	state map[string]domain.SmoothingState
}

// NewSmoother builds a smoother. alpha must be in (0, 1].
func NewSmoother(alpha float64) (*Smoother, error) {
	if math.IsNaN(alpha) || alpha <= 0 || alpha > 1 {
		return nil, fmt.Errorf("strategy.NewSmoother: alpha %v outside (0,1]: %w", alpha, domain.ErrInvalidParameter)
	}
	return &Smoother{alpha: alpha, state: make(map[string]domain.SmoothingState)}, nil
}

// Alpha returns the smoothing factor.
func (s *Smoother) Alpha() float64 { return s.alpha }

// Update folds price into the team's EMA and returns the new smoothed value.
// The first observation seeds the average. Calling it twice with the same
// tick counts the tick twice.
func (s *Smoother) Update(teamID string, price float64) float64 {
	st := s.state[teamID]
	if !st.Initialized {
		st = domain.SmoothingState{Value: price, Initialized: true}
	} else {
		st.Value = s.alpha*price + (1-s.alpha)*st.Value
	}
	s.state[teamID] = st
	return st.Value
}

// State returns the current EMA state for a team.
func (s *Smoother) State(teamID string) (domain.SmoothingState, bool) {
	st, ok := s.state[teamID]
	return st, ok
}

// Values returns a copy of every initialized smoothed value.
func (s *Smoother) Values() map[string]float64 {
	out := make(map[string]float64, len(s.state))
	for team, st := range s.state {
		if st.Initialized {
			out[team] = st.Value
		}
	}
	return out
}

// AlphaFromSigma converts a Gaussian smoothing width in minutes into an EMA
// alpha for streams sampled samplesPerMinute times a minute.
// alpha = 1/(sigma*samples), clamped to [0.001, 0.5].
func AlphaFromSigma(sigmaMinutes, samplesPerMinute float64) float64 {
	points := sigmaMinutes * samplesPerMinute
	alpha := 1.0 / math.Max(1.0, points)
	return math.Max(0.001, math.Min(alpha, 0.5))
}
