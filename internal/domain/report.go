package domain

import "time"

// Aggregate is one row of a ranked sweep report: a parameter set across every
// game of the sweep.
type Aggregate struct {
	Rank        int
	Params      ParameterSet
	Score       float64
	TotalPnL    float64 // sum of FinalPnL over successful runs
	MaxDrawdown float64 // worst drawdown over successful runs
	Trades      int
	Games       int
	FailedRuns  int
	Failed      bool // every run failed
	Partial     bool // some, not all, runs failed
	Bankroll    float64
}

// SweepReport is the outcome of one sweep.
type SweepReport struct {
	ID         string
	StartedAt  time.Time
	Elapsed    time.Duration
	Reduction  string
	ParamNames []string // swept parameters, sorted
	Fixed      map[string]float64
	GameIDs    []string
	Ranked     []Aggregate
	// Results holds every (parameter set, game) run ordered by grid point,
	// then game.
	Results []SimulationResult
}

// Best returns the top-ranked parameter set, if any of its runs succeeded.
func (r *SweepReport) Best() (Aggregate, bool) {
	if r == nil || len(r.Ranked) == 0 || r.Ranked[0].Failed {
		return Aggregate{}, false
	}
	return r.Ranked[0], true
}

// FailedPoints counts parameter sets whose every run failed.
func (r *SweepReport) FailedPoints() int {
	n := 0
	for _, a := range r.Ranked {
		if a.Failed {
			n++
		}
	}
	return n
}
