package domain

import (
	"math"
	"time"
)

// FailedScore is the sentinel score of a failed run. It sorts below any
// real result and survives every reduction (sum, mean, min).
var FailedScore = math.Inf(-1)

// SimulationResult is the outcome of one (game, parameter set) run.
type SimulationResult struct {
	Params        ParameterSet
	GameID        string
	FinalPnL      float64
	MaxDrawdown   float64 // <= 0: min over time of running P&L minus running peak
	DecisionCount int     // BUY + SELL decisions
	TickCount     int
	Elapsed       time.Duration
	Score         float64
	Failed        bool
	Err           string
	Decisions     []Decision
}

// FailedResult builds the record for a run that errored or panicked.
func FailedResult(params ParameterSet, gameID string, err error, elapsed time.Duration) SimulationResult {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return SimulationResult{
		Params:  params,
		GameID:  gameID,
		Elapsed: elapsed,
		Score:   FailedScore,
		Failed:  true,
		Err:     msg,
	}
}

// Snapshot is a read-only copy of a game's positions for display surfaces.
type Snapshot struct {
	GameID        string
	At            time.Time
	Positions     []Position
	Smoothed      map[string]float64
	RealizedPnL   float64
	UnrealizedPnL float64
	TotalPnL      float64
	Ticks         int
	Trades        int
	Ended         bool
}

// OpenPositions counts positions still holding shares.
func (s Snapshot) OpenPositions() int {
	n := 0
	for _, p := range s.Positions {
		if p.Open {
			n++
		}
	}
	return n
}
