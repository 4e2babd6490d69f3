package simulation

import (
	"math"

	"github.com/alejandrodnm/oddsbot/internal/domain"
)

// Summary aggregates a backtest over many games.
type Summary struct {
	Games         int
	Failed        int
	Trades        int
	Ticks         int
	TotalPnL      float64
	WorstDrawdown float64
	Bankroll      float64
	Wins          int
	Losses        int
}

// Summarize folds per-game results into a Summary starting from bankroll.
func Summarize(results []domain.SimulationResult, bankroll float64) Summary {
	s := Summary{Games: len(results), Bankroll: bankroll}
	for _, r := range results {
		if r.Failed {
			s.Failed++
			continue
		}
		s.Trades += r.DecisionCount
		s.Ticks += r.TickCount
		s.TotalPnL += r.FinalPnL
		s.WorstDrawdown = math.Min(s.WorstDrawdown, r.MaxDrawdown)
		switch {
		case r.FinalPnL > 0:
			s.Wins++
		case r.FinalPnL < 0:
			s.Losses++
		}
	}
	s.Bankroll += s.TotalPnL
	return s
}
