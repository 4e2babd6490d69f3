package sweep

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/alejandrodnm/oddsbot/internal/domain"
)

// Reduction folds per-game scores into one score per parameter set.
type Reduction string

const (
	ReduceSum  Reduction = "sum"
	ReduceMean Reduction = "mean"
	ReduceMin  Reduction = "min"
)

// ParseReduction valida el nombre configurado. Vacío equivale a sum.
func ParseReduction(s string) (Reduction, error) {
	switch r := Reduction(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return ReduceSum, nil
	case ReduceSum, ReduceMean, ReduceMin:
		return r, nil
	default:
		return "", fmt.Errorf("sweep.ParseReduction: unknown reduction %q: %w", s, domain.ErrInvalidParameter)
	}
}

func (r Reduction) reduce(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	switch r {
	case ReduceMin:
		m := math.Inf(1)
		for _, s := range scores {
			m = math.Min(m, s)
		}
		return m
	case ReduceMean:
		return sum(scores) / float64(len(scores))
	default:
		return sum(scores)
	}
}

func sum(xs []float64) float64 {
	var t float64
	for _, x := range xs {
		t += x
	}
	return t
}

// aggregate reduces the runs of one parameter set.
func aggregate(params domain.ParameterSet, runs []domain.SimulationResult, red Reduction, bankroll float64) domain.Aggregate {
	a := domain.Aggregate{Params: params, Games: len(runs)}
	scores := make([]float64, 0, len(runs))
	for _, r := range runs {
		scores = append(scores, r.Score)
		if r.Failed {
			a.FailedRuns++
			continue
		}
		a.TotalPnL += r.FinalPnL
		a.MaxDrawdown = math.Min(a.MaxDrawdown, r.MaxDrawdown)
		a.Trades += r.DecisionCount
	}
	a.Score = red.reduce(scores)
	a.Failed = a.Games > 0 && a.FailedRuns == a.Games
	a.Partial = a.FailedRuns > 0 && !a.Failed
	a.Bankroll = bankroll + a.TotalPnL
	return a
}

// rank sorts by score desc, then drawdown (less negative first), then
// parameter values, and assigns 1-based ranks.
func rank(aggs []domain.Aggregate) {
	sort.SliceStable(aggs, func(i, j int) bool {
		a, b := aggs[i], aggs[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.MaxDrawdown != b.MaxDrawdown {
			return a.MaxDrawdown > b.MaxDrawdown
		}
		return a.Params.Compare(b.Params) < 0
	})
	for i := range aggs {
		aggs[i].Rank = i + 1
	}
}
