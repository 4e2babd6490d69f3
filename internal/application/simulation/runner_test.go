package simulation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/oddsbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 10, 19, 17, 0, 0, 0, time.UTC)

func fixedClock() func() time.Time {
	return func() time.Time { return t0 }
}

func game(id string, prices ...[2]any) domain.Game {
	g := domain.Game{ID: id}
	for i, p := range prices {
		g.Ticks = append(g.Ticks, domain.Tick{
			Timestamp: t0.Add(time.Duration(i) * time.Second),
			GameID:    id,
			TeamID:    p[0].(string),
			Price:     p[1].(float64),
			Seq:       int64(i),
		})
	}
	return g
}

func params(values map[string]float64) domain.ParameterSet {
	return domain.NewParameterSet(values)
}

func TestRunner_Scenario(t *testing.T) {
	g := game("G1",
		[2]any{"A", 0.50}, [2]any{"B", 0.50},
		[2]any{"A", 0.60}, [2]any{"B", 0.45},
		[2]any{"A", 0.75}, [2]any{"B", 0.40},
	)
	r := New(Config{KeepDecisions: true, Now: fixedClock()})

	res, err := r.Run(context.Background(), g, params(map[string]float64{"alpha": 1, "exit_threshold": 0.7}))
	require.NoError(t, err)

	assert.False(t, res.Failed)
	assert.Equal(t, "G1", res.GameID)
	assert.Equal(t, 6, res.TickCount)
	assert.Equal(t, 4, res.DecisionCount, "two buys, one take profit, one forced exit")
	assert.InDelta(t, 0.6, res.FinalPnL, 1e-9)
	assert.InDelta(t, res.FinalPnL, res.Score, 1e-12)

	// running P&L: 0, 0, +0.4, +0.2, +0.8 (A realized 1.0, B -0.2), +0.6
	assert.InDelta(t, -0.2, res.MaxDrawdown, 1e-9)

	last := res.Decisions[len(res.Decisions)-1]
	assert.Equal(t, domain.ReasonGameEnd, last.Reason)
	assert.Equal(t, "B", last.TeamID)
}

func TestRunner_Deterministic(t *testing.T) {
	g := game("G1",
		[2]any{"A", 0.31}, [2]any{"B", 0.69}, [2]any{"A", 0.36}, [2]any{"B", 0.64},
		[2]any{"A", 0.42}, [2]any{"B", 0.58}, [2]any{"A", 0.33}, [2]any{"B", 0.67},
	)
	p := params(map[string]float64{"alpha": 0.4, "gain_threshold": 0.02, "fall_fraction": 0.7})
	r := New(Config{KeepDecisions: true, Now: fixedClock()})

	a, err := r.Run(context.Background(), g, p)
	require.NoError(t, err)
	b, err := r.Run(context.Background(), g, p)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRunner_EmptyGame(t *testing.T) {
	r := New(Config{})
	res, err := r.Run(context.Background(), domain.Game{ID: "empty"}, params(nil))
	require.NoError(t, err)
	assert.False(t, res.Failed)
	assert.Zero(t, res.FinalPnL)
	assert.Zero(t, res.MaxDrawdown)
	assert.Zero(t, res.TickCount)
}

func TestRunner_TruncatedGameClosesEverything(t *testing.T) {
	g := game("G1", [2]any{"A", 0.40}, [2]any{"B", 0.60}, [2]any{"A", 0.30})
	r := New(Config{KeepDecisions: true})

	res, err := r.Run(context.Background(), g, params(map[string]float64{"alpha": 1}))
	require.NoError(t, err)

	realized, unrealized := domain.ReplayPnL(res.Decisions, g.LastPrices())
	assert.Zero(t, unrealized, "no position survives game end")
	assert.InDelta(t, res.FinalPnL, realized, 1e-9)
	assert.InDelta(t, 5*(0.30-0.40), res.FinalPnL, 1e-9)
}

func TestRunner_InvalidParams(t *testing.T) {
	r := New(Config{})
	res, err := r.Run(context.Background(), game("G1", [2]any{"A", 0.5}), params(map[string]float64{"alpha": 2}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidParameter))
	assert.True(t, res.Failed)
	assert.Equal(t, domain.FailedScore, res.Score)
}

func TestRunner_NoLiquidityFailsRun(t *testing.T) {
	r := New(Config{})
	res, err := r.Run(context.Background(), game("G1", [2]any{"A", 0.0}), params(nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoLiquidity))
	assert.True(t, res.Failed)
	assert.Contains(t, res.Err, "no liquidity")
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(Config{})
	res, err := r.Run(ctx, game("G1", [2]any{"A", 0.5}), params(nil))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, res.Failed)
}

func TestRunAll_AndSummarize(t *testing.T) {
	games := []domain.Game{
		game("G1", [2]any{"A", 0.50}, [2]any{"A", 0.60}),
		game("G2", [2]any{"A", 0.0}),
		game("G3", [2]any{"A", 0.50}, [2]any{"A", 0.40}),
	}
	r := New(Config{})

	results, err := r.RunAll(context.Background(), games, params(map[string]float64{"alpha": 1}))
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.True(t, results[1].Failed)

	s := Summarize(results, 20)
	assert.Equal(t, 3, s.Games)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 0.0, s.TotalPnL, 1e-9)
	assert.InDelta(t, 20.0, s.Bankroll, 1e-9)
	assert.InDelta(t, -0.4, s.WorstDrawdown, 1e-9)
}
