package storage_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/oddsbot/internal/adapters/storage"
	"github.com/alejandrodnm/oddsbot/internal/domain"
)

func makeReport(id string, started time.Time) *domain.SweepReport {
	best := domain.NewParameterSet(map[string]float64{"alpha": 0.3, "stake": 2})
	worst := domain.NewParameterSet(map[string]float64{"alpha": 0.3, "stake": 10})
	return &domain.SweepReport{
		ID:         id,
		StartedAt:  started,
		Elapsed:    1500 * time.Millisecond,
		Reduction:  "sum",
		ParamNames: []string{"stake"},
		Fixed:      map[string]float64{"alpha": 0.3},
		GameIDs:    []string{"G1", "G2"},
		Ranked: []domain.Aggregate{
			{Rank: 1, Params: best, Score: 0.42, TotalPnL: 0.42, MaxDrawdown: -0.1, Trades: 8, Games: 2, Bankroll: 20.42},
			{Rank: 2, Params: worst, Score: math.Inf(-1), Games: 2, FailedRuns: 2, Failed: true, Bankroll: 20},
		},
		Results: []domain.SimulationResult{
			{Params: best, GameID: "G1", FinalPnL: 0.3, Score: 0.3, DecisionCount: 4, TickCount: 100},
			{Params: best, GameID: "G2", FinalPnL: 0.12, Score: 0.12, DecisionCount: 4, TickCount: 90},
			domain.FailedResult(worst, "G1", domain.ErrNoLiquidity, 0),
			domain.FailedResult(worst, "G2", domain.ErrNoLiquidity, 0),
		},
	}
}

func TestSQLiteStorage_SaveAndGetReport(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:", storage.WithRuns())
	require.NoError(t, err)
	defer db.Close()

	started := time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC)
	require.NoError(t, db.SaveReport(context.Background(), makeReport("s1", started)))

	got, err := db.GetReport(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, started, got.StartedAt)
	assert.Equal(t, 1500*time.Millisecond, got.Elapsed)
	assert.Equal(t, "sum", got.Reduction)
	assert.Equal(t, []string{"stake"}, got.ParamNames)
	assert.Equal(t, map[string]float64{"alpha": 0.3}, got.Fixed)
	assert.Equal(t, []string{"G1", "G2"}, got.GameIDs)
	require.Len(t, got.Ranked, 2)

	assert.Equal(t, "alpha=0.3 stake=2", got.Ranked[0].Params.String())
	assert.InDelta(t, 0.42, got.Ranked[0].Score, 1e-12)
	assert.Equal(t, 8, got.Ranked[0].Trades)

	assert.True(t, got.Ranked[1].Failed)
	assert.True(t, math.IsInf(got.Ranked[1].Score, -1), "failed score survives the round trip")
	assert.Equal(t, 1, got.FailedPoints())
}

func TestSQLiteStorage_GetReportMissing(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.GetReport(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLiteStorage_BestParams(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	_, err = db.BestParams(ctx, "")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	old := makeReport("old", time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))
	old.Ranked[0].Params = domain.NewParameterSet(map[string]float64{"alpha": 0.9})
	require.NoError(t, db.SaveReport(ctx, old))
	require.NoError(t, db.SaveReport(ctx, makeReport("new", time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC))))

	latest, err := db.LatestReportID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", latest)

	p, err := db.BestParams(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2.0, p.Float("stake", 0))

	p, err = db.BestParams(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, 0.9, p.Float("alpha", 0))
}

func TestSQLiteStorage_BestParamsAllFailed(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	r := makeReport("s1", time.Now().UTC())
	r.Ranked = r.Ranked[1:]
	r.Ranked[0].Rank = 1
	require.NoError(t, db.SaveReport(context.Background(), r))

	_, err = db.BestParams(context.Background(), "s1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLiteStorage_DuplicateSweepID(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	r := makeReport("dup", time.Now().UTC())
	require.NoError(t, db.SaveReport(context.Background(), r))
	assert.Error(t, db.SaveReport(context.Background(), r))
}

func TestSQLiteStorage_Decisions(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	at := time.Date(2025, 10, 19, 17, 0, 0, 0, time.UTC)
	buy := domain.Decision{Timestamp: at, Seq: 1, GameID: "G1", TeamID: "SF", Action: domain.ActionBuy,
		Price: 0.61, Smoothed: 0.6, Size: 3.2786885, Reason: domain.ReasonEntry}
	sell := buy
	sell.Seq, sell.Action, sell.Reason, sell.Timestamp = 9, domain.ActionSell, domain.ReasonTakeProfit, at.Add(time.Minute)

	require.NoError(t, db.SaveDecision(ctx, "sess-1", buy))
	require.NoError(t, db.SaveDecision(ctx, "sess-1", sell))
	require.NoError(t, db.SaveDecision(ctx, "sess-2", buy))

	got, err := db.Decisions(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, buy, got[0])
	assert.Equal(t, sell, got[1])
}
