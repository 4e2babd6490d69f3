package notify_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alejandrodnm/oddsbot/internal/adapters/notify"
	"github.com/alejandrodnm/oddsbot/internal/application/simulation"
	"github.com/alejandrodnm/oddsbot/internal/application/sweep"
	"github.com/alejandrodnm/oddsbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func params(alpha, stake float64) domain.ParameterSet {
	return domain.NewParameterSet(map[string]float64{"alpha": alpha, "stake": stake})
}

func sampleReport() *domain.SweepReport {
	good, bad := params(0.2, 2), params(0.4, 10)
	return &domain.SweepReport{
		ID:         "sweep-1",
		Reduction:  "sum",
		ParamNames: []string{"alpha", "stake"},
		GameIDs:    []string{"G1", "G2"},
		Ranked: []domain.Aggregate{
			{Rank: 1, Params: good, Score: 0.75, TotalPnL: 0.75, MaxDrawdown: -0.1, Trades: 6, Games: 2, Bankroll: 20.75},
			{Rank: 2, Params: bad, Score: domain.FailedScore, Games: 2, FailedRuns: 2, Failed: true, Bankroll: 20},
		},
		Results: []domain.SimulationResult{
			{Params: good, GameID: "G1", FinalPnL: 0.5, MaxDrawdown: -0.1, DecisionCount: 4, TickCount: 10, Score: 0.5},
			{Params: good, GameID: "G2", FinalPnL: 0.25, DecisionCount: 2, TickCount: 8, Score: 0.25},
			domain.FailedResult(bad, "G1", domain.ErrNoLiquidity, 0),
			domain.FailedResult(bad, "G2", domain.ErrNoLiquidity, 0),
		},
	}
}

func TestConsole_NotifyReport(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	require.NoError(t, c.NotifyReport(context.Background(), sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "sweep-1")
	assert.Contains(t, out, "0.7500")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "$20.75")
	assert.Contains(t, out, "1 param sets failed on every game")
	assert.Contains(t, out, "best: alpha=0.2 stake=2")
}

func TestConsole_NotifyReport_Empty(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	require.NoError(t, c.NotifyReport(context.Background(), &domain.SweepReport{}))
	assert.Contains(t, buf.String(), "empty sweep")
}

func TestConsole_PrintProgress(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	c.PrintProgress(sweep.Progress{Completed: 1, Total: 4, BestScore: math.Inf(-1)})
	c.PrintProgress(sweep.Progress{Completed: 4, Total: 4, Failed: 1, BestScore: 0.5, BestParams: params(0.2, 2)})

	out := buf.String()
	assert.Contains(t, out, "1/4 runs (25.0%)")
	assert.Contains(t, out, "4/4 runs (100.0%) failed:1 best:0.5000 (alpha=0.2 stake=2)")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestConsole_PrintSummary(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	r := sampleReport()
	results := []domain.SimulationResult{r.Results[0], r.Results[2]}
	c.PrintSummary(params(0.2, 2), results, simulation.Summarize(results, 20))

	out := buf.String()
	assert.Contains(t, out, "G1")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "Games:    2 (1 failed)")
	assert.Contains(t, out, "Bankroll: $20.50")
}

func TestEncodeReportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, notify.EncodeReportCSV(&buf, sampleReport()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)

	assert.Equal(t, []string{"alpha", "stake", "game", "pnl", "max_drawdown", "trades", "ticks", "score", "failed", "error", "rank", "aggregate_score"}, rows[0])
	assert.Equal(t, []string{"0.2", "2", "G1", "0.5", "-0.1", "4", "10", "0.5", "false", "", "1", "0.75"}, rows[1])
	assert.Equal(t, "true", rows[3][8])
	assert.Equal(t, "-Inf", rows[3][7])
	assert.Equal(t, "2", rows[3][10])
}

func TestWriteReportCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sweeps")

	path, err := notify.WriteReportCSV(dir, sampleReport())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sweep-1.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5, strings.Count(string(data), "\n"))
}

func snapshot(game string, trades int, ended bool) domain.Snapshot {
	return domain.Snapshot{
		GameID: game,
		Positions: []domain.Position{
			{TeamID: "A", State: domain.StateEntered, Shares: 4, AvgEntryPrice: 0.5, LastPrice: 0.6, Open: true},
		},
		Smoothed:      map[string]float64{"A": 0.55},
		UnrealizedPnL: 0.4,
		TotalPnL:      0.4,
		Trades:        trades,
		Ended:         ended,
	}
}

func TestDashboard_Throttled(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2025, 10, 19, 20, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	d := notify.NewDashboardWriter(&buf, 10*time.Second, clock)
	ctx := context.Background()

	require.NoError(t, d.PublishSnapshot(ctx, snapshot("G1", 1, false)))
	assert.Equal(t, 1, d.Renders(), "first snapshot always renders")

	now = now.Add(time.Second)
	require.NoError(t, d.PublishSnapshot(ctx, snapshot("G1", 1, false)))
	assert.Equal(t, 1, d.Renders(), "within interval, no trade")

	now = now.Add(time.Second)
	require.NoError(t, d.PublishSnapshot(ctx, snapshot("G1", 2, false)))
	assert.Equal(t, 2, d.Renders(), "trade forces a refresh")

	now = now.Add(10 * time.Second)
	require.NoError(t, d.PublishSnapshot(ctx, snapshot("G2", 0, false)))
	assert.Equal(t, 3, d.Renders(), "interval elapsed")

	now = now.Add(time.Second)
	require.NoError(t, d.PublishSnapshot(ctx, snapshot("G2", 0, true)))
	assert.Equal(t, 4, d.Renders(), "ended game renders")

	out := buf.String()
	assert.Contains(t, out, "G2 (ended)")
	assert.Contains(t, out, "ENTERED")
	assert.Contains(t, out, "0.5500")
	assert.Contains(t, out, "Total: $0.8000")
}
