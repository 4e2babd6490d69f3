package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/alejandrodnm/oddsbot/config"
	"github.com/alejandrodnm/oddsbot/internal/adapters/notify"
	"github.com/alejandrodnm/oddsbot/internal/adapters/storage"
	"github.com/alejandrodnm/oddsbot/internal/application/sweep"
	"github.com/alejandrodnm/oddsbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveParams_FromBestSweep(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer store.Close()

	best := domain.NewParameterSet(map[string]float64{"alpha": 0.3})
	require.NoError(t, store.SaveReport(ctx, &domain.SweepReport{
		ID:         "s1",
		ParamNames: []string{"alpha"},
		Ranked:     []domain.Aggregate{{Rank: 1, Params: best, Score: 1, Games: 1}},
	}))

	cfg, err := config.Parse([]byte("strategy:\n  alpha: 0.1\n  stake: 3\nlive:\n  params_from: best\n"))
	require.NoError(t, err)

	params, err := liveParams(ctx, cfg, store, "")
	require.NoError(t, err)
	assert.Equal(t, "alpha=0.3 stake=3", params.String())

	cfg.Live.ParamsFrom = "config"
	params, err = liveParams(ctx, cfg, store, "")
	require.NoError(t, err)
	assert.Equal(t, "alpha=0.1 stake=3", params.String())
}

func TestLiveParams_NoSweep(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer store.Close()

	cfg, err := config.Parse([]byte("live:\n  params_from: best\n"))
	require.NoError(t, err)

	_, err = liveParams(context.Background(), cfg, store, "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestThrottledProgress(t *testing.T) {
	var buf bytes.Buffer
	progress := throttledProgress(notify.NewConsoleWriter(&buf))

	for i := 1; i <= 1000; i++ {
		progress(sweep.Progress{Completed: i, Total: 1000})
	}
	assert.Equal(t, 101, strings.Count(buf.String(), "\r"))
}

func TestRun_UnknownMode(t *testing.T) {
	cfg, err := config.Parse([]byte("{}"))
	require.NoError(t, err)

	err = run(context.Background(), cfg, options{mode: "trade"}, nil)
	assert.ErrorContains(t, err, "unknown -mode")
}
