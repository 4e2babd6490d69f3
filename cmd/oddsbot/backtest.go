package main

import (
	"context"
	"log/slog"

	"github.com/alejandrodnm/oddsbot/config"
	"github.com/alejandrodnm/oddsbot/internal/adapters/notify"
	"github.com/alejandrodnm/oddsbot/internal/application/simulation"
	"github.com/alejandrodnm/oddsbot/internal/strategy"
)

// runBacktest replays every recorded game with the fixed strategy params.
func runBacktest(ctx context.Context, cfg *config.Config) error {
	params := cfg.Params()
	if _, err := strategy.PolicyFromParams(params); err != nil {
		return err
	}

	games, err := loadGames(ctx, cfg)
	if err != nil {
		return err
	}

	slog.Info("=== BACKTEST ===", "params", params.String(), "games", len(games))

	results, err := simulation.New(simulation.Config{}).RunAll(ctx, games, params)
	if err != nil {
		return err
	}

	summary := simulation.Summarize(results, cfg.Sweep.StartingBankroll)
	notify.NewConsole(cfg.Sweep.Top).PrintSummary(params, results, summary)

	slog.Info("backtest complete",
		"games", summary.Games,
		"failed", summary.Failed,
		"pnl", summary.TotalPnL,
		"bankroll", summary.Bankroll,
	)
	return nil
}
