package main

import (
	"context"
	"log/slog"

	"github.com/alejandrodnm/oddsbot/config"
	"github.com/alejandrodnm/oddsbot/internal/adapters/notify"
	"github.com/alejandrodnm/oddsbot/internal/adapters/storage"
	"github.com/alejandrodnm/oddsbot/internal/application/sweep"
	"github.com/alejandrodnm/oddsbot/internal/metrics"
	"github.com/alejandrodnm/oddsbot/internal/ports"
)

// runSweep evalúa la grilla de sweep.ranges sobre todos los partidos, imprime
// el ranking y lo persiste en CSV y SQLite.
func runSweep(ctx context.Context, cfg *config.Config, m *metrics.Metrics) error {
	space := sweep.Space{Ranges: cfg.Sweep.Ranges, Fixed: cfg.Fixed()}

	// La grilla se valida antes de leer datos: un rango mal puesto aborta ya.
	if _, err := sweep.Grid(space.Ranges, space.Fixed, cfg.Sweep.MaxGridPoints); err != nil {
		return err
	}

	games, err := loadGames(ctx, cfg)
	if err != nil {
		return err
	}

	var opts []storage.Option
	if cfg.Sweep.SaveRuns {
		opts = append(opts, storage.WithRuns())
	}
	store, err := openStorage(cfg, opts...)
	if err != nil {
		return err
	}
	defer store.Close()

	console := notify.NewConsole(cfg.Sweep.Top)
	opt := sweep.New(sweep.Config{
		Workers:          cfg.Sweep.Workers,
		Reduction:        sweep.Reduction(cfg.Sweep.Reduction),
		UnitTimeout:      cfg.UnitTimeout(),
		MaxGridPoints:    cfg.Sweep.MaxGridPoints,
		StartingBankroll: cfg.Sweep.StartingBankroll,
		Progress:         throttledProgress(console),
		Recorder:         m,
	})

	report, err := opt.Run(ctx, space, games)
	if err != nil {
		return err
	}

	var notifier ports.ReportNotifier = console
	if err := notifier.NotifyReport(ctx, report); err != nil {
		slog.Warn("notifier error", "err", err)
	}

	path, err := notify.WriteReportCSV(cfg.Sweep.CSVDir, report)
	if err != nil {
		slog.Warn("csv export failed", "err", err)
	} else {
		slog.Info("csv written", "path", path)
	}

	if err := store.SaveReport(ctx, report); err != nil {
		return err
	}
	slog.Info("sweep saved", "id", report.ID, "dsn", cfg.Storage.DSN)
	return nil
}

// throttledProgress imprime cada 1% de avance y al terminar.
func throttledProgress(c *notify.Console) func(sweep.Progress) {
	last := -1
	return func(p sweep.Progress) {
		pct := 0
		if p.Total > 0 {
			pct = p.Completed * 100 / p.Total
		}
		if pct == last && p.Completed != p.Total {
			return
		}
		last = pct
		c.PrintProgress(p)
	}
}
