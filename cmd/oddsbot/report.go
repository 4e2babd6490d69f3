package main

import (
	"context"
	"errors"

	"github.com/alejandrodnm/oddsbot/config"
	"github.com/alejandrodnm/oddsbot/internal/adapters/notify"
)

// runReport reimprime un sweep guardado; sin -sweep-id usa el último.
func runReport(ctx context.Context, cfg *config.Config, sweepID string) error {
	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if sweepID == "" {
		sweepID, err = store.LatestReportID(ctx)
		if err != nil {
			return err
		}
		if sweepID == "" {
			return errors.New("no sweeps stored in " + cfg.Storage.DSN)
		}
	}

	report, err := store.GetReport(ctx, sweepID)
	if err != nil {
		return err
	}
	return notify.NewConsole(cfg.Sweep.Top).NotifyReport(ctx, report)
}
