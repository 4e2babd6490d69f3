package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/oddsbot/config"
	"github.com/alejandrodnm/oddsbot/internal/adapters/kalshi"
	"github.com/alejandrodnm/oddsbot/internal/adapters/notify"
	"github.com/alejandrodnm/oddsbot/internal/adapters/replay"
	"github.com/alejandrodnm/oddsbot/internal/application/live"
	"github.com/alejandrodnm/oddsbot/internal/domain"
	"github.com/alejandrodnm/oddsbot/internal/metrics"
	"github.com/alejandrodnm/oddsbot/internal/ports"
	"github.com/google/uuid"
)

// runLive corre un loop por partido activo hasta que terminen o llegue Ctrl+C.
// Con -dry-run (o live.source=replay) los partidos salen de data.dir.
func runLive(ctx context.Context, cfg *config.Config, opts options, m *metrics.Metrics) error {
	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	params, err := liveParams(ctx, cfg, store, opts.sweepID)
	if err != nil {
		return err
	}

	source := cfg.Live.Source
	if opts.dryRun {
		source = "replay"
	}

	games, open, err := liveSource(ctx, cfg, source)
	if err != nil {
		return err
	}
	if len(games) == 0 {
		slog.Warn("no active games", "series", cfg.Live.SeriesTicker, "source", source)
		return nil
	}

	sessionID := uuid.NewString()
	slog.Info("=== LIVE (simulated fills) ===",
		"session", sessionID,
		"source", source,
		"games", len(games),
		"params", params.String(),
	)

	sup := live.NewSupervisor(params, open, live.Config{
		SessionID: sessionID,
		Sink:      notify.NewDashboard(cfg.DisplayInterval()),
		Store:     store,
		Observer:  m,
	})
	runErr := sup.Run(ctx, games)

	realized, unrealized := sup.Totals()
	slog.Info("live session finished",
		"session", sessionID,
		"realized", realized,
		"unrealized", unrealized,
	)
	return runErr
}

// liveParams devuelve los params fijos de config o el mejor set guardado.
func liveParams(ctx context.Context, cfg *config.Config, store ports.ReportStorage, sweepID string) (domain.ParameterSet, error) {
	if cfg.Live.ParamsFrom != "best" {
		return cfg.Params(), nil
	}
	best, err := store.BestParams(ctx, sweepID)
	if err != nil {
		return domain.ParameterSet{}, fmt.Errorf("live params from best sweep: %w", err)
	}
	// Lo que el sweep no barrió ni fijó sale de strategy.
	merged := cfg.Params().Map()
	for k, v := range best.Map() {
		merged[k] = v
	}
	return domain.NewParameterSet(merged), nil
}

// liveSource resuelve los partidos y cómo abrir su stream de ticks.
func liveSource(ctx context.Context, cfg *config.Config, source string) ([]domain.Game, live.StreamOpener, error) {
	if source == "replay" {
		games, err := loadGames(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		open := func(_ context.Context, g domain.Game) (ports.TickStream, error) {
			return replay.NewStream(g, cfg.TickInterval()), nil
		}
		return games, open, nil
	}

	if cfg.Kalshi.Credential == "" || cfg.Kalshi.PrivateKeyPath == "" {
		return nil, nil, errors.New("KALSHI_CREDENTIAL and KALSHI_PRIVATE_KEY_PATH are required for live Kalshi data")
	}
	signer, err := kalshi.NewSigner(kalshi.Credential{
		Token:          cfg.Kalshi.Credential,
		PrivateKeyPath: cfg.Kalshi.PrivateKeyPath,
	})
	if err != nil {
		return nil, nil, err
	}
	client := kalshi.NewClient(cfg.Kalshi.APIBase, signer)

	var finder ports.GameFinder = kalshi.NewFinder(client, cfg.Live.SeriesTicker)
	games, err := finder.ActiveGames(ctx)
	if err != nil {
		return nil, nil, err
	}

	var open live.StreamOpener
	switch source {
	case "poll":
		open = func(_ context.Context, g domain.Game) (ports.TickStream, error) {
			return kalshi.NewPoller(client, g, cfg.TickInterval()), nil
		}
	default:
		open = func(_ context.Context, g domain.Game) (ports.TickStream, error) {
			return kalshi.NewStream(kalshi.StreamConfig{
				URL:        cfg.Kalshi.WSURL,
				SampleRate: cfg.TickInterval(),
				Client:     client,
			}, signer, g), nil
		}
	}
	return games, open, nil
}
