package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/oddsbot/config"
	"github.com/alejandrodnm/oddsbot/internal/adapters/replay"
	"github.com/alejandrodnm/oddsbot/internal/adapters/storage"
	"github.com/alejandrodnm/oddsbot/internal/domain"
	"github.com/alejandrodnm/oddsbot/internal/metrics"
	"github.com/alejandrodnm/oddsbot/internal/ports"
)

// options agrupa los flags de la línea de comandos.
type options struct {
	mode    string
	dryRun  bool
	sweepID string
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	mode := flag.String("mode", "backtest", "backtest | sweep | live | report")
	dryRun := flag.Bool("dry-run", false, "live mode: replay recorded games instead of Kalshi")
	sweepID := flag.String("sweep-id", "", "report/live: sweep to read (default: latest)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	opts := options{mode: *mode, dryRun: *dryRun, sweepID: *sweepID}
	slog.Info("oddsbot starting",
		"config", *configPath,
		"mode", opts.mode,
		"dry_run", opts.dryRun,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	stopMetrics := serveMetrics(cfg.Metrics.Addr, m)
	defer stopMetrics()

	if err := run(ctx, cfg, opts, m); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("oddsbot interrupted")
			return
		}
		slog.Error("oddsbot exited with error", "mode", opts.mode, "err", err)
		stopMetrics()
		os.Exit(1)
	}

	slog.Info("oddsbot stopped cleanly")
}

func run(ctx context.Context, cfg *config.Config, opts options, m *metrics.Metrics) error {
	switch opts.mode {
	case "backtest":
		return runBacktest(ctx, cfg)
	case "sweep":
		return runSweep(ctx, cfg, m)
	case "live":
		return runLive(ctx, cfg, opts, m)
	case "report":
		return runReport(ctx, cfg, opts.sweepID)
	default:
		return errors.New("unknown -mode " + opts.mode + " (backtest|sweep|live|report)")
	}
}

// loadGames lee los partidos grabados de data.dir.
func loadGames(ctx context.Context, cfg *config.Config) ([]domain.Game, error) {
	var loader ports.GameLoader = replay.NewLoader(cfg.Data.Dir, cfg.Data.Weeks...)
	games, err := loader.LoadGames(ctx)
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, errors.New("no complete games under " + cfg.Data.Dir)
	}
	slog.Info("games loaded", "dir", cfg.Data.Dir, "weeks", cfg.Data.Weeks, "games", len(games))
	return games, nil
}

func openStorage(cfg *config.Config, opts ...storage.Option) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN, opts...)
	if err != nil {
		return nil, err
	}
	slog.Debug("storage opened", "dsn", cfg.Storage.DSN)
	return store, nil
}

// serveMetrics expone /metrics en addr. Devuelve la función de parada.
func serveMetrics(addr string, m *metrics.Metrics) func() {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("metrics server stopped", "err", err)
		}
	}()
	slog.Info("metrics listening", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
