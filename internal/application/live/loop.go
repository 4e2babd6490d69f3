// Package live drives the hedge strategy against real-time tick streams,
// one loop per game.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/oddsbot/internal/domain"
	"github.com/alejandrodnm/oddsbot/internal/ports"
	"github.com/alejandrodnm/oddsbot/internal/strategy"
)

const (
	defaultBackoff    = time.Second
	defaultMaxBackoff = 10 * time.Second
)

// Observer receives loop events (metrics).
type Observer interface {
	ObserveSnapshot(snap domain.Snapshot)
	ObserveDisconnect(gameID string)
}

// Config controla el comportamiento de cada loop en vivo.
type Config struct {
	SessionID  string
	Backoff    time.Duration // primera pausa tras una desconexión
	MaxBackoff time.Duration
	Sink       ports.SnapshotSink
	Store      ports.DecisionStorage
	Observer   Observer
}

func (c *Config) setDefaults() {
	if c.Backoff <= 0 {
		c.Backoff = defaultBackoff
	}
	if c.MaxBackoff < c.Backoff {
		c.MaxBackoff = max(defaultMaxBackoff, c.Backoff)
	}
}

// Loop runs one game's pipeline over a live stream.
type Loop struct {
	gameID string
	stream ports.TickStream
	pipe   *strategy.Pipeline
	cfg    Config

	mu   sync.RWMutex
	snap domain.Snapshot
}

// NewLoop builds a loop with fresh strategy state for gameID.
func NewLoop(gameID string, params domain.ParameterSet, stream ports.TickStream, cfg Config) (*Loop, error) {
	pipe, err := strategy.NewPipeline(gameID, params)
	if err != nil {
		return nil, fmt.Errorf("live.NewLoop: %w", err)
	}
	cfg.setDefaults()
	l := &Loop{gameID: gameID, stream: stream, pipe: pipe, cfg: cfg}
	l.snap = pipe.Snapshot(time.Time{})
	return l, nil
}

// GameID returns the game this loop trades.
func (l *Loop) GameID() string { return l.gameID }

// Snapshot returns the state published after the last processed tick.
func (l *Loop) Snapshot() domain.Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap
}

// Run consumes the stream until the game ends or ctx is cancelled.
// End of game forces an exit on every open position and returns nil.
// Disconnects pause with exponential backoff and resume with the strategy
// state intact. ErrNoLiquidity is logged and the position held.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stream.Close()

	backoff := l.cfg.Backoff
	slog.Info("live loop started", "game", l.gameID, "session", l.cfg.SessionID, "params", l.pipe.Params().String())

	for {
		tick, err := l.stream.Next(ctx)
		switch {
		case err == nil:
			backoff = l.cfg.Backoff
		case domain.IsGameOver(err):
			l.finish(ctx)
			return nil
		case ctx.Err() != nil:
			return fmt.Errorf("live.Run: game %s: %w", l.gameID, ctx.Err())
		case errors.Is(err, domain.ErrSourceDisconnected):
			slog.Warn("tick source disconnected, retrying",
				"game", l.gameID,
				"backoff", backoff,
				"err", err,
			)
			if l.cfg.Observer != nil {
				l.cfg.Observer.ObserveDisconnect(l.gameID)
			}
			if err := sleep(ctx, backoff); err != nil {
				return fmt.Errorf("live.Run: game %s: %w", l.gameID, err)
			}
			backoff = min(backoff*2, l.cfg.MaxBackoff)
			continue
		default:
			return fmt.Errorf("live.Run: game %s: %w", l.gameID, err)
		}

		d, err := l.pipe.Step(tick)
		switch {
		case errors.Is(err, domain.ErrNoLiquidity):
			slog.Warn("no liquidity, holding",
				"game", l.gameID,
				"team", tick.TeamID,
				"price", tick.Price,
				"depth", tick.Depth,
			)
		case err != nil:
			return fmt.Errorf("live.Run: %w", err)
		case d.IsTrade():
			l.record(ctx, d)
		}
		l.publish(ctx, tick.Timestamp)
	}
}

func (l *Loop) finish(ctx context.Context) {
	for _, d := range l.pipe.Finish(time.Time{}) {
		l.record(ctx, d)
	}
	snap := l.publish(ctx, time.Time{})
	slog.Info("live loop finished",
		"game", l.gameID,
		"ticks", snap.Ticks,
		"trades", snap.Trades,
		"pnl", fmt.Sprintf("%.4f", snap.RealizedPnL),
	)
}

func (l *Loop) record(ctx context.Context, d domain.Decision) {
	slog.Info("decision",
		"game", d.GameID,
		"team", d.TeamID,
		"action", string(d.Action),
		"reason", d.Reason,
		"price", d.Price,
		"smoothed", fmt.Sprintf("%.4f", d.Smoothed),
		"size", fmt.Sprintf("%.4f", d.Size),
	)
	if l.cfg.Store == nil {
		return
	}
	if err := l.cfg.Store.SaveDecision(ctx, l.cfg.SessionID, d); err != nil {
		slog.Warn("failed to persist decision", "game", l.gameID, "err", err)
	}
}

func (l *Loop) publish(ctx context.Context, at time.Time) domain.Snapshot {
	l.mu.Lock()
	if at.IsZero() {
		at = l.snap.At
	}
	snap := l.pipe.Snapshot(at)
	l.snap = snap
	l.mu.Unlock()

	if l.cfg.Observer != nil {
		l.cfg.Observer.ObserveSnapshot(snap)
	}
	if l.cfg.Sink != nil {
		if err := l.cfg.Sink.PublishSnapshot(ctx, snap); err != nil {
			slog.Debug("snapshot sink failed", "game", l.gameID, "err", err)
		}
	}
	return snap
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
