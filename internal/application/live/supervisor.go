package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/alejandrodnm/oddsbot/internal/domain"
	"github.com/alejandrodnm/oddsbot/internal/ports"
)

// StreamOpener abre el stream de ticks de un juego.
type StreamOpener func(ctx context.Context, game domain.Game) (ports.TickStream, error)

// Supervisor runs one Loop per game concurrently. Loops share only the
// read-only parameter set.
type Supervisor struct {
	params domain.ParameterSet
	open   StreamOpener
	cfg    Config

	mu    sync.RWMutex
	loops map[string]*Loop
}

// NewSupervisor creates a supervisor for params.
func NewSupervisor(params domain.ParameterSet, open StreamOpener, cfg Config) *Supervisor {
	return &Supervisor{
		params: params,
		open:   open,
		cfg:    cfg,
		loops:  make(map[string]*Loop),
	}
}

// Run starts a loop per game and waits for all of them. A game whose stream
// cannot be opened or whose loop fails does not stop the others; their
// errors are joined.
func (s *Supervisor) Run(ctx context.Context, games []domain.Game) error {
	var (
		wg   sync.WaitGroup
		emu  sync.Mutex
		errs []error
	)
	fail := func(err error) {
		emu.Lock()
		errs = append(errs, err)
		emu.Unlock()
	}

	for _, g := range games {
		stream, err := s.open(ctx, g)
		if err != nil {
			slog.Warn("could not open tick stream", "game", g.ID, "err", err)
			fail(fmt.Errorf("live.Supervisor: open %s: %w", g.ID, err))
			continue
		}
		loop, err := NewLoop(g.ID, s.params, stream, s.cfg)
		if err != nil {
			stream.Close()
			return fmt.Errorf("live.Supervisor: %w", err)
		}

		s.mu.Lock()
		s.loops[g.ID] = loop
		s.mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("live loop failed", "game", loop.GameID(), "err", err)
				fail(err)
			}
		}()
	}

	slog.Info("live supervisor running", "games", len(games), "session", s.cfg.SessionID)
	wg.Wait()
	return errors.Join(errs...)
}

// Snapshots returns the latest snapshot of every loop ordered by game ID.
func (s *Supervisor) Snapshots() []domain.Snapshot {
	s.mu.RLock()
	out := make([]domain.Snapshot, 0, len(s.loops))
	for _, l := range s.loops {
		out = append(out, l.Snapshot())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].GameID < out[j].GameID })
	return out
}

// Totals sums P&L across every game.
func (s *Supervisor) Totals() (realized, unrealized float64) {
	for _, snap := range s.Snapshots() {
		realized += snap.RealizedPnL
		unrealized += snap.UnrealizedPnL
	}
	return realized, unrealized
}
