// Package simulation replays one recorded game through the hedge pipeline
// under a fixed parameter set.
package simulation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/alejandrodnm/oddsbot/internal/domain"
	"github.com/alejandrodnm/oddsbot/internal/strategy"
)

// ctxCheckEvery bounds how many ticks run between cancellation checks.
const ctxCheckEvery = 64

// Config controls what a Runner keeps from each run.
type Config struct {
	// KeepDecisions copies the decision log into the result. Sweeps leave it
	// off: a four-hour game at 1 Hz is ~30k decisions per run.
	KeepDecisions bool
	// Now is the wall clock used for Elapsed. Defaults to time.Now.
	Now func() time.Time
}

// Runner replays games. It holds no per-run state, so one Runner can be
// shared by every worker of a sweep.
type Runner struct {
	cfg Config
}

// New creates a Runner.
func New(cfg Config) *Runner {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runner{cfg: cfg}
}

// cursor hands out ticks strictly in order. The pipeline only ever sees the
// tick under the cursor, never the rest of the slice.
type cursor struct {
	ticks []domain.Tick
	pos   int
}

func (c *cursor) next() (domain.Tick, bool) {
	if c.pos >= len(c.ticks) {
		return domain.Tick{}, false
	}
	t := c.ticks[c.pos]
	c.pos++
	return t, true
}

// Run replays game under params in a single pass and returns its summary.
// An empty game yields a zero result. On error the returned result is the
// failed record for this (game, params) pair.
func (r *Runner) Run(ctx context.Context, game domain.Game, params domain.ParameterSet) (domain.SimulationResult, error) {
	start := r.cfg.Now()
	fail := func(err error) (domain.SimulationResult, error) {
		err = fmt.Errorf("simulation.Run: game %s: %w", game.ID, err)
		return domain.FailedResult(params, game.ID, err, r.cfg.Now().Sub(start)), err
	}

	pipe, err := strategy.NewPipeline(game.ID, params)
	if err != nil {
		return fail(err)
	}

	var (
		cur      = cursor{ticks: game.Ticks}
		peak     float64
		drawdown float64
		n        int
	)
	track := func() {
		realized, unrealized := pipe.PnL()
		running := realized + unrealized
		peak = math.Max(peak, running)
		drawdown = math.Min(drawdown, running-peak)
	}

	for {
		tick, ok := cur.next()
		if !ok {
			break
		}
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
		}
		n++
		if _, err := pipe.Step(tick); err != nil {
			return fail(err)
		}
		track()
	}

	pipe.Finish(time.Time{})
	track()

	realized, _ := pipe.PnL()
	res := domain.SimulationResult{
		Params:        params,
		GameID:        game.ID,
		FinalPnL:      realized,
		MaxDrawdown:   drawdown,
		DecisionCount: pipe.Trades(),
		TickCount:     n,
		Elapsed:       r.cfg.Now().Sub(start),
		Score:         realized,
	}
	if r.cfg.KeepDecisions {
		res.Decisions = append([]domain.Decision(nil), pipe.Decisions()...)
	}
	return res, nil
}

// RunAll replays every game sequentially. Per-game failures are recorded in
// the returned slice; only cancellation aborts.
func (r *Runner) RunAll(ctx context.Context, games []domain.Game, params domain.ParameterSet) ([]domain.SimulationResult, error) {
	results := make([]domain.SimulationResult, 0, len(games))
	for _, g := range games {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("simulation.RunAll: %w", err)
		}
		res, _ := r.Run(ctx, g, params)
		results = append(results, res)
	}
	return results, nil
}
