package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/alejandrodnm/oddsbot/internal/domain"
)

// Pipeline couples a Smoother with a Machine. Both the replay runner and the
// live loop drive games through it, one tick at a time.
type Pipeline struct {
	gameID   string
	params   domain.ParameterSet
	smoother *Smoother
	machine  *Machine
	ticks    int
	lastAt   time.Time
	ended    bool
}

// NewPipeline validates params and builds fresh smoothing and position state.
func NewPipeline(gameID string, params domain.ParameterSet) (*Pipeline, error) {
	policy, err := PolicyFromParams(params)
	if err != nil {
		return nil, fmt.Errorf("strategy.NewPipeline: %w", err)
	}
	smoother, err := NewSmoother(policy.Alpha)
	if err != nil {
		return nil, fmt.Errorf("strategy.NewPipeline: %w", err)
	}
	return &Pipeline{
		gameID:   gameID,
		params:   params,
		smoother: smoother,
		machine:  NewMachine(gameID, policy),
	}, nil
}

// Step smooths the tick and lets the machine decide. The smoother consumes
// the tick even when the machine rejects it with ErrNoLiquidity. A NaN or
// infinite price is rejected before smoothing so it cannot poison the EMA.
func (p *Pipeline) Step(t domain.Tick) (domain.Decision, error) {
	if p.ended {
		return domain.Decision{}, fmt.Errorf("strategy.Step: game %s: %w", p.gameID, domain.ErrGameEnded)
	}
	if math.IsNaN(t.Price) || math.IsInf(t.Price, 0) {
		return domain.Decision{}, fmt.Errorf("strategy.Step: game %s team %s seq %d: price %v: %w",
			p.gameID, t.TeamID, t.Seq, t.Price, domain.ErrNoLiquidity)
	}
	p.ticks++
	p.lastAt = t.Timestamp
	smoothed := p.smoother.Update(t.TeamID, t.Price)
	return p.machine.Evaluate(t, smoothed)
}

// Finish forces the end-of-game exit. Calling it twice is a no-op.
func (p *Pipeline) Finish(at time.Time) []domain.Decision {
	if p.ended {
		return nil
	}
	p.ended = true
	if at.IsZero() {
		at = p.lastAt
	}
	return p.machine.Close(at)
}

// Ended reports whether Finish was called.
func (p *Pipeline) Ended() bool { return p.ended }

// Params returns the parameter set the pipeline was built from.
func (p *Pipeline) Params() domain.ParameterSet { return p.params }

// Ticks returns the number of ticks processed.
func (p *Pipeline) Ticks() int { return p.ticks }

// PnL returns realized and unrealized P&L.
func (p *Pipeline) PnL() (realized, unrealized float64) { return p.machine.PnL() }

// Decisions returns the decision log.
func (p *Pipeline) Decisions() []domain.Decision { return p.machine.Decisions() }

// Trades returns the number of BUY/SELL decisions.
func (p *Pipeline) Trades() int { return p.machine.Trades() }

// Snapshot copies the current state for display.
func (p *Pipeline) Snapshot(at time.Time) domain.Snapshot {
	realized, unrealized := p.machine.PnL()
	return domain.Snapshot{
		GameID:        p.gameID,
		At:            at,
		Positions:     p.machine.Positions(),
		Smoothed:      p.smoother.Values(),
		RealizedPnL:   realized,
		UnrealizedPnL: unrealized,
		TotalPnL:      realized + unrealized,
		Ticks:         p.ticks,
		Trades:        p.machine.Trades(),
		Ended:         p.ended,
	}
}
