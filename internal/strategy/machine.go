package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/alejandrodnm/oddsbot/internal/domain"
)

// Machine is the two-sided hedge state machine for one game.
//
// Every team is bought at its entry tick ("buy both sides"), then each side
// is sold independently when one of the exit rules fires on the smoothed
// price. Fills always use the raw tick price. The machine has no clock and no
// randomness: the same ticks and policy give the same decision log.
type Machine struct {
	gameID    string
	policy    Policy
	positions map[string]*domain.Position
	order     []string // teams by first appearance
	decisions []domain.Decision
	trades    int
	exits     map[string]int
	settled   map[string]bool    // entry tick resolved (bought or out of band)
	smoothed  map[string]float64 // last smoothed value per team
}

// NewMachine creates a machine for gameID. The policy must already be valid.
func NewMachine(gameID string, policy Policy) *Machine {
	return &Machine{
		gameID:    gameID,
		policy:    policy,
		positions: make(map[string]*domain.Position),
		exits:     make(map[string]int),
		settled:   make(map[string]bool),
		smoothed:  make(map[string]float64),
	}
}

// Policy returns the thresholds in use.
func (m *Machine) Policy() Policy { return m.policy }

// Evaluate applies one (raw tick, smoothed value) pair and returns the
// decision. On error the trade is rolled back: shares and state stay as they
// were, but the tick still counts and its price becomes the team's mark.
func (m *Machine) Evaluate(t domain.Tick, smoothed float64) (domain.Decision, error) {
	if !finite(t.Price) || !finite(smoothed) {
		return domain.Decision{}, fmt.Errorf("strategy.Evaluate: game %s team %s seq %d: price %v: %w",
			m.gameID, t.TeamID, t.Seq, t.Price, domain.ErrNoLiquidity)
	}

	cur, known := m.positions[t.TeamID]
	next := domain.Position{TeamID: t.TeamID}
	if known {
		next = *cur
	}
	next.Ticks++
	next.LastPrice = t.Price

	d := domain.Decision{
		Timestamp: t.Timestamp,
		Seq:       t.Seq,
		GameID:    m.gameID,
		TeamID:    t.TeamID,
		Action:    domain.ActionHold,
		Price:     t.Price,
		Smoothed:  smoothed,
	}

	var err error
	switch next.State {
	case domain.StateFlat:
		err = m.evaluateFlat(&next, t, smoothed, &d)
	case domain.StateEntered, domain.StateAdjusting:
		err = m.evaluateHeld(&next, t, smoothed, &d)
	}

	if !known {
		cur = &domain.Position{TeamID: t.TeamID}
		m.positions[t.TeamID] = cur
		m.order = append(m.order, t.TeamID)
	}
	m.smoothed[t.TeamID] = smoothed

	if err != nil {
		cur.Ticks = next.Ticks
		cur.LastPrice = next.LastPrice
		return domain.Decision{}, fmt.Errorf("strategy.Evaluate: game %s team %s seq %d: %w", m.gameID, t.TeamID, t.Seq, err)
	}

	*cur = next
	if d.Reason == domain.ReasonEntry || d.Reason == domain.ReasonOutOfBand {
		m.settled[t.TeamID] = true
	}
	m.record(d)
	return d, nil
}

func (m *Machine) evaluateFlat(p *domain.Position, t domain.Tick, smoothed float64, d *domain.Decision) error {
	exits := m.exits[p.TeamID]

	reason := ""
	switch {
	case exits == 0 && !m.settled[p.TeamID] && p.Ticks >= m.policy.EntryTick:
		if !m.policy.InBand(smoothed) {
			d.Reason = domain.ReasonOutOfBand
			return nil
		}
		reason = domain.ReasonEntry
	case exits > 0 && p.Reentries < m.policy.MaxReentries && m.canReenter(smoothed):
		reason = domain.ReasonReentry
	default:
		return nil
	}

	shares, err := m.buySize(t)
	if err != nil {
		return err
	}

	if reason == domain.ReasonReentry {
		p.Reentries++
	}
	p.State = domain.StateEntered
	p.Open = true
	p.Shares = shares
	p.AvgEntryPrice = t.Price
	p.EntryRef = smoothed
	p.MaxGain = 0

	d.Action = domain.ActionBuy
	d.Size = shares
	d.Reason = reason
	return nil
}

func (m *Machine) evaluateHeld(p *domain.Position, t domain.Tick, smoothed float64, d *domain.Decision) error {
	reason := m.exitReason(p, smoothed)
	if reason == "" {
		return nil
	}
	if err := checkSell(t, p.Shares); err != nil {
		return err
	}
	m.sell(p, t.Price, d, reason)
	return nil
}

// exitReason updates the trailing state of p and returns the first exit rule
// that fires, or "" to hold.
func (m *Machine) exitReason(p *domain.Position, smoothed float64) string {
	pol := m.policy
	gain := smoothed - p.EntryRef
	if gain > p.MaxGain {
		p.MaxGain = gain
	}

	if pol.ExitThreshold > 0 && smoothed >= pol.ExitThreshold {
		return domain.ReasonTakeProfit
	}
	if pol.StopLoss > 0 && smoothed <= pol.StopLoss {
		return domain.ReasonStopLoss
	}

	if pol.Trailing() && p.MaxGain >= pol.GainThreshold {
		if gain < pol.GainThreshold {
			if pol.TrailFloor {
				return domain.ReasonTrailFloor
			}
			// disarm: the trailing rule has to be earned again from here
			p.State = domain.StateEntered
			p.MaxGain = gain
		} else {
			p.State = domain.StateAdjusting
		}
		if pol.FallFraction > 0 && p.MaxGain > pol.GainThreshold && gain <= p.MaxGain*pol.FallFraction {
			return domain.ReasonTrailFall
		}
	}

	if pol.CheckpointTick > 0 && p.Ticks == pol.CheckpointTick && smoothed < p.EntryRef+math.Max(pol.GainThreshold, 0) {
		return domain.ReasonCheckpoint
	}
	return ""
}

func (m *Machine) canReenter(smoothed float64) bool {
	pol := m.policy
	if !pol.InBand(smoothed) {
		return false
	}
	if pol.ExitThreshold > 0 && smoothed >= pol.ExitThreshold {
		return false
	}
	if pol.StopLoss > 0 && smoothed <= pol.StopLoss {
		return false
	}
	return true
}

func (m *Machine) buySize(t domain.Tick) (float64, error) {
	if !(t.Price > 0 && t.Price < 1) {
		return 0, fmt.Errorf("buy at %.4f: %w", t.Price, domain.ErrNoLiquidity)
	}
	shares := m.policy.Stake / t.Price
	if t.Depth > 0 && shares > t.Depth {
		return 0, fmt.Errorf("buy %.2f shares, %.2f available: %w", shares, t.Depth, domain.ErrNoLiquidity)
	}
	return shares, nil
}

func checkSell(t domain.Tick, shares float64) error {
	if !(t.Price >= 0 && t.Price <= 1) {
		return fmt.Errorf("sell at %.4f: %w", t.Price, domain.ErrNoLiquidity)
	}
	if t.Depth > 0 && shares > t.Depth {
		return fmt.Errorf("sell %.2f shares, %.2f available: %w", shares, t.Depth, domain.ErrNoLiquidity)
	}
	return nil
}

func (m *Machine) sell(p *domain.Position, price float64, d *domain.Decision, reason string) {
	d.Action = domain.ActionSell
	d.Size = p.Shares
	d.Price = price
	d.Reason = reason

	p.RealizedPnL += p.Shares * (price - p.AvgEntryPrice)
	p.Shares = 0
	p.AvgEntryPrice = 0
	p.Open = false
	m.exits[p.TeamID]++

	if reason != domain.ReasonGameEnd && p.Reentries < m.policy.MaxReentries {
		p.State = domain.StateFlat
		return
	}
	p.State = domain.StateExited
}

// Close ends the game: every open position is sold at its last raw price and
// every team moves to EXITED. Returns the forced decisions.
func (m *Machine) Close(at time.Time) []domain.Decision {
	var forced []domain.Decision
	for _, team := range m.order {
		p := m.positions[team]
		if p.Open {
			d := domain.Decision{
				Timestamp: at,
				GameID:    m.gameID,
				TeamID:    team,
				Smoothed:  m.smoothed[team],
			}
			m.sell(p, p.LastPrice, &d, domain.ReasonGameEnd)
			m.record(d)
			forced = append(forced, d)
		}
		p.State = domain.StateExited
	}
	return forced
}

func (m *Machine) record(d domain.Decision) {
	m.decisions = append(m.decisions, d)
	if d.IsTrade() {
		m.trades++
	}
}

// Decisions returns the decision log (shared slice; do not modify).
func (m *Machine) Decisions() []domain.Decision { return m.decisions }

// Trades counts BUY and SELL decisions so far.
func (m *Machine) Trades() int { return m.trades }

// Positions returns copies of every team position in first-seen order.
func (m *Machine) Positions() []domain.Position {
	out := make([]domain.Position, 0, len(m.order))
	for _, team := range m.order {
		out = append(out, *m.positions[team])
	}
	return out
}

// PnL returns realized and mark-to-market unrealized P&L across all teams.
func (m *Machine) PnL() (realized, unrealized float64) {
	for _, team := range m.order {
		p := m.positions[team]
		realized += p.RealizedPnL
		unrealized += p.UnrealizedPnL()
	}
	return realized, unrealized
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
