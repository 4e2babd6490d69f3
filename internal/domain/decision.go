package domain

import "time"

// Action is what the strategy decided on a tick.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Exit and entry reasons recorded on decisions.
const (
	ReasonEntry      = "entry"
	ReasonReentry    = "reentry"
	ReasonTakeProfit = "take_profit"
	ReasonStopLoss   = "stop_loss"
	ReasonTrailFloor = "trail_floor"
	ReasonTrailFall  = "trail_fall"
	ReasonCheckpoint = "checkpoint"
	ReasonGameEnd    = "game_end"
	ReasonOutOfBand  = "out_of_band"
)

// Decision is produced once per evaluated tick and never modified afterwards.
type Decision struct {
	Timestamp time.Time
	Seq       int64
	GameID    string
	TeamID    string
	Action    Action
	Price     float64 // raw fill price (never the smoothed value)
	Smoothed  float64
	Size      float64 // shares
	Reason    string
}

// IsTrade reports whether the decision moved shares.
func (d Decision) IsTrade() bool {
	return d.Action == ActionBuy || d.Action == ActionSell
}

// ReplayPnL recomputes realized and unrealized P&L from a decision log and
// the last raw price per team. It is the audit counterpart of the state
// machine's own accounting and must agree with it at any point in time.
func ReplayPnL(decisions []Decision, marks map[string]float64) (realized, unrealized float64) {
	type lot struct{ shares, avg float64 }
	books := make(map[string]*lot)

	for _, d := range decisions {
		b := books[d.TeamID]
		if b == nil {
			b = &lot{}
			books[d.TeamID] = b
		}
		switch d.Action {
		case ActionBuy:
			total := b.shares + d.Size
			if total > 0 {
				b.avg = (b.shares*b.avg + d.Size*d.Price) / total
			}
			b.shares = total
		case ActionSell:
			realized += d.Size * (d.Price - b.avg)
			b.shares -= d.Size
			if b.shares <= 1e-12 {
				b.shares = 0
				b.avg = 0
			}
		}
	}

	for team, b := range books {
		if b.shares == 0 {
			continue
		}
		if mark, ok := marks[team]; ok {
			unrealized += b.shares * (mark - b.avg)
		}
	}
	return realized, unrealized
}
