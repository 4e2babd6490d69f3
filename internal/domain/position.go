package domain

// TeamState is the lifecycle of one team's position inside a game.
type TeamState int

const (
	StateFlat      TeamState = iota // no position yet (or waiting to re-enter)
	StateEntered                    // holding shares
	StateAdjusting                  // holding, trailing exit armed
	StateExited                     // terminal
)

func (s TeamState) String() string {
	switch s {
	case StateFlat:
		return "FLAT"
	case StateEntered:
		return "ENTERED"
	case StateAdjusting:
		return "ADJUSTING"
	case StateExited:
		return "EXITED"
	default:
		return "UNKNOWN"
	}
}

// Position is the per-team holding owned by the strategy state machine.
type Position struct {
	TeamID        string
	State         TeamState
	Shares        float64
	AvgEntryPrice float64
	RealizedPnL   float64
	Open          bool
	EntryRef      float64 // smoothed price at entry; gains are measured from here
	MaxGain       float64
	LastPrice     float64 // last raw price, used for marks and forced exits
	Ticks         int     // ticks seen for this team
	Reentries     int
}

// UnrealizedPnL marks the open shares at the last raw price.
func (p Position) UnrealizedPnL() float64 {
	if !p.Open {
		return 0
	}
	return p.Shares * (p.LastPrice - p.AvgEntryPrice)
}

// Cost is the capital currently locked in the position.
func (p Position) Cost() float64 {
	if !p.Open {
		return 0
	}
	return p.Shares * p.AvgEntryPrice
}
