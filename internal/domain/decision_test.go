package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplayPnL_OpenAndClosedLots(t *testing.T) {
	decisions := []Decision{
		{TeamID: "A", Action: ActionBuy, Price: 0.5, Size: 4},
		{TeamID: "B", Action: ActionBuy, Price: 0.5, Size: 4},
		{TeamID: "A", Action: ActionHold, Price: 0.6},
		{TeamID: "A", Action: ActionSell, Price: 0.75, Size: 4},
	}

	realized, unrealized := ReplayPnL(decisions, map[string]float64{"A": 0.8, "B": 0.4})
	assert.InDelta(t, 1.0, realized, 1e-9)
	assert.InDelta(t, -0.4, unrealized, 1e-9, "B marked at 0.40")
}

func TestReplayPnL_Empty(t *testing.T) {
	realized, unrealized := ReplayPnL(nil, nil)
	assert.Zero(t, realized)
	assert.Zero(t, unrealized)
}

func TestPosition_UnrealizedOnlyWhenOpen(t *testing.T) {
	p := Position{Shares: 4, AvgEntryPrice: 0.5, LastPrice: 0.6, Open: true}
	assert.InDelta(t, 0.4, p.UnrealizedPnL(), 1e-9)
	assert.InDelta(t, 2.0, p.Cost(), 1e-9)

	p.Open = false
	assert.Zero(t, p.UnrealizedPnL())
}
