package domain

import (
	"sort"
	"time"
)

// Tick is one odds observation for a team market. Price is the implied
// probability in [0,1] (cents / 100).
type Tick struct {
	Timestamp time.Time
	GameID    string
	TeamID    string
	Price     float64
	Seq       int64   // position in the game's stream, assigned by the source
	Depth     float64 // shares available at Price; 0 = unknown (treated as unlimited)
}

// Game is a cleaned, ordered tick sequence for one matchup.
type Game struct {
	ID    string
	Week  int
	Teams []string
	Ticks []Tick
}

// TeamIDs devuelve los equipos del juego en orden estable.
// Si Teams está vacío los deriva de los ticks.
func (g Game) TeamIDs() []string {
	if len(g.Teams) > 0 {
		return g.Teams
	}
	seen := make(map[string]bool)
	var teams []string
	for _, t := range g.Ticks {
		if !seen[t.TeamID] {
			seen[t.TeamID] = true
			teams = append(teams, t.TeamID)
		}
	}
	sort.Strings(teams)
	return teams
}

// LastPrices returns the last raw price seen for each team.
func (g Game) LastPrices() map[string]float64 {
	out := make(map[string]float64)
	for _, t := range g.Ticks {
		out[t.TeamID] = t.Price
	}
	return out
}

// SmoothingState is the EMA state of one team. Value is meaningful only once
// Initialized is set by the first observation.
type SmoothingState struct {
	Value       float64
	Initialized bool
}
