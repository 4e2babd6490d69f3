package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/oddsbot/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Dashboard implementa ports.SnapshotSink: guarda el último snapshot de cada
// partido y repinta cada interval, o inmediatamente cuando hubo un trade.
type Dashboard struct {
	out      io.Writer
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	games    map[string]domain.Snapshot
	lastDraw time.Time
	renders  int
}

// NewDashboard crea un dashboard sobre stdout.
func NewDashboard(interval time.Duration) *Dashboard {
	return NewDashboardWriter(os.Stdout, interval, time.Now)
}

// NewDashboardWriter crea un dashboard con writer y reloj inyectables (tests).
func NewDashboardWriter(w io.Writer, interval time.Duration, now func() time.Time) *Dashboard {
	if now == nil {
		now = time.Now
	}
	return &Dashboard{
		out:      w,
		interval: interval,
		now:      now,
		games:    make(map[string]domain.Snapshot),
	}
}

// PublishSnapshot registra el snapshot y repinta si toca.
func (d *Dashboard) PublishSnapshot(_ context.Context, s domain.Snapshot) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev, seen := d.games[s.GameID]
	d.games[s.GameID] = s

	traded := seen && s.Trades != prev.Trades
	due := d.lastDraw.IsZero() || d.now().Sub(d.lastDraw) >= d.interval
	if !traded && !due && !s.Ended {
		return nil
	}
	d.render()
	return nil
}

// Renders devuelve cuántas veces se pintó el dashboard.
func (d *Dashboard) Renders() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.renders
}

// render asume d.mu tomado.
func (d *Dashboard) render() {
	now := d.now()
	d.lastDraw = now
	d.renders++

	ids := make([]string, 0, len(d.games))
	for id := range d.games {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Fprintf(d.out, "\n[%s] live: %d games\n", now.Format("15:04:05"), len(ids))

	table := tablewriter.NewWriter(d.out)
	table.Header("Game", "Team", "State", "Shares", "Avg", "Last", "Smoothed", "Realized", "Unrealized")

	var realized, unrealized float64
	for _, id := range ids {
		s := d.games[id]
		realized += s.RealizedPnL
		unrealized += s.UnrealizedPnL

		game := id
		if s.Ended {
			game += " (ended)"
		}
		if len(s.Positions) == 0 {
			table.Append(game, "-", "-", "-", "-", "-", "-",
				fmt.Sprintf("$%.4f", s.RealizedPnL), fmt.Sprintf("$%.4f", s.UnrealizedPnL))
			continue
		}
		for _, p := range s.Positions {
			table.Append(
				game,
				p.TeamID,
				p.State.String(),
				fmt.Sprintf("%.4f", p.Shares),
				fmt.Sprintf("%.4f", p.AvgEntryPrice),
				fmt.Sprintf("%.4f", p.LastPrice),
				fmt.Sprintf("%.4f", s.Smoothed[p.TeamID]),
				fmt.Sprintf("$%.4f", p.RealizedPnL),
				fmt.Sprintf("$%.4f", p.UnrealizedPnL()),
			)
		}
	}
	table.Render()

	fmt.Fprintf(d.out, "  Realized: $%.4f | Unrealized: $%.4f | Total: $%.4f\n",
		realized, unrealized, realized+unrealized)
}
