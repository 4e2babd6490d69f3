package notify

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/oddsbot/internal/application/simulation"
	"github.com/alejandrodnm/oddsbot/internal/application/sweep"
	"github.com/alejandrodnm/oddsbot/internal/domain"
	"github.com/olekukonko/tablewriter"
)

const defaultTop = 20

// Console implementa ports.ReportNotifier sobre un io.Writer.
type Console struct {
	out io.Writer
	top int
	now func() time.Time
}

// NewConsole crea un notificador que escribe a stdout mostrando top filas.
func NewConsole(top int) *Console {
	return newConsole(os.Stdout, top)
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return newConsole(w, defaultTop)
}

func newConsole(w io.Writer, top int) *Console {
	if top <= 0 {
		top = defaultTop
	}
	return &Console{out: w, top: top, now: time.Now}
}

// NotifyReport imprime la tabla ranked de un sweep.
func (c *Console) NotifyReport(_ context.Context, r *domain.SweepReport) error {
	if r == nil || len(r.Ranked) == 0 {
		fmt.Fprintf(c.out, "[%s] empty sweep\n", c.stamp())
		return nil
	}

	fmt.Fprintf(c.out, "\n[%s] sweep %s: %d param sets x %d games, reduction=%s, %v\n",
		c.stamp(), r.ID, len(r.Ranked), len(r.GameIDs), r.Reduction, r.Elapsed.Round(time.Millisecond))
	if len(r.Fixed) > 0 {
		fmt.Fprintf(c.out, "  fixed: %s\n", domain.NewParameterSet(r.Fixed))
	}

	names := r.ParamNames
	if len(names) == 0 {
		names = r.Ranked[0].Params.Names()
	}

	header := append([]string{"#"}, names...)
	header = append(header, "Score", "PnL", "Drawdown", "Trades", "Failed", "Bankroll")

	table := tablewriter.NewWriter(c.out)
	table.Header(toAny(header)...)

	rows := r.Ranked
	if len(rows) > c.top {
		rows = rows[:c.top]
	}
	for _, a := range rows {
		row := []string{fmt.Sprintf("%d", a.Rank)}
		for _, n := range names {
			row = append(row, domain.FormatValue(a.Params.Float(n, math.NaN())))
		}
		failed := fmt.Sprintf("%d/%d", a.FailedRuns, a.Games)
		if a.Partial {
			failed += " !"
		}
		row = append(row,
			formatScore(a.Score),
			fmt.Sprintf("$%.4f", a.TotalPnL),
			fmt.Sprintf("$%.4f", a.MaxDrawdown),
			fmt.Sprintf("%d", a.Trades),
			failed,
			fmt.Sprintf("$%.2f", a.Bankroll),
		)
		table.Append(toAny(row)...)
	}
	table.Render()

	if len(r.Ranked) > len(rows) {
		fmt.Fprintf(c.out, "  ... %d more param sets not shown\n", len(r.Ranked)-len(rows))
	}
	if n := r.FailedPoints(); n > 0 {
		fmt.Fprintf(c.out, "  %d param sets failed on every game\n", n)
	}
	if best, ok := r.Best(); ok {
		fmt.Fprintf(c.out, "  best: %s score=%s bankroll=$%.2f\n", best.Params, formatScore(best.Score), best.Bankroll)
	} else {
		fmt.Fprintln(c.out, "  no successful param set")
	}
	return nil
}

// PrintProgress imprime una línea de progreso del sweep, sobrescribiendo la anterior.
func (c *Console) PrintProgress(p sweep.Progress) {
	pct := 0.0
	if p.Total > 0 {
		pct = float64(p.Completed) / float64(p.Total) * 100
	}
	best := "-"
	if p.BestParams.Len() > 0 {
		best = fmt.Sprintf("%s (%s)", formatScore(p.BestScore), p.BestParams)
	}
	fmt.Fprintf(c.out, "\r[%s] %d/%d runs (%.1f%%) failed:%d best:%s",
		c.stamp(), p.Completed, p.Total, pct, p.Failed, best)
	if p.Completed == p.Total {
		fmt.Fprintln(c.out)
	}
}

// PrintSummary imprime un backtest: una fila por partido y el resumen agregado.
func (c *Console) PrintSummary(params domain.ParameterSet, results []domain.SimulationResult, s simulation.Summary) {
	fmt.Fprintf(c.out, "\n[%s] backtest %s\n", c.stamp(), params)

	table := tablewriter.NewWriter(c.out)
	table.Header("Game", "Ticks", "Trades", "PnL", "Drawdown", "Status")
	for _, r := range results {
		status := "ok"
		if r.Failed {
			status = "FAILED: " + truncate(r.Err, 40)
		}
		table.Append(
			r.GameID,
			fmt.Sprintf("%d", r.TickCount),
			fmt.Sprintf("%d", r.DecisionCount),
			fmt.Sprintf("$%.4f", r.FinalPnL),
			fmt.Sprintf("$%.4f", r.MaxDrawdown),
			status,
		)
	}
	table.Render()

	fmt.Fprintf(c.out, "  Games:    %d (%d failed) | W:%d L:%d\n", s.Games, s.Failed, s.Wins, s.Losses)
	fmt.Fprintf(c.out, "  Trades:   %d over %d ticks\n", s.Trades, s.Ticks)
	fmt.Fprintf(c.out, "  PnL:      $%.4f | worst drawdown $%.4f\n", s.TotalPnL, s.WorstDrawdown)
	fmt.Fprintf(c.out, "  Bankroll: $%.2f\n\n", s.Bankroll)
}

func (c *Console) stamp() string {
	return c.now().Format("15:04:05")
}

func formatScore(v float64) string {
	if math.IsInf(v, -1) {
		return "FAILED"
	}
	return fmt.Sprintf("%.4f", v)
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
