package notify

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/alejandrodnm/oddsbot/internal/domain"
)

// WriteReportCSV escribe todos los runs del sweep en <dir>/<id>.csv y devuelve la ruta.
func WriteReportCSV(dir string, r *domain.SweepReport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("notify.WriteReportCSV: mkdir: %w", err)
	}
	path := filepath.Join(dir, r.ID+".csv")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("notify.WriteReportCSV: create: %w", err)
	}
	if err := EncodeReportCSV(f, r); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("notify.WriteReportCSV: close: %w", err)
	}
	return path, nil
}

// EncodeReportCSV escribe una fila por (param set, partido): los parámetros
// barridos como columnas, luego las métricas del run y el rank agregado.
func EncodeReportCSV(w io.Writer, r *domain.SweepReport) error {
	names := r.ParamNames
	if len(names) == 0 && len(r.Ranked) > 0 {
		names = r.Ranked[0].Params.Names()
	}

	ranks := make(map[string]domain.Aggregate, len(r.Ranked))
	for _, a := range r.Ranked {
		ranks[a.Params.String()] = a
	}

	cw := csv.NewWriter(w)
	header := append([]string{}, names...)
	header = append(header, "game", "pnl", "max_drawdown", "trades", "ticks", "score", "failed", "error", "rank", "aggregate_score")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("notify.EncodeReportCSV: header: %w", err)
	}

	for _, res := range r.Results {
		row := make([]string, 0, len(header))
		for _, n := range names {
			row = append(row, domain.FormatValue(res.Params.Float(n, 0)))
		}
		agg := ranks[res.Params.String()]
		row = append(row,
			res.GameID,
			ff(res.FinalPnL),
			ff(res.MaxDrawdown),
			strconv.Itoa(res.DecisionCount),
			strconv.Itoa(res.TickCount),
			ff(res.Score),
			strconv.FormatBool(res.Failed),
			res.Err,
			strconv.Itoa(agg.Rank),
			ff(agg.Score),
		)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("notify.EncodeReportCSV: row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("notify.EncodeReportCSV: flush: %w", err)
	}
	return nil
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
