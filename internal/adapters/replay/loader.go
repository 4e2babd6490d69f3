// Package replay reads recorded odds files and replays them as games or as
// paced live streams.
package replay

// loader.go: carga los archivos filtrados por semana.
//
// Layout en disco:
//
//	<dir>/week<N>/<GAME>-<TEAM>.json
//
// Cada archivo es un array JSON de {"time": ISO-8601, "price_cents": número|null}.
// Un juego son exactamente dos archivos con el mismo prefijo <GAME>; los
// juegos incompletos se descartan con un warning.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/oddsbot/internal/domain"
)

const weekPrefix = "week"

var hundred = decimal.NewFromInt(100)

// Point is one recorded datapoint. PriceCents is nil when the market had no
// quote at that second.
type Point struct {
	Time       string   `json:"time"`
	PriceCents *float64 `json:"price_cents"`
}

// Loader implementa ports.GameLoader sobre un directorio de archivos filtrados.
type Loader struct {
	dir   string
	weeks map[int]bool
}

// NewLoader creates a loader for dir. An empty weeks list loads every week.
func NewLoader(dir string, weeks ...int) *Loader {
	l := &Loader{dir: dir, weeks: make(map[int]bool, len(weeks))}
	for _, w := range weeks {
		l.weeks[w] = true
	}
	return l
}

// LoadGames devuelve todos los juegos completos ordenados por (semana, ID).
func (l *Loader) LoadGames(ctx context.Context) ([]domain.Game, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("replay.LoadGames: read %q: %w", l.dir, err)
	}

	var games []domain.Game
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), weekPrefix) {
			continue
		}
		week, err := strconv.Atoi(strings.TrimPrefix(e.Name(), weekPrefix))
		if err != nil {
			slog.Debug("skipping non-week directory", "dir", e.Name())
			continue
		}
		if len(l.weeks) > 0 && !l.weeks[week] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("replay.LoadGames: %w", err)
		}

		wg, err := loadWeek(filepath.Join(l.dir, e.Name()), week)
		if err != nil {
			return nil, err
		}
		games = append(games, wg...)
	}

	sort.SliceStable(games, func(i, j int) bool {
		if games[i].Week != games[j].Week {
			return games[i].Week < games[j].Week
		}
		return games[i].ID < games[j].ID
	})

	slog.Info("replay games loaded", "dir", l.dir, "games", len(games))
	return games, nil
}

// loadWeek agrupa los archivos de una semana en pares por juego.
func loadWeek(dir string, week int) ([]domain.Game, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("replay.loadWeek: read %q: %w", dir, err)
	}

	pairs := make(map[string][]string)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		gameID, _, ok := SplitFileName(name)
		if !ok {
			slog.Warn("skipping file without team suffix", "file", name)
			continue
		}
		pairs[gameID] = append(pairs[gameID], name)
	}

	ids := make([]string, 0, len(pairs))
	for id := range pairs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var games []domain.Game
	for _, id := range ids {
		files := pairs[id]
		if len(files) != 2 {
			slog.Warn("skipping incomplete game", "week", week, "game", id, "files", len(files))
			continue
		}
		sort.Strings(files)

		g := domain.Game{ID: id, Week: week}
		var sides [][]domain.Tick
		for _, f := range files {
			_, team, _ := SplitFileName(f)
			ticks, err := ReadTeamFile(filepath.Join(dir, f), id, team)
			if err != nil {
				return nil, err
			}
			g.Teams = append(g.Teams, team)
			sides = append(sides, ticks)
		}
		g.Ticks = Merge(sides...)
		games = append(games, g)
	}
	return games, nil
}

// SplitFileName parte "<GAME>-<TEAM>.json" por el último guion.
func SplitFileName(name string) (gameID, teamID string, ok bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	i := strings.LastIndex(base, "-")
	if i <= 0 || i == len(base)-1 {
		return "", "", false
	}
	return base[:i], base[i+1:], true
}

// ReadTeamFile decodes one team's datapoints into ticks, dropping null
// prices. Ticks come back sorted by time; Seq is left for Merge to assign.
func ReadTeamFile(path, gameID, teamID string) ([]domain.Tick, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("replay.ReadTeamFile: %w", err)
	}
	var points []Point
	if err := json.Unmarshal(raw, &points); err != nil {
		return nil, fmt.Errorf("replay.ReadTeamFile: decode %q: %w", path, err)
	}

	ticks := make([]domain.Tick, 0, len(points))
	for i, p := range points {
		if p.PriceCents == nil {
			continue
		}
		ts, err := ParseTime(p.Time)
		if err != nil {
			return nil, fmt.Errorf("replay.ReadTeamFile: %s[%d]: %w", path, i, err)
		}
		ticks = append(ticks, domain.Tick{
			Timestamp: ts,
			GameID:    gameID,
			TeamID:    teamID,
			Price:     CentsToProb(*p.PriceCents),
		})
	}
	sort.SliceStable(ticks, func(i, j int) bool { return ticks[i].Timestamp.Before(ticks[j].Timestamp) })
	return ticks, nil
}

// CentsToProb converts a price in cents to an implied probability without
// binary rounding noise (57 → 0.57 exactly as parsed from "0.57").
func CentsToProb(cents float64) float64 {
	return decimal.NewFromFloat(cents).Div(hundred).InexactFloat64()
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
}

// ParseTime accepts ISO-8601 timestamps with or without offset. Timestamps
// without offset are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// Merge interleaves per-team tick slices by timestamp. Equal timestamps keep
// the order of the input slices, so the merge is stable. Seq is assigned in
// output order.
func Merge(sides ...[]domain.Tick) []domain.Tick {
	total := 0
	for _, s := range sides {
		total += len(s)
	}
	out := make([]domain.Tick, 0, total)
	idx := make([]int, len(sides))
	for len(out) < total {
		best := -1
		for i, s := range sides {
			if idx[i] >= len(s) {
				continue
			}
			if best < 0 || s[idx[i]].Timestamp.Before(sides[best][idx[best]].Timestamp) {
				best = i
			}
		}
		t := sides[best][idx[best]]
		idx[best]++
		t.Seq = int64(len(out))
		out = append(out, t)
	}
	return out
}
