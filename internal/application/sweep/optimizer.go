// Package sweep runs the parameter-sweep optimizer: it enumerates a grid of
// parameter sets, replays every recorded game under each of them on a worker
// pool and ranks the aggregated results.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/oddsbot/internal/application/simulation"
	"github.com/alejandrodnm/oddsbot/internal/domain"
)

// DefaultStartingBankroll is the bankroll each parameter set starts from.
const DefaultStartingBankroll = 20.0

// Space is the searched parameter space: swept ranges plus fixed values.
type Space struct {
	Ranges map[string]Range
	Fixed  map[string]float64
}

// Progress is emitted after every completed run.
type Progress struct {
	Completed  int
	Total      int
	Failed     int
	BestScore  float64 // best single-run score so far
	BestParams domain.ParameterSet
	Elapsed    time.Duration
}

// RunRecorder receives one observation per finished run (metrics).
type RunRecorder interface {
	ObserveRun(failed bool, elapsed time.Duration)
}

// Config controla el pool y la agregación del optimizador.
type Config struct {
	Workers          int           // <= 0: runtime.NumCPU()
	Reduction        Reduction     // "" = sum
	UnitTimeout      time.Duration // 0 = none
	MaxGridPoints    int           // 0 = DefaultMaxGridPoints
	StartingBankroll float64       // 0 = DefaultStartingBankroll
	Progress         func(Progress)
	Recorder         RunRecorder
	Now              func() time.Time
}

// Optimizer runs sweeps. Safe to reuse across sweeps, not concurrently.
type Optimizer struct {
	cfg Config
	sim simulator
}

// New creates an Optimizer backed by a simulation.Runner that drops decision
// logs, so memory stays bounded by the grid size.
func New(cfg Config) *Optimizer {
	if cfg.Reduction == "" {
		cfg.Reduction = ReduceSum
	}
	if cfg.MaxGridPoints <= 0 {
		cfg.MaxGridPoints = DefaultMaxGridPoints
	}
	if cfg.StartingBankroll == 0 {
		cfg.StartingBankroll = DefaultStartingBankroll
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Optimizer{
		cfg: cfg,
		sim: simulation.New(simulation.Config{Now: cfg.Now}),
	}
}

// Run enumerates space and evaluates every point against every game.
// Grid errors abort before any simulation is dispatched.
func (o *Optimizer) Run(ctx context.Context, space Space, games []domain.Game) (*domain.SweepReport, error) {
	points, err := Grid(space.Ranges, space.Fixed, o.cfg.MaxGridPoints)
	if err != nil {
		return nil, fmt.Errorf("sweep.Run: %w", err)
	}
	report, err := o.RunGrid(ctx, points, games)
	if err != nil {
		return nil, err
	}
	report.Fixed = copyFixed(space.Fixed)
	report.ParamNames = make([]string, 0, len(space.Ranges))
	for name := range space.Ranges {
		report.ParamNames = append(report.ParamNames, name)
	}
	sort.Strings(report.ParamNames)
	return report, nil
}

// RunGrid evaluates an already enumerated grid. The ranked report always has
// one row per point, failed points included.
func (o *Optimizer) RunGrid(ctx context.Context, points []domain.ParameterSet, games []domain.Game) (*domain.SweepReport, error) {
	if _, err := ParseReduction(string(o.cfg.Reduction)); err != nil {
		return nil, fmt.Errorf("sweep.RunGrid: %w", err)
	}

	started := o.cfg.Now()
	report := &domain.SweepReport{
		ID:        uuid.NewString(),
		StartedAt: started,
		Reduction: string(o.cfg.Reduction),
		GameIDs:   make([]string, len(games)),
	}
	for i, g := range games {
		report.GameIDs[i] = g.ID
	}
	if len(points) > 0 {
		report.ParamNames = sweptNames(points)
	}

	slog.Info("sweep started",
		"id", report.ID,
		"points", len(points),
		"games", len(games),
		"units", len(points)*len(games),
		"workers", o.cfg.Workers,
	)

	progress := Progress{Total: len(points) * len(games), BestScore: math.Inf(-1)}
	onResult := func(r unitResult) {
		progress.Completed++
		if r.result.Failed {
			progress.Failed++
		} else if r.result.Score > progress.BestScore {
			progress.BestScore = r.result.Score
			progress.BestParams = r.result.Params
		}
		progress.Elapsed = o.cfg.Now().Sub(started)
		if o.cfg.Recorder != nil {
			o.cfg.Recorder.ObserveRun(r.result.Failed, r.result.Elapsed)
		}
		if o.cfg.Progress != nil {
			o.cfg.Progress(progress)
		}
	}

	units, err := runUnitsConcurrent(ctx, o.sim, points, games, o.cfg.Workers, o.cfg.UnitTimeout, onResult)
	if err != nil {
		return nil, fmt.Errorf("sweep.RunGrid: %w", err)
	}

	// Ranking only starts once every run is in.
	report.Results = make([]domain.SimulationResult, len(points)*len(games))
	for _, u := range units {
		report.Results[u.point*len(games)+u.game] = u.result
	}
	report.Ranked = make([]domain.Aggregate, len(points))
	for p, params := range points {
		runs := report.Results[p*len(games) : (p+1)*len(games)]
		report.Ranked[p] = aggregate(params, runs, o.cfg.Reduction, o.cfg.StartingBankroll)
	}
	rank(report.Ranked)
	report.Elapsed = o.cfg.Now().Sub(started)

	slog.Info("sweep finished",
		"id", report.ID,
		"elapsed", report.Elapsed.Round(time.Millisecond),
		"failed_runs", progress.Failed,
		"failed_points", report.FailedPoints(),
	)
	return report, nil
}

// sweptNames returns the names whose value differs across the grid.
func sweptNames(points []domain.ParameterSet) []string {
	first := points[0].Map()
	var names []string
	for _, name := range points[0].Names() {
		for _, p := range points[1:] {
			if v, _ := p.Get(name); v != first[name] {
				names = append(names, name)
				break
			}
		}
	}
	return names
}

func copyFixed(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
