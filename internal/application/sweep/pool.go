package sweep

// pool.go: worker pool para ejecutar simulaciones en paralelo.
//
// Cada unidad de trabajo es un par (juego, parameter set) totalmente
// independiente: su propio smoother, su propia máquina de estados. Los workers
// no comparten estado mutable; los resultados se recogen por canal y solo al
// final se ordenan, así que el orden de finalización nunca afecta al reporte.

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/alejandrodnm/oddsbot/internal/domain"
)

// unit is one (game, parameter set) simulation.
type unit struct {
	point int // index into the grid
	game  int // index into the games slice
}

type unitResult struct {
	unit
	result domain.SimulationResult
}

// simulator is the subset of simulation.Runner the pool needs.
type simulator interface {
	Run(ctx context.Context, game domain.Game, params domain.ParameterSet) (domain.SimulationResult, error)
}

// runUnitsConcurrent ejecuta todas las unidades en un pool de workers fijo.
// Si workers <= 0 usa runtime.NumCPU(). Los errores y panics de una unidad se
// registran como resultado fallido y no abortan el resto. Si ctx se cancela
// se deja de despachar y se devuelve ctx.Err().
func runUnitsConcurrent(
	ctx context.Context,
	sim simulator,
	points []domain.ParameterSet,
	games []domain.Game,
	workers int,
	unitTimeout time.Duration,
	onResult func(unitResult),
) ([]unitResult, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	total := len(points) * len(games)
	workCh := make(chan unit)
	resultCh := make(chan unitResult, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range workCh {
				resultCh <- unitResult{unit: u, result: runUnit(ctx, sim, games[u.game], points[u.point], unitTimeout)}
			}
		}()
	}

	// Alimentar el work channel; parar de despachar si se cancela el contexto.
	go func() {
		defer close(workCh)
		for p := range points {
			for g := range games {
				select {
				case workCh <- unit{point: p, game: g}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]unitResult, 0, total)
	for r := range resultCh {
		if onResult != nil {
			onResult(r)
		}
		results = append(results, r)
	}

	slog.Debug("sweep pool drained",
		"units", total,
		"completed", len(results),
		"workers", workers,
	)

	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("sweep.runUnitsConcurrent: %d/%d units done: %w", len(results), total, err)
	}
	return results, nil
}

// runUnit runs one simulation, converting panics into a failed result.
func runUnit(ctx context.Context, sim simulator, game domain.Game, params domain.ParameterSet, timeout time.Duration) (res domain.SimulationResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			slog.Warn("simulation panicked", "game", game.ID, "params", params.String(), "err", err)
			res = domain.FailedResult(params, game.ID, err, time.Since(start))
		}
	}()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := sim.Run(ctx, game, params)
	if err != nil {
		slog.Debug("simulation failed", "game", game.ID, "params", params.String(), "err", err)
		if !res.Failed {
			res = domain.FailedResult(params, game.ID, err, time.Since(start))
		}
	}
	return res
}
