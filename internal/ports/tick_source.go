package ports

import (
	"context"

	"github.com/alejandrodnm/oddsbot/internal/domain"
)

// TickStream entrega ticks de un juego en orden, uno por llamada.
type TickStream interface {
	// Next bloquea hasta el próximo tick. Devuelve domain.ErrGameEnded o
	// domain.ErrSourceExhausted cuando no habrá más datos, y
	// domain.ErrSourceDisconnected cuando la fuente se cayó pero puede volver.
	Next(ctx context.Context) (domain.Tick, error)
	Close() error
}

// GameLoader carga juegos grabados y limpios para backtests y sweeps.
type GameLoader interface {
	LoadGames(ctx context.Context) ([]domain.Game, error)
}

// GameFinder descubre los juegos activos en vivo. Los Game devueltos no
// traen ticks: solo ID y Teams (market tickers).
type GameFinder interface {
	ActiveGames(ctx context.Context) ([]domain.Game, error)
}
