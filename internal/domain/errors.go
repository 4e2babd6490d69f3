package domain

import "errors"

// Error taxonomy shared by the strategy, the runners and the tick sources.
// Callers match with errors.Is; producers wrap with fmt.Errorf("...: %w", ErrX).
var (
	// ErrInvalidParameter: bad alpha or threshold. Fatal to one run / grid point.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNoLiquidity: an order could not be filled at the tick price.
	// Offline it fails the run; live it is reported and the position is held.
	ErrNoLiquidity = errors.New("no liquidity")

	// ErrSourceExhausted: the tick stream ended. Treated as game end.
	ErrSourceExhausted = errors.New("tick source exhausted")

	// ErrGameEnded: the source reported the game as finished.
	ErrGameEnded = errors.New("game ended")

	// ErrSourceDisconnected: the live source lost its connection. The live
	// loop pauses and retries without touching strategy state.
	ErrSourceDisconnected = errors.New("tick source disconnected")

	// ErrGridEnumeration: malformed start/stop/step. Fatal before any run starts.
	ErrGridEnumeration = errors.New("grid enumeration")
)

// IsGameOver reports whether err means the stream for a game is finished.
func IsGameOver(err error) bool {
	return errors.Is(err, ErrSourceExhausted) || errors.Is(err, ErrGameEnded)
}
