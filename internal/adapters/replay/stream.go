package replay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/oddsbot/internal/domain"
)

// Stream replays a recorded game as a live tick source, one tick every
// interval. Used for dry runs of the live loop.
type Stream struct {
	ticks    []domain.Tick
	interval time.Duration

	mu     sync.Mutex
	pos    int
	closed bool
	last   time.Time
}

// NewStream paces game. interval <= 0 delivers ticks as fast as Next is called.
func NewStream(game domain.Game, interval time.Duration) *Stream {
	return &Stream{ticks: game.Ticks, interval: interval}
}

// Next implements ports.TickStream. After the last tick it returns
// domain.ErrSourceExhausted.
func (s *Stream) Next(ctx context.Context) (domain.Tick, error) {
	s.mu.Lock()
	if s.closed || s.pos >= len(s.ticks) {
		s.mu.Unlock()
		return domain.Tick{}, fmt.Errorf("replay.Next: %w", domain.ErrSourceExhausted)
	}
	wait := time.Duration(0)
	if s.interval > 0 && !s.last.IsZero() {
		wait = s.interval - time.Since(s.last)
	}
	s.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return domain.Tick{}, fmt.Errorf("replay.Next: %w", ctx.Err())
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return domain.Tick{}, fmt.Errorf("replay.Next: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.pos >= len(s.ticks) {
		return domain.Tick{}, fmt.Errorf("replay.Next: %w", domain.ErrSourceExhausted)
	}
	t := s.ticks[s.pos]
	s.pos++
	s.last = time.Now()
	return t, nil
}

// Remaining returns how many ticks are left.
func (s *Stream) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ticks) - s.pos
}

// Close stops the stream; later calls to Next report exhaustion.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
