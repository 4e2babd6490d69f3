package kalshi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/oddsbot/internal/domain"
)

var hundred = decimal.NewFromInt(100)

func centsToProb(cents float64) float64 {
	return decimal.NewFromFloat(cents).Div(hundred).InexactFloat64()
}

// Poller implements ports.TickStream by polling the markets of one event
// over REST, one sample per market every interval.
type Poller struct {
	client   *Client
	game     domain.Game
	interval time.Duration
	now      func() time.Time

	pending []domain.Tick
	seq     int64
	last    time.Time
}

// NewPoller creates a poller for game (ID = event ticker).
func NewPoller(client *Client, game domain.Game, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{client: client, game: game, interval: interval, now: time.Now}
}

// Next returns the next sampled tick. Transport failures are reported as
// domain.ErrSourceDisconnected; a 4xx answer is returned as is. When every
// market of the event is closed the poller reports domain.ErrGameEnded.
func (p *Poller) Next(ctx context.Context) (domain.Tick, error) {
	for len(p.pending) == 0 {
		if !p.last.IsZero() {
			if wait := p.interval - p.now().Sub(p.last); wait > 0 {
				t := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					t.Stop()
					return domain.Tick{}, fmt.Errorf("kalshi.Poller: %w", ctx.Err())
				case <-t.C:
				}
			}
		}
		p.last = p.now()

		markets, err := p.client.ListMarkets(ctx, MarketFilter{EventTicker: p.game.ID})
		if err != nil {
			var se *StatusError
			switch {
			case ctx.Err() != nil:
				return domain.Tick{}, fmt.Errorf("kalshi.Poller: %w", ctx.Err())
			case errors.As(err, &se):
				return domain.Tick{}, fmt.Errorf("kalshi.Poller: %w", err)
			default:
				return domain.Tick{}, fmt.Errorf("kalshi.Poller: %v: %w", err, domain.ErrSourceDisconnected)
			}
		}
		if done := p.sample(markets); done {
			return domain.Tick{}, fmt.Errorf("kalshi.Poller: %s: %w", p.game.ID, domain.ErrGameEnded)
		}
	}

	t := p.pending[0]
	p.pending = p.pending[1:]
	return t, nil
}

// sample queues one tick per priced market and reports whether every
// market of the event has finished.
func (p *Poller) sample(markets []Market) bool {
	wanted := make(map[string]bool, len(p.game.Teams))
	for _, t := range p.game.Teams {
		wanted[t] = true
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].Ticker < markets[j].Ticker })

	at := p.last
	finished, seen := true, 0
	for _, m := range markets {
		if len(wanted) > 0 && !wanted[m.Ticker] {
			continue
		}
		seen++
		if !m.Finished() {
			finished = false
		}
		cents := m.PriceCents()
		if cents <= 0 {
			continue
		}
		p.pending = append(p.pending, domain.Tick{
			Timestamp: at,
			GameID:    p.game.ID,
			TeamID:    m.TeamID(),
			Price:     centsToProb(cents),
			Seq:       p.seq,
		})
		p.seq++
	}
	if seen > 0 && finished {
		p.pending = nil
		return true
	}
	return false
}

// Close implements ports.TickStream.
func (p *Poller) Close() error { return nil }
