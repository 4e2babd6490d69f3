package kalshi

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/oddsbot/internal/domain"
)

const pageLimit = 200

// Market is the subset of the Kalshi market object the bot reads.
// Prices are in cents.
type Market struct {
	Ticker      string    `json:"ticker"`
	EventTicker string    `json:"event_ticker"`
	Status      string    `json:"status"`
	LastPrice   float64   `json:"last_price"`
	YesBid      float64   `json:"yes_bid"`
	YesAsk      float64   `json:"yes_ask"`
	Volume      float64   `json:"volume"`
	CloseTime   time.Time `json:"close_time"`
}

// Finished reports whether the market stopped trading.
func (m Market) Finished() bool {
	switch m.Status {
	case "closed", "settled", "finalized", "determined":
		return true
	}
	return false
}

// PriceCents returns the last traded price, falling back to the bid/ask mid
// when the market has not traded yet.
func (m Market) PriceCents() float64 {
	if m.LastPrice > 0 {
		return m.LastPrice
	}
	if m.YesBid > 0 && m.YesAsk > 0 {
		return (m.YesBid + m.YesAsk) / 2
	}
	return 0
}

// TeamID returns the team suffix of the market ticker
// ("KXNFLGAME-25OCT19ATLSF-SF" → "SF").
func (m Market) TeamID() string {
	i := strings.LastIndex(m.Ticker, "-")
	if i < 0 {
		return m.Ticker
	}
	return m.Ticker[i+1:]
}

type marketsResponse struct {
	Markets []Market `json:"markets"`
	Cursor  string   `json:"cursor"`
}

// MarketFilter selects markets for ListMarkets. Empty fields are not sent.
type MarketFilter struct {
	SeriesTicker string
	EventTicker  string
	Status       string
}

// ListMarkets pagina /markets hasta agotar el cursor.
func (c *Client) ListMarkets(ctx context.Context, f MarketFilter) ([]Market, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(pageLimit))
	if f.SeriesTicker != "" {
		q.Set("series_ticker", f.SeriesTicker)
	}
	if f.EventTicker != "" {
		q.Set("event_ticker", f.EventTicker)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}

	var all []Market
	for {
		var page marketsResponse
		if err := c.get(ctx, "/markets", q, &page); err != nil {
			return nil, fmt.Errorf("kalshi.ListMarkets: %w", err)
		}
		all = append(all, page.Markets...)
		if page.Cursor == "" {
			break
		}
		q.Set("cursor", page.Cursor)
	}
	return all, nil
}

// ParseTickerDate extracts the game date from a ticker such as
// "KXNFLGAME-25OCT19ATLSF-SF" (yyMMMdd after the first dash).
func ParseTickerDate(ticker string) (time.Time, bool) {
	parts := strings.Split(ticker, "-")
	if len(parts) < 2 || len(parts[1]) < 7 {
		return time.Time{}, false
	}
	// month names match case-insensitively
	d, err := time.Parse("06Jan02", parts[1][:7])
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// Finder implements ports.GameFinder: open markets of a series whose ticker
// date is today (UTC), grouped by event into games. Game.Teams holds the
// market tickers; ticks carry the team suffix as TeamID.
type Finder struct {
	client *Client
	series string
	now    func() time.Time
}

// NewFinder creates a finder for seriesTicker (e.g. KXNFLGAME).
func NewFinder(client *Client, seriesTicker string) *Finder {
	return &Finder{client: client, series: seriesTicker, now: time.Now}
}

// ActiveGames devuelve los juegos de hoy ordenados por hora de cierre.
func (f *Finder) ActiveGames(ctx context.Context) ([]domain.Game, error) {
	markets, err := f.client.ListMarkets(ctx, MarketFilter{SeriesTicker: f.series, Status: "open"})
	if err != nil {
		return nil, fmt.Errorf("kalshi.ActiveGames: %w", err)
	}
	return GroupToday(markets, f.now().UTC()), nil
}

// GroupToday keeps markets dated on today's UTC date and groups them by
// event ticker. Games are sorted by earliest close time, then ID.
func GroupToday(markets []Market, today time.Time) []domain.Game {
	y, m, d := today.Date()

	byEvent := make(map[string]*domain.Game)
	closes := make(map[string]time.Time)
	for _, mk := range markets {
		date, ok := ParseTickerDate(mk.Ticker)
		if !ok {
			slog.Debug("unparseable ticker date", "ticker", mk.Ticker)
			continue
		}
		if gy, gm, gd := date.Date(); gy != y || gm != m || gd != d {
			continue
		}
		g, ok := byEvent[mk.EventTicker]
		if !ok {
			g = &domain.Game{ID: mk.EventTicker}
			byEvent[mk.EventTicker] = g
			closes[mk.EventTicker] = mk.CloseTime
		}
		g.Teams = append(g.Teams, mk.Ticker)
		if mk.CloseTime.Before(closes[mk.EventTicker]) {
			closes[mk.EventTicker] = mk.CloseTime
		}
	}

	games := make([]domain.Game, 0, len(byEvent))
	for _, g := range byEvent {
		sort.Strings(g.Teams)
		games = append(games, *g)
	}
	sort.Slice(games, func(i, j int) bool {
		ci, cj := closes[games[i].ID], closes[games[j].ID]
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}
		return games[i].ID < games[j].ID
	})
	return games
}
