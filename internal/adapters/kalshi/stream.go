package kalshi

// stream.go: precios en vivo por el canal "ticker" del WebSocket.
//
// Kalshi empuja un mensaje por cada cambio de precio; el stream guarda el
// último valor de cada mercado y emite un tick por mercado por segundo,
// repitiendo el último precio si no hubo cambios. Si la conexión se cae,
// Next devuelve domain.ErrSourceDisconnected y la próxima llamada reconecta.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/oddsbot/internal/domain"
)

const (
	wsPath            = "/trade-api/ws/v2"
	defaultSampleRate = time.Second
	defaultStatusPoll = time.Minute
	writeTimeout      = 10 * time.Second
)

type subscribeCmd struct {
	ID     int             `json:"id"`
	Cmd    string          `json:"cmd"`
	Params subscribeParams `json:"params"`
}

type subscribeParams struct {
	Channels      []string `json:"channels"`
	MarketTickers []string `json:"market_tickers"`
}

type wsEnvelope struct {
	Type string          `json:"type"`
	Msg  json.RawMessage `json:"msg"`
}

type tickerMsg struct {
	MarketTicker string  `json:"market_ticker"`
	Price        float64 `json:"price"`
	YesBid       float64 `json:"yes_bid"`
	YesAsk       float64 `json:"yes_ask"`
}

func (m tickerMsg) cents() float64 {
	if m.Price > 0 {
		return m.Price
	}
	if m.YesBid > 0 && m.YesAsk > 0 {
		return (m.YesBid + m.YesAsk) / 2
	}
	return 0
}

// StreamConfig configures a WebSocket stream.
type StreamConfig struct {
	URL        string        // default DefaultWSURL
	SampleRate time.Duration // default 1s
	// StatusPoll is how often the REST client is asked whether the event
	// closed. 0 uses one minute; the check is skipped when Client is nil.
	StatusPoll time.Duration
	Client     *Client
}

// Stream implements ports.TickStream over the ticker channel for one game.
type Stream struct {
	cfg    StreamConfig
	signer *Signer
	game   domain.Game
	dialer *websocket.Dialer
	now    func() time.Time

	conn    *websocket.Conn
	readErr chan error

	mu     sync.Mutex
	latest map[string]tickerMsg

	pending    []domain.Tick
	seq        int64
	nextSample time.Time
	lastStatus time.Time
}

// NewStream creates a stream for game; game.Teams must hold market tickers.
// signer may be nil for unauthenticated test servers.
func NewStream(cfg StreamConfig, signer *Signer, game domain.Game) *Stream {
	if cfg.URL == "" {
		cfg.URL = DefaultWSURL
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.StatusPoll <= 0 {
		cfg.StatusPoll = defaultStatusPoll
	}
	return &Stream{
		cfg:    cfg,
		signer: signer,
		game:   game,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		now:    time.Now,
		latest: make(map[string]tickerMsg),
	}
}

// Next implements ports.TickStream.
func (s *Stream) Next(ctx context.Context) (domain.Tick, error) {
	for len(s.pending) == 0 {
		if s.conn == nil {
			if err := s.connect(ctx); err != nil {
				if ctx.Err() != nil {
					return domain.Tick{}, fmt.Errorf("kalshi.Stream: %w", ctx.Err())
				}
				return domain.Tick{}, fmt.Errorf("kalshi.Stream: connect: %v: %w", err, domain.ErrSourceDisconnected)
			}
		}

		if ended, err := s.checkEnded(ctx); err != nil {
			slog.Debug("event status check failed", "game", s.game.ID, "err", err)
		} else if ended {
			return domain.Tick{}, fmt.Errorf("kalshi.Stream: %s: %w", s.game.ID, domain.ErrGameEnded)
		}

		wait := s.nextSample.Sub(s.now())
		timer := time.NewTimer(max(wait, 0))
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.Tick{}, fmt.Errorf("kalshi.Stream: %w", ctx.Err())
		case err := <-s.readErr:
			timer.Stop()
			s.drop()
			return domain.Tick{}, fmt.Errorf("kalshi.Stream: read: %v: %w", err, domain.ErrSourceDisconnected)
		case <-timer.C:
		}
		s.nextSample = s.now().Add(s.cfg.SampleRate)
		s.sample()
	}

	t := s.pending[0]
	s.pending = s.pending[1:]
	return t, nil
}

func (s *Stream) connect(ctx context.Context) error {
	var header http.Header
	if s.signer != nil {
		path := wsPath
		if u, err := url.Parse(s.cfg.URL); err == nil && u.Path != "" {
			path = u.Path
		}
		h, err := s.signer.Headers(http.MethodGet, path)
		if err != nil {
			return err
		}
		header = h
	}

	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	sub := subscribeCmd{
		ID:     1,
		Cmd:    "subscribe",
		Params: subscribeParams{Channels: []string{"ticker"}, MarketTickers: s.game.Teams},
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe: %w", err)
	}

	s.conn = conn
	s.readErr = make(chan error, 1)
	s.nextSample = s.now().Add(s.cfg.SampleRate)
	go s.readLoop(conn, s.readErr)

	slog.Info("kalshi ticker stream connected", "game", s.game.ID, "markets", len(s.game.Teams))
	return nil
}

func (s *Stream) readLoop(conn *websocket.Conn, errCh chan<- error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			errCh <- err
			return
		}
		var env wsEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Debug("bad ws message", "err", err)
			continue
		}
		switch env.Type {
		case "ticker":
			var msg tickerMsg
			if err := json.Unmarshal(env.Msg, &msg); err != nil {
				slog.Debug("bad ticker message", "err", err)
				continue
			}
			s.mu.Lock()
			s.latest[msg.MarketTicker] = msg
			s.mu.Unlock()
		case "error":
			slog.Warn("kalshi ws error", "game", s.game.ID, "msg", string(env.Msg))
		}
	}
}

// sample queues the latest price of every subscribed market, in ticker order.
func (s *Stream) sample() {
	at := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ticker := range s.game.Teams {
		msg, ok := s.latest[ticker]
		if !ok {
			continue
		}
		cents := msg.cents()
		if cents <= 0 {
			continue
		}
		s.pending = append(s.pending, domain.Tick{
			Timestamp: at,
			GameID:    s.game.ID,
			TeamID:    Market{Ticker: ticker}.TeamID(),
			Price:     centsToProb(cents),
			Seq:       s.seq,
		})
		s.seq++
	}
}

func (s *Stream) checkEnded(ctx context.Context) (bool, error) {
	if s.cfg.Client == nil || (!s.lastStatus.IsZero() && s.now().Sub(s.lastStatus) < s.cfg.StatusPoll) {
		return false, nil
	}
	s.lastStatus = s.now()
	markets, err := s.cfg.Client.ListMarkets(ctx, MarketFilter{EventTicker: s.game.ID})
	if err != nil {
		return false, err
	}
	if len(markets) == 0 {
		return false, nil
	}
	for _, m := range markets {
		if !m.Finished() {
			return false, nil
		}
	}
	return true, nil
}

func (s *Stream) drop() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// Close implements ports.TickStream.
func (s *Stream) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	s.drop()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("kalshi.Stream.Close: %w", err)
	}
	return nil
}
