package kalshi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, nil)
	c.retryWait = time.Millisecond
	return c
}

func TestParseTickerDate(t *testing.T) {
	d, ok := ParseTickerDate("KXNFLGAME-25OCT19ATLSF-SF")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 10, 19, 0, 0, 0, 0, time.UTC), d)

	_, ok = ParseTickerDate("KXNFLGAME")
	assert.False(t, ok)
	_, ok = ParseTickerDate("KXNFLGAME-XXYYYZZ-SF")
	assert.False(t, ok)
}

func TestListMarkets_FollowsCursor(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/trade-api/v2/markets", r.URL.Path)
		assert.Equal(t, "KXNFLGAME", r.URL.Query().Get("series_ticker"))
		assert.Equal(t, "open", r.URL.Query().Get("status"))

		resp := marketsResponse{}
		if r.URL.Query().Get("cursor") == "" {
			resp.Markets = []Market{{Ticker: "KXNFLGAME-25OCT19ATLSF-SF"}}
			resp.Cursor = "page2"
		} else {
			assert.Equal(t, "page2", r.URL.Query().Get("cursor"))
			resp.Markets = []Market{{Ticker: "KXNFLGAME-25OCT19ATLSF-ATL"}}
		}
		json.NewEncoder(w).Encode(resp)
	})

	markets, err := c.ListMarkets(context.Background(), MarketFilter{SeriesTicker: "KXNFLGAME", Status: "open"})
	require.NoError(t, err)
	assert.Len(t, markets, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestListMarkets_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if calls.Load() < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(marketsResponse{Markets: []Market{{Ticker: "T-25OCT19AB-A"}}})
	})
	markets, err := c.ListMarkets(context.Background(), MarketFilter{})
	require.NoError(t, err)
	assert.Len(t, markets, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestListMarkets_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
	_, err := c.ListMarkets(context.Background(), MarketFilter{})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_SignsRequests(t *testing.T) {
	_, path := writeKey(t, false)
	signer, err := NewSigner(Credential{Token: "key-1", PrivateKeyPath: path})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-1", r.Header.Get(headerKey))
		assert.NotEmpty(t, r.Header.Get(headerSignature))
		assert.NotEmpty(t, r.Header.Get(headerTimestamp))
		json.NewEncoder(w).Encode(marketsResponse{})
	}))
	defer srv.Close()

	_, err = NewClient(srv.URL, signer).ListMarkets(context.Background(), MarketFilter{})
	require.NoError(t, err)
}

func TestGroupToday(t *testing.T) {
	close1 := time.Date(2025, 10, 19, 20, 0, 0, 0, time.UTC)
	close2 := time.Date(2025, 10, 19, 17, 0, 0, 0, time.UTC)
	markets := []Market{
		{Ticker: "KXNFLGAME-25OCT19DALWAS-WAS", EventTicker: "KXNFLGAME-25OCT19DALWAS", CloseTime: close1},
		{Ticker: "KXNFLGAME-25OCT19DALWAS-DAL", EventTicker: "KXNFLGAME-25OCT19DALWAS", CloseTime: close1},
		{Ticker: "KXNFLGAME-25OCT19ATLSF-SF", EventTicker: "KXNFLGAME-25OCT19ATLSF", CloseTime: close2},
		{Ticker: "KXNFLGAME-25OCT19ATLSF-ATL", EventTicker: "KXNFLGAME-25OCT19ATLSF", CloseTime: close2},
		{Ticker: "KXNFLGAME-25OCT20CHIDET-DET", EventTicker: "KXNFLGAME-25OCT20CHIDET", CloseTime: close2},
	}

	games := GroupToday(markets, time.Date(2025, 10, 19, 15, 0, 0, 0, time.UTC))
	require.Len(t, games, 2)
	assert.Equal(t, "KXNFLGAME-25OCT19ATLSF", games[0].ID, "earliest close first")
	assert.Equal(t, []string{"KXNFLGAME-25OCT19ATLSF-ATL", "KXNFLGAME-25OCT19ATLSF-SF"}, games[0].Teams)
	assert.Equal(t, "KXNFLGAME-25OCT19DALWAS", games[1].ID)
}

func TestMarket_PriceAndStatus(t *testing.T) {
	assert.Equal(t, 57.0, Market{LastPrice: 57, YesBid: 50, YesAsk: 52}.PriceCents())
	assert.Equal(t, 51.0, Market{YesBid: 50, YesAsk: 52}.PriceCents())
	assert.Zero(t, Market{YesBid: 50}.PriceCents())

	assert.True(t, Market{Status: "settled"}.Finished())
	assert.False(t, Market{Status: "active"}.Finished())
	assert.Equal(t, "SF", Market{Ticker: "KXNFLGAME-25OCT19ATLSF-SF"}.TeamID())
}
