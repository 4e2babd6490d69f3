package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/oddsbot/internal/domain"
)

func TestObserveRun(t *testing.T) {
	m := New()
	m.ObserveRun(false, 2*time.Millisecond)
	m.ObserveRun(false, 3*time.Millisecond)
	m.ObserveRun(true, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SweepRuns.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepRuns.WithLabelValues("failed")))
}

func TestObserveSnapshot(t *testing.T) {
	m := New()
	m.ObserveSnapshot(domain.Snapshot{
		GameID:        "G1",
		Ticks:         12,
		Trades:        3,
		RealizedPnL:   0.4,
		UnrealizedPnL: -0.1,
		Smoothed:      map[string]float64{"DAL": 0.61},
		Positions:     []domain.Position{{TeamID: "DAL", Open: true}, {TeamID: "WAS"}},
	})
	m.ObserveDisconnect("G1")

	assert.Equal(t, 12.0, testutil.ToFloat64(m.LiveTicks.WithLabelValues("G1")))
	assert.Equal(t, 0.4, testutil.ToFloat64(m.LiveRealized.WithLabelValues("G1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LiveOpen.WithLabelValues("G1")))
	assert.Equal(t, 0.61, testutil.ToFloat64(m.LiveSmoothed.WithLabelValues("G1", "DAL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LiveDisconnects.WithLabelValues("G1")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRun(false, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `oddsbot_sweep_runs_total{status="ok"} 1`)
}
