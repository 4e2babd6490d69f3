package strategy

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/alejandrodnm/oddsbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmoother_SeedThenEMA(t *testing.T) {
	s, err := NewSmoother(0.2)
	require.NoError(t, err)

	got := []float64{
		s.Update("A", 0.50),
		s.Update("A", 0.60),
		s.Update("A", 0.70),
	}
	assert.InDelta(t, 0.50, got[0], 1e-12)
	assert.InDelta(t, 0.52, got[1], 1e-12)
	assert.InDelta(t, 0.556, got[2], 1e-12)
}

func TestSmoother_TeamsAreIndependent(t *testing.T) {
	s, err := NewSmoother(0.5)
	require.NoError(t, err)

	s.Update("A", 0.40)
	assert.InDelta(t, 0.90, s.Update("B", 0.90), 1e-12, "first B tick seeds B")
	assert.InDelta(t, 0.50, s.Update("A", 0.60), 1e-12)

	st, ok := s.State("B")
	require.True(t, ok)
	assert.True(t, st.Initialized)
	assert.InDelta(t, 0.90, st.Value, 1e-12)

	_, ok = s.State("C")
	assert.False(t, ok)
}

func TestSmoother_InvalidAlpha(t *testing.T) {
	for _, alpha := range []float64{0, -0.1, 1.0001, math.NaN()} {
		_, err := NewSmoother(alpha)
		assert.True(t, errors.Is(err, domain.ErrInvalidParameter), "alpha=%v", alpha)
	}
	_, err := NewSmoother(1)
	assert.NoError(t, err, "alpha=1 is allowed (no smoothing)")
}

func TestSmoother_NoLookAhead(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	prices := make([]float64, 200)
	for i := range prices {
		prices[i] = rng.Float64()
	}

	run := func(ps []float64) []float64 {
		s, err := NewSmoother(0.3)
		require.NoError(t, err)
		out := make([]float64, len(ps))
		for i, p := range ps {
			out[i] = s.Update("A", p)
		}
		return out
	}

	base := run(prices)
	for _, k := range []int{0, 1, 57, 198} {
		altered := append([]float64(nil), prices...)
		for i := k + 1; i < len(altered); i++ {
			altered[i] = 1 - altered[i]
		}
		truncated := run(prices[:k+1])
		changed := run(altered)
		for i := 0; i <= k; i++ {
			assert.Equal(t, base[i], changed[i], "index %d changed after altering ticks > %d", i, k)
			assert.Equal(t, base[i], truncated[i], "index %d changed after removing ticks > %d", i, k)
		}
	}
}

func TestAlphaFromSigma(t *testing.T) {
	// 3.32 min at 1 Hz → 199.2 points → ~0.005
	assert.InDelta(t, 1/199.2, AlphaFromSigma(3.32, 60), 1e-9)
	assert.Equal(t, 0.5, AlphaFromSigma(0.01, 60), "clamped high")
	assert.Equal(t, 0.001, AlphaFromSigma(100, 60), "clamped low")
}
