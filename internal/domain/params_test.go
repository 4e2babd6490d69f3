package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParameterSet_CopiesInput(t *testing.T) {
	src := map[string]float64{"alpha": 0.2, "stake": 2}
	p := NewParameterSet(src)
	src["alpha"] = 0.9

	v, ok := p.Get("alpha")
	assert.True(t, ok)
	assert.Equal(t, 0.2, v)

	m := p.Map()
	m["stake"] = 100
	assert.Equal(t, 2.0, p.Float("stake", 0), "Map returns a copy")
}

func TestParameterSet_WithLeavesOriginal(t *testing.T) {
	p := NewParameterSet(map[string]float64{"alpha": 0.2})
	q := p.With("alpha", 0.4)

	assert.Equal(t, 0.2, p.Float("alpha", 0))
	assert.Equal(t, 0.4, q.Float("alpha", 0))
}

func TestParameterSet_StringIsCanonical(t *testing.T) {
	p := NewParameterSet(map[string]float64{"stake": 2, "alpha": 0.3, "gain_threshold": 0.03})
	assert.Equal(t, "alpha=0.3 gain_threshold=0.03 stake=2", p.String())
	assert.Equal(t, []string{"alpha", "gain_threshold", "stake"}, p.Names())
	assert.Equal(t, []float64{0.3, 0.03, 2}, p.Values())
}

func TestParameterSet_Compare(t *testing.T) {
	a := NewParameterSet(map[string]float64{"alpha": 0.2, "stake": 2})
	b := NewParameterSet(map[string]float64{"alpha": 0.2, "stake": 3})
	c := NewParameterSet(map[string]float64{"alpha": 0.3, "stake": 1})

	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, -1, b.Compare(c), "first differing name decides")
	assert.True(t, a.Equal(NewParameterSet(map[string]float64{"stake": 2, "alpha": 0.2})))
}

func TestParameterSet_Missing(t *testing.T) {
	var p ParameterSet
	_, ok := p.Get("alpha")
	assert.False(t, ok)
	assert.Equal(t, 0.25, p.Float("alpha", 0.25))
	assert.Equal(t, "", p.String())
}
