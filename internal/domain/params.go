package domain

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Well-known parameter names. A ParameterSet may carry any name; these are the
// ones the hedge strategy reads.
const (
	ParamAlpha          = "alpha"
	ParamStake          = "stake"
	ParamEntryTick      = "entry_tick"
	ParamMinStart       = "min_start"
	ParamMaxStart       = "max_start"
	ParamExitThreshold  = "exit_threshold"
	ParamStopLoss       = "stop_loss"
	ParamGainThreshold  = "gain_threshold"
	ParamTrailFloor     = "trail_floor"
	ParamFallFraction   = "fall_fraction"
	ParamCheckpointTick = "checkpoint_tick"
	ParamMaxReentries   = "max_reentries"
)

// ParameterSet is an immutable name → value mapping. The zero value is an
// empty set. Copies share the backing arrays, which is safe because nothing
// writes to them after NewParameterSet returns.
type ParameterSet struct {
	names  []string
	values []float64
}

// NewParameterSet copies values into a new immutable set.
func NewParameterSet(values map[string]float64) ParameterSet {
	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)

	vals := make([]float64, len(names))
	for i, n := range names {
		vals[i] = values[n]
	}
	return ParameterSet{names: names, values: vals}
}

// With returns a new set with name overridden; p is left untouched.
func (p ParameterSet) With(name string, value float64) ParameterSet {
	m := p.Map()
	m[name] = value
	return NewParameterSet(m)
}

// Get returns the value for name.
func (p ParameterSet) Get(name string) (float64, bool) {
	i := sort.SearchStrings(p.names, name)
	if i < len(p.names) && p.names[i] == name {
		return p.values[i], true
	}
	return 0, false
}

// Float returns the value for name, or def when absent.
func (p ParameterSet) Float(name string, def float64) float64 {
	if v, ok := p.Get(name); ok {
		return v
	}
	return def
}

// Len returns the number of parameters.
func (p ParameterSet) Len() int { return len(p.names) }

// Names returns the sorted parameter names (a copy).
func (p ParameterSet) Names() []string {
	return append([]string(nil), p.names...)
}

// Values returns the values ordered like Names (a copy).
func (p ParameterSet) Values() []float64 {
	return append([]float64(nil), p.values...)
}

// Map returns a fresh mutable copy of the set.
func (p ParameterSet) Map() map[string]float64 {
	m := make(map[string]float64, len(p.names))
	for i, n := range p.names {
		m[n] = p.values[i]
	}
	return m
}

// String devuelve la forma canónica "a=0.2 b=0.03", estable entre ejecuciones.
func (p ParameterSet) String() string {
	var sb strings.Builder
	for i, n := range p.names {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%s=%s", n, FormatValue(p.values[i]))
	}
	return sb.String()
}

// Compare orders two sets lexicographically: by sorted name, then value.
// Returns -1, 0 or +1.
func (p ParameterSet) Compare(o ParameterSet) int {
	n := min(len(p.names), len(o.names))
	for i := 0; i < n; i++ {
		if c := strings.Compare(p.names[i], o.names[i]); c != 0 {
			return c
		}
		switch {
		case p.values[i] < o.values[i]:
			return -1
		case p.values[i] > o.values[i]:
			return 1
		}
	}
	switch {
	case len(p.names) < len(o.names):
		return -1
	case len(p.names) > len(o.names):
		return 1
	}
	return 0
}

// Equal reports whether both sets hold the same names and values.
func (p ParameterSet) Equal(o ParameterSet) bool { return p.Compare(o) == 0 }

// FormatValue prints a parameter value with the shortest exact representation.
func FormatValue(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return fmt.Sprint(v)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
