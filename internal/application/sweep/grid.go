package sweep

import (
	"fmt"
	"math"
	"sort"

	"github.com/alejandrodnm/oddsbot/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultMaxGridPoints caps the Cartesian product when the caller passes 0.
const DefaultMaxGridPoints = 1_000_000

// Range is an inclusive-start (start, stop, step) triple for one parameter.
type Range struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop"`
	Step  float64 `yaml:"step"`
}

// Enumerate expands a range with exact decimal arithmetic. Stop is included
// only when (stop - start) is an exact multiple of step; otherwise the last
// value is the largest one <= stop. start == stop yields that single value.
func Enumerate(r Range) ([]float64, error) {
	return enumerate(r, DefaultMaxGridPoints)
}

func enumerate(r Range, limit int) ([]float64, error) {
	for _, v := range []float64{r.Start, r.Stop, r.Step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, gridErr("range %+v has a non-finite bound", r)
		}
	}
	if r.Start == r.Stop && r.Step >= 0 {
		return []float64{r.Start}, nil
	}
	if r.Step <= 0 {
		return nil, gridErr("step %v must be positive", r.Step)
	}
	if r.Stop < r.Start {
		return nil, gridErr("stop %v is below start %v", r.Stop, r.Start)
	}

	start := decimal.NewFromFloat(r.Start)
	stop := decimal.NewFromFloat(r.Stop)
	step := decimal.NewFromFloat(r.Step)

	steps := stop.Sub(start).Div(step).Floor()
	if steps.GreaterThanOrEqual(decimal.NewFromInt(int64(limit))) {
		return nil, gridErr("range %+v expands past %d values", r, limit)
	}

	n := steps.IntPart() + 1
	out := make([]float64, 0, n)
	for i := int64(0); i < n; i++ {
		v := start.Add(step.Mul(decimal.NewFromInt(i)))
		out = append(out, v.InexactFloat64())
	}
	return out, nil
}

// Grid builds one ParameterSet per point of the Cartesian product of ranges,
// each merged with the fixed values. Names are iterated in sorted order and
// the last name varies fastest, so the output order is stable.
func Grid(ranges map[string]Range, fixed map[string]float64, maxPoints int) ([]domain.ParameterSet, error) {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxGridPoints
	}

	names := make([]string, 0, len(ranges))
	for name := range ranges {
		if _, dup := fixed[name]; dup {
			return nil, gridErr("parameter %q is both fixed and swept", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	axes := make([][]float64, len(names))
	total := 1
	for i, name := range names {
		vals, err := enumerate(ranges[name], maxPoints)
		if err != nil {
			return nil, fmt.Errorf("sweep.Grid: %s: %w", name, err)
		}
		if name == domain.ParamAlpha {
			if err := checkAlpha(vals); err != nil {
				return nil, err
			}
		}
		axes[i] = vals
		if total > maxPoints/len(vals) {
			return nil, gridErr("grid exceeds %d points", maxPoints)
		}
		total *= len(vals)
	}
	if alpha, ok := fixed[domain.ParamAlpha]; ok {
		if err := checkAlpha([]float64{alpha}); err != nil {
			return nil, err
		}
	}

	points := make([]domain.ParameterSet, 0, total)
	idx := make([]int, len(names))
	for {
		values := make(map[string]float64, len(names)+len(fixed))
		for k, v := range fixed {
			values[k] = v
		}
		for i, name := range names {
			values[name] = axes[i][idx[i]]
		}
		points = append(points, domain.NewParameterSet(values))

		// odometer: advance the last axis, carry to the left
		i := len(idx) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(axes[i]) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			break
		}
	}
	return points, nil
}

// checkAlpha rejects alpha axes outside (0,1] before any work is dispatched.
func checkAlpha(vals []float64) error {
	for _, a := range vals {
		if a <= 0 || a > 1 {
			return fmt.Errorf("sweep.Grid: alpha %v outside (0,1]: %w: %w", a, domain.ErrGridEnumeration, domain.ErrInvalidParameter)
		}
	}
	return nil
}

func gridErr(format string, args ...any) error {
	return fmt.Errorf("sweep: "+format+": %w", append(args, domain.ErrGridEnumeration)...)
}
