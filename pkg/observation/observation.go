// Package observation extracts features from an engine paused in its search.
//
// Every extractor returns ok=false outside the solving stage, where the engine has
// no focus node or LP to describe.
package observation

import (
	"math"

	"github.com/aretw0/stepbnb/pkg/domain"
	"github.com/aretw0/stepbnb/pkg/ports"
)

// Func extracts an observation of type T. done reports whether the episode ended.
type Func[T any] interface {
	Extract(engine ports.Engine, done bool) (T, bool)
}

// FocusNode describes the node currently being processed.
type FocusNode struct{}

// Extract implements Func.
func (FocusNode) Extract(engine ports.Engine, _ bool) (domain.FocusNodeInfo, bool) {
	if engine.Stage() != domain.StageSolving {
		return domain.FocusNodeInfo{}, false
	}
	in, ok := engine.(ports.Inspector)
	if !ok {
		return domain.FocusNodeInfo{}, false
	}
	return in.FocusNode()
}

// Capacity returns, per LP column, the largest right-hand side among the rows the
// column appears in. For a knapsack this is the capacity constraining the item.
type Capacity struct{}

// Extract implements Func.
func (Capacity) Extract(engine ports.Engine, _ bool) ([]float64, bool) {
	return perColumn(engine, func(c domain.LPColumn) []float64 { return c.RowRHS })
}

// Weight returns, per LP column, the largest coefficient of the column.
// For a knapsack this is the weight of the item.
type Weight struct{}

// Extract implements Func.
func (Weight) Extract(engine ports.Engine, _ bool) ([]float64, bool) {
	return perColumn(engine, func(c domain.LPColumn) []float64 { return c.Values })
}

// perColumn reduces every LP column to the maximum of pick(column), clamped at zero.
// Positions without a column are NaN.
func perColumn(engine ports.Engine, pick func(domain.LPColumn) []float64) ([]float64, bool) {
	if engine.Stage() != domain.StageSolving {
		return nil, false
	}
	in, ok := engine.(ports.Inspector)
	if !ok {
		return nil, false
	}
	cols := in.LPColumns()
	size := 0
	for _, c := range cols {
		size = max(size, c.Position+1)
	}
	out := make([]float64, size)
	for i := range out {
		out[i] = math.NaN()
	}
	for _, c := range cols {
		best := 0.0
		for _, v := range pick(c) {
			best = max(best, v)
		}
		out[c.Position] = best
	}
	return out, true
}

// None observes nothing. It lets an environment run without features.
type None struct{}

// Extract implements Func.
func (None) Extract(ports.Engine, bool) (struct{}, bool) {
	return struct{}{}, true
}
