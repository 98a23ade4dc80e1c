// Package aggregate implements the exemplar aggregation engine: it
// reduces a frame to a small set of representative rows plus a per-row
// membership mapping, preserving the density structure of the input.
package aggregate

import (
	"math"

	"github.com/epitomedb/epitome/pkg/frame"
)

// Float constrains the floating point width used for all distance math.
// Either width converges to roughly the same exemplar set; float32
// halves the memory of the coordinate buffers.
type Float interface {
	~float32 | ~float64
}

// epsilonOf returns the machine epsilon of T.
func epsilonOf[T Float]() T {
	var t T
	if _, ok := any(t).(float32); ok {
		return T(math.Nextafter32(1, 2) - 1)
	}
	return T(math.Nextafter(1, 2) - 1)
}

// isNA reports whether v is the missing-value sentinel.
func isNA[T Float](v T) bool {
	return v != v
}

// convertor is a uniform lazy view over one numeric or boolean source
// column: values cast to T, with cached min/max over the non-missing
// values. It lives for the duration of a single aggregation call.
type convertor[T Float] struct {
	col   frame.Column
	nrows int
	min   T
	max   T
}

// newConvertor wraps a column, computing its min/max up front. Returns
// nil when the column is not numeric. A wholly missing column yields
// min = max = 0 and is later treated as constant by the normalizer.
func newConvertor[T Float](col frame.Column) *convertor[T] {
	if !col.Stype().IsNumeric() {
		return nil
	}
	c := &convertor[T]{col: col, nrows: col.NRows()}
	cmin, cmax := math.Inf(1), math.Inf(-1)
	seen := false
	for i := 0; i < c.nrows; i++ {
		v := col.Float64(i)
		if v != v {
			continue
		}
		if v < cmin {
			cmin = v
		}
		if v > cmax {
			cmax = v
		}
		seen = true
	}
	if !seen {
		cmin, cmax = 0, 0
	}
	c.min, c.max = T(cmin), T(cmax)
	return c
}

// value returns the value at row i cast to T, NaN when missing.
func (c *convertor[T]) value(i int) T {
	return T(c.col.Float64(i))
}

// isNA reports whether the value at row i is missing.
func (c *convertor[T]) isNA(i int) bool {
	return c.col.IsNA(i)
}
