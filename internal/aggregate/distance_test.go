package aggregate

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestDistance_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	vecGen := gen.SliceOfN(5, gen.Float64Range(-10, 10))

	properties.Property("distance is symmetric", prop.ForAll(
		func(a, b []float64) bool {
			inf := math.Inf(1)
			return distance(a, b, inf, false) == distance(b, a, inf, false)
		},
		vecGen, vecGen,
	))

	properties.Property("distance to self is zero", prop.ForAll(
		func(a []float64) bool {
			return distance(a, a, math.Inf(1), false) == 0
		},
		vecGen,
	))

	properties.Property("distance is non-negative", prop.ForAll(
		func(a, b []float64) bool {
			return distance(a, b, math.Inf(1), false) >= 0
		},
		vecGen, vecGen,
	))

	properties.TestingRun(t)
}

func TestDistance_SkipsMissing(t *testing.T) {
	nan := math.NaN()
	a := []float64{1, nan, 3, 4}
	b := []float64{1, 2, nan, 4}

	// Only dimensions 0 and 3 participate; both are equal.
	assert.Equal(t, 0.0, distance(a, b, math.Inf(1), false))
}

func TestDistance_ScalesUpForMissing(t *testing.T) {
	nan := math.NaN()
	full := distance([]float64{0, 0, 0, 0}, []float64{1, 1, 1, 1}, math.Inf(1), false)

	// Two of four dimensions participate, each contributing 1; the d/n
	// factor doubles the partial sum back to the full distance.
	partial := distance([]float64{0, 0, nan, nan}, []float64{1, 1, 1, 1}, math.Inf(1), false)
	assert.Equal(t, full, partial)
}

func TestDistance_AllMissingIsInf(t *testing.T) {
	nan := math.NaN()
	d := distance([]float64{nan, nan}, []float64{1, 2}, math.Inf(1), false)
	assert.True(t, math.IsInf(d, 1))
	assert.False(t, math.IsNaN(d))
}

func TestDistance_EarlyExit(t *testing.T) {
	a := []float64{0, 0, 0}
	b := []float64{2, 2, 2}

	// With a tiny delta the scan stops after the first dimension and
	// returns the unscaled partial sum.
	d := distance(a, b, 1.0, true)
	assert.Equal(t, 4.0, d)
	assert.Greater(t, d, 1.0)

	// Without early exit the full scaled distance comes back.
	assert.Equal(t, 12.0, distance(a, b, 1.0, false))
}

func TestDistance_Float32(t *testing.T) {
	a := []float32{0, 3}
	b := []float32{4, 0}
	assert.Equal(t, float32(25), distance(a, b, float32(math.Inf(1)), false))
}
