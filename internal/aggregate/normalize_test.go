package aggregate

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epitomedb/epitome/pkg/frame"
)

func TestNormCoeffs_RangeProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	// The bounds carry a small tolerance: for x at the very edge of the
	// column range, rounding in x*factor + shift can overshoot the
	// (1 - eps) headroom.
	properties.Property("x*factor + shift lands in [0, bins)", prop.ForAll(
		func(cmin, width, frac float64, bins int) bool {
			cmax := cmin + width
			factor, shift := normCoeffs(cmin, cmax, bins)
			x := cmin + frac*width
			v := x*factor + shift
			return v >= -1e-6 && v < float64(bins)+1e-6
		},
		gen.Float64Range(-1e6, 1e6),
		gen.Float64Range(1, 1e3),
		gen.Float64Range(0, 1),
		gen.IntRange(1, 1000),
	))

	properties.TestingRun(t)
}

func TestNormCoeffs_ConstantColumn(t *testing.T) {
	factor, shift := normCoeffs(7.0, 7.0, 10)
	assert.Equal(t, 0.0, factor)
	assert.Equal(t, 5.0, shift)

	// Every non-missing value lands at the midpoint.
	assert.Equal(t, 5.0, 7.0*factor+shift)
}

func TestNormCoeffs_Float32(t *testing.T) {
	factor, shift := normCoeffs[float32](0, 10, 5)
	v0 := float32(0)*factor + shift
	v10 := float32(10)*factor + shift
	assert.GreaterOrEqual(t, v0, float32(0))
	assert.Less(t, v10, float32(5))
}

func TestNormalizeRow(t *testing.T) {
	col := frame.NewFloat64([]float64{0, 5, 10, math.NaN()})
	conv := newConvertor[float64](col)
	require.NotNil(t, conv)
	convs := []*convertor[float64]{conv}

	out := make([]float64, 1)
	normalizeRow(convs, out, 0)
	assert.Equal(t, 0.0, out[0])
	normalizeRow(convs, out, 2)
	assert.Less(t, out[0], 1.0)
	assert.Greater(t, out[0], 0.9)
	normalizeRow(convs, out, 3)
	assert.True(t, math.IsNaN(out[0]))
}

func TestGeneratePMatrix_SeedDeterminism(t *testing.T) {
	p1 := generatePMatrix[float64](10, 3, 42)
	p2 := generatePMatrix[float64](10, 3, 42)
	p3 := generatePMatrix[float64](10, 3, 43)

	require.Len(t, p1, 30)
	assert.Equal(t, p1, p2)
	assert.NotEqual(t, p1, p3)
}

func TestProjectRow(t *testing.T) {
	cols := []frame.Column{
		frame.NewFloat64([]float64{0, math.NaN()}),
		frame.NewFloat64([]float64{10, math.NaN()}),
		frame.NewFloat64([]float64{5, math.NaN()}),
	}
	var convs []*convertor[float64]
	for _, c := range cols {
		convs = append(convs, newConvertor[float64](c))
	}
	pmatrix := generatePMatrix[float64](3, 2, 1)

	out := make([]float64, 2)
	projectRow(convs, out, 0, pmatrix)
	for _, v := range out {
		assert.False(t, math.IsNaN(v))
	}

	// A row with no non-missing components projects to all-NaN and can
	// never fall inside an exemplar's radius.
	projectRow(convs, out, 1, pmatrix)
	for _, v := range out {
		assert.True(t, math.IsNaN(v))
	}
}

func TestConvertor(t *testing.T) {
	col := frame.NewInt64([]int64{4, frame.NAInt64, -1, 9})
	conv := newConvertor[float64](col)
	require.NotNil(t, conv)
	assert.Equal(t, 4, conv.nrows)
	assert.Equal(t, -1.0, conv.min)
	assert.Equal(t, 9.0, conv.max)
	assert.Equal(t, 4.0, conv.value(0))
	assert.True(t, conv.isNA(1))
	assert.True(t, math.IsNaN(conv.value(1)))

	// Booleans convert to 0/1.
	bcol := frame.NewBool([]bool{true, false}, nil)
	bconv := newConvertor[float64](bcol)
	require.NotNil(t, bconv)
	assert.Equal(t, 1.0, bconv.value(0))
	assert.Equal(t, 0.0, bconv.value(1))

	// Strings are not convertible.
	assert.Nil(t, newConvertor[float64](frame.NewStr32([]string{"a"}, nil)))
}

func TestConvertor_AllMissing(t *testing.T) {
	conv := newConvertor[float64](frame.NewInt32NA(3))
	require.NotNil(t, conv)
	assert.Equal(t, 0.0, conv.min)
	assert.Equal(t, 0.0, conv.max)
}
