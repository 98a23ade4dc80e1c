package aggregate

import (
	"golang.org/x/exp/rand"
)

// normCoeffs computes affine coefficients (factor, shift) such that
// x*factor + shift lands in [0, bins) for every non-missing x in
// [cmin, cmax]. The (1 - eps) headroom keeps the maximum strictly below
// the bin count. A constant column (|max - min| <= eps) has a
// normalization singularity; it collapses to factor = 0 and
// shift = bins/2, placing every non-missing value at the midpoint.
func normCoeffs[T Float](cmin, cmax T, bins int) (factor, shift T) {
	eps := epsilonOf[T]()
	diff := cmax - cmin
	if diff < 0 {
		diff = -diff
	}
	if diff > eps {
		factor = T(bins) * (1 - eps) / (cmax - cmin)
		shift = -factor * cmin
	} else {
		factor = 0
		shift = T(0.5) * T(bins)
	}
	return factor, shift
}

// generatePMatrix samples an ncols x ndims projection matrix from a
// standard Gaussian, stored row-major. The matrix is generated once per
// run from the run seed, so repeated runs with the same seed project
// onto the same subspace.
func generatePMatrix[T Float](ncols, ndims int, seed uint64) []T {
	rng := rand.New(rand.NewSource(seed))
	pmatrix := make([]T, ncols*ndims)
	for i := range pmatrix {
		pmatrix[i] = T(rng.NormFloat64())
	}
	return pmatrix
}

// normalizeRow writes the [0, 1) normalized coordinates of the given row
// into out, one entry per convertor. Missing values stay NaN.
func normalizeRow[T Float](convs []*convertor[T], out []T, row int) {
	for i, c := range convs {
		factor, shift := normCoeffs(c.min, c.max, 1)
		out[i] = c.value(row)*factor + shift
	}
}

// projectRow writes the projection of the given normalized row onto the
// ndims-dimensional subspace into out. Missing components are skipped
// and the result is divided by the count of participating components; a
// row with no non-missing components comes out all-NaN and will never
// fall within any exemplar's radius.
func projectRow[T Float](convs []*convertor[T], out []T, row int, pmatrix []T) {
	ndims := len(out)
	for j := range out {
		out[j] = 0
	}
	n := 0
	for i, c := range convs {
		value := c.value(row)
		if isNA(value) {
			continue
		}
		factor, shift := normCoeffs(c.min, c.max, 1)
		norm := value*factor + shift
		for j := 0; j < ndims; j++ {
			out[j] += pmatrix[i*ndims+j] * norm
		}
		n++
	}
	for j := range out {
		out[j] /= T(n)
	}
}
