package aggregate

import "math"

// distance computes the squared Euclidean distance between two
// coordinate vectors, skipping dimensions where either side is missing.
// The result is scaled by ndims/n, where n is the number of dimensions
// that participated, so that points with many missing components are not
// artificially close. When no dimension participates the distance is
// +Inf: such a point can never fall inside any radius.
//
// With earlyExit the scan stops as soon as the accumulated sum exceeds
// delta; the unscaled partial sum is returned, which is only ever
// compared against delta by the caller.
func distance[T Float](e1, e2 []T, delta T, earlyExit bool) T {
	var sum T
	n := 0
	for i := range e1 {
		if isNA(e1[i]) || isNA(e2[i]) {
			continue
		}
		n++
		d := e1[i] - e2[i]
		sum += d * d
		if earlyExit && sum > delta {
			return sum
		}
	}
	if n == 0 {
		return T(math.Inf(1))
	}
	return sum * T(len(e1)) / T(n)
}
