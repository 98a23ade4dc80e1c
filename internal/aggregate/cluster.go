package aggregate

import (
	"context"
	"fmt"
	"math"
	"sync"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/epitomedb/epitome/internal/errors"
	"github.com/epitomedb/epitome/internal/progress"
)

// pbSteps is the number of steps for progress reporting in the N-D loop.
const pbSteps = 100

// maxPairwise bounds the pairwise distance matrix computed when
// adjusting delta.
const maxPairwise = 1 << 31

// exemplar is one cluster representative: a stable id assigned in
// creation order and the normalized (or projected) coordinates of the
// row that created it. Missing coordinates stay NaN and are skipped by
// the distance kernel.
type exemplar[T Float] struct {
	id     int
	coords []T
}

// clusterState is the shared state of the N-D clustering loop, guarded
// by a reader-writer lock: workers hold the read side while scanning
// exemplars and upgrade to the write side to insert. ecounter is a
// generation counter; a worker that observed ecounter under the read
// lock re-checks it after upgrading and retries the scan when another
// worker got there first.
type clusterState[T Float] struct {
	mu        sync.RWMutex
	exemplars []*exemplar[T]
	ids       []int
	coprimes  []int
	delta     T
	ecounter  int
	ndMaxBins int
}

// groupND performs the general N-dimensional grouping: a concurrent
// single-pass radius-based clustering with adaptive radius.
//
// The initial delta (squared radius) is machine epsilon, so the first
// rows all become exemplars. Once the exemplar count exceeds NDMaxBins:
//   - find the mean distance between the gathered exemplars,
//   - merge all exemplars within half of that distance,
//   - grow delta by the merge radius, accounting for the size the
//     existing bubbles already had.
//
// Rows are striped across workers; each worker owns its stripe of the
// members column and writes it without locking.
func (a *Aggregator[T]) groupND(ctx context.Context) error {
	ncols := len(a.convs)
	nrows := a.convs[0].nrows
	ndims := ncols
	if a.params.MaxDimensions < ndims {
		ndims = a.params.MaxDimensions
	}
	members := a.members.Data()

	var pmatrix []T
	doProjection := ncols > a.params.MaxDimensions
	if doProjection {
		pmatrix = generatePMatrix[T](ncols, ndims, uint64(a.seed))
	}

	nth := a.nthreads(nrows)
	st := &clusterState[T]{
		delta:     epsilonOf[T](),
		ndMaxBins: a.params.NDMaxBins,
	}

	rstep := nrows / (nth * pbSteps)
	if rstep < 1 {
		rstep = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < nth; w++ {
		worker := w
		g.Go(func() (err error) {
			// A panic in a worker becomes that worker's error, so the
			// other workers stop and it surfaces after the join.
			defer func() {
				if r := recover(); r != nil {
					err = errors.NewWorkerError("clustering worker panicked", fmt.Errorf("%v", r))
				}
			}()
			member := make([]T, ndims)
			rng := rand.New(rand.NewSource(uint64(a.seed) + uint64(worker)))
			for i := worker; i < nrows; i += nth {
				if err := ctx.Err(); err != nil {
					return err
				}
				if doProjection {
					projectRow(a.convs, member, i, pmatrix)
				} else {
					normalizeRow(a.convs, member, i)
				}
				if err := st.assign(member, i, members, rng); err != nil {
					return err
				}
				if worker == 0 && (i/nth)%rstep == 0 {
					a.tracker.Emit(float64(i+1)/float64(nrows), progress.StatusRunning)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	st.adjustMembers(members)
	return nil
}

// assign records the membership of one row: either an existing exemplar
// captures it during the shared-lock scan, or the row becomes a new
// exemplar under the exclusive lock. When the generation counter moved
// between the two lock acquisitions some other worker extended the
// table, so the scan restarts.
func (st *clusterState[T]) assign(member []T, row int, members []int32, rng *rand.Rand) error {
	for {
		captured, ecLocal := st.probe(member, row, members, rng)
		if captured {
			return nil
		}

		st.mu.Lock()
		if ecLocal != st.ecounter {
			st.mu.Unlock()
			continue
		}
		st.ecounter++
		id := len(st.ids)
		st.ids = append(st.ids, id)
		coords := make([]T, len(member))
		copy(coords, member)
		st.exemplars = append(st.exemplars, &exemplar[T]{id: id, coords: coords})
		members[row] = int32(id)
		var err error
		if len(st.exemplars) > st.ndMaxBins {
			err = st.adjustDelta()
		}
		st.coprimes = calculateCoprimes(len(st.exemplars), st.coprimes)
		st.mu.Unlock()
		return err
	}
}

// probe scans the exemplar table under the shared lock looking for one
// within delta of member. Instead of walking the table in storage order,
// exemplars are visited along a modular quasi-random path
//
//	j = (k*coprimes[c0] + e0) mod nex
//
// which is a complete permutation of [0, nex) because coprimes[c0] and
// nex are coprime. The random starting offset e0 spreads ties between
// overlapping exemplars, giving a more uniform member distribution
// across clusters.
func (st *clusterState[T]) probe(member []T, row int, members []int32, rng *rand.Rand) (bool, int) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	ecLocal := st.ecounter
	nex := len(st.exemplars)
	if nex == 0 {
		return false, ecLocal
	}
	e0 := rng.Intn(nex)
	c0 := rng.Intn(len(st.coprimes))
	stride := st.coprimes[c0]
	for k := 0; k < nex; k++ {
		j := (k*stride + e0) % nex
		// Early exit makes this distance depend on delta; that is fine,
		// it is only ever compared against delta.
		d := distance(member, st.exemplars[j].coords, st.delta, true)
		if d < st.delta {
			members[row] = int32(st.exemplars[j].id)
			return true, ecLocal
		}
	}
	return false, ecLocal
}

// adjustDelta grows delta based on the mean pairwise distance between
// the gathered exemplars and merges every pair within half of that
// distance. Merging j into i only ever redirects a higher id to a lower
// one, so the ids vector stays a forest. Called with the write lock held.
func (st *clusterState[T]) adjustDelta() error {
	n := len(st.exemplars)
	nDist := n * (n - 1) / 2
	if nDist > maxPairwise {
		return errors.NewCapacityError(
			"pairwise exemplar distance matrix exceeds allocation limit")
	}

	deltas := make([]T, nDist)
	rootDists := make([]float64, 0, nDist)
	k := 0
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			d := distance(st.exemplars[i].coords, st.exemplars[j].coords, st.delta, false)
			deltas[k] = d
			// A pair with no shared non-missing dimension has infinite
			// distance; keep it out of the mean.
			if rd := math.Sqrt(float64(d)); !math.IsInf(rd, 1) {
				rootDists = append(rootDists, rd)
			}
			k++
		}
	}
	if len(rootDists) == 0 {
		return nil
	}

	mean := stat.Mean(rootDists, nil)
	deltaMerge := T(0.25 * mean * mean)

	// Members of merged exemplars are within delta of their own exemplar
	// plus deltaMerge of the merge target, so the new radius is
	// (sqrt(delta) + sqrt(deltaMerge))^2.
	st.delta += deltaMerge + 2*T(math.Sqrt(float64(st.delta)*float64(deltaMerge)))

	k = 0
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			if deltas[k] < deltaMerge && st.exemplars[i] != nil && st.exemplars[j] != nil {
				st.ids[st.exemplars[j].id] = st.exemplars[i].id
				st.exemplars[j] = nil
			}
			k++
		}
	}

	kept := st.exemplars[:0]
	for _, e := range st.exemplars {
		if e != nil {
			kept = append(kept, e)
		}
	}
	st.exemplars = kept
	return nil
}

// adjustMembers compacts the merge chains after the parallel loop: every
// id is resolved to its transitive root and every member rewritten to
// the root of the exemplar it was assigned to.
func (st *clusterState[T]) adjustMembers(members []int32) {
	m := make([]int32, len(st.ids))
	for i := range st.ids {
		m[i] = int32(calculateMap(st.ids, i))
	}
	for i := range members {
		members[i] = m[members[i]]
	}
}

// calculateMap walks the merge chain of id until it reaches a root.
func calculateMap(ids []int, id int) int {
	for ids[id] != id {
		id = ids[id]
	}
	return id
}

// calculateCoprimes rebuilds the coprime stride list for an exemplar
// table of size n: all k in [1, n) with gcd(k, n) = 1. For n = 1 any
// stride works since there is a single exemplar; use {1}.
func calculateCoprimes(n int, buf []int) []int {
	buf = buf[:0]
	if n == 1 {
		return append(buf, 1)
	}
	for k := 1; k < n; k++ {
		if gcd(k, n) == 1 {
			buf = append(buf, k)
		}
	}
	return buf
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
