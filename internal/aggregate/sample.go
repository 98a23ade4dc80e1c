package aggregate

import (
	"golang.org/x/exp/rand"

	"github.com/epitomedb/epitome/pkg/frame"
)

// sampleExemplars checks how many groups the grouping step produced and,
// when there are more than maxBins + naBins (naBins accounts for the
// extra missing-value bins the path may create), keeps a uniform random
// subset of maxBins groups. Selected groups are renumbered 0..maxBins-1
// in selection order; rows of unselected groups get the missing sentinel
// and end up in group 0 during finalization, which then skips group 0.
func (a *Aggregator[T]) sampleExemplars(maxBins, naBins int) (bool, error) {
	// Group the members column to count the gathered exemplars.
	ri, groups, err := a.membersFrame.Group([]frame.SortSpec{{Col: 0}})
	if err != nil {
		return false, err
	}
	ngroups := groups.NGroups()
	if ngroups <= maxBins+naBins {
		return false, nil
	}

	offsets := groups.Offsets()
	data := a.members.Data()

	// First, discard every membership.
	for i := range data {
		data[i] = frame.NAInt32
	}

	// Second, randomly select maxBins groups. The row index and offsets
	// were captured before the wipe, so group layouts stay valid.
	rng := rand.New(rand.NewSource(uint64(a.seed)))
	k := 0
	for k < maxBins {
		i := rng.Intn(ngroups)
		off := int(offsets[i])
		if data[ri.At(off)] == frame.NAInt32 {
			for j := off; j < int(offsets[i+1]); j++ {
				data[ri.At(j)] = int32(k)
			}
			k++
		}
	}
	a.members.Stats().Reset()
	return true, nil
}
