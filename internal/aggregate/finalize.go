package aggregate

import (
	"github.com/epitomedb/epitome/pkg/frame"
)

// finalize sorts and groups the members column, sets up the first row of
// each group as that group's exemplar, and rewrites every member to the
// compact 0-based exemplar id. Group ids need renumbering because 1-D
// and 2-D binning leave empty bins and the N-D path re-maps ids when
// merging. When sampling occurred the rows with a discarded membership
// form group 0, which is skipped and not included in the exemplars
// frame.
//
// The exemplars frame is a shallow copy of the input with the exemplar
// row index applied and a members_count column bound to it.
func (a *Aggregator[T]) finalize(wasSampled bool) (*frame.Frame, error) {
	skip := 0
	if wasSampled {
		skip = 1
	}

	var exemplarIndices frame.RowIndex
	var counts []int32

	if a.df.NRows() > 0 {
		ri, groups, err := a.membersFrame.Group([]frame.SortSpec{{Col: 0}})
		if err != nil {
			return nil, err
		}
		offsets := groups.Offsets()
		nex := groups.NGroups() - skip
		exemplarIndices = make(frame.RowIndex, nex)
		counts = make([]int32, nex)
		data := a.members.Data()

		for i := skip; i < groups.NGroups(); i++ {
			is := i - skip
			off := int(offsets[i])
			exemplarIndices[is] = int32(ri.At(off))
			counts[is] = offsets[i+1] - offsets[i]
			for j := off; j < int(offsets[i+1]); j++ {
				data[ri.At(j)] = int32(is)
			}
		}
		a.members.Stats().Reset()
	}

	exemplars := a.df.ShallowCopy().ApplyRowIndex(exemplarIndices)
	countsFrame, err := frame.New(
		[]frame.Column{frame.NewInt32(counts)}, []string{"members_count"})
	if err != nil {
		return nil, err
	}
	if err := exemplars.CBind(countsFrame); err != nil {
		return nil, err
	}
	return exemplars, nil
}
