package aggregate

import (
	"fmt"

	"github.com/epitomedb/epitome/internal/errors"
	"github.com/epitomedb/epitome/pkg/frame"
)

// group0D does no grouping: every row becomes its own exemplar, ordered
// by the first column with missing values last.
func (a *Aggregator[T]) group0D() error {
	if a.df.NCols() == 0 {
		return nil
	}
	ri, err := a.df.Sort([]frame.SortSpec{{Col: 0, NALast: true}})
	if err != nil {
		return err
	}
	members := a.members.Data()
	ri.Iterate(0, a.df.NRows(), 1, func(pos, row int) {
		members[row] = int32(pos)
	})
	return nil
}

// group1D dispatches the single-column path.
func (a *Aggregator[T]) group1D() error {
	if len(a.convs) > 0 {
		return a.group1DContinuous()
	}
	return a.group1DCategorical()
}

// group1DContinuous bins a single continuous column into NBins bins.
func (a *Aggregator[T]) group1DContinuous() error {
	conv := a.convs[0]
	members := a.members.Data()
	factor, shift := normCoeffs(conv.min, conv.max, a.params.NBins)
	for i := 0; i < conv.nrows; i++ {
		if conv.isNA(i) {
			members[i] = frame.NAInt32
		} else {
			members[i] = int32(factor*conv.value(i) + shift)
		}
	}
	return nil
}

// group1DCategorical groups by the single categorical column; the bin id
// is the group index. Missing values form their own group.
func (a *Aggregator[T]) group1DCategorical() error {
	ri, groups, err := a.cat.Group([]frame.SortSpec{{Col: 0}})
	if err != nil {
		return err
	}
	members := a.members.Data()
	offsets := groups.Offsets()
	for i := 0; i < groups.NGroups(); i++ {
		for j := offsets[i]; j < offsets[i+1]; j++ {
			members[ri.At(int(j))] = int32(i)
		}
	}
	return nil
}

// group2D dispatches the two-column path over the continuous/categorical
// combinations.
//
// Missing values are segregated from the start: a row with any missing
// value in the pair lands in one of three negative sentinel bins
//   - (value, NA) -> -1
//   - (NA, value) -> -2
//   - (NA, NA)    -> -3
//
// so missing and non-missing members never mix. The finalizer renumbers
// all bins from 0, with the sentinel bins, when present, gathered at the
// beginning of the exemplars frame.
func (a *Aggregator[T]) group2D() error {
	switch len(a.convs) {
	case 0:
		return a.group2DCategorical()
	case 1:
		return a.group2DMixed()
	case 2:
		return a.group2DContinuous()
	default:
		return errors.NewSchemaError(errors.CodeTooManyColumns,
			fmt.Sprintf("got frame with too many continuous columns for 2D aggregation: %d", len(a.convs)))
	}
}

// group2DContinuous bins both continuous columns independently; the
// combined bin id is y_bin*NXBins + x_bin.
func (a *Aggregator[T]) group2DContinuous() error {
	cx, cy := a.convs[0], a.convs[1]
	members := a.members.Data()
	fx, sx := normCoeffs(cx.min, cx.max, a.params.NXBins)
	fy, sy := normCoeffs(cy.min, cy.max, a.params.NYBins)
	nxBins := int32(a.params.NXBins)
	for i := 0; i < cx.nrows; i++ {
		naCase := 2*b2i(cx.isNA(i)) + b2i(cy.isNA(i))
		if naCase != 0 {
			members[i] = -naCase
		} else {
			members[i] = int32(fy*cy.value(i)+sy)*nxBins + int32(fx*cx.value(i)+sx)
		}
	}
	return nil
}

// group2DCategorical groups by both categorical columns jointly; the bin
// id is the joint group index, with sentinel overrides for missing rows.
func (a *Aggregator[T]) group2DCategorical() error {
	for i := 0; i < 2; i++ {
		if !a.cat.Column(i).Stype().IsString() {
			return errors.NewSchemaError(errors.CodeNotString,
				fmt.Sprintf("for 2D categorical aggregation column types should be str32 or str64, got %s",
					a.cat.Column(i).Stype()))
		}
	}
	ri, groups, err := a.cat.Group([]frame.SortSpec{{Col: 0}, {Col: 1}})
	if err != nil {
		return err
	}
	c0, c1 := a.cat.Column(0), a.cat.Column(1)
	members := a.members.Data()
	offsets := groups.Offsets()
	for i := 0; i < groups.NGroups(); i++ {
		groupID := int32(i)
		for j := offsets[i]; j < offsets[i+1]; j++ {
			gi := ri.At(int(j))
			naCase := 2*b2i(c0.IsNA(gi)) + b2i(c1.IsNA(gi))
			if naCase != 0 {
				members[gi] = -naCase
			} else {
				members[gi] = groupID
			}
		}
	}
	return nil
}

// group2DMixed handles one continuous and one categorical column: a
// group-by over the categorical column, then 1-D binning of the
// continuous value within each group. The combined bin id is
// group*NXBins + x_bin; the continuous column plays the (value, NA)
// role in the sentinel scheme.
func (a *Aggregator[T]) group2DMixed() error {
	if !a.cat.Column(0).Stype().IsString() {
		return errors.NewSchemaError(errors.CodeNotString,
			fmt.Sprintf("for 2D mixed aggregation the categorical column type should be str32 or str64, got %s",
				a.cat.Column(0).Stype()))
	}
	conv := a.convs[0]
	cat := a.cat.Column(0)
	ri, groups, err := a.cat.Group([]frame.SortSpec{{Col: 0}})
	if err != nil {
		return err
	}
	members := a.members.Data()
	offsets := groups.Offsets()
	fx, sx := normCoeffs(conv.min, conv.max, a.params.NXBins)
	for i := 0; i < groups.NGroups(); i++ {
		groupCatID := int32(i) * int32(a.params.NXBins)
		for j := offsets[i]; j < offsets[i+1]; j++ {
			gi := ri.At(int(j))
			naCase := 2*b2i(conv.isNA(gi)) + b2i(cat.IsNA(gi))
			if naCase != 0 {
				members[gi] = -naCase
			} else {
				members[gi] = groupCatID + int32(fx*conv.value(gi)+sx)
			}
		}
	}
	return nil
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
