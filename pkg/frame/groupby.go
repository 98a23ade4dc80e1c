package frame

import (
	"bytes"
	"fmt"
	"sort"
)

// SortSpec names one column of a sort or group-by operation.
type SortSpec struct {
	// Col is the column index within the frame.
	Col int

	// NALast places missing values after all non-missing ones instead of
	// before them. Grouping callers keep the default (missing first) so
	// that the missing-value group, when present, is always group 0.
	NALast bool
}

// Groups describes the contiguous group layout of a sorted row index.
type Groups struct {
	offsets []int32
}

// NGroups returns the number of groups.
func (g Groups) NGroups() int { return len(g.offsets) - 1 }

// Offsets returns group start positions; entry i and i+1 delimit group i
// within the row index. The slice has NGroups()+1 entries.
func (g Groups) Offsets() []int32 { return g.offsets }

// Sort stably orders the frame's rows by the given spec and returns the
// resulting row index, without computing groups.
func (f *Frame) Sort(specs []SortSpec) (RowIndex, error) {
	ri, _, err := f.sortRows(specs, false)
	return ri, err
}

// Group stably orders the frame's rows by the given spec and splits the
// ordering into runs of equal keys. Missing values in a key column form
// their own run (first by default, per SortSpec.NALast).
//
// Numeric columns order by value. String columns order by (hash, bytes):
// the MurmurHash of the cell decides the order and raw bytes break hash
// ties, which is cheaper than lexicographic comparison and still places
// equal keys in one run.
func (f *Frame) Group(specs []SortSpec) (RowIndex, Groups, error) {
	ri, groups, err := f.sortRows(specs, true)
	return ri, groups, err
}

func (f *Frame) sortRows(specs []SortSpec, wantGroups bool) (RowIndex, Groups, error) {
	if len(specs) == 0 {
		return nil, Groups{}, fmt.Errorf("frame: empty sort spec")
	}
	cmps := make([]func(a, b int) int, len(specs))
	for i, spec := range specs {
		if spec.Col < 0 || spec.Col >= len(f.cols) {
			return nil, Groups{}, fmt.Errorf("frame: sort column %d out of range", spec.Col)
		}
		cmps[i] = comparator(f.cols[spec.Col], spec.NALast)
	}

	n := f.NRows()
	ri := make(RowIndex, n)
	for i := range ri {
		ri[i] = int32(i)
	}
	sort.SliceStable(ri, func(x, y int) bool {
		a, b := int(ri[x]), int(ri[y])
		for _, cmp := range cmps {
			if c := cmp(a, b); c != 0 {
				return c < 0
			}
		}
		return false
	})

	if !wantGroups {
		return ri, Groups{}, nil
	}
	if n == 0 {
		return ri, Groups{offsets: []int32{0}}, nil
	}

	offsets := make([]int32, 1, 16)
	for pos := 1; pos < n; pos++ {
		a, b := int(ri[pos-1]), int(ri[pos])
		for _, cmp := range cmps {
			if cmp(a, b) != 0 {
				offsets = append(offsets, int32(pos))
				break
			}
		}
	}
	offsets = append(offsets, int32(n))
	return ri, Groups{offsets: offsets}, nil
}

// comparator builds a three-way row comparison for one column. Two
// missing values compare equal; a missing value sorts before (or after,
// with naLast) every non-missing one.
func comparator(col Column, naLast bool) func(a, b int) int {
	naCmp := func(a, b int) (int, bool) {
		an, bn := col.IsNA(a), col.IsNA(b)
		switch {
		case an && bn:
			return 0, true
		case an:
			if naLast {
				return 1, true
			}
			return -1, true
		case bn:
			if naLast {
				return -1, true
			}
			return 1, true
		}
		return 0, false
	}

	switch c := col.(type) {
	case *StrColumn[uint32]:
		return strComparator(c, naCmp)
	case *StrColumn[uint64]:
		return strComparator(c, naCmp)
	default:
		return func(a, b int) int {
			if r, done := naCmp(a, b); done {
				return r
			}
			av, bv := col.Float64(a), col.Float64(b)
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	}
}

func strComparator[U strOffset](c *StrColumn[U], naCmp func(a, b int) (int, bool)) func(a, b int) int {
	// Hash every row once up front; sorting probes each row O(log n) times.
	h := NewHasher(c)
	hashes := make([]uint64, c.NRows())
	for i := range hashes {
		hashes[i] = h.Hash(i)
	}
	return func(a, b int) int {
		if r, done := naCmp(a, b); done {
			return r
		}
		switch {
		case hashes[a] < hashes[b]:
			return -1
		case hashes[a] > hashes[b]:
			return 1
		}
		return bytes.Compare(c.ValueBytes(a), c.ValueBytes(b))
	}
}
