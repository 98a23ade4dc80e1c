package frame

// RowIndex maps positions in some ordering to original row numbers.
type RowIndex []int32

// Len returns the number of entries.
func (ri RowIndex) Len() int { return len(ri) }

// At returns the original row number at position pos.
func (ri RowIndex) At(pos int) int { return int(ri[pos]) }

// Iterate calls fn(pos, row) for every position in [start, end) with the
// given step, where row is the original row number at that position.
func (ri RowIndex) Iterate(start, end, step int, fn func(pos, row int)) {
	for pos := start; pos < end; pos += step {
		fn(pos, int(ri[pos]))
	}
}
