package frame

import "math"

// strOffset constrains the two string column offset widths.
type strOffset interface {
	~uint32 | ~uint64
}

// StrColumn stores variable-width strings as a flat byte buffer plus an
// offsets array of n+1 entries, so that row i spans
// data[offsets[i]:offsets[i+1]]. U selects the offset width (uint32 for
// str32, uint64 for str64). Missing values are tracked in a validity
// slice; a nil slice means no value is missing.
type StrColumn[U strOffset] struct {
	offsets []U
	data    []byte
	na      []bool
}

// newStr builds a string column from materialized values.
func newStr[U strOffset](values []string, na []bool) *StrColumn[U] {
	offsets := make([]U, len(values)+1)
	size := 0
	for i, v := range values {
		if na == nil || !na[i] {
			size += len(v)
		}
		offsets[i+1] = U(size)
	}
	data := make([]byte, 0, size)
	for i, v := range values {
		if na == nil || !na[i] {
			data = append(data, v...)
		}
	}
	var naCopy []bool
	if na != nil {
		naCopy = make([]bool, len(na))
		copy(naCopy, na)
	}
	return &StrColumn[U]{offsets: offsets, data: data, na: naCopy}
}

// NewStr32 builds a str32 column. na may be nil when no values are missing.
func NewStr32(values []string, na []bool) *StrColumn[uint32] {
	return newStr[uint32](values, na)
}

// NewStr64 builds a str64 column. na may be nil when no values are missing.
func NewStr64(values []string, na []bool) *StrColumn[uint64] {
	return newStr[uint64](values, na)
}

func (c *StrColumn[U]) Stype() Stype {
	if _, ok := any(c.offsets).([]uint64); ok {
		return SStr64
	}
	return SStr32
}

func (c *StrColumn[U]) NRows() int { return len(c.offsets) - 1 }

func (c *StrColumn[U]) IsNA(i int) bool {
	return c.na != nil && c.na[i]
}

// Float64 is defined to satisfy Column; string cells have no numeric view.
func (c *StrColumn[U]) Float64(int) float64 { return math.NaN() }

// Offsets returns the offsets array (n+1 entries).
func (c *StrColumn[U]) Offsets() []U { return c.offsets }

// Bytes returns the raw string buffer for zero-copy access.
func (c *StrColumn[U]) Bytes() []byte { return c.data }

// ValueBytes returns the raw bytes of row i without copying.
// The result is empty for missing values.
func (c *StrColumn[U]) ValueBytes(i int) []byte {
	return c.data[c.offsets[i]:c.offsets[i+1]]
}

// Value returns the string at row i, or "" when missing.
func (c *StrColumn[U]) Value(i int) string {
	return string(c.ValueBytes(i))
}
