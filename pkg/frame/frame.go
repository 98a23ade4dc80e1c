package frame

import (
	"fmt"
)

// Frame is an ordered collection of equal-length named columns.
type Frame struct {
	cols  []Column
	names []string
}

// New builds a frame from columns and their names. All columns must have
// the same row count.
func New(cols []Column, names []string) (*Frame, error) {
	if len(cols) != len(names) {
		return nil, fmt.Errorf("frame: %d columns but %d names", len(cols), len(names))
	}
	for i, c := range cols {
		if c.NRows() != cols[0].NRows() {
			return nil, fmt.Errorf("frame: column %q has %d rows, want %d",
				names[i], c.NRows(), cols[0].NRows())
		}
	}
	return &Frame{cols: cols, names: names}, nil
}

// NCols returns the number of columns.
func (f *Frame) NCols() int { return len(f.cols) }

// NRows returns the number of rows, 0 for a frame with no columns.
func (f *Frame) NRows() int {
	if len(f.cols) == 0 {
		return 0
	}
	return f.cols[0].NRows()
}

// Column returns the i-th column.
func (f *Frame) Column(i int) Column { return f.cols[i] }

// Name returns the name of the i-th column.
func (f *Frame) Name(i int) string { return f.names[i] }

// Names returns a copy of the column names.
func (f *Frame) Names() []string {
	names := make([]string, len(f.names))
	copy(names, f.names)
	return names
}

// ShallowCopy returns a new frame sharing the same column views.
func (f *Frame) ShallowCopy() *Frame {
	cols := make([]Column, len(f.cols))
	copy(cols, f.cols)
	names := make([]string, len(f.names))
	copy(names, f.names)
	return &Frame{cols: cols, names: names}
}

// ApplyRowIndex materializes the row subset selected by ri, in ri order.
func (f *Frame) ApplyRowIndex(ri RowIndex) *Frame {
	cols := make([]Column, len(f.cols))
	for i, c := range f.cols {
		cols[i] = takeColumn(c, ri)
	}
	names := make([]string, len(f.names))
	copy(names, f.names)
	return &Frame{cols: cols, names: names}
}

// CBind appends the columns of other to the frame. Both frames must have
// the same row count.
func (f *Frame) CBind(other *Frame) error {
	if other.NRows() != f.NRows() && f.NCols() > 0 {
		return fmt.Errorf("frame: cbind row count mismatch: %d vs %d", f.NRows(), other.NRows())
	}
	f.cols = append(f.cols, other.cols...)
	f.names = append(f.names, other.names...)
	return nil
}

// takeColumn materializes the subset of c selected by ri.
func takeColumn(c Column, ri RowIndex) Column {
	n := len(ri)
	switch col := c.(type) {
	case *BoolColumn:
		data := make([]int8, n)
		for i, r := range ri {
			data[i] = col.data[r]
		}
		return &BoolColumn{data: data}
	case *Int8Column:
		data := make([]int8, n)
		for i, r := range ri {
			data[i] = col.data[r]
		}
		return &Int8Column{data: data}
	case *Int16Column:
		data := make([]int16, n)
		for i, r := range ri {
			data[i] = col.data[r]
		}
		return &Int16Column{data: data}
	case *Int32Column:
		data := make([]int32, n)
		for i, r := range ri {
			data[i] = col.data[r]
		}
		return &Int32Column{data: data}
	case *Int64Column:
		data := make([]int64, n)
		for i, r := range ri {
			data[i] = col.data[r]
		}
		return &Int64Column{data: data}
	case *Float32Column:
		data := make([]float32, n)
		for i, r := range ri {
			data[i] = col.data[r]
		}
		return &Float32Column{data: data}
	case *Float64Column:
		data := make([]float64, n)
		for i, r := range ri {
			data[i] = col.data[r]
		}
		return &Float64Column{data: data}
	case *StrColumn[uint32]:
		return takeStr(col, ri)
	case *StrColumn[uint64]:
		return takeStr(col, ri)
	}
	panic(fmt.Sprintf("frame: unsupported column type %T", c))
}

func takeStr[U strOffset](col *StrColumn[U], ri RowIndex) *StrColumn[U] {
	values := make([]string, len(ri))
	var na []bool
	for i, r := range ri {
		if col.IsNA(int(r)) {
			if na == nil {
				na = make([]bool, len(ri))
			}
			na[i] = true
			continue
		}
		values[i] = col.Value(int(r))
	}
	return newStr[U](values, na)
}
