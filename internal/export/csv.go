// Package export writes aggregation outputs in the supported formats:
// CSV, the snappy-compressed epit binary format, and SQLite.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	eperrors "github.com/epitomedb/epitome/internal/errors"
	"github.com/epitomedb/epitome/pkg/frame"
)

// WriteCSV writes the frame as CSV with a header row. Missing values
// are written as empty cells.
func WriteCSV(w io.Writer, f *frame.Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Names()); err != nil {
		return eperrors.NewIOError(eperrors.CodeWriteFailed, "failed to write csv header", err)
	}
	record := make([]string, f.NCols())
	for i := 0; i < f.NRows(); i++ {
		for j := 0; j < f.NCols(); j++ {
			record[j] = cellString(f.Column(j), i)
		}
		if err := cw.Write(record); err != nil {
			return eperrors.NewIOError(eperrors.CodeWriteFailed, "failed to write csv record", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eperrors.NewIOError(eperrors.CodeWriteFailed, "failed to flush csv output", err)
	}
	return nil
}

// cellString renders one cell; missing values become the empty string.
func cellString(col frame.Column, row int) string {
	if col.IsNA(row) {
		return ""
	}
	switch c := col.(type) {
	case *frame.BoolColumn:
		if c.Float64(row) != 0 {
			return "true"
		}
		return "false"
	case *frame.StrColumn[uint32]:
		return c.Value(row)
	case *frame.StrColumn[uint64]:
		return c.Value(row)
	case *frame.Int8Column:
		return strconv.FormatInt(int64(c.Data()[row]), 10)
	case *frame.Int16Column:
		return strconv.FormatInt(int64(c.Data()[row]), 10)
	case *frame.Int32Column:
		return strconv.FormatInt(int64(c.Data()[row]), 10)
	case *frame.Int64Column:
		return strconv.FormatInt(c.Data()[row], 10)
	default:
		return strconv.FormatFloat(col.Float64(row), 'g', -1, 64)
	}
}
