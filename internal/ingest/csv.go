// Package ingest reads delimited input files into frames.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	eperrors "github.com/epitomedb/epitome/internal/errors"
	"github.com/epitomedb/epitome/pkg/frame"
)

// ReadCSV parses CSV input with a header row into a frame, inferring a
// column type from the observed values: bool when every non-empty cell
// is true/false, int64 when every non-empty cell parses as an integer,
// float64 when every non-empty cell parses as a number, str32 otherwise.
// Empty cells are missing values.
//
// This is a plain single-goroutine reader; chunked parallel parsing is a
// separately engineered concern and deliberately not attempted here.
func ReadCSV(r io.Reader) (*frame.Frame, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, eperrors.NewIOError(eperrors.CodeReadFailed, "empty csv input", err)
	}
	if err != nil {
		return nil, eperrors.NewIOError(eperrors.CodeReadFailed, "failed to read csv header", err)
	}

	ncols := len(header)
	cells := make([][]string, ncols)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eperrors.NewIOError(eperrors.CodeReadFailed, "failed to read csv record", err)
		}
		if len(rec) != ncols {
			return nil, eperrors.NewIOError(eperrors.CodeReadFailed,
				fmt.Sprintf("csv record has %d fields, want %d", len(rec), ncols), nil)
		}
		for i, v := range rec {
			cells[i] = append(cells[i], v)
		}
	}

	cols := make([]frame.Column, ncols)
	for i := range cols {
		cols[i] = inferColumn(cells[i])
	}
	return frame.New(cols, header)
}

// inferColumn picks the narrowest type that fits every non-empty cell.
func inferColumn(values []string) frame.Column {
	isBool, isInt, isFloat := true, true, true
	for _, v := range values {
		if v == "" {
			continue
		}
		lower := strings.ToLower(v)
		if lower != "true" && lower != "false" {
			isBool = false
		}
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			isInt = false
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			isFloat = false
		}
		if !isBool && !isInt && !isFloat {
			break
		}
	}

	switch {
	case isBool:
		bools := make([]bool, len(values))
		na := make([]bool, len(values))
		for i, v := range values {
			if v == "" {
				na[i] = true
				continue
			}
			bools[i] = strings.EqualFold(v, "true")
		}
		return frame.NewBool(bools, na)

	case isInt:
		data := make([]int64, len(values))
		for i, v := range values {
			if v == "" {
				data[i] = frame.NAInt64
				continue
			}
			data[i], _ = strconv.ParseInt(v, 10, 64)
		}
		return frame.NewInt64(data)

	case isFloat:
		data := make([]float64, len(values))
		for i, v := range values {
			if v == "" {
				data[i] = math.NaN()
				continue
			}
			data[i], _ = strconv.ParseFloat(v, 64)
		}
		return frame.NewFloat64(data)

	default:
		na := make([]bool, len(values))
		for i, v := range values {
			na[i] = v == ""
		}
		return frame.NewStr32(values, na)
	}
}
