package export

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/golang/snappy"

	eperrors "github.com/epitomedb/epitome/internal/errors"
	"github.com/epitomedb/epitome/pkg/frame"
)

// The epit format is a simple column-block container: a fixed header
// followed by one snappy-compressed block per column.
//
//	magic   [4]byte "EPIT"
//	version uint16
//	ncols   uint32
//	nrows   uint64
//	per column:
//	  nameLen uint16, name []byte
//	  stype   uint8
//	  blockLen uint32, block []byte   (snappy-encoded payload)
//
// Numeric payloads are the raw values little-endian (missing values stay
// encoded as their sentinel). String payloads are the offsets array, the
// byte length of the string data as a uint64, the raw string bytes, and
// one byte per row that is 1 when the value is missing.
const epitVersion = 1

var epitMagic = [4]byte{'E', 'P', 'I', 'T'}

// WriteEpit writes the frame in the epit binary format.
func WriteEpit(w io.Writer, f *frame.Frame) error {
	if _, err := w.Write(epitMagic[:]); err != nil {
		return writeErr(err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(epitVersion)); err != nil {
		return writeErr(err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(f.NCols())); err != nil {
		return writeErr(err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(f.NRows())); err != nil {
		return writeErr(err)
	}

	for i := 0; i < f.NCols(); i++ {
		name := []byte(f.Name(i))
		if err := binary.Write(w, binary.LittleEndian, uint16(len(name))); err != nil {
			return writeErr(err)
		}
		if _, err := w.Write(name); err != nil {
			return writeErr(err)
		}
		col := f.Column(i)
		if err := binary.Write(w, binary.LittleEndian, uint8(col.Stype())); err != nil {
			return writeErr(err)
		}
		payload, err := encodeColumn(col)
		if err != nil {
			return err
		}
		block := snappy.Encode(nil, payload)
		if err := binary.Write(w, binary.LittleEndian, uint32(len(block))); err != nil {
			return writeErr(err)
		}
		if _, err := w.Write(block); err != nil {
			return writeErr(err)
		}
	}
	return nil
}

// ReadEpit reads a frame written by WriteEpit.
func ReadEpit(r io.Reader) (*frame.Frame, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, readErr(err)
	}
	if magic != epitMagic {
		return nil, eperrors.NewIOError(eperrors.CodeReadFailed, "not an epit file", nil)
	}
	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, readErr(err)
	}
	if version != epitVersion {
		return nil, eperrors.NewIOError(eperrors.CodeReadFailed,
			fmt.Sprintf("unsupported epit version %d", version), nil)
	}
	var ncols uint32
	var nrows uint64
	if err := binary.Read(r, binary.LittleEndian, &ncols); err != nil {
		return nil, readErr(err)
	}
	if err := binary.Read(r, binary.LittleEndian, &nrows); err != nil {
		return nil, readErr(err)
	}

	cols := make([]frame.Column, 0, ncols)
	names := make([]string, 0, ncols)
	for i := uint32(0); i < ncols; i++ {
		var nameLen uint16
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, readErr(err)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, readErr(err)
		}
		var stype uint8
		if err := binary.Read(r, binary.LittleEndian, &stype); err != nil {
			return nil, readErr(err)
		}
		var blockLen uint32
		if err := binary.Read(r, binary.LittleEndian, &blockLen); err != nil {
			return nil, readErr(err)
		}
		block := make([]byte, blockLen)
		if _, err := io.ReadFull(r, block); err != nil {
			return nil, readErr(err)
		}
		payload, err := snappy.Decode(nil, block)
		if err != nil {
			return nil, eperrors.NewIOError(eperrors.CodeReadFailed, "failed to decompress column block", err)
		}
		col, err := decodeColumn(frame.Stype(stype), payload, int(nrows))
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		names = append(names, string(name))
	}
	return frame.New(cols, names)
}

func encodeColumn(col frame.Column) ([]byte, error) {
	var buf bytes.Buffer
	switch c := col.(type) {
	case *frame.BoolColumn:
		n := c.NRows()
		data := make([]int8, n)
		for i := 0; i < n; i++ {
			if c.IsNA(i) {
				data[i] = frame.NAInt8
			} else if c.Float64(i) != 0 {
				data[i] = 1
			}
		}
		binary.Write(&buf, binary.LittleEndian, data)
	case *frame.Int8Column:
		binary.Write(&buf, binary.LittleEndian, c.Data())
	case *frame.Int16Column:
		binary.Write(&buf, binary.LittleEndian, c.Data())
	case *frame.Int32Column:
		binary.Write(&buf, binary.LittleEndian, c.Data())
	case *frame.Int64Column:
		binary.Write(&buf, binary.LittleEndian, c.Data())
	case *frame.Float32Column:
		binary.Write(&buf, binary.LittleEndian, c.Data())
	case *frame.Float64Column:
		binary.Write(&buf, binary.LittleEndian, c.Data())
	case *frame.StrColumn[uint32]:
		encodeStr(&buf, c)
	case *frame.StrColumn[uint64]:
		encodeStr(&buf, c)
	default:
		return nil, eperrors.NewIOError(eperrors.CodeWriteFailed,
			fmt.Sprintf("unsupported column type %T", col), nil)
	}
	return buf.Bytes(), nil
}

func encodeStr[U interface{ ~uint32 | ~uint64 }](buf *bytes.Buffer, c *frame.StrColumn[U]) {
	binary.Write(buf, binary.LittleEndian, c.Offsets())
	binary.Write(buf, binary.LittleEndian, uint64(len(c.Bytes())))
	buf.Write(c.Bytes())
	n := c.NRows()
	na := make([]byte, n)
	for i := 0; i < n; i++ {
		if c.IsNA(i) {
			na[i] = 1
		}
	}
	buf.Write(na)
}

func decodeColumn(stype frame.Stype, payload []byte, nrows int) (frame.Column, error) {
	r := bytes.NewReader(payload)
	switch stype {
	case frame.SBool:
		data := make([]int8, nrows)
		if err := binary.Read(r, binary.LittleEndian, data); err != nil {
			return nil, readErr(err)
		}
		values := make([]bool, nrows)
		na := make([]bool, nrows)
		for i, v := range data {
			if v == frame.NAInt8 {
				na[i] = true
			} else {
				values[i] = v != 0
			}
		}
		return frame.NewBool(values, na), nil
	case frame.SInt8:
		data := make([]int8, nrows)
		if err := binary.Read(r, binary.LittleEndian, data); err != nil {
			return nil, readErr(err)
		}
		return frame.NewInt8(data), nil
	case frame.SInt16:
		data := make([]int16, nrows)
		if err := binary.Read(r, binary.LittleEndian, data); err != nil {
			return nil, readErr(err)
		}
		return frame.NewInt16(data), nil
	case frame.SInt32:
		data := make([]int32, nrows)
		if err := binary.Read(r, binary.LittleEndian, data); err != nil {
			return nil, readErr(err)
		}
		return frame.NewInt32(data), nil
	case frame.SInt64:
		data := make([]int64, nrows)
		if err := binary.Read(r, binary.LittleEndian, data); err != nil {
			return nil, readErr(err)
		}
		return frame.NewInt64(data), nil
	case frame.SFloat32:
		data := make([]float32, nrows)
		if err := binary.Read(r, binary.LittleEndian, data); err != nil {
			return nil, readErr(err)
		}
		return frame.NewFloat32(data), nil
	case frame.SFloat64:
		data := make([]float64, nrows)
		if err := binary.Read(r, binary.LittleEndian, data); err != nil {
			return nil, readErr(err)
		}
		return frame.NewFloat64(data), nil
	case frame.SStr32:
		return decodeStr[uint32](r, nrows)
	case frame.SStr64:
		return decodeStr[uint64](r, nrows)
	}
	return nil, eperrors.NewIOError(eperrors.CodeReadFailed,
		fmt.Sprintf("unsupported column stype %d", stype), nil)
}

func decodeStr[U interface{ ~uint32 | ~uint64 }](r *bytes.Reader, nrows int) (frame.Column, error) {
	offsets := make([]U, nrows+1)
	if err := binary.Read(r, binary.LittleEndian, offsets); err != nil {
		return nil, readErr(err)
	}
	var dataLen uint64
	if err := binary.Read(r, binary.LittleEndian, &dataLen); err != nil {
		return nil, readErr(err)
	}
	if dataLen > math.MaxInt32 {
		return nil, eperrors.NewCapacityError("string column data exceeds allocation limit")
	}
	data := make([]byte, dataLen)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, readErr(err)
	}
	naBytes := make([]byte, nrows)
	if _, err := io.ReadFull(r, naBytes); err != nil {
		return nil, readErr(err)
	}

	values := make([]string, nrows)
	na := make([]bool, nrows)
	for i := 0; i < nrows; i++ {
		if naBytes[i] != 0 {
			na[i] = true
			continue
		}
		values[i] = string(data[offsets[i]:offsets[i+1]])
	}
	if _, ok := any(offsets).([]uint64); ok {
		return frame.NewStr64(values, na), nil
	}
	return frame.NewStr32(values, na), nil
}

func writeErr(err error) error {
	return eperrors.NewIOError(eperrors.CodeWriteFailed, "failed to write epit output", err)
}

func readErr(err error) error {
	return eperrors.NewIOError(eperrors.CodeReadFailed, "failed to read epit input", err)
}
