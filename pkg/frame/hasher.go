package frame

import (
	"encoding/binary"
	"math"

	"github.com/spaolacci/murmur3"
)

// naHash is the hash assigned to missing values so that all of them land
// in the same group during hash-ordered sorting.
const naHash uint64 = 0

// Hasher computes a 64-bit MurmurHash of a single column cell. Hashers
// back the group-by primitive for string columns: rows are ordered by
// hash first and by raw bytes second, which keeps equal keys adjacent
// without a full lexicographic comparison on every probe.
type Hasher interface {
	Hash(row int) uint64
}

// NewHasher returns a hasher for the column's storage type.
func NewHasher(c Column) Hasher {
	switch col := c.(type) {
	case *StrColumn[uint32]:
		return &strHasher[uint32]{col: col}
	case *StrColumn[uint64]:
		return &strHasher[uint64]{col: col}
	default:
		return &numHasher{col: c}
	}
}

// numHasher hashes numeric cells through their float64 view, so that an
// int32 7 and an int64 7 hash alike.
type numHasher struct {
	col Column
}

func (h *numHasher) Hash(row int) uint64 {
	if h.col.IsNA(row) {
		return naHash
	}
	var buf [8]byte
	v := h.col.Float64(row)
	if v == 0 {
		v = 0 // collapse -0.0 and +0.0
	}
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	return murmur3.Sum64(buf[:])
}

// strHasher hashes the raw bytes of a string cell.
type strHasher[U strOffset] struct {
	col *StrColumn[U]
}

func (h *strHasher[U]) Hash(row int) uint64 {
	if h.col.IsNA(row) {
		return naHash
	}
	return murmur3.Sum64(h.col.ValueBytes(row))
}
