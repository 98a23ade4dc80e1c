package export

import (
	"bytes"
	"context"
	"database/sql"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epitomedb/epitome/pkg/frame"
)

func testFrame(t *testing.T) *frame.Frame {
	t.Helper()
	f, err := frame.New(
		[]frame.Column{
			frame.NewBool([]bool{true, false, false}, []bool{false, true, false}),
			frame.NewInt64([]int64{42, frame.NAInt64, -7}),
			frame.NewFloat64([]float64{1.5, math.NaN(), 2.25}),
			frame.NewStr32([]string{"alpha", "", "gamma"}, []bool{false, true, false}),
			frame.NewStr64([]string{"x", "y", "z"}, nil),
		},
		[]string{"flag", "count", "score", "label", "wide"},
	)
	require.NoError(t, err)
	return f
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testFrame(t)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "flag,count,score,label,wide", lines[0])
	assert.Equal(t, "true,42,1.5,alpha,x", lines[1])
	assert.Equal(t, ",,,,y", lines[2])
	assert.Equal(t, "false,-7,2.25,gamma,z", lines[3])
}

func TestEpit_RoundTrip(t *testing.T) {
	f := testFrame(t)
	var buf bytes.Buffer
	require.NoError(t, WriteEpit(&buf, f))

	g, err := ReadEpit(&buf)
	require.NoError(t, err)
	require.Equal(t, f.NCols(), g.NCols())
	require.Equal(t, f.NRows(), g.NRows())
	assert.Equal(t, f.Names(), g.Names())

	for j := 0; j < f.NCols(); j++ {
		a, b := f.Column(j), g.Column(j)
		assert.Equal(t, a.Stype(), b.Stype(), "col %d", j)
		for i := 0; i < f.NRows(); i++ {
			require.Equal(t, a.IsNA(i), b.IsNA(i), "col %d row %d", j, i)
			if a.IsNA(i) {
				continue
			}
			if a.Stype().IsString() {
				continue
			}
			assert.Equal(t, a.Float64(i), b.Float64(i), "col %d row %d", j, i)
		}
	}

	sa := f.Column(3).(*frame.StrColumn[uint32])
	sb := g.Column(3).(*frame.StrColumn[uint32])
	assert.Equal(t, sa.Value(0), sb.Value(0))
	assert.Equal(t, sa.Value(2), sb.Value(2))
}

func TestReadEpit_BadMagic(t *testing.T) {
	_, err := ReadEpit(bytes.NewReader([]byte("NOPE....")))
	assert.Error(t, err)
}

func TestWriteSQLite(t *testing.T) {
	exemplars := testFrame(t)
	members, err := frame.New(
		[]frame.Column{frame.NewInt32([]int32{0, 1, frame.NAInt32})},
		[]string{"exemplar_id"},
	)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.db")
	require.NoError(t, WriteSQLite(context.Background(), path, exemplars, members))

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM exemplars").Scan(&n))
	assert.Equal(t, 3, n)

	var label string
	require.NoError(t, db.QueryRow(`SELECT "label" FROM exemplars WHERE "count" = 42`).Scan(&label))
	assert.Equal(t, "alpha", label)

	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM members WHERE exemplar_id IS NULL").Scan(&n))
	assert.Equal(t, 1, n)
}
