package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	eperrors "github.com/epitomedb/epitome/internal/errors"
	"github.com/epitomedb/epitome/pkg/frame"
)

// WriteSQLite materializes the two output tables into a SQLite database
// at dbPath: an exemplars table with the input schema plus members_count
// and a members table holding the per-row exemplar_id. Existing tables
// with the same names are replaced.
func WriteSQLite(ctx context.Context, dbPath string, exemplars, members *frame.Frame) error {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return eperrors.NewIOError(eperrors.CodeWriteFailed, "failed to open sqlite database", err)
	}
	defer db.Close()

	if err := writeTable(ctx, db, "exemplars", exemplars); err != nil {
		return err
	}
	return writeTable(ctx, db, "members", members)
}

func writeTable(ctx context.Context, db *sql.DB, table string, f *frame.Frame) error {
	defs := make([]string, f.NCols())
	placeholders := make([]string, f.NCols())
	for i := 0; i < f.NCols(); i++ {
		defs[i] = fmt.Sprintf("%q %s", f.Name(i), sqliteType(f.Column(i).Stype()))
		placeholders[i] = "?"
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %q", table)); err != nil {
		return eperrors.NewIOError(eperrors.CodeWriteFailed, "failed to drop existing table", err)
	}
	create := fmt.Sprintf("CREATE TABLE %q (%s)", table, strings.Join(defs, ", "))
	if _, err := db.ExecContext(ctx, create); err != nil {
		return eperrors.NewIOError(eperrors.CodeWriteFailed, "failed to create table", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return eperrors.NewIOError(eperrors.CodeWriteFailed, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	insert := fmt.Sprintf("INSERT INTO %q VALUES (%s)", table, strings.Join(placeholders, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return eperrors.NewIOError(eperrors.CodeWriteFailed, "failed to prepare insert", err)
	}
	defer stmt.Close()

	args := make([]interface{}, f.NCols())
	for row := 0; row < f.NRows(); row++ {
		for col := 0; col < f.NCols(); col++ {
			args[col] = sqliteValue(f.Column(col), row)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return eperrors.NewIOError(eperrors.CodeWriteFailed, "failed to insert row", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return eperrors.NewIOError(eperrors.CodeWriteFailed, "failed to commit transaction", err)
	}
	return nil
}

func sqliteType(s frame.Stype) string {
	switch {
	case s.IsString():
		return "TEXT"
	case s == frame.SFloat32 || s == frame.SFloat64:
		return "REAL"
	default:
		return "INTEGER"
	}
}

func sqliteValue(col frame.Column, row int) interface{} {
	if col.IsNA(row) {
		return nil
	}
	switch c := col.(type) {
	case *frame.StrColumn[uint32]:
		return c.Value(row)
	case *frame.StrColumn[uint64]:
		return c.Value(row)
	case *frame.Float32Column, *frame.Float64Column:
		return col.Float64(row)
	case *frame.BoolColumn:
		return col.Float64(row) != 0
	case *frame.Int64Column:
		return c.Data()[row]
	default:
		return int64(col.Float64(row))
	}
}
