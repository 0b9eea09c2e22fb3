package storage

import (
	"context"
	"errors"
	"iter"

	"github.com/leengari/dyntable/internal/domain/data"
	"github.com/leengari/dyntable/internal/domain/schema"
)

var (
	ErrTableExists   = errors.New("storage: table already exists")
	ErrTableMissing  = errors.New("storage: table does not exist")
	ErrColumnExists  = errors.New("storage: column already exists")
	ErrColumnMissing = errors.New("storage: column does not exist")
)

// Engine is the physical storage behind logical tables: one physical table
// per logical table, one column per field, plus the implicit "id" column.
//
// Each method is a single structural or data change; an Engine never
// groups several calls into one unit. Callers serialize access per table.
type Engine interface {
	// CreateTable creates a table with the given columns plus the row id
	CreateTable(ctx context.Context, table string, columns []schema.ColumnDefinition) error
	// DropTable removes a table and all of its rows
	DropTable(ctx context.Context, table string) error
	AddColumn(ctx context.Context, table string, column schema.ColumnDefinition) error
	// DropColumn permanently discards the column and its data
	DropColumn(ctx context.Context, table string, column string) error

	// InsertRow writes one row and returns its id. Columns missing from
	// values take their defaults; names that are not physical columns are
	// rejected with ErrColumnMissing.
	InsertRow(ctx context.Context, table string, values map[string]data.Value) (int64, error)
	// ScanRows yields every row in storage order, projected onto columns
	ScanRows(ctx context.Context, table string, columns []schema.ColumnDefinition) iter.Seq2[data.Row, error]

	// Columns lists the table's physical columns, excluding the row id
	Columns(ctx context.Context, table string) ([]string, error)
	// Tables lists physical tables, excluding internal ones
	Tables(ctx context.Context) ([]string, error)

	Close() error
}
