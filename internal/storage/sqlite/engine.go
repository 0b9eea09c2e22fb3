// Package sqlite stores logical tables as SQLite tables, one physical column
// per field, and applies schema changes with ALTER TABLE.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/leengari/dyntable/internal/domain/data"
	"github.com/leengari/dyntable/internal/domain/schema"
	"github.com/leengari/dyntable/internal/storage"
)

// Engine implements storage.Engine on a single SQLite database file
type Engine struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database file at path. The returned
// engine owns the *sql.DB; DB exposes it so the catalog can share the file.
func Open(path string) (*Engine, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database %s: %w", path, err)
	}

	slog.Info("sqlite storage opened", slog.String("path", path))
	return &Engine{db: db, path: path}, nil
}

// DB returns the underlying connection pool
func (e *Engine) DB() *sql.DB {
	return e.db
}

func (e *Engine) Close() error {
	return e.db.Close()
}

func (e *Engine) CreateTable(ctx context.Context, table string, columns []schema.ColumnDefinition) error {
	exists, err := e.tableExists(ctx, table)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("create table %s: %w", table, storage.ErrTableExists)
	}

	defs := make([]string, 0, len(columns)+1)
	defs = append(defs, quoteIdent(schema.RowIDColumn)+" INTEGER PRIMARY KEY AUTOINCREMENT")
	for _, col := range columns {
		defs = append(defs, columnDDL(col))
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))

	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	slog.Debug("sqlite: table created", "table", table, "columns", len(columns))
	return nil
}

func (e *Engine) DropTable(ctx context.Context, table string) error {
	if _, err := e.db.ExecContext(ctx, "DROP TABLE "+quoteIdent(table)); err != nil {
		if !e.mustExist(ctx, table) {
			return fmt.Errorf("drop table %s: %w", table, storage.ErrTableMissing)
		}
		return fmt.Errorf("drop table %s: %w", table, err)
	}
	return nil
}

func (e *Engine) AddColumn(ctx context.Context, table string, column schema.ColumnDefinition) error {
	cols, err := e.Columns(ctx, table)
	if err != nil {
		return err
	}
	if containsFold(cols, column.Name) {
		return fmt.Errorf("add column %s.%s: %w", table, column.Name, storage.ErrColumnExists)
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quoteIdent(table), columnDDL(column))
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, column.Name, err)
	}

	slog.Debug("sqlite: column added", "table", table, "column", column.Name, "kind", column.Kind)
	return nil
}

func (e *Engine) DropColumn(ctx context.Context, table string, column string) error {
	cols, err := e.Columns(ctx, table)
	if err != nil {
		return err
	}
	if !containsFold(cols, column) {
		return fmt.Errorf("drop column %s.%s: %w", table, column, storage.ErrColumnMissing)
	}

	stmt := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", quoteIdent(table), quoteIdent(column))
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("drop column %s.%s: %w", table, column, err)
	}

	slog.Debug("sqlite: column dropped", "table", table, "column", column)
	return nil
}

func (e *Engine) InsertRow(ctx context.Context, table string, values map[string]data.Value) (int64, error) {
	cols, err := e.Columns(ctx, table)
	if err != nil {
		return 0, err
	}

	names := make([]string, 0, len(values))
	for name := range values {
		if !containsFold(cols, name) {
			return 0, fmt.Errorf("insert into %s: column %s: %w", table, name, storage.ErrColumnMissing)
		}
		names = append(names, name)
	}

	var stmt string
	args := make([]interface{}, 0, len(names))
	if len(names) == 0 {
		stmt = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", quoteIdent(table))
	} else {
		quoted := make([]string, len(names))
		marks := make([]string, len(names))
		for i, name := range names {
			quoted[i] = quoteIdent(name)
			marks[i] = "?"
			args = append(args, values[name].Interface())
		}
		stmt = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quoteIdent(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
	}

	res, err := e.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert into %s: reading row id: %w", table, err)
	}
	return id, nil
}

func (e *Engine) ScanRows(ctx context.Context, table string, columns []schema.ColumnDefinition) iter.Seq2[data.Row, error] {
	return func(yield func(data.Row, error) bool) {
		exists, err := e.tableExists(ctx, table)
		if err != nil {
			yield(data.Row{}, err)
			return
		}
		if !exists {
			yield(data.Row{}, fmt.Errorf("scan %s: %w", table, storage.ErrTableMissing))
			return
		}

		selected := make([]string, 0, len(columns)+1)
		selected = append(selected, quoteIdent(schema.RowIDColumn))
		for _, col := range columns {
			selected = append(selected, quoteIdent(col.Name))
		}
		query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selected, ", "), quoteIdent(table))

		rows, err := e.db.QueryContext(ctx, query)
		if err != nil {
			yield(data.Row{}, fmt.Errorf("scan %s: %w", table, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var id int64
			vals := make([]interface{}, len(columns))
			ptrs := make([]interface{}, len(columns)+1)
			ptrs[0] = &id
			for i := range columns {
				ptrs[i+1] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				yield(data.Row{}, fmt.Errorf("scan %s: %w", table, err))
				return
			}

			cells := make(map[string]data.Value, len(columns))
			for i, col := range columns {
				v, err := decodeCell(col, vals[i])
				if err != nil {
					yield(data.Row{}, fmt.Errorf("scan %s row %d: %w", table, id, err))
					return
				}
				cells[col.Name] = v
			}

			if !yield(data.NewRow(id, cells), nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(data.Row{}, fmt.Errorf("scan %s: %w", table, err))
		}
	}
}

func (e *Engine) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	found := false
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("columns of %s: %w", table, err)
		}
		found = true
		if name == schema.RowIDColumn {
			continue
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	if !found {
		return nil, fmt.Errorf("columns of %s: %w", table, storage.ErrTableMissing)
	}
	if cols == nil {
		cols = []string{}
	}
	return cols, nil
}

func (e *Engine) Tables(ctx context.Context) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		if isInternal(name) {
			continue
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (e *Engine) tableExists(ctx context.Context, table string) (bool, error) {
	var n int
	err := e.db.QueryRowContext(ctx,
		"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE", table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup table %s: %w", table, err)
	}
	return n > 0, nil
}

func (e *Engine) mustExist(ctx context.Context, table string) bool {
	ok, err := e.tableExists(ctx, table)
	return err != nil || ok
}

var _ storage.Engine = (*Engine)(nil)
