// Package filestore keeps each logical table in its own directory as a pair
// of JSON documents: meta.json (columns, row id sequence) and data.json (rows).
// Tables are loaded into memory at open and written through on every change.
package filestore

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/leengari/dyntable/internal/domain/data"
	"github.com/leengari/dyntable/internal/domain/schema"
	"github.com/leengari/dyntable/internal/storage"
)

// table is the in-memory image of one table directory.
// Mutations build the next image, persist it, then swap it in.
type table struct {
	mu   sync.RWMutex
	path string
	meta tableMeta
	rows []rowRecord
}

// Engine implements storage.Engine over a directory of table directories
type Engine struct {
	mu     sync.RWMutex
	dir    string
	tables map[string]*table
}

// Open loads every table directory under dir, creating dir if needed
func Open(dir string) (*Engine, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	e := &Engine{dir: dir, tables: make(map[string]*table)}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), "_") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(filepath.Join(path, "meta.json")); err != nil {
			continue
		}
		t, err := loadTable(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load table %s: %w", entry.Name(), err)
		}
		e.tables[strings.ToLower(t.meta.Name)] = t
	}

	slog.Info("file storage opened", slog.String("path", dir), slog.Int("tables", len(e.tables)))
	return e, nil
}

func (e *Engine) Close() error {
	return nil
}

func (e *Engine) lookup(name string) (*table, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tables[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("table %s: %w", name, storage.ErrTableMissing)
	}
	return t, nil
}

func (e *Engine) CreateTable(ctx context.Context, name string, columns []schema.ColumnDefinition) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	key := strings.ToLower(name)
	if _, exists := e.tables[key]; exists {
		return fmt.Errorf("create table %s: %w", name, storage.ErrTableExists)
	}

	path := filepath.Join(e.dir, name)
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}

	meta := tableMeta{Name: name, Columns: make([]columnMeta, len(columns))}
	for i, col := range columns {
		meta.Columns[i] = toColumnMeta(col)
	}

	t := &table{path: path}
	if err := t.commit(meta, []rowRecord{}); err != nil {
		os.RemoveAll(path)
		return fmt.Errorf("create table %s: %w", name, err)
	}

	e.tables[key] = t
	return nil
}

func (e *Engine) DropTable(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	key := strings.ToLower(name)
	t, ok := e.tables[key]
	if !ok {
		return fmt.Errorf("drop table %s: %w", name, storage.ErrTableMissing)
	}
	if err := os.RemoveAll(t.path); err != nil {
		return fmt.Errorf("drop table %s: %w", name, err)
	}
	delete(e.tables, key)
	return nil
}

func (e *Engine) AddColumn(ctx context.Context, name string, column schema.ColumnDefinition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, err := e.lookup(name)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.columnIndex(column.Name) >= 0 {
		return fmt.Errorf("add column %s.%s: %w", name, column.Name, storage.ErrColumnExists)
	}

	// Existing rows do not store the new key; scans fill in the default.
	meta := t.meta
	meta.Columns = append(append([]columnMeta{}, t.meta.Columns...), toColumnMeta(column))
	if err := t.commit(meta, t.rows); err != nil {
		return fmt.Errorf("add column %s.%s: %w", name, column.Name, err)
	}
	return nil
}

func (e *Engine) DropColumn(ctx context.Context, name string, column string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, err := e.lookup(name)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.columnIndex(column)
	if idx < 0 {
		return fmt.Errorf("drop column %s.%s: %w", name, column, storage.ErrColumnMissing)
	}
	physical := t.meta.Columns[idx].Name

	meta := t.meta
	meta.Columns = make([]columnMeta, 0, len(t.meta.Columns)-1)
	meta.Columns = append(meta.Columns, t.meta.Columns[:idx]...)
	meta.Columns = append(meta.Columns, t.meta.Columns[idx+1:]...)

	rows := make([]rowRecord, len(t.rows))
	for i, r := range t.rows {
		cells := make(map[string]data.Value, len(r.Data))
		for k, v := range r.Data {
			if k != physical {
				cells[k] = v
			}
		}
		rows[i] = rowRecord{ID: r.ID, Data: cells}
	}

	if err := t.commit(meta, rows); err != nil {
		return fmt.Errorf("drop column %s.%s: %w", name, column, err)
	}
	return nil
}

func (e *Engine) InsertRow(ctx context.Context, name string, values map[string]data.Value) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t, err := e.lookup(name)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cells := make(map[string]data.Value, len(t.meta.Columns))
	for col, v := range values {
		idx := t.columnIndex(col)
		if idx < 0 {
			return 0, fmt.Errorf("insert into %s: column %s: %w", name, col, storage.ErrColumnMissing)
		}
		cells[t.meta.Columns[idx].Name] = v
	}
	for _, col := range t.meta.Columns {
		if _, ok := cells[col.Name]; !ok {
			cells[col.Name] = col.Default
		}
	}

	meta := t.meta
	meta.LastInsertID++
	record := rowRecord{ID: meta.LastInsertID, Data: cells}

	rows := make([]rowRecord, len(t.rows), len(t.rows)+1)
	copy(rows, t.rows)
	rows = append(rows, record)

	if err := t.commit(meta, rows); err != nil {
		return 0, fmt.Errorf("insert into %s: %w", name, err)
	}
	return record.ID, nil
}

func (e *Engine) ScanRows(ctx context.Context, name string, columns []schema.ColumnDefinition) iter.Seq2[data.Row, error] {
	return func(yield func(data.Row, error) bool) {
		t, err := e.lookup(name)
		if err != nil {
			yield(data.Row{}, fmt.Errorf("scan: %w", err))
			return
		}

		// Rows are replaced on write, never edited, so the slice header
		// taken under the lock is a stable snapshot.
		t.mu.RLock()
		rows := t.rows
		t.mu.RUnlock()

		for _, r := range rows {
			if err := ctx.Err(); err != nil {
				yield(data.Row{}, err)
				return
			}
			cells := make(map[string]data.Value, len(columns))
			for _, col := range columns {
				v, ok := r.Data[col.Name]
				if !ok {
					v = col.Default
				}
				cells[col.Name] = v
			}
			if !yield(data.NewRow(r.ID, cells), nil) {
				return
			}
		}
	}
}

func (e *Engine) Columns(ctx context.Context, name string) ([]string, error) {
	t, err := e.lookup(name)
	if err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	cols := make([]string, len(t.meta.Columns))
	for i, c := range t.meta.Columns {
		cols[i] = c.Name
	}
	return cols, nil
}

func (e *Engine) Tables(ctx context.Context) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.tables))
	for _, t := range e.tables {
		names = append(names, t.meta.Name)
	}
	sort.Strings(names)
	return names, nil
}

// columnIndex finds a column by case-insensitive name. Caller holds t.mu.
func (t *table) columnIndex(name string) int {
	for i, c := range t.meta.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

var _ storage.Engine = (*Engine)(nil)
