// Package gateway reads and writes rows of dynamic tables through whatever
// schema the catalog currently holds for them.
package gateway

import (
	"context"
	"errors"
	"iter"
	"sort"

	"github.com/leengari/dyntable/internal/catalog"
	"github.com/leengari/dyntable/internal/domain/data"
	dberrors "github.com/leengari/dyntable/internal/domain/errors"
	"github.com/leengari/dyntable/internal/domain/schema"
	"github.com/leengari/dyntable/internal/lock"
	"github.com/leengari/dyntable/internal/storage"
)

type Gateway struct {
	catalog catalog.Store
	engine  storage.Engine
	locks   *lock.Manager
}

func New(cat catalog.Store, engine storage.Engine, locks *lock.Manager) *Gateway {
	return &Gateway{catalog: cat, engine: engine, locks: locks}
}

// Insert stores one row and returns its id. raw must be a flat
// field-to-value object; nil inserts a row of defaults.
func (g *Gateway) Insert(ctx context.Context, table string, raw interface{}) (int64, error) {
	release, err := g.locks.Shared(ctx, table)
	if err != nil {
		return 0, err
	}
	defer release()

	sch, err := g.catalog.Get(ctx, table)
	if err != nil {
		return 0, err
	}

	values, err := flatRow(table, raw)
	if err != nil {
		return 0, err
	}

	columns, err := sch.Columns()
	if err != nil {
		return 0, err
	}
	byName := make(map[string]schema.ColumnDefinition, len(columns))
	for _, col := range columns {
		byName[col.Name] = col
	}

	var unknown []string
	for name := range values {
		if _, ok := byName[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return 0, &dberrors.UnknownFieldError{Table: table, Fields: unknown}
	}

	cells := make(map[string]data.Value, len(values))
	for name, v := range values {
		cell, err := byName[name].Coerce(table, v)
		if err != nil {
			return 0, err
		}
		cells[name] = cell
	}

	id, err := g.engine.InsertRow(ctx, table, cells)
	if errors.Is(err, storage.ErrColumnMissing) {
		// catalog and storage disagree; storage is the one refusing
		fields := make([]string, 0, len(cells))
		for name := range cells {
			fields = append(fields, name)
		}
		sort.Strings(fields)
		return 0, &dberrors.UnknownFieldError{Table: table, Fields: fields}
	}
	return id, err
}

// ListAll returns every row of table projected onto its declared fields.
// A missing table fails immediately. Each range over the sequence takes a
// fresh shared lock and schema, so the sequence can be ranged again.
func (g *Gateway) ListAll(ctx context.Context, table string) (iter.Seq2[data.Row, error], error) {
	if _, err := g.schema(ctx, table); err != nil {
		return nil, err
	}

	return func(yield func(data.Row, error) bool) {
		release, err := g.locks.Shared(ctx, table)
		if err != nil {
			yield(data.Row{}, err)
			return
		}
		defer release()

		sch, err := g.catalog.Get(ctx, table)
		if err != nil {
			yield(data.Row{}, err)
			return
		}
		columns, err := sch.Columns()
		if err != nil {
			yield(data.Row{}, err)
			return
		}

		for row, err := range g.engine.ScanRows(ctx, table, columns) {
			if !yield(row, err) || err != nil {
				return
			}
		}
	}, nil
}

func (g *Gateway) schema(ctx context.Context, table string) (schema.TableSchema, error) {
	release, err := g.locks.Shared(ctx, table)
	if err != nil {
		return schema.TableSchema{}, err
	}
	defer release()
	return g.catalog.Get(ctx, table)
}

// Collect drains a row sequence, stopping at the first error
func Collect(seq iter.Seq2[data.Row, error]) ([]data.Row, error) {
	rows := []data.Row{}
	for row, err := range seq {
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func flatRow(table string, raw interface{}) (map[string]interface{}, error) {
	if raw == nil {
		return map[string]interface{}{}, nil
	}
	values, ok := raw.(map[string]interface{})
	if !ok {
		return nil, &dberrors.RowShapeError{Table: table, Reason: "row data must be an object of field-value pairs"}
	}
	for name, v := range values {
		switch v.(type) {
		case map[string]interface{}, []interface{}:
			return nil, &dberrors.RowShapeError{Table: table, Field: name, Reason: "nested values are not supported"}
		}
	}
	return values, nil
}
