// Package storagetest holds helpers for exercising storage.Engine
// implementations and the components built on them.
package storagetest

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/leengari/dyntable/internal/domain/data"
	"github.com/leengari/dyntable/internal/domain/schema"
	"github.com/leengari/dyntable/internal/storage"
)

// ErrInjected is the default failure returned by FaultyEngine
var ErrInjected = errors.New("storagetest: injected failure")

// FaultyEngine wraps an Engine and fails selected calls
type FaultyEngine struct {
	storage.Engine

	mu sync.Mutex
	// FailColumnOp fails the Nth AddColumn/DropColumn call (1-based); 0 disables
	FailColumnOp int
	FailCreate   bool
	FailInsert   bool
	// Err overrides ErrInjected
	Err error

	columnOps int
}

// NewFaultyEngine wraps inner
func NewFaultyEngine(inner storage.Engine) *FaultyEngine {
	return &FaultyEngine{Engine: inner}
}

func (f *FaultyEngine) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

// ColumnOps returns the number of column operations attempted so far
func (f *FaultyEngine) ColumnOps() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.columnOps
}

func (f *FaultyEngine) nextColumnOp() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.columnOps++
	if f.FailColumnOp > 0 && f.columnOps == f.FailColumnOp {
		return f.err()
	}
	return nil
}

func (f *FaultyEngine) CreateTable(ctx context.Context, table string, columns []schema.ColumnDefinition) error {
	if f.FailCreate {
		return f.err()
	}
	return f.Engine.CreateTable(ctx, table, columns)
}

func (f *FaultyEngine) AddColumn(ctx context.Context, table string, column schema.ColumnDefinition) error {
	if err := f.nextColumnOp(); err != nil {
		return err
	}
	return f.Engine.AddColumn(ctx, table, column)
}

func (f *FaultyEngine) DropColumn(ctx context.Context, table string, column string) error {
	if err := f.nextColumnOp(); err != nil {
		return err
	}
	return f.Engine.DropColumn(ctx, table, column)
}

func (f *FaultyEngine) InsertRow(ctx context.Context, table string, values map[string]data.Value) (int64, error) {
	if f.FailInsert {
		return 0, f.err()
	}
	return f.Engine.InsertRow(ctx, table, values)
}

func (f *FaultyEngine) ScanRows(ctx context.Context, table string, columns []schema.ColumnDefinition) iter.Seq2[data.Row, error] {
	return f.Engine.ScanRows(ctx, table, columns)
}

var _ storage.Engine = (*FaultyEngine)(nil)
