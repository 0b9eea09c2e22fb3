// Package catalog is the authoritative record of every logical table's
// current field list. The catalog never touches physical storage; the
// migrator keeps the two in step.
package catalog

import (
	"context"
	"time"

	"github.com/leengari/dyntable/internal/domain/schema"
)

// Store maps table names to their current schema. Every returned
// TableSchema is a copy owned by the caller.
type Store interface {
	// Get fails with ErrTableNotFound when name is not registered
	Get(ctx context.Context, name string) (schema.TableSchema, error)
	GetByID(ctx context.Context, id int64) (schema.TableSchema, error)
	// Create fails with ErrAlreadyExists when name is registered
	Create(ctx context.Context, name string, fields []schema.FieldSpec) (schema.TableSchema, error)
	// Update replaces fields and bumps UpdatedAt in one step
	Update(ctx context.Context, name string, fields []schema.FieldSpec) (schema.TableSchema, error)
	// List returns all records ordered by id
	List(ctx context.Context) ([]schema.TableSchema, error)
	Close() error
}

// Clock supplies timestamps for created/updated dates
type Clock func() time.Time

func defaultClock() time.Time {
	return time.Now().UTC()
}
