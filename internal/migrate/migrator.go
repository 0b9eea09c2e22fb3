// Package migrate creates and reshapes physical tables and keeps the catalog
// in step with them. Physical changes always happen first; the catalog is
// written only after every one of them succeeded.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leengari/dyntable/internal/catalog"
	dberrors "github.com/leengari/dyntable/internal/domain/errors"
	"github.com/leengari/dyntable/internal/domain/schema"
	"github.com/leengari/dyntable/internal/journal"
	"github.com/leengari/dyntable/internal/lock"
	"github.com/leengari/dyntable/internal/storage"
)

// Recorder journals migrations. *journal.Journal implements it.
type Recorder interface {
	Begin(table string, kind journal.Kind, fields []schema.FieldSpec) (*journal.Migration, error)
	Step(m *journal.Migration, op string) error
	Commit(m *journal.Migration) error
	Abort(m *journal.Migration, reason string) error
}

// Migrator owns every structural change to physical storage
type Migrator struct {
	catalog   catalog.Store
	engine    storage.Engine
	locks     *lock.Manager
	journal   Recorder

	obsMu     sync.RWMutex
	observers []Observer
}

func New(cat catalog.Store, engine storage.Engine, locks *lock.Manager) *Migrator {
	return &Migrator{
		catalog:   cat,
		engine:    engine,
		locks:     locks,
		observers: make([]Observer, 0),
	}
}

// SetJournal enables journaling; nil disables it
func (m *Migrator) SetJournal(r Recorder) {
	m.journal = r
}

// AddObserver is safe to call while migrations run
func (m *Migrator) AddObserver(observer Observer) {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	m.observers = append(slices.Clip(m.observers), observer)
}

func (m *Migrator) RemoveObserver(observer Observer) {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	if i := slices.Index(m.observers, observer); i >= 0 {
		// a fresh slice, since notify may be ranging over the old one
		m.observers = slices.Concat(m.observers[:i], m.observers[i+1:])
	}
}

func (m *Migrator) notify(event Event) {
	event.Timestamp = time.Now()
	m.obsMu.RLock()
	observers := m.observers
	m.obsMu.RUnlock()
	for _, observer := range observers {
		observer.OnEvent(event)
	}
}

// run tracks one migration's journal entry and applied operations
type run struct {
	m       *Migrator
	id      string
	table   string
	entry   *journal.Migration
	applied []string
}

func (m *Migrator) begin(table string, kind journal.Kind, fields []schema.FieldSpec, data interface{}) (*run, error) {
	r := &run{m: m, table: table}
	if m.journal != nil {
		entry, err := m.journal.Begin(table, kind, fields)
		if err != nil {
			return nil, &dberrors.MigrationError{Table: table, Failed: "journal", Err: err}
		}
		r.entry = entry
		r.id = entry.ID
	} else {
		r.id = uuid.NewString()
	}
	m.notify(Event{Type: EventMigrationStart, MigrationID: r.id, Table: table, Data: data})
	return r, nil
}

// step records a physical change that is now in effect
func (r *run) step(op string) {
	r.applied = append(r.applied, op)
	if r.entry == nil {
		return
	}
	if err := r.m.journal.Step(r.entry, op); err != nil {
		slog.Error("failed to journal migration step",
			slog.String("migration_id", r.id),
			slog.String("table", r.table),
			slog.String("op", op),
			slog.Any("error", err),
		)
	}
}

func (r *run) commit(result schema.TableSchema) {
	r.m.notify(Event{Type: EventCatalogWritten, MigrationID: r.id, Table: r.table, Data: result.Fields})
	if r.entry != nil {
		if err := r.m.journal.Commit(r.entry); err != nil {
			slog.Error("failed to journal migration commit",
				slog.String("migration_id", r.id),
				slog.String("table", r.table),
				slog.Any("error", err),
			)
		}
	}
	r.m.notify(Event{Type: EventMigrationEnd, MigrationID: r.id, Table: r.table, Data: r.applied})
}

// fail aborts the run and returns the error the caller should see
func (r *run) fail(failed string, cause error, catalogStale bool) error {
	err := &dberrors.MigrationError{
		Table:        r.table,
		MigrationID:  r.id,
		Applied:      append([]string(nil), r.applied...),
		Failed:       failed,
		CatalogStale: catalogStale,
		Err:          cause,
	}
	if r.entry != nil {
		if jerr := r.m.journal.Abort(r.entry, fmt.Sprintf("%s: %v", failed, cause)); jerr != nil {
			slog.Error("failed to journal migration abort",
				slog.String("migration_id", r.id),
				slog.String("table", r.table),
				slog.Any("error", jerr),
			)
		}
	}
	r.m.notify(Event{Type: EventMigrationFailed, MigrationID: r.id, Table: r.table, Data: err})
	return err
}

// DefineTable creates storage for a new table, then registers it
func (m *Migrator) DefineTable(ctx context.Context, name string, fields []schema.FieldSpec) (schema.TableSchema, error) {
	if err := schema.ValidateTableName(name); err != nil {
		return schema.TableSchema{}, err
	}
	normalized, err := schema.NormalizeFields(fields)
	if err != nil {
		return schema.TableSchema{}, err
	}
	columns, err := schema.ResolveFields(normalized)
	if err != nil {
		return schema.TableSchema{}, err
	}

	release, err := m.locks.Exclusive(ctx, name)
	if err != nil {
		return schema.TableSchema{}, err
	}
	defer release()

	if _, err := m.catalog.Get(ctx, name); err == nil {
		return schema.TableSchema{}, &dberrors.AlreadyExistsError{Table: name}
	} else if !errors.Is(err, dberrors.ErrTableNotFound) {
		return schema.TableSchema{}, err
	}

	r, err := m.begin(name, journal.KindDefine, normalized, normalized)
	if err != nil {
		return schema.TableSchema{}, err
	}

	createOp := "create_table " + name
	if err := m.engine.CreateTable(ctx, name, columns); err != nil {
		if errors.Is(err, storage.ErrTableExists) {
			// storage holds a table the catalog does not know about
			r.fail(createOp, err, false)
			return schema.TableSchema{}, &dberrors.AlreadyExistsError{Table: name}
		}
		return schema.TableSchema{}, r.fail(createOp, err, false)
	}
	m.notify(Event{Type: EventTableCreated, MigrationID: r.id, Table: name, Data: normalized})

	// from here on the physical table exists, so stop honouring cancellation
	bg := context.WithoutCancel(ctx)
	record, err := m.catalog.Create(bg, name, normalized)
	if err != nil {
		if dropErr := m.engine.DropTable(bg, name); dropErr != nil {
			slog.Error("failed to drop table after catalog create failed",
				slog.String("table", name),
				slog.Any("error", dropErr),
			)
			r.step(createOp)
			return schema.TableSchema{}, r.fail("catalog_create", errors.Join(err, dropErr), true)
		}
		return schema.TableSchema{}, r.fail("catalog_create", err, false)
	}

	r.step(createOp)
	r.commit(record)
	return record, nil
}

// AlterTable reshapes a table to fields. Every drop runs before every add.
// A failed column operation stops the migration and leaves the operations
// before it applied; the catalog is then left as it was.
func (m *Migrator) AlterTable(ctx context.Context, name string, fields []schema.FieldSpec) (schema.TableSchema, error) {
	normalized, err := schema.NormalizeFields(fields)
	if err != nil {
		return schema.TableSchema{}, err
	}

	release, err := m.locks.Exclusive(ctx, name)
	if err != nil {
		return schema.TableSchema{}, err
	}
	defer release()

	current, err := m.catalog.Get(ctx, name)
	if err != nil {
		return schema.TableSchema{}, err
	}

	diff := schema.Diff(current.Fields, normalized)
	if diff.IsEmpty() {
		return current, nil
	}

	plan := diff.Plan()
	additions := make(map[string]schema.ColumnDefinition, len(diff.ToAdd))
	for _, f := range diff.ToAdd {
		col, err := schema.ResolveField(f)
		if err != nil {
			return schema.TableSchema{}, err
		}
		additions[f.Name] = col
	}

	r, err := m.begin(name, journal.KindAlter, normalized, plan)
	if err != nil {
		return schema.TableSchema{}, err
	}

	for _, op := range plan {
		if err := ctx.Err(); err != nil {
			return schema.TableSchema{}, r.fail(op.String(), err, false)
		}

		switch op.Action {
		case schema.OpDropColumn:
			err = m.engine.DropColumn(ctx, name, op.Field.Name)
		case schema.OpAddColumn:
			err = m.engine.AddColumn(ctx, name, additions[op.Field.Name])
		}
		if err != nil {
			return schema.TableSchema{}, r.fail(op.String(), err, false)
		}

		r.step(op.String())
		evt := EventColumnAdded
		if op.Action == schema.OpDropColumn {
			evt = EventColumnDropped
		}
		m.notify(Event{Type: evt, MigrationID: r.id, Table: name, Data: op})
	}

	updated, err := m.catalog.Update(context.WithoutCancel(ctx), name, normalized)
	if err != nil {
		return schema.TableSchema{}, r.fail("catalog_update", err, true)
	}

	r.commit(updated)
	return updated, nil
}
