package catalog

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"gotest.tools/v3/assert"

	dberrors "github.com/leengari/dyntable/internal/domain/errors"
	"github.com/leengari/dyntable/internal/domain/schema"
)

// stepClock advances one second per call so created/updated dates differ
type stepClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newStepClock() *stepClock {
	return &stepClock{cur: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

type opener func(t *testing.T, now Clock) Store

func openFile(t *testing.T, now Clock) Store {
	s, err := OpenFileStoreWithClock(filepath.Join(t.TempDir(), "catalog.json"), now)
	assert.NilError(t, err)
	return s
}

func openSQL(t *testing.T, now Clock) Store {
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "catalog.db"))
	assert.NilError(t, err)
	t.Cleanup(func() { db.Close() })
	s, err := NewSQLStoreWithClock(context.Background(), db, now)
	assert.NilError(t, err)
	return s
}

func TestStores(t *testing.T) {
	for name, open := range map[string]opener{"file": openFile, "sqlite": openSQL} {
		t.Run(name, func(t *testing.T) {
			runStoreSuite(t, open)
		})
	}
}

func runStoreSuite(t *testing.T, open opener) {
	ctx := context.Background()
	fields := []schema.FieldSpec{
		{Name: "name", Type: schema.FieldString},
		{Name: "age", Type: schema.FieldNumber},
	}

	t.Run("CreateAndGet", func(t *testing.T) {
		s := open(t, newStepClock().Now)

		created, err := s.Create(ctx, "users", fields)
		assert.NilError(t, err)
		assert.Equal(t, created.ID, int64(1))
		assert.Assert(t, created.CreatedAt.Equal(created.UpdatedAt))

		got, err := s.Get(ctx, "users")
		assert.NilError(t, err)
		assert.Equal(t, got.ID, created.ID)
		assert.DeepEqual(t, got.Fields, fields)
		assert.Assert(t, got.CreatedAt.Equal(created.CreatedAt))

		byID, err := s.GetByID(ctx, created.ID)
		assert.NilError(t, err)
		assert.Equal(t, byID.TableName, "users")
	})

	t.Run("CreateEmptyFields", func(t *testing.T) {
		s := open(t, newStepClock().Now)
		_, err := s.Create(ctx, "empty", nil)
		assert.NilError(t, err)

		got, err := s.Get(ctx, "empty")
		assert.NilError(t, err)
		assert.DeepEqual(t, got.Fields, []schema.FieldSpec{})
	})

	t.Run("Duplicate", func(t *testing.T) {
		s := open(t, newStepClock().Now)
		_, err := s.Create(ctx, "users", fields)
		assert.NilError(t, err)

		_, err = s.Create(ctx, "users", nil)
		assert.Assert(t, errors.Is(err, dberrors.ErrAlreadyExists), "got %v", err)

		got, err := s.Get(ctx, "users")
		assert.NilError(t, err)
		assert.DeepEqual(t, got.Fields, fields)
	})

	t.Run("NotFound", func(t *testing.T) {
		s := open(t, newStepClock().Now)

		_, err := s.Get(ctx, "missing")
		assert.Assert(t, errors.Is(err, dberrors.ErrTableNotFound), "got %v", err)
		_, err = s.GetByID(ctx, 42)
		assert.Assert(t, errors.Is(err, dberrors.ErrTableNotFound), "got %v", err)
		_, err = s.Update(ctx, "missing", fields)
		assert.Assert(t, errors.Is(err, dberrors.ErrTableNotFound), "got %v", err)
	})

	t.Run("UpdateBumpsUpdatedDate", func(t *testing.T) {
		s := open(t, newStepClock().Now)
		created, err := s.Create(ctx, "users", fields)
		assert.NilError(t, err)

		next := []schema.FieldSpec{{Name: "email", Type: schema.FieldString}}
		updated, err := s.Update(ctx, "users", next)
		assert.NilError(t, err)
		assert.DeepEqual(t, updated.Fields, next)
		assert.Equal(t, updated.ID, created.ID)
		assert.Assert(t, updated.CreatedAt.Equal(created.CreatedAt))
		assert.Assert(t, updated.UpdatedAt.After(created.UpdatedAt))
	})

	t.Run("ReturnsCopies", func(t *testing.T) {
		s := open(t, newStepClock().Now)
		_, err := s.Create(ctx, "users", fields)
		assert.NilError(t, err)

		got, err := s.Get(ctx, "users")
		assert.NilError(t, err)
		got.Fields[0].Name = "mutated"

		again, err := s.Get(ctx, "users")
		assert.NilError(t, err)
		assert.Equal(t, again.Fields[0].Name, "name")
	})

	t.Run("ListOrderedByID", func(t *testing.T) {
		s := open(t, newStepClock().Now)
		for _, name := range []string{"b_table", "a_table", "c_table"} {
			_, err := s.Create(ctx, name, nil)
			assert.NilError(t, err)
		}
		list, err := s.List(ctx)
		assert.NilError(t, err)
		assert.Equal(t, len(list), 3)
		assert.Equal(t, list[0].TableName, "b_table")
		assert.Equal(t, list[2].TableName, "c_table")
		assert.Assert(t, list[0].ID < list[1].ID && list[1].ID < list[2].ID)
	})
}

func TestFileStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.json")

	s, err := OpenFileStore(path)
	assert.NilError(t, err)
	_, err = s.Create(ctx, "first", nil)
	assert.NilError(t, err)
	_, err = s.Create(ctx, "second", []schema.FieldSpec{{Name: "x", Type: schema.FieldBoolean}})
	assert.NilError(t, err)

	reopened, err := OpenFileStore(path)
	assert.NilError(t, err)
	got, err := reopened.Get(ctx, "second")
	assert.NilError(t, err)
	assert.Equal(t, got.ID, int64(2))
	assert.Equal(t, got.Fields[0].Type, schema.FieldBoolean)

	// ids keep increasing after a reopen
	third, err := reopened.Create(ctx, "third", nil)
	assert.NilError(t, err)
	assert.Equal(t, third.ID, int64(3))
}
