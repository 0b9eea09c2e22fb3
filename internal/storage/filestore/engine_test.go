package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/leengari/dyntable/internal/domain/data"
	"github.com/leengari/dyntable/internal/domain/schema"
	"github.com/leengari/dyntable/internal/storage"
	"github.com/leengari/dyntable/internal/storage/storagetest"
)

func TestEngineContract(t *testing.T) {
	storagetest.RunEngineSuite(t, func(t *testing.T) storage.Engine {
		e, err := Open(t.TempDir())
		assert.NilError(t, err)
		return e
	})
}

func TestReopenRestoresTables(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cols := storagetest.Columns(t,
		schema.FieldSpec{Name: "age", Type: schema.FieldNumber},
		schema.FieldSpec{Name: "active", Type: schema.FieldBoolean},
	)

	e, err := Open(dir)
	assert.NilError(t, err)
	assert.NilError(t, e.CreateTable(ctx, "users", cols))
	_, err = e.InsertRow(ctx, "users", map[string]data.Value{"age": data.NumberValue(30), "active": data.BoolValue(true)})
	assert.NilError(t, err)
	assert.NilError(t, e.DropColumn(ctx, "users", "active"))

	for _, f := range []string{"meta.json", "data.json"} {
		_, err := os.Stat(filepath.Join(dir, "users", f))
		assert.NilError(t, err)
	}

	reopened, err := Open(dir)
	assert.NilError(t, err)

	names, err := reopened.Columns(ctx, "users")
	assert.NilError(t, err)
	assert.DeepEqual(t, names, []string{"age"})

	rows := storagetest.CollectRows(t, reopened.ScanRows(ctx, "users", cols[:1]))
	assert.Equal(t, len(rows), 1)
	assert.DeepEqual(t, rows[0].Map(), map[string]interface{}{"age": int64(30)})

	// the row id sequence continues after reopen
	id, err := reopened.InsertRow(ctx, "users", nil)
	assert.NilError(t, err)
	assert.Equal(t, id, int64(2))
}

func TestFailedWriteKeepsPreviousImage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cols := storagetest.Columns(t, schema.FieldSpec{Name: "age", Type: schema.FieldNumber})

	e, err := Open(dir)
	assert.NilError(t, err)
	assert.NilError(t, e.CreateTable(ctx, "users", cols))

	// a directory where data.json.tmp should go makes the write fail
	assert.NilError(t, os.Mkdir(filepath.Join(dir, "users", "data.json.tmp"), 0755))
	assert.NilError(t, os.WriteFile(filepath.Join(dir, "users", "data.json.tmp", "block"), []byte("x"), 0644))

	err = e.DropColumn(ctx, "users", "age")
	assert.ErrorContains(t, err, "data.json")

	names, err := e.Columns(ctx, "users")
	assert.NilError(t, err)
	assert.DeepEqual(t, names, []string{"age"})
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, err := Open(t.TempDir())
	assert.NilError(t, err)
	err = e.CreateTable(ctx, "users", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReopenKeepsLargeIntegers(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cols := storagetest.Columns(t, schema.FieldSpec{Name: "n", Type: schema.FieldNumber})

	const big = int64(9007199254740993)

	e, err := Open(dir)
	assert.NilError(t, err)
	assert.NilError(t, e.CreateTable(ctx, "t", cols))
	_, err = e.InsertRow(ctx, "t", map[string]data.Value{"n": data.NumberValue(big)})
	assert.NilError(t, err)
	_, err = e.InsertRow(ctx, "t", map[string]data.Value{"n": data.NumberValue(-big)})
	assert.NilError(t, err)

	reopened, err := Open(dir)
	assert.NilError(t, err)
	rows := storagetest.CollectRows(t, reopened.ScanRows(ctx, "t", cols))
	assert.Equal(t, len(rows), 2)
	assert.DeepEqual(t, rows[0].Map(), map[string]interface{}{"n": big})
	assert.DeepEqual(t, rows[1].Map(), map[string]interface{}{"n": -big})
}

func TestReopenRepairsStaleInsertID(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cols := storagetest.Columns(t, schema.FieldSpec{Name: "n", Type: schema.FieldNumber})

	e, err := Open(dir)
	assert.NilError(t, err)
	assert.NilError(t, e.CreateTable(ctx, "t", cols))
	metaPath := filepath.Join(dir, "t", "meta.json")
	before, err := os.ReadFile(metaPath)
	assert.NilError(t, err)

	_, err = e.InsertRow(ctx, "t", map[string]data.Value{"n": data.NumberValue(1)})
	assert.NilError(t, err)

	// crash after data.json was renamed but before meta.json was
	assert.NilError(t, os.WriteFile(metaPath, before, 0644))

	reopened, err := Open(dir)
	assert.NilError(t, err)
	id, err := reopened.InsertRow(ctx, "t", map[string]data.Value{"n": data.NumberValue(2)})
	assert.NilError(t, err)
	assert.Equal(t, id, int64(2))
}
