package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/leengari/dyntable/internal/domain/data"
	"github.com/leengari/dyntable/internal/domain/schema"
	"github.com/leengari/dyntable/internal/storage"
	"github.com/leengari/dyntable/internal/storage/storagetest"
)

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(filepath.Join(t.TempDir(), "test.db"))
	assert.NilError(t, err)
	return e
}

func TestEngineContract(t *testing.T) {
	storagetest.RunEngineSuite(t, func(t *testing.T) storage.Engine {
		return openTestEngine(t)
	})
}

func TestColumnDDL(t *testing.T) {
	cols := storagetest.Columns(t,
		schema.FieldSpec{Name: "name", Type: schema.FieldString},
		schema.FieldSpec{Name: "age", Type: schema.FieldNumber},
		schema.FieldSpec{Name: "active", Type: schema.FieldBoolean},
	)

	assert.Equal(t, columnDDL(cols[0]), `"name" VARCHAR(255) NULL`)
	assert.Equal(t, columnDDL(cols[1]), `"age" INTEGER NULL`)
	assert.Equal(t, columnDDL(cols[2]), `"active" BOOLEAN NOT NULL DEFAULT 0`)
	assert.Equal(t, quoteIdent(`we"ird`), `"we""ird"`)
}

func TestInternalTablesHidden(t *testing.T) {
	ctx := context.Background()
	e := openTestEngine(t)
	defer e.Close()

	_, err := e.DB().ExecContext(ctx, `CREATE TABLE "_catalog" (id INTEGER PRIMARY KEY)`)
	assert.NilError(t, err)
	assert.NilError(t, e.CreateTable(ctx, "users", nil))

	tables, err := e.Tables(ctx)
	assert.NilError(t, err)
	assert.DeepEqual(t, tables, []string{"users"})
}

func TestRowsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")
	cols := storagetest.Columns(t, schema.FieldSpec{Name: "name", Type: schema.FieldString})

	e, err := Open(path)
	assert.NilError(t, err)
	assert.NilError(t, e.CreateTable(ctx, "users", cols))
	_, err = e.InsertRow(ctx, "users", map[string]data.Value{"name": data.StringValue("alice")})
	assert.NilError(t, err)
	assert.NilError(t, e.Close())

	e, err = Open(path)
	assert.NilError(t, err)
	defer e.Close()

	rows := storagetest.CollectRows(t, e.ScanRows(ctx, "users", cols))
	assert.Equal(t, len(rows), 1)
	assert.DeepEqual(t, rows[0].Map(), map[string]interface{}{"name": "alice"})
}
