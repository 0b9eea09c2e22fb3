package storagetest

import (
	"context"
	"errors"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/leengari/dyntable/internal/domain/data"
	"github.com/leengari/dyntable/internal/domain/schema"
	"github.com/leengari/dyntable/internal/storage"
)

// Columns resolves fields for tests, failing the test on unknown types
func Columns(t *testing.T, fields ...schema.FieldSpec) []schema.ColumnDefinition {
	t.Helper()
	cols, err := schema.ResolveFields(fields)
	assert.NilError(t, err)
	return cols
}

// CollectRows drains a scan
func CollectRows(t *testing.T, seq func(func(data.Row, error) bool)) []data.Row {
	t.Helper()
	var rows []data.Row
	for row, err := range seq {
		assert.NilError(t, err)
		rows = append(rows, row)
	}
	return rows
}

// RunEngineSuite checks the storage.Engine contract. open must return a
// fresh, empty engine; the suite closes it.
func RunEngineSuite(t *testing.T, open func(t *testing.T) storage.Engine) {
	ctx := context.Background()

	age := schema.FieldSpec{Name: "age", Type: schema.FieldNumber}
	active := schema.FieldSpec{Name: "active", Type: schema.FieldBoolean}
	email := schema.FieldSpec{Name: "email", Type: schema.FieldString}

	setup := func(t *testing.T) storage.Engine {
		t.Helper()
		e := open(t)
		t.Cleanup(func() { e.Close() })
		assert.NilError(t, e.CreateTable(ctx, "users", Columns(t, age, active)))
		return e
	}

	t.Run("CreateTable", func(t *testing.T) {
		e := setup(t)

		cols, err := e.Columns(ctx, "users")
		assert.NilError(t, err)
		assert.DeepEqual(t, cols, []string{"age", "active"})

		tables, err := e.Tables(ctx)
		assert.NilError(t, err)
		assert.DeepEqual(t, tables, []string{"users"})

		err = e.CreateTable(ctx, "users", nil)
		assert.Assert(t, errors.Is(err, storage.ErrTableExists), "got %v", err)
	})

	t.Run("CreateEmptyTable", func(t *testing.T) {
		e := setup(t)
		assert.NilError(t, e.CreateTable(ctx, "empty", nil))
		cols, err := e.Columns(ctx, "empty")
		assert.NilError(t, err)
		assert.Equal(t, len(cols), 0)

		id, err := e.InsertRow(ctx, "empty", nil)
		assert.NilError(t, err)
		assert.Equal(t, id, int64(1))
	})

	t.Run("InsertAndScan", func(t *testing.T) {
		e := setup(t)

		id1, err := e.InsertRow(ctx, "users", map[string]data.Value{
			"age":    data.NumberValue(30),
			"active": data.BoolValue(true),
		})
		assert.NilError(t, err)
		id2, err := e.InsertRow(ctx, "users", map[string]data.Value{})
		assert.NilError(t, err)
		assert.Assert(t, id2 > id1)

		cols := Columns(t, age, active)
		rows := CollectRows(t, e.ScanRows(ctx, "users", cols))
		assert.Equal(t, len(rows), 2)
		assert.Equal(t, rows[0].ID, id1)
		assert.DeepEqual(t, rows[0].Map(), map[string]interface{}{"age": int64(30), "active": true})
		assert.DeepEqual(t, rows[1].Map(), map[string]interface{}{"age": nil, "active": false})

		// a second pass sees the same rows
		again := CollectRows(t, e.ScanRows(ctx, "users", cols))
		assert.Equal(t, len(again), 2)
	})

	t.Run("InsertUnknownColumn", func(t *testing.T) {
		e := setup(t)
		_, err := e.InsertRow(ctx, "users", map[string]data.Value{"unknown_field": data.NumberValue(1)})
		assert.Assert(t, errors.Is(err, storage.ErrColumnMissing), "got %v", err)

		rows := CollectRows(t, e.ScanRows(ctx, "users", Columns(t, age, active)))
		assert.Equal(t, len(rows), 0)
	})

	t.Run("ScanProjection", func(t *testing.T) {
		e := setup(t)
		_, err := e.InsertRow(ctx, "users", map[string]data.Value{"age": data.NumberValue(5)})
		assert.NilError(t, err)

		rows := CollectRows(t, e.ScanRows(ctx, "users", Columns(t, age)))
		assert.DeepEqual(t, rows[0].Map(), map[string]interface{}{"age": int64(5)})
	})

	t.Run("ScanStopsEarly", func(t *testing.T) {
		e := setup(t)
		for i := 0; i < 3; i++ {
			_, err := e.InsertRow(ctx, "users", map[string]data.Value{"age": data.NumberValue(int64(i))})
			assert.NilError(t, err)
		}
		n := 0
		for _, err := range e.ScanRows(ctx, "users", Columns(t, age)) {
			assert.NilError(t, err)
			n++
			if n == 2 {
				break
			}
		}
		assert.Equal(t, n, 2)
	})

	t.Run("AddColumn", func(t *testing.T) {
		e := setup(t)
		_, err := e.InsertRow(ctx, "users", map[string]data.Value{"age": data.NumberValue(1)})
		assert.NilError(t, err)

		assert.NilError(t, e.AddColumn(ctx, "users", Columns(t, email)[0]))
		cols, err := e.Columns(ctx, "users")
		assert.NilError(t, err)
		assert.DeepEqual(t, cols, []string{"age", "active", "email"})

		rows := CollectRows(t, e.ScanRows(ctx, "users", Columns(t, age, active, email)))
		assert.DeepEqual(t, rows[0].Map(), map[string]interface{}{"age": int64(1), "active": false, "email": nil})

		err = e.AddColumn(ctx, "users", Columns(t, email)[0])
		assert.Assert(t, errors.Is(err, storage.ErrColumnExists), "got %v", err)
	})

	t.Run("AddNotNullColumnToPopulatedTable", func(t *testing.T) {
		e := setup(t)
		_, err := e.InsertRow(ctx, "users", map[string]data.Value{"age": data.NumberValue(1)})
		assert.NilError(t, err)

		flag := schema.FieldSpec{Name: "flag", Type: schema.FieldBoolean}
		assert.NilError(t, e.AddColumn(ctx, "users", Columns(t, flag)[0]))
		rows := CollectRows(t, e.ScanRows(ctx, "users", Columns(t, flag)))
		assert.DeepEqual(t, rows[0].Map(), map[string]interface{}{"flag": false})
	})

	t.Run("DropColumnDiscardsData", func(t *testing.T) {
		e := setup(t)
		_, err := e.InsertRow(ctx, "users", map[string]data.Value{"age": data.NumberValue(30)})
		assert.NilError(t, err)

		assert.NilError(t, e.DropColumn(ctx, "users", "age"))
		cols, err := e.Columns(ctx, "users")
		assert.NilError(t, err)
		assert.DeepEqual(t, cols, []string{"active"})

		// re-adding the name with another type does not bring data back
		ageText := schema.FieldSpec{Name: "age", Type: schema.FieldString}
		assert.NilError(t, e.AddColumn(ctx, "users", Columns(t, ageText)[0]))
		rows := CollectRows(t, e.ScanRows(ctx, "users", Columns(t, ageText)))
		assert.DeepEqual(t, rows[0].Map(), map[string]interface{}{"age": nil})

		err = e.DropColumn(ctx, "users", "missing")
		assert.Assert(t, errors.Is(err, storage.ErrColumnMissing), "got %v", err)
	})

	t.Run("MissingTable", func(t *testing.T) {
		e := setup(t)

		_, err := e.Columns(ctx, "missing_table")
		assert.Assert(t, errors.Is(err, storage.ErrTableMissing), "got %v", err)

		for _, err := range e.ScanRows(ctx, "missing_table", nil) {
			assert.Assert(t, errors.Is(err, storage.ErrTableMissing), "got %v", err)
		}

		_, err = e.InsertRow(ctx, "missing_table", nil)
		assert.Assert(t, errors.Is(err, storage.ErrTableMissing), "got %v", err)

		err = e.AddColumn(ctx, "missing_table", Columns(t, email)[0])
		assert.Assert(t, errors.Is(err, storage.ErrTableMissing), "got %v", err)
	})

	t.Run("DropTable", func(t *testing.T) {
		e := setup(t)
		assert.NilError(t, e.DropTable(ctx, "users"))
		tables, err := e.Tables(ctx)
		assert.NilError(t, err)
		assert.Equal(t, len(tables), 0)

		err = e.DropTable(ctx, "users")
		assert.Assert(t, errors.Is(err, storage.ErrTableMissing), "got %v", err)
	})
}
