package errors

import (
	"context"
	"errors"
	"testing"

	"gotest.tools/v3/assert"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"field type", &FieldTypeError{Field: "a", Type: "CharField"}, ErrUnsupportedFieldType},
		{"schema shape", &SchemaShapeError{Reason: "fields must be a list"}, ErrInvalidSchemaShape},
		{"not found", &TableNotFoundError{Table: "users"}, ErrTableNotFound},
		{"exists", &AlreadyExistsError{Table: "users"}, ErrAlreadyExists},
		{"row shape", &RowShapeError{Table: "users", Reason: "not an object"}, ErrInvalidRowShape},
		{"unknown field", &UnknownFieldError{Table: "users", Fields: []string{"x"}}, ErrUnknownField},
		{"constraint", NewTypeMismatch("users", "age", "x", "integer"), ErrInvalidValue},
		{"busy", &TableBusyError{Table: "users", Err: context.DeadlineExceeded}, ErrTableBusy},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Assert(t, errors.Is(tc.err, tc.sentinel))
			assert.Assert(t, !errors.Is(tc.err, ErrMigrationPartialFailure))
			assert.Assert(t, tc.err.Error() != "")
		})
	}
}

func TestMigrationErrorClassification(t *testing.T) {
	cause := errors.New("disk full")

	t.Run("nothing applied", func(t *testing.T) {
		err := &MigrationError{Table: "users", Failed: "drop age", Err: cause}
		assert.Assert(t, errors.Is(err, ErrMigrationFailed))
		assert.Assert(t, !errors.Is(err, ErrMigrationPartialFailure))
		assert.Assert(t, errors.Is(err, cause))
	})

	t.Run("some applied", func(t *testing.T) {
		err := &MigrationError{Table: "users", Applied: []string{"drop age"}, Failed: "add age", Err: cause}
		assert.Assert(t, errors.Is(err, ErrMigrationPartialFailure))
		assert.Assert(t, !errors.Is(err, ErrMigrationFailed))
		assert.ErrorContains(t, err, "manual reconciliation")
	})

	t.Run("catalog stale", func(t *testing.T) {
		err := &MigrationError{Table: "users", Failed: "catalog update", CatalogStale: true, Err: cause}
		assert.Assert(t, errors.Is(err, ErrMigrationPartialFailure))
	})

	t.Run("as", func(t *testing.T) {
		var wrapped error = &MigrationError{Table: "users", Applied: []string{"x"}, Err: cause}
		var me *MigrationError
		assert.Assert(t, errors.As(wrapped, &me))
		assert.Equal(t, me.Table, "users")
	})
}
