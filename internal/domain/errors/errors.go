package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel values for the failure taxonomy. Every typed error below matches
// exactly one of these through errors.Is.
var (
	ErrUnsupportedFieldType    = errors.New("unsupported field type")
	ErrInvalidSchemaShape      = errors.New("invalid schema shape")
	ErrTableNotFound           = errors.New("table not found")
	ErrAlreadyExists           = errors.New("table already exists")
	ErrInvalidRowShape         = errors.New("invalid row shape")
	ErrUnknownField            = errors.New("unknown field")
	ErrInvalidValue            = errors.New("invalid value")
	ErrMigrationPartialFailure = errors.New("migration partially applied")
	ErrMigrationFailed         = errors.New("migration failed")
	ErrTableBusy               = errors.New("table busy")
)

// FieldTypeError reports a type tag the registry does not know
type FieldTypeError struct {
	Field string
	Type  string
}

func (e *FieldTypeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("unsupported field type: %q", e.Type)
	}
	return fmt.Sprintf("unsupported field type %q for field %q", e.Type, e.Field)
}

func (e *FieldTypeError) Is(target error) bool { return target == ErrUnsupportedFieldType }

// SchemaShapeError reports a malformed field list or table name
type SchemaShapeError struct {
	Table  string
	Field  string
	Reason string
}

func (e *SchemaShapeError) Error() string {
	var parts []string
	parts = append(parts, "invalid schema")
	if e.Table != "" {
		parts = append(parts, fmt.Sprintf("table=%s", e.Table))
	}
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	return strings.Join(parts, " - ")
}

func (e *SchemaShapeError) Is(target error) bool { return target == ErrInvalidSchemaShape }

// TableNotFoundError is returned for operations on a table the catalog does not know.
// ID is set when the lookup was by catalog id.
type TableNotFoundError struct {
	Table string
	ID    int64
}

func (e *TableNotFoundError) Error() string {
	if e.Table == "" && e.ID != 0 {
		return fmt.Sprintf("table with id %d not found", e.ID)
	}
	return fmt.Sprintf("table '%s' not found", e.Table)
}

func (e *TableNotFoundError) Is(target error) bool { return target == ErrTableNotFound }

type AlreadyExistsError struct {
	Table string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("table '%s' already exists", e.Table)
}

func (e *AlreadyExistsError) Is(target error) bool { return target == ErrAlreadyExists }

// RowShapeError reports row data that is not a flat name to value mapping
type RowShapeError struct {
	Table  string
	Field  string
	Reason string
}

func (e *RowShapeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid row for %s: field %s: %s", e.Table, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid row for %s: %s", e.Table, e.Reason)
}

func (e *RowShapeError) Is(target error) bool { return target == ErrInvalidRowShape }

// UnknownFieldError reports row data naming columns outside the current schema
type UnknownFieldError struct {
	Table  string
	Fields []string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("table %s has no field(s) named %s", e.Table, strings.Join(e.Fields, ", "))
}

func (e *UnknownFieldError) Is(target error) bool { return target == ErrUnknownField }

// ConstraintError represents a value rejected by a column definition
// (type mismatch, max length, not null).
type ConstraintError struct {
	Table      string      // table name
	Column     string      // column name
	Value      interface{} // offending value (may be nil)
	Constraint string      // "type_mismatch", "max_length", "not_null"
	Reason     string      // human-readable explanation (optional)
}

func (e *ConstraintError) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("constraint violation in %s.%s", e.Table, e.Column))

	if e.Constraint != "" {
		parts = append(parts, fmt.Sprintf("(%s)", e.Constraint))
	}

	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}

	return strings.Join(parts, " - ")
}

func (e *ConstraintError) Is(target error) bool { return target == ErrInvalidValue }

func NewTypeMismatch(table, column string, value interface{}, expected string) *ConstraintError {
	return &ConstraintError{
		Table:      table,
		Column:     column,
		Value:      value,
		Constraint: "type_mismatch",
		Reason:     fmt.Sprintf("expected %s, got %T", expected, value),
	}
}

// TableBusyError is returned when a table lock could not be acquired in time
type TableBusyError struct {
	Table string
	Err   error
}

func (e *TableBusyError) Error() string {
	return fmt.Sprintf("table '%s' is busy: %v", e.Table, e.Err)
}

func (e *TableBusyError) Is(target error) bool { return target == ErrTableBusy }

func (e *TableBusyError) Unwrap() error { return e.Err }
