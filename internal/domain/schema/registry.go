package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/leengari/dyntable/internal/domain/data"
	dberrors "github.com/leengari/dyntable/internal/domain/errors"
)

// ColumnKind is the physical column class a field type maps to
type ColumnKind string

const (
	ColumnVarchar ColumnKind = "VARCHAR"
	ColumnInteger ColumnKind = "INTEGER"
	ColumnBoolean ColumnKind = "BOOLEAN"
)

// MaxStringLength bounds string cells, counted in runes
const MaxStringLength = 255

// ColumnDefinition is the storage-level description of one field
type ColumnDefinition struct {
	Name      string     `json:"name"`
	Field     FieldType  `json:"type"`
	Kind      ColumnKind `json:"kind"`
	MaxLength int        `json:"max_length,omitempty"`
	Nullable  bool       `json:"nullable"`
	Default   data.Value `json:"default"`
}

// Resolve maps a type tag to its column definition. The tag must already be
// lowercased by the caller; no other normalization happens here.
func Resolve(tag string) (ColumnDefinition, error) {
	switch FieldType(tag) {
	case FieldString:
		return ColumnDefinition{
			Field:     FieldString,
			Kind:      ColumnVarchar,
			MaxLength: MaxStringLength,
			Nullable:  true,
			Default:   data.Null(),
		}, nil
	case FieldNumber:
		return ColumnDefinition{
			Field:    FieldNumber,
			Kind:     ColumnInteger,
			Nullable: true,
			Default:  data.Null(),
		}, nil
	case FieldBoolean:
		return ColumnDefinition{
			Field:    FieldBoolean,
			Kind:     ColumnBoolean,
			Nullable: false,
			Default:  data.BoolValue(false),
		}, nil
	default:
		return ColumnDefinition{}, &dberrors.FieldTypeError{Type: tag}
	}
}

// ResolveField resolves a field's type and names the column after it
func ResolveField(f FieldSpec) (ColumnDefinition, error) {
	col, err := Resolve(string(f.Type))
	if err != nil {
		return ColumnDefinition{}, &dberrors.FieldTypeError{Field: f.Name, Type: string(f.Type)}
	}
	col.Name = f.Name
	return col, nil
}

func ResolveFields(fields []FieldSpec) ([]ColumnDefinition, error) {
	cols := make([]ColumnDefinition, 0, len(fields))
	for _, f := range fields {
		col, err := ResolveField(f)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// Coerce converts a decoded request value into a cell for this column.
// nil is accepted only for nullable columns.
func (c ColumnDefinition) Coerce(table string, value interface{}) (data.Value, error) {
	if value == nil {
		if c.Nullable {
			return data.Null(), nil
		}
		return data.Value{}, &dberrors.ConstraintError{
			Table:      table,
			Column:     c.Name,
			Constraint: "not_null",
			Reason:     "null is not allowed",
		}
	}

	switch c.Kind {
	case ColumnVarchar:
		s, ok := value.(string)
		if !ok {
			return data.Value{}, dberrors.NewTypeMismatch(table, c.Name, value, "string")
		}
		if c.MaxLength > 0 && utf8.RuneCountInString(s) > c.MaxLength {
			return data.Value{}, &dberrors.ConstraintError{
				Table:      table,
				Column:     c.Name,
				Constraint: "max_length",
				Reason:     fmt.Sprintf("longer than %d characters", c.MaxLength),
			}
		}
		return data.StringValue(s), nil

	case ColumnInteger:
		n, ok := normalizeToInt64(value)
		if !ok {
			return data.Value{}, dberrors.NewTypeMismatch(table, c.Name, value, "integer")
		}
		return data.NumberValue(n), nil

	case ColumnBoolean:
		b, ok := value.(bool)
		if !ok {
			return data.Value{}, dberrors.NewTypeMismatch(table, c.Name, value, "boolean")
		}
		return data.BoolValue(b), nil
	}

	return data.Value{}, fmt.Errorf("unknown column kind %q", c.Kind)
}

// normalizeToInt64 converts the numeric types produced by JSON decoding and Go
// callers to int64. Fractions and out of range values are rejected.
func normalizeToInt64(val interface{}) (int64, bool) {
	switch v := val.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
