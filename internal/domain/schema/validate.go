package schema

import (
	"fmt"
	"regexp"
	"strings"

	dberrors "github.com/leengari/dyntable/internal/domain/errors"
)

// RowIDColumn is the implicit identifier column every physical table carries
const RowIDColumn = "id"

// MaxTableNameLength bounds table names in bytes
const MaxTableNameLength = 63

var (
	tableNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
	fieldNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// ValidateTableName checks a name is usable as a physical table name.
// Names starting with "_" or "sqlite_" are reserved for internal tables.
func ValidateTableName(name string) error {
	if name == "" {
		return &dberrors.SchemaShapeError{Reason: "table name is required"}
	}
	if len(name) > MaxTableNameLength {
		return &dberrors.SchemaShapeError{Table: name, Reason: fmt.Sprintf("table name longer than %d bytes", MaxTableNameLength)}
	}
	if !tableNameRegex.MatchString(name) {
		return &dberrors.SchemaShapeError{Table: name, Reason: "table name must start with a letter and contain only letters, digits and underscores"}
	}
	if strings.HasPrefix(strings.ToLower(name), "sqlite_") {
		return &dberrors.SchemaShapeError{Table: name, Reason: "table name prefix sqlite_ is reserved"}
	}
	return nil
}

// NormalizeFields validates a requested field list and returns a copy with
// every type tag lowercased. Checks, in order: name syntax, reserved names,
// case-insensitive uniqueness, then type resolution.
func NormalizeFields(fields []FieldSpec) ([]FieldSpec, error) {
	out := make([]FieldSpec, 0, len(fields))
	seen := make(map[string]string, len(fields))

	for i, f := range fields {
		if f.Name == "" {
			return nil, &dberrors.SchemaShapeError{Reason: fmt.Sprintf("field %d has no name", i)}
		}
		if !fieldNameRegex.MatchString(f.Name) {
			return nil, &dberrors.SchemaShapeError{Field: f.Name, Reason: "field name must contain only letters, digits and underscores"}
		}
		folded := strings.ToLower(f.Name)
		if folded == RowIDColumn {
			return nil, &dberrors.SchemaShapeError{Field: f.Name, Reason: "field name is reserved for the row identifier"}
		}
		if prev, dup := seen[folded]; dup {
			return nil, &dberrors.SchemaShapeError{Field: f.Name, Reason: fmt.Sprintf("duplicate field name (conflicts with %q)", prev)}
		}
		seen[folded] = f.Name

		norm := FieldSpec{Name: f.Name, Type: FieldType(strings.ToLower(string(f.Type)))}
		if _, err := ResolveField(norm); err != nil {
			return nil, &dberrors.FieldTypeError{Field: f.Name, Type: string(f.Type)}
		}
		out = append(out, norm)
	}

	return out, nil
}

// DecodeFields converts a generically decoded JSON value into a field list.
// It expects a list of objects each holding string "name" and "type" members.
func DecodeFields(raw interface{}) ([]FieldSpec, error) {
	if raw == nil {
		return []FieldSpec{}, nil
	}

	list, ok := raw.([]interface{})
	if !ok {
		return nil, &dberrors.SchemaShapeError{Reason: "fields must be a list of field definitions"}
	}

	fields := make([]FieldSpec, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, &dberrors.SchemaShapeError{Reason: fmt.Sprintf("field %d must be an object with name and type", i)}
		}
		name, ok := obj["name"].(string)
		if !ok {
			return nil, &dberrors.SchemaShapeError{Reason: fmt.Sprintf("field %d: name must be a string", i)}
		}
		typ, ok := obj["type"].(string)
		if !ok {
			return nil, &dberrors.SchemaShapeError{Field: name, Reason: "type must be a string"}
		}
		fields = append(fields, FieldSpec{Name: name, Type: FieldType(typ)})
	}

	return fields, nil
}
