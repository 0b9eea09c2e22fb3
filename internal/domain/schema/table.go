package schema

import (
	"time"
)

// FieldType is the abstract type tag of a field ("string", "number", "boolean")
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
)

// FieldSpec is one named, typed field. The name is the field's identity
// across schema versions; its type only changes as a remove + add pair.
type FieldSpec struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

func (f FieldSpec) String() string {
	return f.Name + ":" + string(f.Type)
}

// TableSchema is the catalog's record of a table's current shape.
// Values handed out by the catalog are copies and never change underneath
// the holder.
type TableSchema struct {
	ID        int64       `json:"id"`
	TableName string      `json:"table_name"`
	Fields    []FieldSpec `json:"fields"`
	CreatedAt time.Time   `json:"created_date"`
	UpdatedAt time.Time   `json:"updated_date"`
}

// Clone returns a copy that shares no memory with s
func (s TableSchema) Clone() TableSchema {
	cp := s
	cp.Fields = CloneFields(s.Fields)
	return cp
}

// Field looks a field up by name
func (s TableSchema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// FieldNames returns the declared field names in order
func (s TableSchema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Columns resolves every field to its column definition
func (s TableSchema) Columns() ([]ColumnDefinition, error) {
	return ResolveFields(s.Fields)
}

func CloneFields(fields []FieldSpec) []FieldSpec {
	if fields == nil {
		return []FieldSpec{}
	}
	cp := make([]FieldSpec, len(fields))
	copy(cp, fields)
	return cp
}
