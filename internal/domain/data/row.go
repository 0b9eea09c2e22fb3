package data

import (
	"encoding/json"
)

// Row represents a single table row
// Key = field name, Value = cell value. ID is the implicit row identifier
// assigned by physical storage and is not part of Data.
type Row struct {
	ID   int64
	Data map[string]Value
}

// NewRow creates a new Row with the given data
func NewRow(id int64, data map[string]Value) Row {
	if data == nil {
		data = make(map[string]Value)
	}
	return Row{ID: id, Data: data}
}

// Map returns the row's fields as plain Go values
func (r Row) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(r.Data))
	for k, v := range r.Data {
		m[k] = v.Interface()
	}
	return m
}

// MarshalJSON encodes the row as a flat object of its fields plus "id".
// Field names never collide with id; it is reserved.
func (r Row) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(r.Data)+1)
	for k, v := range r.Data {
		m[k] = v
	}
	m["id"] = r.ID
	return json.Marshal(m)
}
