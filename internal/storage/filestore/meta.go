package filestore

import (
	"github.com/leengari/dyntable/internal/domain/data"
	"github.com/leengari/dyntable/internal/domain/schema"
)

// tableMeta is the on-disk meta.json of one table
type tableMeta struct {
	Name         string       `json:"name"`
	Columns      []columnMeta `json:"columns"`
	LastInsertID int64        `json:"last_insert_id"`
	RowCount     int64        `json:"row_count"`
}

type columnMeta struct {
	Name      string            `json:"name"`
	Type      schema.FieldType  `json:"type"`
	Kind      schema.ColumnKind `json:"kind"`
	MaxLength int               `json:"max_length,omitempty"`
	Nullable  bool              `json:"nullable"`
	Default   data.Value        `json:"default"`
}

// rowRecord is one element of data.json
type rowRecord struct {
	ID   int64                 `json:"id"`
	Data map[string]data.Value `json:"data"`
}

func toColumnMeta(col schema.ColumnDefinition) columnMeta {
	return columnMeta{
		Name:      col.Name,
		Type:      col.Field,
		Kind:      col.Kind,
		MaxLength: col.MaxLength,
		Nullable:  col.Nullable,
		Default:   col.Default,
	}
}
