package schema

import "fmt"

// SchemaDiff classifies fields between two versions of a table.
// A retyped field appears in both ToRemove (old type) and ToAdd (new type).
type SchemaDiff struct {
	Unchanged []FieldSpec
	ToAdd     []FieldSpec
	ToRemove  []FieldSpec
}

// Diff compares two field lists by name. Output slices follow the order of
// the list each field came from.
func Diff(current, requested []FieldSpec) SchemaDiff {
	oldTypes := make(map[string]FieldType, len(current))
	for _, f := range current {
		oldTypes[f.Name] = f.Type
	}
	newTypes := make(map[string]FieldType, len(requested))
	for _, f := range requested {
		newTypes[f.Name] = f.Type
	}

	d := SchemaDiff{
		Unchanged: []FieldSpec{},
		ToAdd:     []FieldSpec{},
		ToRemove:  []FieldSpec{},
	}

	for _, f := range current {
		newType, kept := newTypes[f.Name]
		switch {
		case !kept:
			d.ToRemove = append(d.ToRemove, f)
		case newType == f.Type:
			d.Unchanged = append(d.Unchanged, f)
		default:
			d.ToRemove = append(d.ToRemove, f)
		}
	}

	for _, f := range requested {
		oldType, existed := oldTypes[f.Name]
		if !existed || oldType != f.Type {
			d.ToAdd = append(d.ToAdd, f)
		}
	}

	return d
}

// IsEmpty reports whether applying the diff would change nothing
func (d SchemaDiff) IsEmpty() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0
}

// OpAction names a structural storage change
type OpAction string

const (
	OpDropColumn OpAction = "drop_column"
	OpAddColumn  OpAction = "add_column"
)

// ColumnOp is one physical column change
type ColumnOp struct {
	Action OpAction  `json:"action"`
	Field  FieldSpec `json:"field"`
}

func (op ColumnOp) String() string {
	return fmt.Sprintf("%s %s", op.Action, op.Field)
}

// Plan orders the diff into column operations: every drop precedes every add,
// so a retyped field's name is free before it is added back.
func (d SchemaDiff) Plan() []ColumnOp {
	ops := make([]ColumnOp, 0, len(d.ToRemove)+len(d.ToAdd))
	for _, f := range d.ToRemove {
		ops = append(ops, ColumnOp{Action: OpDropColumn, Field: f})
	}
	for _, f := range d.ToAdd {
		ops = append(ops, ColumnOp{Action: OpAddColumn, Field: f})
	}
	return ops
}
