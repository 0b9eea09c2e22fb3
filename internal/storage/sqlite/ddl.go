package sqlite

import (
	"fmt"
	"strings"

	"github.com/leengari/dyntable/internal/domain/data"
	"github.com/leengari/dyntable/internal/domain/schema"
)

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// columnDDL renders a column definition for CREATE TABLE / ADD COLUMN.
// A NOT NULL column always carries a default so it can be added to a table
// that already has rows.
func columnDDL(col schema.ColumnDefinition) string {
	var b strings.Builder
	b.WriteString(quoteIdent(col.Name))
	b.WriteByte(' ')

	switch col.Kind {
	case schema.ColumnVarchar:
		fmt.Fprintf(&b, "VARCHAR(%d)", col.MaxLength)
	case schema.ColumnInteger:
		b.WriteString("INTEGER")
	case schema.ColumnBoolean:
		b.WriteString("BOOLEAN")
	}

	if col.Nullable {
		b.WriteString(" NULL")
	} else {
		b.WriteString(" NOT NULL")
	}
	if !col.Default.IsNull() {
		b.WriteString(" DEFAULT ")
		b.WriteString(literal(col.Default))
	}
	return b.String()
}

func literal(v data.Value) string {
	switch v.Kind() {
	case data.KindString:
		s, _ := v.Str()
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	case data.KindNumber:
		n, _ := v.Int()
		return fmt.Sprintf("%d", n)
	case data.KindBoolean:
		if b, _ := v.Bool(); b {
			return "1"
		}
		return "0"
	default:
		return "NULL"
	}
}

// decodeCell turns a driver value into a typed cell. go-sqlite3 reports
// BOOLEAN columns as bool or int64 depending on how the value was written,
// and text as string or []byte.
func decodeCell(col schema.ColumnDefinition, raw interface{}) (data.Value, error) {
	if raw == nil {
		return data.Null(), nil
	}

	switch col.Kind {
	case schema.ColumnVarchar:
		switch v := raw.(type) {
		case string:
			return data.StringValue(v), nil
		case []byte:
			return data.StringValue(string(v)), nil
		}
	case schema.ColumnInteger:
		switch v := raw.(type) {
		case int64:
			return data.NumberValue(v), nil
		case float64:
			if v == float64(int64(v)) {
				return data.NumberValue(int64(v)), nil
			}
		}
	case schema.ColumnBoolean:
		switch v := raw.(type) {
		case bool:
			return data.BoolValue(v), nil
		case int64:
			return data.BoolValue(v != 0), nil
		}
	}

	return data.Value{}, fmt.Errorf("column %s: cannot decode %T as %s", col.Name, raw, col.Kind)
}

func containsFold(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// isInternal reports tables the engine never exposes: SQLite's own and
// anything prefixed with an underscore (the catalog lives there).
func isInternal(name string) bool {
	return strings.HasPrefix(name, "_") || strings.HasPrefix(strings.ToLower(name), "sqlite_")
}
