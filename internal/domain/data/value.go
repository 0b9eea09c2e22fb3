package data

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind tags the variant held by a Value
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBoolean
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// Value is a single cell. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  int64
	b    bool
}

func Null() Value                { return Value{} }
func StringValue(s string) Value { return Value{kind: KindString, str: s} }
func NumberValue(n int64) Value  { return Value{kind: KindNumber, num: n} }
func BoolValue(b bool) Value     { return Value{kind: KindBoolean, b: b} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload and whether v holds a string
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Int returns the number payload and whether v holds a number
func (v Value) Int() (int64, bool) { return v.num, v.kind == KindNumber }

// Bool returns the boolean payload and whether v holds a boolean
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBoolean }

// Interface returns the payload as a plain Go value (nil, string, int64 or bool)
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBoolean:
		return v.b
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.str)
	case KindNumber:
		return strconv.FormatInt(v.num, 10)
	case KindBoolean:
		return strconv.FormatBool(v.b)
	default:
		return "NULL"
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON accepts null, strings, whole numbers and booleans. Numbers
// decode through json.Number so integers beyond 2^53 survive intact.
func (v *Value) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case nil:
		*v = Null()
	case string:
		*v = StringValue(x)
	case bool:
		*v = BoolValue(x)
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return fmt.Errorf("value %s is not a whole number", x)
		}
		*v = NumberValue(n)
	default:
		return fmt.Errorf("unsupported cell value %T", raw)
	}
	return nil
}
