package data

import (
	"encoding/json"
	"testing"

	"gotest.tools/v3/assert"
)

func TestValueVariants(t *testing.T) {
	assert.Assert(t, Value{}.IsNull())
	assert.Equal(t, Null().Interface(), nil)

	s, ok := StringValue("alice").Str()
	assert.Assert(t, ok)
	assert.Equal(t, s, "alice")

	n, ok := NumberValue(30).Int()
	assert.Assert(t, ok)
	assert.Equal(t, n, int64(30))

	_, ok = NumberValue(30).Bool()
	assert.Assert(t, !ok)

	b, ok := BoolValue(true).Bool()
	assert.Assert(t, ok)
	assert.Assert(t, b)

	assert.Equal(t, NumberValue(7).Kind(), KindNumber)
	assert.Equal(t, StringValue("x").String(), `"x"`)
	assert.Equal(t, Null().String(), "NULL")
}

func TestRowJSON(t *testing.T) {
	row := NewRow(4, map[string]Value{
		"age":    NumberValue(30),
		"active": BoolValue(true),
		"email":  Null(),
	})

	out, err := json.Marshal(row)
	assert.NilError(t, err)
	assert.Equal(t, string(out), `{"active":true,"age":30,"email":null,"id":4}`)
}

func TestValueKeepsLargeIntegers(t *testing.T) {
	for _, raw := range []string{"9007199254740993", "-9007199254740993", "9223372036854775807"} {
		t.Run(raw, func(t *testing.T) {
			var v Value
			assert.NilError(t, json.Unmarshal([]byte(raw), &v))
			out, err := json.Marshal(v)
			assert.NilError(t, err)
			assert.Equal(t, string(out), raw)
		})
	}

	var v Value
	err := json.Unmarshal([]byte("9223372036854775808"), &v)
	assert.ErrorContains(t, err, "whole number")
}

func TestValueRejectsFractions(t *testing.T) {
	var v Value
	err := json.Unmarshal([]byte("1.5"), &v)
	assert.ErrorContains(t, err, "whole number")

	err = json.Unmarshal([]byte(`{"a":1}`), &v)
	assert.ErrorContains(t, err, "unsupported")
}
