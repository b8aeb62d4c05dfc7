package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueTypeCoerce(t *testing.T) {
	tests := []struct {
		name string
		vt   ValueType
		in   any
		want any
	}{
		{name: "id from string", vt: ValueID, in: "42", want: "42"},
		{name: "id from int", vt: ValueID, in: 42, want: "42"},
		{name: "id from json number", vt: ValueID, in: float64(42), want: "42"},
		{name: "id from uint64", vt: ValueID, in: uint64(18446744073709551615), want: "18446744073709551615"},
		{name: "string", vt: ValueString, in: "Big", want: "Big"},
		{name: "int keeps int", vt: ValueInt, in: 1999, want: 1999},
		{name: "int from json number", vt: ValueInt, in: float64(1999), want: int64(1999)},
		{name: "float from int", vt: ValueFloat, in: 7, want: float64(7)},
		{name: "float", vt: ValueFloat, in: 7.5, want: 7.5},
		{name: "boolean", vt: ValueBoolean, in: true, want: true},
		{name: "nil passes through", vt: ValueInt, in: nil, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.vt.Coerce(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValueTypeCoerce_Rejects(t *testing.T) {
	tests := []struct {
		name string
		vt   ValueType
		in   any
		msg  string
	}{
		{name: "string from bool", vt: ValueString, in: true, msg: "expected String, got bool"},
		{name: "string from int", vt: ValueString, in: 42, msg: "expected String, got int"},
		{name: "int from string", vt: ValueInt, in: "abc", msg: "expected Int, got string"},
		{name: "int from fraction", vt: ValueInt, in: 1.5, msg: "expected Int, got float64"},
		{name: "id from fraction", vt: ValueID, in: 4.2, msg: "expected ID, got float64"},
		{name: "id from bool", vt: ValueID, in: false, msg: "expected ID, got bool"},
		{name: "float from string", vt: ValueFloat, in: "7.5", msg: "expected Float, got string"},
		{name: "boolean from string", vt: ValueBoolean, in: "true", msg: "expected Boolean, got string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.vt.Coerce(tt.in)
			require.Error(t, err)
			assert.EqualError(t, err, tt.msg)
		})
	}
}
