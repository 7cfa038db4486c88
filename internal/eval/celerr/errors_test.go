package celerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Is(t *testing.T) {
	err := New(KindTypeMismatch, "bad %s", "operand")

	assert.True(t, errors.Is(err, ErrTypeMismatch))
	assert.False(t, errors.Is(err, ErrParseFailure))
	assert.True(t, errors.Is(err, &Error{Kind: KindTypeMismatch, Message: "bad operand"}))
	assert.False(t, errors.Is(err, &Error{Kind: KindTypeMismatch, Message: "other"}))

	wrapped := fmt.Errorf("request 7: %w", err)
	assert.True(t, errors.Is(wrapped, ErrTypeMismatch))
	assert.Equal(t, KindTypeMismatch, KindOf(wrapped))
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
}

func TestWrap_Unwrap(t *testing.T) {
	cause := errors.New("no such overload")
	err := Wrap(KindTypeMismatch, cause, "wrapped: %v", cause)

	assert.Equal(t, "wrapped: no such overload", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "TypeMismatch", (&Error{Kind: KindTypeMismatch}).Error())
}

func TestCategorize(t *testing.T) {
	tests := map[string]Category{
		"no such attribute(s): x":                 CategoryMissingAttribute,
		"no such overload":                        CategoryNoOverload,
		"found no matching overload for '_+_'":    CategoryNoOverload,
		"division by zero":                        CategoryRuntime,
		"index '5' out of range in list size '2'": CategoryRuntime,
		"something else":                          CategoryUnknown,
	}
	for msg, want := range tests {
		assert.Equal(t, want, Categorize(msg), msg)
	}
}

func TestMessages(t *testing.T) {
	cause := errors.New("boom")

	assert.Equal(t, "Function 'f' error: boom", FunctionError("f", cause).Error())
	assert.Equal(t, "Invalid EvaluationMode: loose", InvalidMode("loose").Error())
	assert.Contains(t, UndefinedReference("x", cause).Error(), "'x'")
	assert.Contains(t, UndefinedReference("", cause).Error(), "Error: boom")
	assert.Equal(t,
		"Failed to parse expression '\"\"\"': Invalid syntax or malformed string",
		ParsePanic(`"""`, "parse", "index out of range").Error())
	assert.Contains(t, ParsePanic("x", "execute", "nil map").Error(), "Internal parser error")
}

func TestTypeMismatch(t *testing.T) {
	cause := errors.New("no such overload")
	tests := []struct {
		m    *Mismatch
		want string
	}{
		{
			&Mismatch{Operator: "+", Operands: []string{"int", "double"}},
			"Unsupported addition operation: int + double. Check that both operands are compatible types (int+int, double+double, string+string, etc.). Use explicit conversion: double(value)",
		},
		{
			&Mismatch{Operator: "+", Operands: []string{"int", "uint"}},
			"Cannot mix signed and unsigned integers in arithmetic: int + uint. Use explicit conversion: int(value) or uint(value)",
		},
		{
			&Mismatch{Operator: "!", Operands: []string{"int"}},
			"Unsupported operation '!' on int. The operand has no overload for this operator.",
		},
		{
			&Mismatch{Operator: "<", Operands: []string{"string", "int"}},
			"Unsupported operation '<' between string and int. Check the CEL specification for supported operations between these types.",
		},
		{nil, "No matching overload: no such overload"},
	}
	for _, tt := range tests {
		err := TypeMismatch(tt.m, cause)
		assert.Equal(t, KindTypeMismatch, err.Kind)
		assert.Equal(t, tt.want, err.Error())
	}
}
