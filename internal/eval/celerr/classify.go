package celerr

import (
	"fmt"
	"strings"
)

// Category is the interpreter-side class of a raw runtime error message
type Category int

const (
	CategoryUnknown Category = iota
	CategoryMissingAttribute
	CategoryNoOverload
	CategoryRuntime
)

var (
	missingMarkers = []string{
		"no such attribute",
		"undeclared reference",
	}
	overloadMarkers = []string{
		"no such overload",
		"no matching overload",
		"found no matching overload",
	}
	runtimeMarkers = []string{
		"division by zero",
		"divide by zero",
		"modulus by zero",
		"overflow",
		"out of range",
		"out of bounds",
		"no such key",
		"invalid",
	}
)

// Categorize inspects a raw interpreter error message
func Categorize(msg string) Category {
	lower := strings.ToLower(msg)
	for _, m := range missingMarkers {
		if strings.Contains(lower, m) {
			return CategoryMissingAttribute
		}
	}
	for _, m := range overloadMarkers {
		if strings.Contains(lower, m) {
			return CategoryNoOverload
		}
	}
	for _, m := range runtimeMarkers {
		if strings.Contains(lower, m) {
			return CategoryRuntime
		}
	}
	return CategoryUnknown
}

// ParseFailure reports a syntax error in source
func ParseFailure(source string, cause error) *Error {
	return Wrap(KindParseFailure, cause, "Failed to parse expression '%s': %v", source, cause)
}

// ParsePanic reports a contained interpreter panic. stage is either
// "parse" or "execute".
func ParsePanic(source, stage string, recovered interface{}) *Error {
	cause := fmt.Errorf("%v", recovered)
	if stage == "execute" {
		return Wrap(KindParseFailure, cause, "Failed to execute expression '%s': Internal parser error", source)
	}
	return Wrap(KindParseFailure, cause, "Failed to parse expression '%s': Invalid syntax or malformed string", source)
}

// UndefinedReference reports an unresolved variable or function name
func UndefinedReference(name string, cause error) *Error {
	if name == "" {
		return Wrap(KindUndefinedReference, cause,
			"Undefined variable or function. Check that all variables are defined in the context and function names are spelled correctly. Error: %v", cause)
	}
	return Wrap(KindUndefinedReference, cause,
		"Undefined variable or function: '%s'. Check that the variable is defined in the context or that the function name is spelled correctly.", name)
}

// FunctionError reports a failing host function
func FunctionError(name string, cause error) *Error {
	return Wrap(KindFunctionError, cause, "Function '%s' error: %v", name, cause)
}

// InvalidMode reports an evaluation mode outside the supported set
func InvalidMode(mode string) *Error {
	return New(KindTypeMismatch, "Invalid EvaluationMode: %s", mode)
}

// Mismatch describes an operator applied to operand kinds it has no overload for
type Mismatch struct {
	Operator string
	Operands []string
}

// TypeMismatch renders a mismatch as an error naming the operation. A nil
// mismatch falls back to the raw interpreter message.
func TypeMismatch(m *Mismatch, cause error) *Error {
	if m == nil {
		return Wrap(KindTypeMismatch, cause, "No matching overload: %v", cause)
	}
	return Wrap(KindTypeMismatch, cause, "%s", m.describe())
}

func (m *Mismatch) describe() string {
	if len(m.Operands) == 1 {
		return fmt.Sprintf("Unsupported operation '%s' on %s. The operand has no overload for this operator.", m.Operator, m.Operands[0])
	}
	if len(m.Operands) != 2 {
		return fmt.Sprintf("Unsupported operation '%s' between %s.", m.Operator, strings.Join(m.Operands, ", "))
	}

	lhs, rhs := m.Operands[0], m.Operands[1]
	mixesSign := (lhs == "int" && rhs == "uint") || (lhs == "uint" && rhs == "int")
	mixesFloat := (lhs == "int" && rhs == "double") || (lhs == "double" && rhs == "int")

	switch m.Operator {
	case "+":
		if mixesSign {
			return fmt.Sprintf("Cannot mix signed and unsigned integers in arithmetic: %s + %s. Use explicit conversion: int(value) or uint(value)", lhs, rhs)
		}
		msg := fmt.Sprintf("Unsupported addition operation: %s + %s. Check that both operands are compatible types (int+int, double+double, string+string, etc.)", lhs, rhs)
		if mixesFloat {
			msg += ". Use explicit conversion: double(value)"
		}
		return msg
	case "*":
		return fmt.Sprintf("Unsupported multiplication operation: %s * %s. Ensure both operands are numeric and of compatible types. Use explicit conversion if needed: double(value)*double(value)", lhs, rhs)
	case "-":
		return fmt.Sprintf("Unsupported subtraction operation: %s - %s. Ensure both operands are numeric and of compatible types.", lhs, rhs)
	case "/":
		return fmt.Sprintf("Unsupported division operation: %s / %s. Ensure both operands are numeric and of compatible types.", lhs, rhs)
	case "&&", "||":
		return fmt.Sprintf("Unsupported operation '%s' between %s and %s. Logical operators require bool operands.", m.Operator, lhs, rhs)
	}
	if mixesSign {
		return fmt.Sprintf("Unsupported operation '%s' between %s and %s. Use explicit conversion: int(value) or uint(value)", m.Operator, lhs, rhs)
	}
	return fmt.Sprintf("Unsupported operation '%s' between %s and %s. Check the CEL specification for supported operations between these types.", m.Operator, lhs, rhs)
}
