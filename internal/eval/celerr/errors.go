package celerr

import (
	"errors"
	"fmt"
)

// Kind is the externally visible failure category
type Kind int

const (
	KindParseFailure Kind = iota + 1
	KindCompileFailure
	KindUndefinedReference
	KindTypeMismatch
	KindFunctionError
	KindInvalidArgument
	KindEvaluationFailure
)

var kindNames = map[Kind]string{
	KindParseFailure:       "ParseFailure",
	KindCompileFailure:     "CompileFailure",
	KindUndefinedReference: "UndefinedReference",
	KindTypeMismatch:       "TypeMismatch",
	KindFunctionError:      "FunctionError",
	KindInvalidArgument:    "InvalidArgument",
	KindEvaluationFailure:  "EvaluationFailure",
}

// String returns the kind name
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Sentinels for errors.Is comparisons.
var (
	ErrParseFailure       = &Error{Kind: KindParseFailure}
	ErrCompileFailure     = &Error{Kind: KindCompileFailure}
	ErrUndefinedReference = &Error{Kind: KindUndefinedReference}
	ErrTypeMismatch       = &Error{Kind: KindTypeMismatch}
	ErrFunctionError      = &Error{Kind: KindFunctionError}
	ErrInvalidArgument    = &Error{Kind: KindInvalidArgument}
	ErrEvaluationFailure  = &Error{Kind: KindEvaluationFailure}
)

// Error is a failure record: one kind, a message and an optional cause
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind. A target with a
// message only matches an identical message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// New creates an error of the given kind
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind that keeps cause for errors.Unwrap
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the kind of err, or 0 when err is not (and does not wrap) an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
