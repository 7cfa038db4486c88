package cel

import (
	"github.com/aescanero/dago-cel/internal/eval/value"
)

// OptionalValue is a value that is either present or absent. It is what
// optional.of(...) and optional.none() evaluate to, and it may be bound as
// a variable.
type OptionalValue = value.Optional

// OptionalOf returns a present optional holding v. v may be nil, which is
// present and distinct from OptionalNone.
func OptionalOf(v interface{}) (*OptionalValue, error) {
	return value.OptionalOf(v)
}

// OptionalNone returns an absent optional
func OptionalNone() *OptionalValue {
	return value.OptionalNone()
}
