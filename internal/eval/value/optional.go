package value

import (
	"github.com/aescanero/dago-cel/internal/eval/celerr"
)

// Optional is either Present(value) or Absent. A present null is distinct
// from absence.
type Optional struct {
	value   Value
	present bool
}

// OptionalOf converts v and wraps it as a present optional
func OptionalOf(v interface{}) (*Optional, error) {
	converted, err := ConvertIn(v)
	if err != nil {
		return nil, err
	}
	return Present(converted), nil
}

// OptionalNone returns an absent optional
func OptionalNone() *Optional {
	return &Optional{}
}

// Present wraps an already converted value
func Present(v Value) *Optional {
	if v == nil {
		v = Null{}
	}
	return &Optional{value: v, present: true}
}

func (o *Optional) Kind() Kind { return KindOptional }

// HasValue reports whether the optional is present
func (o *Optional) HasValue() bool {
	return o != nil && o.present
}

// Bool is the truthiness of the optional: present is true
func (o *Optional) Bool() bool {
	return o.HasValue()
}

// Inner returns the wrapped Value, or nil when absent
func (o *Optional) Inner() Value {
	if !o.HasValue() {
		return nil
	}
	return o.value
}

// Value returns the host form of the wrapped value. It fails with
// InvalidArgument when the optional is absent.
func (o *Optional) Value() (interface{}, error) {
	if !o.HasValue() {
		return nil, celerr.New(celerr.KindInvalidArgument, "optional.none() dereference")
	}
	return ConvertOut(o.value), nil
}

// OrValue returns the host form of the wrapped value, or def when absent
func (o *Optional) OrValue(def interface{}) interface{} {
	if !o.HasValue() {
		return def
	}
	return ConvertOut(o.value)
}

// OrOptional returns o when present, otherwise other
func (o *Optional) OrOptional(other *Optional) *Optional {
	if o.HasValue() {
		return &Optional{value: o.value, present: true}
	}
	if other == nil {
		return OptionalNone()
	}
	return &Optional{value: other.value, present: other.present}
}

func (o *Optional) String() string {
	if !o.HasValue() {
		return "OptionalValue.none()"
	}
	return "OptionalValue(" + o.value.String() + ")"
}
