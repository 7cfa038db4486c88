package cel

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/aescanero/dago-cel/internal/eval/celerr"
	"github.com/aescanero/dago-cel/internal/eval/value"
)

// Context binds variables and host functions for evaluation. A Context may
// be reused across evaluations but must not be mutated while an evaluation
// that uses it is running.
type Context struct {
	variables map[string]value.Value
	functions map[string]*hostFunc
}

// NewContext creates a Context from initial variables and functions. Either
// map may be nil.
func NewContext(variables, functions map[string]interface{}) (*Context, error) {
	c := &Context{
		variables: make(map[string]value.Value, len(variables)),
		functions: make(map[string]*hostFunc, len(functions)),
	}
	for name, v := range variables {
		if err := c.AddVariable(name, v); err != nil {
			return nil, err
		}
	}
	for name, fn := range functions {
		if err := c.AddFunction(name, fn); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// AddVariable converts v and binds it to name, replacing any previous binding
func (c *Context) AddVariable(name string, v interface{}) error {
	if name == "" {
		return celerr.New(celerr.KindInvalidArgument, "variable name must not be empty")
	}
	converted, err := value.ConvertIn(v)
	if err != nil {
		return celerr.Wrap(celerr.KindInvalidArgument, err, "Failed to convert variable '%s': %v", name, err)
	}
	c.variables[name] = converted
	return nil
}

// AddFunction registers fn under name. fn must be a Go func; it is called
// with positional arguments only.
func (c *Context) AddFunction(name string, fn interface{}) error {
	if name == "" {
		return celerr.New(celerr.KindInvalidArgument, "function name must not be empty")
	}
	h, err := newHostFunc(name, fn)
	if err != nil {
		return err
	}
	c.functions[name] = h
	return nil
}

// Update binds every entry of m. Funcs are registered as functions, all
// other values as variables.
func (c *Context) Update(m map[string]interface{}) error {
	// sorted so that the first failure is reproducible
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v := m[name]
		var err error
		if isFunc(v) {
			err = c.AddFunction(name, v)
		} else {
			err = c.AddVariable(name, v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Variables returns the host form of every bound variable
func (c *Context) Variables() map[string]interface{} {
	out := make(map[string]interface{}, len(c.variables))
	for name, v := range c.variables {
		out[name] = value.ConvertOut(v)
	}
	return out
}

// Variable returns the host form of one variable
func (c *Context) Variable(name string) (interface{}, bool) {
	v, ok := c.variables[name]
	if !ok {
		return nil, false
	}
	return value.ConvertOut(v), true
}

// VariableNames returns the bound variable names in sorted order
func (c *Context) VariableNames() []string {
	return sortedKeys(c.variables)
}

// FunctionNames returns the registered function names in sorted order
func (c *Context) FunctionNames() []string {
	return sortedKeys(c.functions)
}

// HasFunction reports whether name is registered
func (c *Context) HasFunction(name string) bool {
	_, ok := c.functions[name]
	return ok
}

// Clone returns an independent copy. Values are immutable, so only the
// binding tables are copied.
func (c *Context) Clone() *Context {
	out := &Context{
		variables: make(map[string]value.Value, len(c.variables)),
		functions: make(map[string]*hostFunc, len(c.functions)),
	}
	for name, v := range c.variables {
		out.variables[name] = v
	}
	for name, h := range c.functions {
		out.functions[name] = h
	}
	return out
}

func (c *Context) String() string {
	return fmt.Sprintf("Context(variables=%v, functions=%v)", c.VariableNames(), c.FunctionNames())
}

// snapshot copies the variable table for one evaluation
func (c *Context) snapshot() map[string]value.Value {
	out := make(map[string]value.Value, len(c.variables))
	for name, v := range c.variables {
		out[name] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func isFunc(v interface{}) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Func && !rv.IsNil()
}

// bindContext accepts the shapes callers may pass as an evaluation context:
// a *Context, a map keyed by strings, or nil.
func bindContext(vars interface{}) (*Context, error) {
	switch v := vars.(type) {
	case nil:
		return NewContext(nil, nil)
	case *Context:
		if v == nil {
			return NewContext(nil, nil)
		}
		return v, nil
	case map[string]interface{}:
		c, _ := NewContext(nil, nil)
		if err := c.Update(v); err != nil {
			return nil, err
		}
		return c, nil
	}

	rv := reflect.ValueOf(vars)
	if rv.Kind() != reflect.Map {
		return nil, celerr.New(celerr.KindInvalidArgument,
			"evaluation context must be a Context or a map, got %T", vars)
	}
	entries := make(map[string]interface{}, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key := iter.Key()
		if key.Kind() == reflect.Interface && !key.IsNil() {
			key = key.Elem()
		}
		if key.Kind() != reflect.String {
			return nil, celerr.New(celerr.KindInvalidArgument, "Keys must be strings, got %v", iter.Key())
		}
		entries[key.String()] = iter.Value().Interface()
	}
	c, _ := NewContext(nil, nil)
	if err := c.Update(entries); err != nil {
		return nil, err
	}
	return c, nil
}
