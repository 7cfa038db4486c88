package cel

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/aescanero/dago-cel/internal/eval/celerr"
	"github.com/aescanero/dago-cel/internal/eval/value"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// maxHostArity is the largest argument count declared for host functions
const maxHostArity = 8

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// hostFunc is a registered Go function. Supported result shapes are (),
// (T), (error) and (T, error).
type hostFunc struct {
	name string
	fn   reflect.Value
}

func newHostFunc(name string, fn interface{}) (*hostFunc, error) {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, celerr.New(celerr.KindInvalidArgument, "function '%s' must be callable, got %T", name, fn)
	}
	t := rv.Type()
	switch {
	case t.NumOut() > 2:
		return nil, celerr.New(celerr.KindInvalidArgument, "function '%s' returns %d values, at most 2 are supported", name, t.NumOut())
	case t.NumOut() == 2 && t.Out(1) != errorType:
		return nil, celerr.New(celerr.KindInvalidArgument, "function '%s' must return error as its second result", name)
	}
	return &hostFunc{name: name, fn: rv}, nil
}

// call invokes the function. Every failure, including a panic inside the
// function, is returned as an error.
func (h *hostFunc) call(args []value.Value) (out value.Value, err error) {
	t := h.fn.Type()
	if err := checkArity(t, len(args)); err != nil {
		return nil, err
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		param := paramType(t, i)
		rv, err := convertArg(value.ConvertOut(arg), param)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		in[i] = rv
	}

	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%v", r)
		}
	}()
	results := h.fn.Call(in)
	return resultOf(results)
}

func checkArity(t reflect.Type, n int) error {
	if t.IsVariadic() {
		if n < t.NumIn()-1 {
			return fmt.Errorf("takes at least %d arguments but %d were given", t.NumIn()-1, n)
		}
		return nil
	}
	if n != t.NumIn() {
		return fmt.Errorf("takes %d arguments but %d were given", t.NumIn(), n)
	}
	return nil
}

func paramType(t reflect.Type, i int) reflect.Type {
	if t.IsVariadic() && i >= t.NumIn()-1 {
		return t.In(t.NumIn() - 1).Elem()
	}
	return t.In(i)
}

// convertArg adapts a host value to a parameter type. Numeric values convert
// between kinds only when the conversion is lossless.
func convertArg(host interface{}, param reflect.Type) (reflect.Value, error) {
	if host == nil {
		switch param.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice:
			return reflect.Zero(param), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use null as %s", param)
	}
	rv := reflect.ValueOf(host)
	if rv.Type().AssignableTo(param) {
		return rv, nil
	}
	if isNumber(rv.Kind()) && isNumber(param.Kind()) {
		converted := rv.Convert(param)
		if converted.Convert(rv.Type()).Interface() == host {
			return converted, nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use %v as %s without losing precision", host, param)
	}
	if rv.Kind() == param.Kind() && rv.Type().ConvertibleTo(param) {
		return rv.Convert(param), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", rv.Type(), param)
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func resultOf(results []reflect.Value) (value.Value, error) {
	switch len(results) {
	case 0:
		return value.Null{}, nil
	case 2:
		if err, _ := results[1].Interface().(error); err != nil {
			return nil, err
		}
	case 1:
		if results[0].Type() == errorType {
			if err, _ := results[0].Interface().(error); err != nil {
				return nil, err
			}
			return value.Null{}, nil
		}
	}
	return value.ConvertIn(results[0].Interface())
}

// dispatcher routes interpreter calls to the host functions of one
// evaluation. Failures travel through the interpreter as hostFault errors
// so the one that ends the evaluation can be reported as a FunctionError.
type dispatcher struct{}

type hostFault struct {
	name  string
	cause error
}

func (f *hostFault) Error() string { return f.cause.Error() }

func (f *hostFault) Unwrap() error { return f.cause }

func (d *dispatcher) fail(name string, err error) ref.Val {
	return types.WrapErr(&hostFault{name: name, cause: err})
}

// fault returns the host failure err carries, if any
func (d *dispatcher) fault(err error) *hostFault {
	var f *hostFault
	if errors.As(err, &f) {
		return f
	}
	return nil
}

func (d *dispatcher) op(h *hostFunc) func(args ...ref.Val) ref.Val {
	return func(args ...ref.Val) ref.Val {
		in := make([]value.Value, len(args))
		for i, arg := range args {
			v, err := value.FromCEL(arg)
			if err != nil {
				return d.fail(h.name, err)
			}
			in[i] = v
		}
		out, err := h.call(in)
		if err != nil {
			return d.fail(h.name, err)
		}
		return value.ToCEL(out)
	}
}

// declarations declares every function of c with dyn overloads for each
// supported arity, all bound to the same dispatching op.
func (d *dispatcher) declarations(c *Context) []cel.EnvOption {
	opts := make([]cel.EnvOption, 0, len(c.functions))
	for _, name := range c.FunctionNames() {
		h := c.functions[name]
		fnOpts := make([]cel.FunctionOpt, 0, maxHostArity+2)
		for arity := 0; arity <= maxHostArity; arity++ {
			args := make([]*cel.Type, arity)
			for i := range args {
				args[i] = cel.DynType
			}
			fnOpts = append(fnOpts, cel.Overload(fmt.Sprintf("%s_host_%d", name, arity), args, cel.DynType))
		}
		fnOpts = append(fnOpts, cel.SingletonFunctionBinding(d.op(h)))
		opts = append(opts, cel.Function(name, fnOpts...))
	}
	return opts
}
