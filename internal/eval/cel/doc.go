// Package cel evaluates Common Expression Language expressions against Go
// values.
//
// Expressions are parsed once into a Program and executed against a Context
// holding variables and Go functions. Results come back as plain Go values:
// int64, uint64, float64, string, []byte, bool, nil, time.Time,
// time.Duration, []interface{}, map[string]interface{} (or
// map[interface{}]interface{} for non-string keys) and *OptionalValue.
//
// Example usage:
//
//	result, err := cel.Evaluate("price * quantity", map[string]interface{}{
//	    "price":    10,
//	    "quantity": 5,
//	})
//	// result == int64(50)
//
//	program, err := cel.Compile("double_it(x) > 3")
//	ctx, err := cel.NewContext(
//	    map[string]interface{}{"x": 2},
//	    map[string]interface{}{"double_it": func(v int) int { return v * 2 }},
//	)
//	result, err = program.Execute(ctx) // true
//
// Evaluation modes:
//   - ModePython (default): when a double literal or double variable takes
//     part, integer literals and integer variables are evaluated as doubles,
//     so 1 + 2.5 == 3.5. Without doubles integers stay integers.
//     Literals inside comprehension macros (map, filter, all, exists) are
//     not promoted.
//   - ModeStrict: CEL typing. 1 + 2.5 fails with a type mismatch.
//
// Logical && and || require bool operands in both modes; an operand that
// short-circuits the result may still be an error, as CEL defines.
//
// Every failure is a *celerr.Error whose Kind is one of ParseFailure,
// CompileFailure, UndefinedReference, TypeMismatch, FunctionError,
// InvalidArgument or EvaluationFailure. Panics raised by the interpreter or
// by Go functions are contained and reported as errors.
//
// Evaluator adds a program cache keyed by expression source for callers
// that evaluate the same expressions repeatedly.
package cel
