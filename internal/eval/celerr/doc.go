// Package celerr defines the small, stable set of failure kinds reported by
// the expression front end.
//
// Every failure leaving the evaluation layer is an *Error carrying exactly one
// Kind. Callers branch on the kind with errors.Is against the sentinels:
//
//	_, err := cel.Evaluate("1 + 2.5", nil, cel.WithMode(cel.ModeStrict))
//	if errors.Is(err, celerr.ErrTypeMismatch) {
//	    // mixed int/double arithmetic in strict mode
//	}
//
// Kinds:
//   - ParseFailure: syntax errors and contained interpreter panics
//   - CompileFailure: environment or program construction failed
//   - UndefinedReference: unresolved identifier or function
//   - TypeMismatch: no overload for the operand types, invalid mode
//   - FunctionError: a registered host function failed
//   - InvalidArgument: a value or call-site argument cannot cross the boundary
//   - EvaluationFailure: other runtime faults (division by zero, overflow, ...)
package celerr
