// Package template renders evaluation results through Handlebars templates.
//
// The command line uses it for --template output. A result template sees
// these fields:
//
//	expression   the evaluated source
//	result       the result value
//	type         the CEL type name of the result (int, double, list, ...)
//	mode         python or strict
//	duration_ms  evaluation time in milliseconds
//	error, kind  the failure message and kind, when evaluation failed
//
// Example usage:
//
//	engine := template.NewEngine()
//	out, err := engine.RenderResult("{{expression}} = {{result}} ({{type}})", template.Result{
//	    Expression: "1 + 2.5",
//	    Value:      3.5,
//	})
//	// Output: 1 + 2.5 = 3.5 (double)
//
// Built-in helpers:
//   - uppercase, lowercase, trim - string transforms
//   - default - Return default value if first arg is empty
//   - eq, ne - compare the printed forms of two values
//   - gt, lt - numeric comparison; false for non-numbers
//   - contains - Check if string contains substring
//   - join - Join array elements with separator
//   - len - Get length of array/string/map
//   - type - CEL type name of a value
//   - json - compact JSON of a value; use {{{json x}}} to skip HTML escaping
//
// Helpers are bound to each compiled template rather than registered
// process-wide.
package template
