// Package syntax inspects parsed CEL expression trees.
//
// Trees are the protobuf form produced by the cel-go parser. Classify maps a
// node onto a small set of tagged variants (literal, ident, select, call,
// unary/binary operator, ternary, index, list, map, message, comprehension)
// so callers can reason structurally instead of over source text.
//
// The package also provides scope-aware queries used for diagnostics:
// FreeIdents, CallNames and FindMismatch.
package syntax
