// Package promote rewrites parsed expressions so that integer arithmetic
// mixes with doubles the way a dynamically typed host expects.
//
// Promotion is all or nothing per evaluation. When the tree holds a double
// literal, or a top-level variable is bound to a double, every integer
// literal becomes a double and every top-level integer variable is bound as
// a double. Otherwise nothing changes and integer results stay integers.
//
// Only numeric literal nodes are touched, so string literals such as "123"
// keep their value. Literals inside list and map literals, inside
// comprehension macros (map, filter, all, exists) and in index position are
// left alone, which keeps list indexing and collection contents intact.
// Mixed arithmetic inside a macro body therefore still fails.
//
// The rewrite works on a copy; the caller's tree is never mutated, so a
// compiled program can be promoted any number of times without compounding.
package promote
