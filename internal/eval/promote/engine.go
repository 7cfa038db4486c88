package promote

import (
	"github.com/aescanero/dago-cel/internal/eval/syntax"
	"github.com/aescanero/dago-cel/internal/eval/value"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
	"google.golang.org/protobuf/proto"
)

// Result is the outcome of Apply
type Result struct {
	// Expr is the tree to evaluate. It is the input tree when nothing was
	// promoted and a rewritten copy otherwise.
	Expr *exprpb.Expr

	// Variables are the bindings to evaluate against
	Variables map[string]value.Value

	// Promoted reports whether the decision step selected promotion
	Promoted bool

	// Literals and Vars count the rewritten literal nodes and variables
	Literals int
	Vars     int
}

// Apply decides whether promotion is needed for e evaluated against vars and
// performs it. Neither e nor vars is modified.
func Apply(e *exprpb.Expr, vars map[string]value.Value) Result {
	if !HasDouble(e, vars) {
		return Result{Expr: e, Variables: vars}
	}
	expr, literals := RewriteLiterals(e)
	promoted, count := PromoteVariables(vars)
	return Result{
		Expr:      expr,
		Variables: promoted,
		Promoted:  true,
		Literals:  literals,
		Vars:      count,
	}
}

// HasDouble reports whether e contains a double literal anywhere, or vars
// binds a double at the top level.
func HasDouble(e *exprpb.Expr, vars map[string]value.Value) bool {
	for _, v := range vars {
		if v != nil && v.Kind() == value.KindDouble {
			return true
		}
	}
	found := false
	syntax.Walk(e, func(n *exprpb.Expr) bool {
		if found {
			return false
		}
		if syntax.LiteralOf(n) == syntax.LiteralDouble {
			found = true
			return false
		}
		return true
	})
	return found
}

// RewriteLiterals returns a copy of e with its integer literals turned into
// doubles, and the number of literals rewritten. Literals are kept as they
// are inside list and map literals, inside comprehensions, and as the index
// operand of an index expression.
func RewriteLiterals(e *exprpb.Expr) (*exprpb.Expr, int) {
	if e == nil {
		return nil, 0
	}
	out := proto.Clone(e).(*exprpb.Expr)
	n := rewrite(out)
	return out, n
}

func rewrite(e *exprpb.Expr) int {
	if e == nil {
		return 0
	}
	switch syntax.Classify(e) {
	case syntax.NodeLiteral:
		c := e.GetConstExpr()
		if i, ok := c.GetConstantKind().(*exprpb.Constant_Int64Value); ok {
			c.ConstantKind = &exprpb.Constant_DoubleValue{DoubleValue: float64(i.Int64Value)}
			return 1
		}
		return 0
	case syntax.NodeList, syntax.NodeMap, syntax.NodeComprehension:
		return 0
	case syntax.NodeIndex:
		call := e.GetCallExpr()
		if len(call.GetArgs()) == 0 {
			return 0
		}
		return rewrite(call.GetArgs()[0])
	}
	n := 0
	for _, child := range syntax.Children(e) {
		n += rewrite(child)
	}
	return n
}

// PromoteVariables returns a copy of vars with every top-level int bound as
// a double, and the number of variables promoted. Unsigned and nested values
// are left alone.
func PromoteVariables(vars map[string]value.Value) (map[string]value.Value, int) {
	if vars == nil {
		return nil, 0
	}
	out := make(map[string]value.Value, len(vars))
	n := 0
	for name, v := range vars {
		if i, ok := v.(value.Int); ok {
			out[name] = value.Double(i)
			n++
			continue
		}
		out[name] = v
	}
	return out, n
}
