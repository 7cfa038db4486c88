package syntax

import (
	"sort"

	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// typeIdents are identifiers the interpreter resolves to type values
var typeIdents = map[string]bool{
	"bool":      true,
	"bytes":     true,
	"double":    true,
	"duration":  true,
	"dyn":       true,
	"int":       true,
	"list":      true,
	"map":       true,
	"null_type": true,
	"string":    true,
	"timestamp": true,
	"type":      true,
	"uint":      true,
}

// FreeIdents returns the root identifiers referenced by e that are not bound
// by an enclosing comprehension, in first-occurrence order. Type names are
// excluded.
func FreeIdents(e *exprpb.Expr) []string {
	var (
		out  []string
		seen = map[string]bool{}
	)
	var visit func(e *exprpb.Expr, bound map[string]bool)
	visit = func(e *exprpb.Expr, bound map[string]bool) {
		if e == nil {
			return
		}
		switch k := e.GetExprKind().(type) {
		case *exprpb.Expr_IdentExpr:
			name := k.IdentExpr.GetName()
			if !bound[name] && !typeIdents[name] && !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		case *exprpb.Expr_CallExpr:
			// namespace.fn(...) targets are function qualifiers, not variables
			if t := k.CallExpr.GetTarget(); t != nil && !isNamespaceTarget(t) {
				visit(t, bound)
			}
			for _, arg := range k.CallExpr.GetArgs() {
				visit(arg, bound)
			}
		case *exprpb.Expr_ComprehensionExpr:
			c := k.ComprehensionExpr
			visit(c.GetIterRange(), bound)
			visit(c.GetAccuInit(), bound)
			inner := make(map[string]bool, len(bound)+2)
			for name := range bound {
				inner[name] = true
			}
			inner[c.GetIterVar()] = true
			inner[c.GetAccuVar()] = true
			visit(c.GetLoopCondition(), inner)
			visit(c.GetLoopStep(), inner)
			visit(c.GetResult(), inner)
		default:
			for _, child := range Children(e) {
				visit(child, bound)
			}
		}
	}
	visit(e, map[string]bool{})
	return out
}

// namespaces holds identifiers used as function qualifiers, e.g. optional.of
var namespaces = map[string]bool{
	"optional": true,
}

func isNamespaceTarget(target *exprpb.Expr) bool {
	id := target.GetIdentExpr()
	return id != nil && namespaces[id.GetName()]
}

// CallName is a function referenced by a call node. Qualified is set for
// calls whose target is a plain identifier, e.g. "optional.of".
type CallName struct {
	Function  string
	Qualified string
}

// CallNames returns the distinct non-operator functions called in e, sorted
// by function name.
func CallNames(e *exprpb.Expr) []CallName {
	found := map[CallName]bool{}
	Walk(e, func(n *exprpb.Expr) bool {
		call := n.GetCallExpr()
		if call == nil || Classify(n) != NodeCall {
			return true
		}
		name := CallName{Function: call.GetFunction()}
		if id := call.GetTarget().GetIdentExpr(); id != nil {
			name.Qualified = id.GetName() + "." + name.Function
		}
		found[name] = true
		return true
	})
	out := make([]CallName, 0, len(found))
	for name := range found {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Function != out[j].Function {
			return out[i].Function < out[j].Function
		}
		return out[i].Qualified < out[j].Qualified
	})
	return out
}
