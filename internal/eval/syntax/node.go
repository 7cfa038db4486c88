package syntax

import (
	"github.com/google/cel-go/common/operators"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// NodeKind is the tagged variant of a parsed expression node
type NodeKind int

const (
	NodeUnknown NodeKind = iota
	NodeLiteral
	NodeIdent
	NodeSelect
	NodeCall
	NodeUnaryOp
	NodeBinaryOp
	NodeTernary
	NodeIndex
	NodeList
	NodeMap
	NodeMessage
	NodeComprehension
)

var nodeNames = map[NodeKind]string{
	NodeUnknown:       "unknown",
	NodeLiteral:       "literal",
	NodeIdent:         "ident",
	NodeSelect:        "select",
	NodeCall:          "call",
	NodeUnaryOp:       "unary",
	NodeBinaryOp:      "binary",
	NodeTernary:       "ternary",
	NodeIndex:         "index",
	NodeList:          "list",
	NodeMap:           "map",
	NodeMessage:       "message",
	NodeComprehension: "comprehension",
}

func (k NodeKind) String() string {
	return nodeNames[k]
}

// LiteralKind is the variant of a literal node
type LiteralKind int

const (
	LiteralNone LiteralKind = iota
	LiteralNull
	LiteralBool
	LiteralInt
	LiteralUInt
	LiteralDouble
	LiteralString
	LiteralBytes
)

// OptIndex is the optional index operator, a[?b].
const OptIndex = "_[?_]"

var binaryOperators = map[string]bool{
	operators.Add:           true,
	operators.Subtract:      true,
	operators.Multiply:      true,
	operators.Divide:        true,
	operators.Modulo:        true,
	operators.Equals:        true,
	operators.NotEquals:     true,
	operators.Less:          true,
	operators.LessEquals:    true,
	operators.Greater:       true,
	operators.GreaterEquals: true,
	operators.LogicalAnd:    true,
	operators.LogicalOr:     true,
	operators.In:            true,
}

var unaryOperators = map[string]bool{
	operators.LogicalNot: true,
	operators.Negate:     true,
}

// Classify returns the variant of e. Operators are distinguished from plain
// function calls.
func Classify(e *exprpb.Expr) NodeKind {
	switch k := e.GetExprKind().(type) {
	case *exprpb.Expr_ConstExpr:
		return NodeLiteral
	case *exprpb.Expr_IdentExpr:
		return NodeIdent
	case *exprpb.Expr_SelectExpr:
		return NodeSelect
	case *exprpb.Expr_CallExpr:
		return classifyCall(k.CallExpr)
	case *exprpb.Expr_ListExpr:
		return NodeList
	case *exprpb.Expr_StructExpr:
		if k.StructExpr.GetMessageName() != "" {
			return NodeMessage
		}
		return NodeMap
	case *exprpb.Expr_ComprehensionExpr:
		return NodeComprehension
	}
	return NodeUnknown
}

func classifyCall(call *exprpb.Expr_Call) NodeKind {
	fn := call.GetFunction()
	if call.GetTarget() != nil {
		return NodeCall
	}
	switch {
	case fn == operators.Conditional:
		return NodeTernary
	case fn == operators.Index || fn == OptIndex:
		return NodeIndex
	case binaryOperators[fn] && len(call.GetArgs()) == 2:
		return NodeBinaryOp
	case unaryOperators[fn] && len(call.GetArgs()) == 1:
		return NodeUnaryOp
	}
	return NodeCall
}

// LiteralOf returns the literal variant of e, or LiteralNone when e is not a literal
func LiteralOf(e *exprpb.Expr) LiteralKind {
	c := e.GetConstExpr()
	if c == nil {
		return LiteralNone
	}
	switch c.GetConstantKind().(type) {
	case *exprpb.Constant_NullValue:
		return LiteralNull
	case *exprpb.Constant_BoolValue:
		return LiteralBool
	case *exprpb.Constant_Int64Value:
		return LiteralInt
	case *exprpb.Constant_Uint64Value:
		return LiteralUInt
	case *exprpb.Constant_DoubleValue:
		return LiteralDouble
	case *exprpb.Constant_StringValue:
		return LiteralString
	case *exprpb.Constant_BytesValue:
		return LiteralBytes
	}
	return LiteralNone
}

// Symbol returns the source spelling of an operator function name, or the
// name itself for ordinary functions.
func Symbol(function string) string {
	if sym, ok := operators.FindReverse(function); ok {
		return sym
	}
	return function
}

// Children returns the direct sub-expressions of e in evaluation order
func Children(e *exprpb.Expr) []*exprpb.Expr {
	switch k := e.GetExprKind().(type) {
	case *exprpb.Expr_SelectExpr:
		return []*exprpb.Expr{k.SelectExpr.GetOperand()}
	case *exprpb.Expr_CallExpr:
		var out []*exprpb.Expr
		if t := k.CallExpr.GetTarget(); t != nil {
			out = append(out, t)
		}
		return append(out, k.CallExpr.GetArgs()...)
	case *exprpb.Expr_ListExpr:
		return k.ListExpr.GetElements()
	case *exprpb.Expr_StructExpr:
		var out []*exprpb.Expr
		for _, entry := range k.StructExpr.GetEntries() {
			if mk := entry.GetMapKey(); mk != nil {
				out = append(out, mk)
			}
			out = append(out, entry.GetValue())
		}
		return out
	case *exprpb.Expr_ComprehensionExpr:
		c := k.ComprehensionExpr
		return []*exprpb.Expr{c.GetIterRange(), c.GetAccuInit(), c.GetLoopCondition(), c.GetLoopStep(), c.GetResult()}
	}
	return nil
}

// Walk visits e and its descendants in pre-order. Returning false from visit
// skips the children of that node.
func Walk(e *exprpb.Expr, visit func(*exprpb.Expr) bool) {
	if e == nil || !visit(e) {
		return
	}
	for _, child := range Children(e) {
		Walk(child, visit)
	}
}
