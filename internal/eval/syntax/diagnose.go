package syntax

import (
	"github.com/aescanero/dago-cel/internal/eval/celerr"
	"github.com/aescanero/dago-cel/internal/eval/value"
	"github.com/google/cel-go/common/operators"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

var literalKinds = map[LiteralKind]value.Kind{
	LiteralNull:   value.KindNull,
	LiteralBool:   value.KindBool,
	LiteralInt:    value.KindInt,
	LiteralUInt:   value.KindUInt,
	LiteralDouble: value.KindDouble,
	LiteralString: value.KindString,
	LiteralBytes:  value.KindBytes,
}

var conversionResults = map[string]value.Kind{
	"size":       value.KindInt,
	"int":        value.KindInt,
	"uint":       value.KindUInt,
	"double":     value.KindDouble,
	"string":     value.KindString,
	"bytes":      value.KindBytes,
	"bool":       value.KindBool,
	"timestamp":  value.KindTimestamp,
	"duration":   value.KindDuration,
	"contains":   value.KindBool,
	"startsWith": value.KindBool,
	"endsWith":   value.KindBool,
	"matches":    value.KindBool,
}

// FindMismatch statically locates the innermost operator whose operand kinds
// are known and have no overload. vars gives the kinds of bound variables.
// It returns nil when no such operator can be proven.
func FindMismatch(e *exprpb.Expr, vars map[string]value.Kind) *celerr.Mismatch {
	d := &diagnoser{vars: vars}
	d.infer(e, nil)
	return d.found
}

type diagnoser struct {
	vars  map[string]value.Kind
	found *celerr.Mismatch
}

type kindOf struct {
	kind  value.Kind
	known bool
}

func known(k value.Kind) kindOf { return kindOf{kind: k, known: true} }

func (d *diagnoser) report(fn string, operands ...value.Kind) {
	if d.found != nil {
		return
	}
	names := make([]string, len(operands))
	for i, k := range operands {
		names[i] = k.String()
	}
	d.found = &celerr.Mismatch{Operator: Symbol(fn), Operands: names}
}

func (d *diagnoser) infer(e *exprpb.Expr, bound map[string]kindOf) kindOf {
	if e == nil {
		return kindOf{}
	}
	switch Classify(e) {
	case NodeLiteral:
		if k, ok := literalKinds[LiteralOf(e)]; ok {
			return known(k)
		}
	case NodeIdent:
		name := e.GetIdentExpr().GetName()
		if k, ok := bound[name]; ok {
			return k
		}
		if k, ok := d.vars[name]; ok {
			return known(k)
		}
	case NodeList:
		for _, el := range e.GetListExpr().GetElements() {
			d.infer(el, bound)
		}
		return known(value.KindList)
	case NodeMap:
		for _, child := range Children(e) {
			d.infer(child, bound)
		}
		return known(value.KindMap)
	case NodeUnaryOp:
		call := e.GetCallExpr()
		return d.unary(call.GetFunction(), d.infer(call.GetArgs()[0], bound))
	case NodeBinaryOp:
		call := e.GetCallExpr()
		lhs := d.infer(call.GetArgs()[0], bound)
		rhs := d.infer(call.GetArgs()[1], bound)
		return d.binary(call.GetFunction(), lhs, rhs)
	case NodeTernary:
		args := e.GetCallExpr().GetArgs()
		d.infer(args[0], bound)
		a := d.infer(args[1], bound)
		b := d.infer(args[2], bound)
		if a.known && b.known && a.kind == b.kind {
			return a
		}
	case NodeCall:
		call := e.GetCallExpr()
		for _, child := range Children(e) {
			d.infer(child, bound)
		}
		if k, ok := conversionResults[call.GetFunction()]; ok {
			return known(k)
		}
	case NodeComprehension:
		return d.comprehension(e.GetComprehensionExpr(), bound)
	default:
		for _, child := range Children(e) {
			d.infer(child, bound)
		}
	}
	return kindOf{}
}

// comprehension binds the iteration variable when the range is a list
// literal of a single element kind.
func (d *diagnoser) comprehension(c *exprpb.Expr_Comprehension, bound map[string]kindOf) kindOf {
	d.infer(c.GetIterRange(), bound)
	d.infer(c.GetAccuInit(), bound)

	inner := make(map[string]kindOf, len(bound)+2)
	for name, k := range bound {
		inner[name] = k
	}
	inner[c.GetIterVar()] = d.elementKind(c.GetIterRange(), bound)
	inner[c.GetAccuVar()] = kindOf{}

	d.infer(c.GetLoopCondition(), inner)
	d.infer(c.GetLoopStep(), inner)
	d.infer(c.GetResult(), inner)
	return kindOf{}
}

func (d *diagnoser) elementKind(rng *exprpb.Expr, bound map[string]kindOf) kindOf {
	elems := rng.GetListExpr().GetElements()
	if len(elems) == 0 {
		return kindOf{}
	}
	// report keeps only the first mismatch, so re-inferring the range is safe
	first := d.infer(elems[0], bound)
	for _, el := range elems[1:] {
		if k := d.infer(el, bound); !k.known || k.kind != first.kind {
			return kindOf{}
		}
	}
	return first
}

func (d *diagnoser) unary(fn string, arg kindOf) kindOf {
	if !arg.known {
		if fn == operators.LogicalNot {
			return known(value.KindBool)
		}
		return kindOf{}
	}
	switch fn {
	case operators.LogicalNot:
		if arg.kind != value.KindBool {
			d.report(fn, arg.kind)
		}
		return known(value.KindBool)
	case operators.Negate:
		if arg.kind != value.KindInt && arg.kind != value.KindDouble {
			d.report(fn, arg.kind)
			return kindOf{}
		}
		return arg
	}
	return kindOf{}
}

func isNumeric(k value.Kind) bool {
	return k == value.KindInt || k == value.KindUInt || k == value.KindDouble
}

func (d *diagnoser) binary(fn string, lhs, rhs kindOf) kindOf {
	switch fn {
	case operators.Equals, operators.NotEquals, operators.In:
		return known(value.KindBool)
	case operators.Less, operators.LessEquals, operators.Greater, operators.GreaterEquals:
		if lhs.known && rhs.known && !orderable(lhs.kind, rhs.kind) {
			d.report(fn, lhs.kind, rhs.kind)
		}
		return known(value.KindBool)
	case operators.LogicalAnd, operators.LogicalOr:
		if lhs.known && rhs.known && (lhs.kind != value.KindBool || rhs.kind != value.KindBool) {
			d.report(fn, lhs.kind, rhs.kind)
		}
		return known(value.KindBool)
	}

	if !lhs.known || !rhs.known {
		return kindOf{}
	}
	result, ok := arithmetic(fn, lhs.kind, rhs.kind)
	if !ok {
		d.report(fn, lhs.kind, rhs.kind)
		return kindOf{}
	}
	return known(result)
}

func orderable(a, b value.Kind) bool {
	if isNumeric(a) && isNumeric(b) {
		return true
	}
	if a != b {
		return false
	}
	switch a {
	case value.KindString, value.KindBytes, value.KindBool, value.KindTimestamp, value.KindDuration:
		return true
	}
	return false
}

func arithmetic(fn string, a, b value.Kind) (value.Kind, bool) {
	switch fn {
	case operators.Add:
		switch {
		case a == b && (isNumeric(a) || a == value.KindString || a == value.KindBytes || a == value.KindList || a == value.KindDuration):
			return a, true
		case a == value.KindTimestamp && b == value.KindDuration, a == value.KindDuration && b == value.KindTimestamp:
			return value.KindTimestamp, true
		}
	case operators.Subtract:
		switch {
		case a == b && (isNumeric(a) || a == value.KindDuration):
			return a, true
		case a == value.KindTimestamp && b == value.KindTimestamp:
			return value.KindDuration, true
		case a == value.KindTimestamp && b == value.KindDuration:
			return value.KindTimestamp, true
		}
	case operators.Multiply, operators.Divide:
		if a == b && isNumeric(a) {
			return a, true
		}
	case operators.Modulo:
		if a == b && (a == value.KindInt || a == value.KindUInt) {
			return a, true
		}
	}
	return 0, false
}
