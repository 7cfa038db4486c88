package promote

import (
	"testing"

	"github.com/aescanero/dago-cel/internal/eval/syntax"
	"github.com/aescanero/dago-cel/internal/eval/value"
	"github.com/google/cel-go/cel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
	"google.golang.org/protobuf/proto"
)

func parse(t *testing.T, src string) *exprpb.Expr {
	t.Helper()
	env, err := cel.NewEnv(cel.OptionalTypes())
	require.NoError(t, err)
	ast, iss := env.Parse(src)
	require.NoError(t, iss.Err())
	parsed, err := cel.AstToParsedExpr(ast)
	require.NoError(t, err)
	return parsed.GetExpr()
}

// literals counts literal nodes of each kind in e
func literals(e *exprpb.Expr) map[syntax.LiteralKind]int {
	out := map[syntax.LiteralKind]int{}
	syntax.Walk(e, func(n *exprpb.Expr) bool {
		if k := syntax.LiteralOf(n); k != syntax.LiteralNone {
			out[k]++
		}
		return true
	})
	return out
}

func TestHasDouble(t *testing.T) {
	tests := []struct {
		name string
		src  string
		vars map[string]value.Value
		want bool
	}{
		{"int only", "5 + 3", nil, false},
		{"double literal", "1 + 2.5", nil, true},
		{"double in macro", "[1].map(x, x * 2.0)", nil, true},
		{"double variable", "x + 1", map[string]value.Value{"x": value.Double(0.5)}, true},
		{"int variable", "x + 1", map[string]value.Value{"x": value.Int(2)}, false},
		{"nested double ignored", "m.a + 1", map[string]value.Value{
			"m": mustMap(t, value.MapEntry{Key: value.String("a"), Value: value.Double(1)}),
		}, false},
		{"numeric string", "'1.5'", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasDouble(parse(t, tt.src), tt.vars))
		})
	}
}

func mustMap(t *testing.T, entries ...value.MapEntry) value.Map {
	t.Helper()
	m, err := value.NewMap(entries...)
	require.NoError(t, err)
	return m
}

func TestApply_NoDouble(t *testing.T) {
	e := parse(t, "5 + 3")
	vars := map[string]value.Value{"n": value.Int(1)}

	res := Apply(e, vars)

	assert.False(t, res.Promoted)
	assert.Same(t, e, res.Expr)
	assert.Equal(t, vars, res.Variables)
	assert.Equal(t, 2, literals(res.Expr)[syntax.LiteralInt])
}

func TestApply_Promotes(t *testing.T) {
	e := parse(t, "price * 2 + tax")
	vars := map[string]value.Value{
		"price": value.Int(10),
		"tax":   value.Double(0.5),
		"count": value.UInt(3),
		"name":  value.String("7"),
	}

	res := Apply(e, vars)

	require.True(t, res.Promoted)
	assert.Equal(t, 1, res.Literals)
	assert.Equal(t, 1, res.Vars)
	assert.Equal(t, value.Double(10), res.Variables["price"])
	assert.Equal(t, value.Double(0.5), res.Variables["tax"])
	assert.Equal(t, value.UInt(3), res.Variables["count"])
	assert.Equal(t, value.String("7"), res.Variables["name"])
	assert.Equal(t, value.Int(10), vars["price"], "input bindings must not change")
}

func TestRewriteLiterals_Exemptions(t *testing.T) {
	tests := []struct {
		src     string
		doubles int
		ints    int
		strs    int
	}{
		{"1 + 2.5", 2, 0, 0},
		{"x > 1 && y < 2.0", 2, 0, 0},
		{"'123' + string(4.5)", 1, 0, 1},
		{"[1, 2, 3][1] + 0.5", 1, 4, 0},
		{"l[0] * 1.5", 1, 1, 0},
		{"{'a': 1}['a'] + 1.0", 1, 1, 2},
		{"[1, 2].map(x, x * 2) == [2.0]", 1, 3, 0},
		{"c ? 1 : 2.0", 2, 0, 0},
		{"f(3) + 0.5", 2, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			out, _ := RewriteLiterals(parse(t, tt.src))
			got := literals(out)
			assert.Equal(t, tt.doubles, got[syntax.LiteralDouble], "doubles")
			assert.Equal(t, tt.ints, got[syntax.LiteralInt], "ints")
			assert.Equal(t, tt.strs, got[syntax.LiteralString], "strings")
		})
	}
}

func TestRewriteLiterals_DoesNotMutateInput(t *testing.T) {
	e := parse(t, "1 + 2 + 0.5")
	before := proto.Clone(e)

	out, n := RewriteLiterals(e)

	assert.Equal(t, 2, n)
	assert.True(t, proto.Equal(before, e))
	assert.False(t, proto.Equal(out, e))
}

func TestApply_Deterministic(t *testing.T) {
	e := parse(t, "a + b * 3 - 1.5")
	vars := map[string]value.Value{"a": value.Int(1), "b": value.Int(2)}

	first := Apply(e, vars)
	for i := 0; i < 5; i++ {
		again := Apply(e, vars)
		assert.True(t, proto.Equal(first.Expr, again.Expr))
		assert.Equal(t, first.Variables, again.Variables)
		assert.Equal(t, first.Literals, again.Literals)
	}
}

func TestApply_RepeatedDoesNotCompound(t *testing.T) {
	e := parse(t, "x + 1")
	vars := map[string]value.Value{"x": value.Double(0.5)}

	first := Apply(e, vars)
	second := Apply(first.Expr, first.Variables)

	assert.Equal(t, 1, first.Literals)
	assert.Equal(t, 0, second.Literals)
	assert.True(t, proto.Equal(first.Expr, second.Expr))
}
