package rules

import (
	"context"
	"testing"

	"github.com/aescanero/dago-cel/internal/eval/cel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newRouter(t *testing.T) *Router {
	t.Helper()
	e, err := cel.NewEvaluator()
	require.NoError(t, err)
	return NewRouter(e, zaptest.NewLogger(t))
}

func TestDecide(t *testing.T) {
	set := &RuleSet{
		Rules: []Rule{
			{Name: "urgent", Condition: "state.priority == 'high'", Target: "urgent_handler"},
			{Condition: "state.score > 0.8", Target: "premium-{{state.region}}"},
		},
		Fallback: "default_handler",
	}

	tests := []struct {
		name  string
		state map[string]interface{}
		want  Decision
	}{
		{
			"first rule",
			map[string]interface{}{"priority": "high", "score": 0.1, "region": "eu"},
			Decision{Target: "urgent_handler", Reasoning: "matched rule 0 (urgent): state.priority == 'high'", PathTaken: PathFast, RuleIndex: 0},
		},
		{
			"templated target",
			map[string]interface{}{"priority": "low", "score": 1, "region": "eu"},
			Decision{Target: "premium-eu", Reasoning: "matched rule 1: state.score > 0.8", PathTaken: PathFast, RuleIndex: 1},
		},
		{
			"fallback",
			map[string]interface{}{"priority": "low", "score": 0.5, "region": "eu"},
			Decision{Target: "default_handler", Reasoning: "no rules matched", PathTaken: PathFallback, RuleIndex: -1},
		},
	}

	r := newRouter(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Decide(context.Background(), set, map[string]interface{}{"state": tt.state})
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestDecide_SkipsFailingRules(t *testing.T) {
	set := &RuleSet{
		Rules: []Rule{
			{Condition: "missing.field == 1", Target: "a"},
			{Condition: "'not a bool'", Target: "b"},
			{Condition: "x > 1", Target: "c"},
		},
		Fallback: "z",
	}

	got, err := newRouter(t).Decide(context.Background(), set, map[string]interface{}{"x": 2})
	require.NoError(t, err)
	assert.Equal(t, "c", got.Target)
	assert.Equal(t, 2, got.RuleIndex)
	require.Len(t, got.Skipped, 2)
	assert.Equal(t, 0, got.Skipped[0].RuleIndex)
	assert.Contains(t, got.Skipped[0].Reason, "missing")
	assert.Equal(t, "condition returned string, not bool", got.Skipped[1].Reason)
}

func TestDecide_StrictMode(t *testing.T) {
	set := &RuleSet{
		Rules:    []Rule{{Condition: "x + 0.5 > 1.0", Target: "a"}},
		Fallback: "z",
		Mode:     "strict",
	}
	vars, err := cel.NewContext(map[string]interface{}{"x": 1}, nil)
	require.NoError(t, err)

	got, err := newRouter(t).Decide(context.Background(), set, vars)
	require.NoError(t, err)
	assert.Equal(t, "z", got.Target)
	require.Len(t, got.Skipped, 1)
	assert.Contains(t, got.Skipped[0].Reason, "int + double")

	set.Mode = "python"
	got, err = newRouter(t).Decide(context.Background(), set, vars)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Target)
}

func TestDecide_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	set := &RuleSet{Rules: []Rule{{Condition: "true", Target: "a"}}, Fallback: "z"}
	_, err := newRouter(t).Decide(ctx, set, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParse(t *testing.T) {
	yamlSet := []byte(`
mode: strict
fallback: default
rules:
  - name: big
    condition: amount > 100
    target: review
`)
	set, err := Parse(yamlSet)
	require.NoError(t, err)
	assert.Equal(t, "strict", set.Mode)
	assert.Equal(t, []Rule{{Name: "big", Condition: "amount > 100", Target: "review"}}, set.Rules)

	jsonSet := []byte(`{"fallback": "f", "rules": [{"condition": "true", "target": "t"}]}`)
	set, err = Parse(jsonSet)
	require.NoError(t, err)
	assert.Equal(t, "f", set.Fallback)
}

func TestValidate(t *testing.T) {
	tests := map[string]*RuleSet{
		"nil":          nil,
		"no fallback":  {Rules: []Rule{{Condition: "true", Target: "a"}}},
		"no rules":     {Fallback: "f"},
		"no condition": {Rules: []Rule{{Target: "a"}}, Fallback: "f"},
		"no target":    {Rules: []Rule{{Condition: "true"}}, Fallback: "f"},
		"bad mode":     {Rules: []Rule{{Condition: "true", Target: "a"}}, Fallback: "f", Mode: "loose"},
	}
	for name, set := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, set.Validate())
		})
	}
}
