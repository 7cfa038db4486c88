package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aescanero/dago-cel/internal/eval/celerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEval(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"promotion", []string{"1 + 2.5"}, "3.5\n"},
		{"context", []string{"-c", `{"x": 2}`, "x * 3"}, "6\n"},
		{"string unquoted", []string{"'hello' + ' world'"}, "hello world\n"},
		{"pretty scalar", []string{"-o", "pretty", "2.0 * 4"}, "8.0 (double)\n"},
		{"json map", []string{"-o", "json", "{'a': 1}"}, "{\n  \"a\": 1\n}\n"},
		{"optional", []string{"optional.none().orValue(7)"}, "7\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := run(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stdout)
		})
	}
}

func TestEval_Errors(t *testing.T) {
	t.Run("strict mode", func(t *testing.T) {
		_, _, err := run(t, "--mode", "strict", "1 + 2.5")
		assert.True(t, celerr.IsKind(err, celerr.KindTypeMismatch), "%v", err)
	})

	t.Run("invalid mode", func(t *testing.T) {
		_, _, err := run(t, "--mode", "lenient", "1")
		assert.Error(t, err)
	})

	t.Run("undefined", func(t *testing.T) {
		_, _, err := run(t, "missing * 2")
		assert.True(t, celerr.IsKind(err, celerr.KindUndefinedReference), "%v", err)
	})

	t.Run("no expression", func(t *testing.T) {
		_, _, err := run(t)
		assert.ErrorContains(t, err, "no expression provided")
	})

	t.Run("bad context json", func(t *testing.T) {
		_, _, err := run(t, "-c", "{", "1")
		assert.ErrorContains(t, err, "invalid JSON in --context")
	})

	t.Run("bad output format", func(t *testing.T) {
		_, _, err := run(t, "-o", "xml", "1")
		assert.ErrorContains(t, err, "unknown output format")
	})
}

func TestEval_ContextFile(t *testing.T) {
	yamlPath := writeFile(t, "order.yaml", "price: 2.5\nquantity: 4\ncustomer:\n  name: Ada\n")
	jsonPath := writeFile(t, "order.json", `{"price": 3.0, "quantity": 2}`)

	stdout, _, err := run(t, "-f", yamlPath, "price * quantity")
	require.NoError(t, err)
	assert.Equal(t, "10.0\n", stdout)

	stdout, _, err = run(t, "-f", yamlPath, "customer.name")
	require.NoError(t, err)
	assert.Equal(t, "Ada\n", stdout)

	stdout, _, err = run(t, "-f", jsonPath, "price * quantity")
	require.NoError(t, err)
	assert.Equal(t, "6.0\n", stdout)

	// inline context overrides the file
	stdout, _, err = run(t, "-f", yamlPath, "-c", `{"quantity": 1}`, "price * quantity")
	require.NoError(t, err)
	assert.Equal(t, "2.5\n", stdout)
}

func TestEval_VerboseAndTiming(t *testing.T) {
	stdout, stderr, err := run(t, "-v", "-t", "-c", `{"x": 1}`, "x + 1")
	require.NoError(t, err)
	assert.Equal(t, "2\n", stdout)
	assert.Contains(t, stderr, "Expression: x + 1")
	assert.Contains(t, stderr, "Context variables: 1")
	assert.Contains(t, stderr, "Result type: int")
	assert.Contains(t, stderr, "Evaluated in ")
}

func TestEval_Template(t *testing.T) {
	stdout, _, err := run(t, "--template", "{{expression}} = {{result}} ({{type}}, {{mode}})", "1 + 2.5")
	require.NoError(t, err)
	assert.Equal(t, "1 + 2.5 = 3.5 (double, python)\n", stdout)

	stdout, _, err = run(t, "--template", "{{kind}}: {{error}}", "nope")
	assert.ErrorIs(t, err, errReported)
	assert.True(t, strings.HasPrefix(stdout, "UndefinedReference: "), stdout)
}

func TestEval_Batch(t *testing.T) {
	path := writeFile(t, "exprs.txt", strings.Join([]string{
		"# arithmetic",
		"1 + 1",
		"",
		"2 * 2.5",
		"nope",
	}, "\n"))

	stdout, _, err := run(t, "--file", path, "-o", "json")
	assert.ErrorIs(t, err, errReported)

	var entries []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, "1 + 1", entries[0]["expression"])
	assert.Equal(t, float64(2), entries[0]["result"])
	assert.Equal(t, 5.0, entries[1]["result"])
	assert.Contains(t, entries[2]["error"], "nope")
	assert.NotContains(t, entries[2], "result")

	stdout, _, err = run(t, "--file", path)
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, stdout, "Expression")
	assert.Contains(t, stdout, "Error: ")

	_, _, err = run(t, "--file", path, "1")
	assert.ErrorContains(t, err, "not both")
}

func TestRules(t *testing.T) {
	path := writeFile(t, "routing.yaml", `
rules:
  - name: urgent
    condition: priority > 8
    target: escalate
  - name: broken
    condition: priority + 'x'
    target: never
  - condition: "'billing' in tags"
    target: "queue-{{team}}"
fallback: triage
`)

	stdout, _, err := run(t, "rules", path, "-c", `{"priority": 9, "tags": [], "team": "a"}`)
	require.NoError(t, err)
	assert.Equal(t, "escalate\n", stdout)

	stdout, stderr, err := run(t, "rules", path, "-v", "-c", `{"priority": 1, "tags": ["billing"], "team": "ops"}`)
	require.NoError(t, err)
	assert.Equal(t, "queue-ops\n", stdout)
	assert.Contains(t, stderr, "Skipped rule 1")

	stdout, _, err = run(t, "rules", path, "-o", "json", "-c", `{"priority": 1, "tags": [], "team": "ops"}`)
	require.NoError(t, err)
	var decision map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &decision))
	assert.Equal(t, "triage", decision["target"])
	assert.Equal(t, "fallback", decision["path_taken"])
	assert.Equal(t, float64(-1), decision["rule_index"])
}
