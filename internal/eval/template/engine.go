package template

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aescanero/dago-cel/internal/eval/value"
	"github.com/aymerick/raymond"
)

// Engine renders Handlebars templates. Helpers are registered on each
// compiled template, never globally, so engines do not interfere.
type Engine struct {
	cache   map[string]*raymond.Template
	helpers map[string]interface{}
	mu      sync.RWMutex
}

// NewEngine creates a new template engine
func NewEngine() *Engine {
	return &Engine{
		cache:   make(map[string]*raymond.Template),
		helpers: helpers(),
	}
}

// Result is the data a result template sees
type Result struct {
	Expression string
	Value      interface{}
	Mode       string
	Duration   time.Duration
	Err        error
	ErrKind    string
}

// data exposes a Result to templates as expression, result, type, mode,
// duration_ms, error and kind
func (r Result) data() map[string]interface{} {
	d := map[string]interface{}{
		"expression":  r.Expression,
		"result":      r.Value,
		"type":        typeName(r.Value),
		"mode":        r.Mode,
		"duration_ms": float64(r.Duration.Microseconds()) / 1000,
	}
	if r.Err != nil {
		d["error"] = r.Err.Error()
		d["kind"] = r.ErrKind
	}
	return d
}

// RenderResult renders a template against an evaluation result
func (e *Engine) RenderResult(templateStr string, r Result) (string, error) {
	return e.Render(templateStr, r.data())
}

// Render renders a template with the given data
func (e *Engine) Render(templateStr string, data interface{}) (string, error) {
	tmpl, err := e.getTemplate(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to compile template: %w", err)
	}

	result, err := tmpl.Exec(data)
	if err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	return result, nil
}

// getTemplate gets a compiled template from cache or compiles it
func (e *Engine) getTemplate(templateStr string) (*raymond.Template, error) {
	e.mu.RLock()
	if tmpl, ok := e.cache[templateStr]; ok {
		e.mu.RUnlock()
		return tmpl, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Check again in case another goroutine compiled it
	if tmpl, ok := e.cache[templateStr]; ok {
		return tmpl, nil
	}

	tmpl, err := raymond.Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	tmpl.RegisterHelpers(e.helpers)

	e.cache[templateStr] = tmpl
	return tmpl, nil
}

// ValidateTemplate validates a template without rendering it
func (e *Engine) ValidateTemplate(templateStr string) error {
	_, err := raymond.Parse(templateStr)
	return err
}

// ClearCache clears the compiled template cache
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]*raymond.Template)
}

func typeName(v interface{}) string {
	converted, err := value.ConvertIn(v)
	if err != nil {
		return fmt.Sprintf("%T", v)
	}
	return converted.Kind().String()
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func helpers() map[string]interface{} {
	return map[string]interface{}{
		"uppercase": func(str string) string {
			return strings.ToUpper(str)
		},
		"lowercase": func(str string) string {
			return strings.ToLower(str)
		},
		"trim": func(str string) string {
			return strings.TrimSpace(str)
		},
		// default returns defaultValue when value is empty
		"default": func(value interface{}, defaultValue interface{}) interface{} {
			if value == nil || value == "" {
				return defaultValue
			}
			return value
		},
		"eq": func(a, b interface{}) bool {
			return fmt.Sprint(a) == fmt.Sprint(b)
		},
		"ne": func(a, b interface{}) bool {
			return fmt.Sprint(a) != fmt.Sprint(b)
		},
		"gt": func(a, b interface{}) bool {
			x, okA := toFloat(a)
			y, okB := toFloat(b)
			return okA && okB && x > y
		},
		"lt": func(a, b interface{}) bool {
			x, okA := toFloat(a)
			y, okB := toFloat(b)
			return okA && okB && x < y
		},
		"contains": func(str, substr string) bool {
			return strings.Contains(str, substr)
		},
		"join": func(arr []interface{}, sep string) string {
			strs := make([]string, len(arr))
			for i, v := range arr {
				strs[i] = fmt.Sprint(v)
			}
			return strings.Join(strs, sep)
		},
		"len": func(value interface{}) int {
			switch v := value.(type) {
			case string:
				return len(v)
			case []interface{}:
				return len(v)
			case map[string]interface{}:
				return len(v)
			default:
				return 0
			}
		},
		"typeof": func(value interface{}) string {
			return typeName(value)
		},
		// json renders a value as compact JSON
		"json": func(value interface{}) string {
			b, err := json.Marshal(value)
			if err != nil {
				return fmt.Sprint(value)
			}
			return string(b)
		},
	}
}
