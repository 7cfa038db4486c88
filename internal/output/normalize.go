package output

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aescanero/dago-cel/internal/eval/value"
)

// Normalize converts an evaluation result into a value encoding/json can
// always marshal. Non-finite doubles become "NaN", "+Inf" or "-Inf",
// timestamps become RFC 3339 strings, durations use their Go spelling,
// maps with non-string keys are keyed by the key's text and optionals
// collapse to their content or nil.
func Normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case nil, bool, string, int, int64, uint64, []byte:
		return t
	case float64:
		switch {
		case math.IsNaN(t):
			return "NaN"
		case math.IsInf(t, 1):
			return "+Inf"
		case math.IsInf(t, -1):
			return "-Inf"
		}
		return t
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case time.Duration:
		return t.String()
	case *value.Optional:
		if !t.HasValue() {
			return nil
		}
		return Normalize(value.ConvertOut(t.Inner()))
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = Normalize(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[k] = Normalize(item)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = Normalize(item)
		}
		return out
	}

	converted, err := value.ConvertIn(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return Normalize(value.ConvertOut(converted))
}

// Text renders a result the way it reads in an expression. A top level
// string is written without quotes; map entries are sorted by key.
func Text(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return literal(v)
}

func literal(v interface{}) string {
	converted, err := value.ConvertIn(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	switch converted.(type) {
	case value.List, value.Map:
		var b strings.Builder
		start, end := "[", "]"
		if converted.Kind() == value.KindMap {
			start, end = "{", "}"
		}
		b.WriteString(start)
		for i, row := range entries(v) {
			if i > 0 {
				b.WriteString(", ")
			}
			if converted.Kind() == value.KindMap {
				b.WriteString(literal(row[0]))
				b.WriteString(": ")
			}
			b.WriteString(literal(row[1]))
		}
		b.WriteString(end)
		return b.String()
	}
	return converted.String()
}

// TypeName returns the CEL type name of a result
func TypeName(v interface{}) string {
	converted, err := value.ConvertIn(v)
	if err != nil {
		return fmt.Sprintf("%T", v)
	}
	return converted.Kind().String()
}

// isCollection reports whether v renders as a table in pretty output
func isCollection(v interface{}) bool {
	converted, err := value.ConvertIn(v)
	if err != nil {
		return false
	}
	k := converted.Kind()
	return k == value.KindList || k == value.KindMap
}

// entries returns the rows of a map or list result, map keys sorted by text
func entries(v interface{}) [][2]interface{} {
	converted, err := value.ConvertIn(v)
	if err != nil {
		return nil
	}
	var rows [][2]interface{}
	switch c := converted.(type) {
	case value.List:
		for i, item := range c.Items() {
			rows = append(rows, [2]interface{}{i, value.ConvertOut(item)})
		}
	case value.Map:
		for _, e := range c.Entries() {
			rows = append(rows, [2]interface{}{value.ConvertOut(e.Key), value.ConvertOut(e.Value)})
		}
		sort.SliceStable(rows, func(i, j int) bool {
			return literal(rows[i][0]) < literal(rows[j][0])
		})
	}
	return rows
}
