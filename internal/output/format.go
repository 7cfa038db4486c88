package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Format selects how results are written
type Format string

const (
	// FormatAuto prints the result text, switching to pretty for long
	// collections
	FormatAuto Format = "auto"
	// FormatJSON prints indented JSON
	FormatJSON Format = "json"
	// FormatPretty prints collections as tables and scalars with their type
	FormatPretty Format = "pretty"
)

// autoTableWidth is the text length above which auto output of a list or
// map is rendered as a table
const autoTableWidth = 100

// resultWidth truncates results in batch tables
const resultWidth = 50

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatAuto, FormatJSON, FormatPretty:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want auto, json or pretty)", s)
}

// IsTerminal reports whether w is a terminal. NO_COLOR disables styling
// even on terminals.
func IsTerminal(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Writer writes results in one format
type Writer struct {
	out    io.Writer
	format Format
	styled bool
}

// NewWriter creates a writer. Table headers are styled when out is a
// terminal.
func NewWriter(out io.Writer, format Format) *Writer {
	return &Writer{out: out, format: format, styled: IsTerminal(out)}
}

// Result writes a single evaluation result
func (w *Writer) Result(v interface{}) error {
	var s string
	switch w.format {
	case FormatJSON:
		b, err := marshal(v)
		if err != nil {
			return err
		}
		s = b
	case FormatPretty:
		s = w.pretty(v)
	default:
		s = Text(v)
		if isCollection(v) && len(s) > autoTableWidth {
			s = w.pretty(v)
		}
	}
	_, err := fmt.Fprintln(w.out, s)
	return err
}

func marshal(v interface{}) (string, error) {
	b, err := json.MarshalIndent(Normalize(v), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return string(b), nil
}

func (w *Writer) pretty(v interface{}) string {
	if !isCollection(v) {
		return fmt.Sprintf("%s (%s)", Text(v), TypeName(v))
	}
	rows := entries(v)
	header := []string{"Key", "Value", "Type"}
	if TypeName(v) == "list" {
		header[0] = "Index"
	}
	t := newTable(header...)
	for _, row := range rows {
		t.add(literal(row[0]), literal(row[1]), TypeName(row[1]))
	}
	return t.render(w.styled)
}

// Entry is the outcome of one expression in a batch
type Entry struct {
	Expression string
	Result     interface{}
	Err        error
	Duration   time.Duration
}

// Batch writes the outcomes of several expressions, in order. JSON output is
// a list of objects holding expression and either result and time_ms or
// error.
func (w *Writer) Batch(batch []Entry) error {
	if w.format == FormatJSON {
		out := make([]map[string]interface{}, len(batch))
		for i, e := range batch {
			out[i] = map[string]interface{}{"expression": e.Expression}
			if e.Err != nil {
				out[i]["error"] = e.Err.Error()
				continue
			}
			out[i]["result"] = e.Result
			out[i]["time_ms"] = milliseconds(e.Duration)
		}
		b, err := json.MarshalIndent(Normalize(toInterfaces(out)), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode results: %w", err)
		}
		_, err = fmt.Fprintln(w.out, string(b))
		return err
	}

	t := newTable("#", "Expression", "Result", "Time")
	for i, e := range batch {
		result, elapsed := "", "-"
		if e.Err != nil {
			result = "Error: " + e.Err.Error()
		} else {
			result = Text(e.Result)
			elapsed = strconv.FormatFloat(milliseconds(e.Duration), 'f', 2, 64) + "ms"
		}
		t.add(strconv.Itoa(i+1), e.Expression, truncate(result, resultWidth), elapsed)
	}
	_, err := fmt.Fprintln(w.out, t.render(w.styled))
	return err
}

func toInterfaces(in []map[string]interface{}) []interface{} {
	out := make([]interface{}, len(in))
	for i, m := range in {
		out[i] = m
	}
	return out
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

type table struct {
	headers []string
	rows    [][]string
}

func newTable(headers ...string) *table {
	return &table{headers: headers}
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

// render lays out the table with padded columns and a rule under the header
func (t *table) render(styled bool) string {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	bold := lipgloss.NewStyle().Bold(true)

	var b strings.Builder
	line := func(cells []string, emphasize bool) {
		for i, cell := range cells {
			if i > 0 {
				b.WriteString(" | ")
			}
			padded := cell + strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
			if i == len(cells)-1 {
				padded = cell
			}
			if emphasize {
				padded = bold.Render(padded)
			}
			b.WriteString(padded)
		}
		b.WriteString("\n")
	}

	line(t.headers, styled)
	rule := make([]string, len(widths))
	for i, w := range widths {
		rule[i] = strings.Repeat("-", w)
	}
	b.WriteString(strings.Join(rule, "-+-"))
	b.WriteString("\n")
	for _, row := range t.rows {
		line(row, false)
	}
	return strings.TrimRight(b.String(), "\n")
}
