package value

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind tags a Value variant
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindUInt
	KindDouble
	KindString
	KindBytes
	KindTimestamp
	KindDuration
	KindList
	KindMap
	KindOptional
)

var kindNames = [...]string{
	KindNull:      "null",
	KindBool:      "bool",
	KindInt:       "int",
	KindUInt:      "uint",
	KindDouble:    "double",
	KindString:    "string",
	KindBytes:     "bytes",
	KindTimestamp: "timestamp",
	KindDuration:  "duration",
	KindList:      "list",
	KindMap:       "map",
	KindOptional:  "optional",
}

// String returns the CEL type name of the kind
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is the tagged runtime representation exchanged with the interpreter
type Value interface {
	Kind() Kind
	String() string
}

// Null is the null value
type Null struct{}

// Bool is a boolean value
type Bool bool

// Int is a signed 64-bit integer
type Int int64

// UInt is an unsigned 64-bit integer
type UInt uint64

// Double is a 64-bit float. NaN and infinities are carried as-is.
type Double float64

// String is a UTF-8 string
type String string

// Bytes is an immutable byte sequence
type Bytes struct {
	b []byte
}

// Timestamp is an instant with a fixed zone offset
type Timestamp struct {
	t time.Time
}

// Duration is a signed span of time
type Duration time.Duration

func (Null) Kind() Kind      { return KindNull }
func (Bool) Kind() Kind      { return KindBool }
func (Int) Kind() Kind       { return KindInt }
func (UInt) Kind() Kind      { return KindUInt }
func (Double) Kind() Kind    { return KindDouble }
func (String) Kind() Kind    { return KindString }
func (Bytes) Kind() Kind     { return KindBytes }
func (Timestamp) Kind() Kind { return KindTimestamp }
func (Duration) Kind() Kind  { return KindDuration }

func (Null) String() string     { return "null" }
func (b Bool) String() string   { return strconv.FormatBool(bool(b)) }
func (i Int) String() string    { return strconv.FormatInt(int64(i), 10) }
func (u UInt) String() string   { return strconv.FormatUint(uint64(u), 10) + "u" }
func (s String) String() string { return strconv.Quote(string(s)) }
func (b Bytes) String() string  { return "b" + strconv.Quote(string(b.b)) }
func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Double) String() string {
	f := float64(d)
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// NewBytes copies b into an immutable Bytes value
func NewBytes(b []byte) Bytes {
	return Bytes{b: append([]byte(nil), b...)}
}

// Len returns the number of bytes
func (b Bytes) Len() int { return len(b.b) }

// Bytes returns a copy of the content
func (b Bytes) Bytes() []byte { return append([]byte(nil), b.b...) }

// NewTimestamp wraps t
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t: t}
}

// Time returns the instant with its original offset
func (t Timestamp) Time() time.Time { return t.t }

func (t Timestamp) String() string {
	return "timestamp(" + strconv.Quote(t.t.Format(time.RFC3339Nano)) + ")"
}

// List is an immutable snapshot of values
type List struct {
	items []Value
}

// NewList snapshots items
func NewList(items ...Value) List {
	return List{items: append([]Value(nil), items...)}
}

func (List) Kind() Kind { return KindList }

// Len returns the number of elements
func (l List) Len() int { return len(l.items) }

// At returns element i
func (l List) At(i int) Value { return l.items[i] }

// Items returns a copy of the elements
func (l List) Items() []Value { return append([]Value(nil), l.items...) }

func (l List) String() string {
	parts := make([]string, len(l.items))
	for i, v := range l.items {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// MapEntry is a single key/value pair of a Map
type MapEntry struct {
	Key   Value
	Value Value
}

// Map is an immutable snapshot of key/value pairs. Keys are restricted to
// String, Int, UInt and Bool.
type Map struct {
	entries []MapEntry
	index   map[mapKey]int
}

type mapKey struct {
	kind Kind
	s    string
	i    int64
	u    uint64
	b    bool
}

func keyOf(v Value) (mapKey, error) {
	switch k := v.(type) {
	case String:
		return mapKey{kind: KindString, s: string(k)}, nil
	case Int:
		return mapKey{kind: KindInt, i: int64(k)}, nil
	case UInt:
		return mapKey{kind: KindUInt, u: uint64(k)}, nil
	case Bool:
		return mapKey{kind: KindBool, b: bool(k)}, nil
	case nil:
		return mapKey{}, fmt.Errorf("null cannot be used as a map key")
	}
	return mapKey{}, fmt.Errorf("unsupported map key kind %s", v.Kind())
}

// NewMap builds a Map from entries. Later entries override earlier ones with
// the same key. Entries are stored in a deterministic key order.
func NewMap(entries ...MapEntry) (Map, error) {
	m := Map{index: make(map[mapKey]int, len(entries))}
	for _, e := range entries {
		k, err := keyOf(e.Key)
		if err != nil {
			return Map{}, err
		}
		if i, ok := m.index[k]; ok {
			m.entries[i].Value = e.Value
			continue
		}
		m.index[k] = len(m.entries)
		m.entries = append(m.entries, e)
	}
	sort.SliceStable(m.entries, func(i, j int) bool {
		return lessKey(m.entries[i].Key, m.entries[j].Key)
	})
	for i, e := range m.entries {
		k, _ := keyOf(e.Key)
		m.index[k] = i
	}
	return m, nil
}

func lessKey(a, b Value) bool {
	if a.Kind() != b.Kind() {
		return a.Kind() < b.Kind()
	}
	switch ak := a.(type) {
	case String:
		return ak < b.(String)
	case Int:
		return ak < b.(Int)
	case UInt:
		return ak < b.(UInt)
	case Bool:
		return !bool(ak) && bool(b.(Bool))
	}
	return false
}

func (Map) Kind() Kind { return KindMap }

// Len returns the number of entries
func (m Map) Len() int { return len(m.entries) }

// Get looks up key
func (m Map) Get(key Value) (Value, bool) {
	k, err := keyOf(key)
	if err != nil {
		return nil, false
	}
	i, ok := m.index[k]
	if !ok {
		return nil, false
	}
	return m.entries[i].Value, true
}

// Entries returns a copy of the entries in key order
func (m Map) Entries() []MapEntry {
	return append([]MapEntry(nil), m.entries...)
}

func (m Map) String() string {
	parts := make([]string, len(m.entries))
	for i, e := range m.entries {
		parts[i] = e.Key.String() + ": " + e.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
