package value

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/aescanero/dago-cel/internal/eval/celerr"
	"github.com/google/cel-go/common/types"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertIn_Scalars(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("UTC-8", -8*60*60))

	tests := []struct {
		name string
		in   interface{}
		want Value
	}{
		{"nil", nil, Null{}},
		{"bool", true, Bool(true)},
		{"int", 42, Int(42)},
		{"int8", int8(-3), Int(-3)},
		{"uint", uint(7), UInt(7)},
		{"uint64", uint64(math.MaxUint64), UInt(math.MaxUint64)},
		{"float32", float32(0.5), Double(0.5)},
		{"float64", 2.5, Double(2.5)},
		{"string", "123", String("123")},
		{"duration", 90 * time.Second, Duration(90 * time.Second)},
		{"json int", json.Number("12"), Int(12)},
		{"json float", json.Number("1.25"), Double(1.25)},
		{"nil pointer", (*int)(nil), Null{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertIn(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("timestamp keeps offset", func(t *testing.T) {
		got, err := ConvertIn(ts)
		require.NoError(t, err)
		require.Equal(t, KindTimestamp, got.Kind())
		_, offset := got.(Timestamp).Time().Zone()
		assert.Equal(t, -8*60*60, offset)
	})

	t.Run("bytes are copied", func(t *testing.T) {
		raw := []byte("abc")
		got, err := ConvertIn(raw)
		require.NoError(t, err)
		raw[0] = 'z'
		assert.Equal(t, []byte("abc"), ConvertOut(got))
	})
}

func TestConvertIn_Collections(t *testing.T) {
	in := map[string]interface{}{
		"list":  []interface{}{1, "two", 3.0},
		"ints":  []int{1, 2},
		"inner": map[int]string{2: "b", 1: "a"},
	}

	got, err := ConvertIn(in)
	require.NoError(t, err)

	want := map[string]interface{}{
		"list":  []interface{}{int64(1), "two", 3.0},
		"ints":  []interface{}{int64(1), int64(2)},
		"inner": map[interface{}]interface{}{int64(1): "a", int64(2): "b"},
	}
	if diff := cmp.Diff(want, ConvertOut(got)); diff != "" {
		t.Errorf("ConvertOut mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertIn_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
	}{
		{"func", func() {}},
		{"struct", struct{ A int }{1}},
		{"channel", make(chan int)},
		{"float key", map[float64]int{1.5: 1}},
		{"nil key", map[interface{}]int{nil: 1}},
		{"nested func", []interface{}{1, func() {}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ConvertIn(tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, celerr.ErrInvalidArgument)
		})
	}
}

func TestMap_KeyOrderAndLookup(t *testing.T) {
	m, err := NewMap(
		MapEntry{Key: String("b"), Value: Int(2)},
		MapEntry{Key: Int(1), Value: Int(1)},
		MapEntry{Key: String("a"), Value: Int(3)},
		MapEntry{Key: String("b"), Value: Int(4)},
	)
	require.NoError(t, err)

	assert.Equal(t, 3, m.Len())
	v, ok := m.Get(String("b"))
	require.True(t, ok)
	assert.Equal(t, Int(4), v)

	_, ok = m.Get(Double(1))
	assert.False(t, ok)

	assert.Equal(t, `{1: 1, "a": 3, "b": 4}`, m.String())

	_, err = NewMap(MapEntry{Key: Double(1), Value: Null{}})
	assert.Error(t, err)
}

func TestCELRoundTrip(t *testing.T) {
	original := map[string]interface{}{
		"n":     int64(5),
		"u":     uint64(6),
		"f":     0.25,
		"s":     "epa1",
		"b":     []byte{0x01},
		"null":  nil,
		"when":  time.Unix(1700000000, 0).UTC(),
		"span":  time.Minute,
		"items": []interface{}{true, "x"},
	}

	in, err := ConvertIn(original)
	require.NoError(t, err)

	back, err := FromCEL(ToCEL(in))
	require.NoError(t, err)

	if diff := cmp.Diff(original, ConvertOut(back)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestNaNPreservedBitExact(t *testing.T) {
	nan := math.Float64frombits(0x7ff8000000000001)

	in, err := ConvertIn(nan)
	require.NoError(t, err)
	back, err := FromCEL(ToCEL(in))
	require.NoError(t, err)

	out, ok := ConvertOut(back).(float64)
	require.True(t, ok)
	assert.Equal(t, uint64(0x7ff8000000000001), math.Float64bits(out))

	inf, err := FromCEL(types.Double(math.Inf(-1)))
	require.NoError(t, err)
	assert.True(t, math.IsInf(ConvertOut(inf).(float64), -1))
}

func TestFromCEL_RejectsTypes(t *testing.T) {
	_, err := FromCEL(types.IntType)
	require.Error(t, err)
	assert.True(t, celerr.IsKind(err, celerr.KindInvalidArgument))
}

func TestDoubleString(t *testing.T) {
	assert.Equal(t, "8.0", Double(8).String())
	assert.Equal(t, "3.5", Double(3.5).String())
	assert.Equal(t, "NaN", Double(math.NaN()).String())
}
