package value

import (
	"time"

	"github.com/aescanero/dago-cel/internal/eval/celerr"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// ToCEL converts a Value into the interpreter representation
func ToCEL(v Value) ref.Val {
	switch t := v.(type) {
	case nil, Null:
		return types.NullValue
	case Bool:
		return types.Bool(t)
	case Int:
		return types.Int(t)
	case UInt:
		return types.Uint(t)
	case Double:
		return types.Double(t)
	case String:
		return types.String(t)
	case Bytes:
		return types.Bytes(t.Bytes())
	case Timestamp:
		return types.Timestamp{Time: t.Time()}
	case Duration:
		return types.Duration{Duration: time.Duration(t)}
	case List:
		elems := make([]ref.Val, len(t.items))
		for i, item := range t.items {
			elems[i] = ToCEL(item)
		}
		return types.NewRefValList(types.DefaultTypeAdapter, elems)
	case Map:
		entries := make(map[ref.Val]ref.Val, len(t.entries))
		for _, e := range t.entries {
			entries[ToCEL(e.Key)] = ToCEL(e.Value)
		}
		return types.NewRefValMap(types.DefaultTypeAdapter, entries)
	case *Optional:
		if !t.HasValue() {
			return types.OptionalNone
		}
		return types.OptionalOf(ToCEL(t.value))
	}
	return types.NewErr("unsupported value kind %s", v.Kind())
}

// FromCEL converts an interpreter value back into the tagged model. Values
// outside the model (types, messages, unknowns) fail with InvalidArgument.
func FromCEL(v ref.Val) (Value, error) {
	switch t := v.(type) {
	case types.Null:
		return Null{}, nil
	case types.Bool:
		return Bool(t), nil
	case types.Int:
		return Int(t), nil
	case types.Uint:
		return UInt(t), nil
	case types.Double:
		return Double(t), nil
	case types.String:
		return String(t), nil
	case types.Bytes:
		return NewBytes(t), nil
	case types.Timestamp:
		return NewTimestamp(t.Time), nil
	case types.Duration:
		return Duration(t.Duration), nil
	case *types.Optional:
		if !t.HasValue() {
			return OptionalNone(), nil
		}
		inner, err := FromCEL(t.GetValue())
		if err != nil {
			return nil, err
		}
		return Present(inner), nil
	case traits.Mapper:
		return mapFromCEL(t)
	case traits.Lister:
		return listFromCEL(t)
	}
	if v == nil {
		return Null{}, nil
	}
	return nil, celerr.New(celerr.KindInvalidArgument, "Failed to convert CEL value of type %s to a host value", v.Type().TypeName())
}

func listFromCEL(l traits.Lister) (Value, error) {
	size, ok := l.Size().(types.Int)
	if !ok {
		return nil, celerr.New(celerr.KindInvalidArgument, "Failed to determine list size")
	}
	items := make([]Value, 0, int(size))
	for i := types.Int(0); i < size; i++ {
		item, err := FromCEL(l.Get(i))
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return List{items: items}, nil
}

func mapFromCEL(m traits.Mapper) (Value, error) {
	var entries []MapEntry
	it := m.Iterator()
	for it.HasNext() == types.True {
		k := it.Next()
		key, err := FromCEL(k)
		if err != nil {
			return nil, err
		}
		val, err := FromCEL(m.Get(k))
		if err != nil {
			return nil, err
		}
		entries = append(entries, MapEntry{Key: key, Value: val})
	}
	out, err := NewMap(entries...)
	if err != nil {
		return nil, celerr.Wrap(celerr.KindInvalidArgument, err, "Failed to convert CEL map: %v", err)
	}
	return out, nil
}
