package value

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/aescanero/dago-cel/internal/eval/celerr"
)

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	bytesType    = reflect.TypeOf([]byte(nil))
)

// ConvertIn converts a host value into the tagged model. Unsupported shapes
// fail with InvalidArgument; nothing is stringified.
func ConvertIn(host interface{}) (Value, error) {
	switch v := host.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return v, nil
	case bool:
		return Bool(v), nil
	case int:
		return Int(v), nil
	case int64:
		return Int(v), nil
	case int32:
		return Int(v), nil
	case uint64:
		return UInt(v), nil
	case float64:
		return Double(v), nil
	case string:
		return String(v), nil
	case []byte:
		return NewBytes(v), nil
	case time.Time:
		return NewTimestamp(v), nil
	case time.Duration:
		return Duration(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, celerr.Wrap(celerr.KindInvalidArgument, err, "invalid number %q", v.String())
		}
		return Double(f), nil
	case []interface{}:
		return convertSlice(reflect.ValueOf(v))
	case map[string]interface{}:
		return convertMap(reflect.ValueOf(v))
	}
	return convertReflect(reflect.ValueOf(host))
}

func convertReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Invalid:
		return Null{}, nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null{}, nil
		}
		return ConvertIn(rv.Elem().Interface())
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if rv.Type() == durationType {
			return Duration(rv.Int()), nil
		}
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return UInt(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return Double(rv.Float()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return NewBytes(rv.Bytes()), nil
		}
		return convertSlice(rv)
	case reflect.Array:
		return convertSlice(rv)
	case reflect.Map:
		return convertMap(rv)
	case reflect.Struct:
		if rv.Type().ConvertibleTo(timeType) {
			return NewTimestamp(rv.Convert(timeType).Interface().(time.Time)), nil
		}
	}
	return nil, celerr.New(celerr.KindInvalidArgument, "Failed to convert host value of type %s to a CEL value", rv.Type())
}

func convertSlice(rv reflect.Value) (Value, error) {
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		return NewList(), nil
	}
	items := make([]Value, rv.Len())
	for i := range items {
		item, err := ConvertIn(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		items[i] = item
	}
	return List{items: items}, nil
}

func convertMap(rv reflect.Value) (Value, error) {
	entries := make([]MapEntry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key, err := convertKey(iter.Key())
		if err != nil {
			return nil, err
		}
		val, err := ConvertIn(iter.Value().Interface())
		if err != nil {
			return nil, err
		}
		entries = append(entries, MapEntry{Key: key, Value: val})
	}
	m, err := NewMap(entries...)
	if err != nil {
		return nil, celerr.Wrap(celerr.KindInvalidArgument, err, "Failed to convert map: %v", err)
	}
	return m, nil
}

func convertKey(rv reflect.Value) (Value, error) {
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, celerr.New(celerr.KindInvalidArgument, "null cannot be used as a key in maps")
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return UInt(rv.Uint()), nil
	}
	return nil, celerr.New(celerr.KindInvalidArgument, "Failed to convert map key of type %s: keys must be string, int, uint or bool", rv.Type())
}

// ConvertOut converts a Value into its host form
func ConvertOut(v Value) interface{} {
	switch t := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(t)
	case Int:
		return int64(t)
	case UInt:
		return uint64(t)
	case Double:
		return float64(t)
	case String:
		return string(t)
	case Bytes:
		return t.Bytes()
	case Timestamp:
		return t.Time()
	case Duration:
		return time.Duration(t)
	case List:
		out := make([]interface{}, len(t.items))
		for i, item := range t.items {
			out[i] = ConvertOut(item)
		}
		return out
	case Map:
		return mapOut(t)
	case *Optional:
		return t
	}
	panic(fmt.Sprintf("value: unknown variant %T", v))
}

func mapOut(m Map) interface{} {
	stringKeys := true
	for _, e := range m.entries {
		if e.Key.Kind() != KindString {
			stringKeys = false
			break
		}
	}
	if stringKeys {
		out := make(map[string]interface{}, len(m.entries))
		for _, e := range m.entries {
			out[string(e.Key.(String))] = ConvertOut(e.Value)
		}
		return out
	}
	out := make(map[interface{}]interface{}, len(m.entries))
	for _, e := range m.entries {
		out[ConvertOut(e.Key)] = ConvertOut(e.Value)
	}
	return out
}
