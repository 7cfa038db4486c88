// Package value bridges Go host values and the tagged CEL value model.
//
// A Value is one of Null, Bool, Int, UInt, Double, String, Bytes, Timestamp,
// Duration, List, Map or *Optional. Lists and maps are immutable snapshots
// taken at conversion time; map keys are limited to String, Int, UInt and Bool.
//
// There is one conversion per direction on each side of the bridge:
//
//	v, err := value.ConvertIn(map[string]interface{}{"price": 10, "tags": []string{"a"}})
//	host := value.ConvertOut(v) // map[string]interface{}{"price": int64(10), "tags": []interface{}{"a"}}
//
//	rv := value.ToCEL(v)         // interpreter representation
//	back, err := value.FromCEL(rv)
//
// Shapes the model cannot represent (structs, channels, functions, maps with
// float keys) fail with an InvalidArgument error instead of being stringified.
package value
