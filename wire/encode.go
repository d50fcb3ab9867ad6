package wire

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Encode serializes a query expression to its canonical wire JSON form.
//
// Values implementing Expander are expanded recursively, so expression
// builders and extended types don't need to expand their children themselves.
func Encode(expr Value) ([]byte, error) {
	expanded, err := expand(expr)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(expanded)
	if err != nil {
		return nil, fmt.Errorf("expression encoding failed: %w", err)
	}
	return data, nil
}

func expand(v Value) (Value, error) {
	switch value := v.(type) {
	case Expander:
		return expand(value.WireJSON())
	case Obj:
		return expandMap(value)
	case map[string]any:
		return expandMap(value)
	case Arr:
		return expandSlice(value)
	case []any:
		return expandSlice(value)
	case nil, bool, string, float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.RawMessage:
		return value, nil
	default:
		// Maps and slices of more specific types (map[string]string etc.)
		// may still contain Expanders and need a reflective walk.
		switch rv := reflect.ValueOf(v); rv.Kind() {
		case reflect.Map:
			res := Obj{}
			for _, key := range rv.MapKeys() {
				name, ok := key.Interface().(string)
				if !ok {
					return nil, fmt.Errorf("expression encoding failed: non-string map key %v", key)
				}
				expanded, err := expand(rv.MapIndex(key).Interface())
				if err != nil {
					return nil, err
				}
				res[name] = expanded
			}
			return res, nil
		case reflect.Slice, reflect.Array:
			res := make(Arr, rv.Len())
			for i := range res {
				expanded, err := expand(rv.Index(i).Interface())
				if err != nil {
					return nil, err
				}
				res[i] = expanded
			}
			return res, nil
		default:
			return value, nil
		}
	}
}

func expandMap[M ~map[string]any](m M) (Value, error) {
	res := make(Obj, len(m))
	for k, v := range m {
		expanded, err := expand(v)
		if err != nil {
			return nil, err
		}
		res[k] = expanded
	}
	return res, nil
}

func expandSlice[S ~[]any](s S) (Value, error) {
	res := make(Arr, len(s))
	for i, v := range s {
		expanded, err := expand(v)
		if err != nil {
			return nil, err
		}
		res[i] = expanded
	}
	return res, nil
}
