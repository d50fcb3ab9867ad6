package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// Decode parses arbitrary incoming JSON into the typed value model.
//
// The four extended wrapper tags (@ref, @set, @ts, @query) are rewritten into
// the corresponding extended types. A parse error is returned as an error
// rather than a panic; callers must treat it as "no typed payload available".
func Decode(data []byte) (Value, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("malformed wire value: %w", err)
	}
	return rewrite(raw)
}

func rewrite(v any) (Value, error) {
	switch value := v.(type) {
	case map[string]any:
		return rewriteObject(value)
	case []any:
		res := make(Arr, len(value))
		for i, item := range value {
			rewritten, err := rewrite(item)
			if err != nil {
				return nil, err
			}
			res[i] = rewritten
		}
		return res, nil
	default:
		return value, nil
	}
}

func rewriteObject(m map[string]any) (Value, error) {
	for _, tag := range []string{"@ref", "@set", "@ts", "@query"} {
		wrapped, ok := m[tag]
		if !ok {
			continue
		}
		if len(m) != 1 {
			return nil, fmt.Errorf("%s must appear alone", tag)
		}
		inner, err := rewrite(wrapped)
		if err != nil {
			return nil, err
		}
		switch tag {
		case "@ref":
			return rewriteRef(inner)
		case "@set":
			obj, ok := inner.(Obj)
			if !ok {
				return nil, fmt.Errorf("@set must wrap an object, got %T", inner)
			}
			return SetRef{Parameters: obj}, nil
		case "@ts":
			s, ok := inner.(string)
			if !ok {
				return nil, fmt.Errorf("@ts must wrap a string, got %T", inner)
			}
			ts, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, fmt.Errorf("malformed @ts value: %w", err)
			}
			return Time(ts), nil
		default: // @query
			return QueryLit{Lambda: inner}, nil
		}
	}

	res := make(Obj, len(m))
	for k, v := range m {
		rewritten, err := rewrite(v)
		if err != nil {
			return nil, err
		}
		res[k] = rewritten
	}
	return res, nil
}

func rewriteRef(inner Value) (Value, error) {
	obj, ok := inner.(Obj)
	if !ok {
		return nil, fmt.Errorf("@ref must wrap an object, got %T", inner)
	}
	id, ok := obj["id"].(string)
	if !ok {
		return nil, fmt.Errorf("@ref without an id")
	}
	ref := Ref{ID: id}
	if parent, ok := obj["collection"]; ok {
		parentRef, ok := parent.(Ref)
		if !ok {
			return nil, fmt.Errorf("@ref collection must be a ref, got %T", parent)
		}
		ref.Collection = &parentRef
	}
	if parent, ok := obj["database"]; ok {
		parentRef, ok := parent.(Ref)
		if !ok {
			return nil, fmt.Errorf("@ref database must be a ref, got %T", parent)
		}
		ref.Database = &parentRef
	}
	return ref, nil
}
