package model

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/ridge/siltstone/wire"
)

var (
	timeType     = reflect.TypeOf(time.Time{})
	wireTimeType = reflect.TypeOf(wire.Time{})
)

// Ref returns the document reference for a structure value
func Ref(metaStruct Struct, doc any) wire.Ref {
	v := reflect.ValueOf(doc)
	if v.Type() != metaStruct.Type {
		panic(fmt.Sprintf("expected struct type %v", metaStruct.Type))
	}
	return wire.Ref{
		ID:         v.FieldByIndex(metaStruct.Identity().Index).String(),
		Collection: &wire.Ref{ID: metaStruct.Collection},
	}
}

// Encode serializes a structure value into the data object of a document.
// The identity field is not part of the data; it lives in the document ref.
func Encode(metaStruct Struct, doc any) (wire.Obj, error) {
	v := reflect.ValueOf(doc)
	if v.Type() != metaStruct.Type {
		panic(fmt.Sprintf("expected struct type %v", metaStruct.Type))
	}

	data := wire.Obj{}
	for i, field := range metaStruct.Fields {
		if i == metaStruct.identity {
			continue
		}
		f := v.FieldByIndex(field.Index)
		if field.Required && f.IsZero() {
			return nil, fmt.Errorf("document encoding failed: required field %s of %s is empty", field, metaStruct)
		}
		if f.Type() == timeType {
			data[field.DBName] = wire.Time(f.Interface().(time.Time))
			continue
		}
		data[field.DBName] = f.Interface()
	}
	return data, nil
}

// Decode deserializes a document resource into the structure pointed to by
// out. The identity field is filled from the document ref, the rest from the
// data object.
func Decode(metaStruct Struct, resource wire.Obj, out any) error {
	p := reflect.ValueOf(out)
	if p.Kind() != reflect.Pointer || p.Elem().Type() != metaStruct.Type {
		panic(fmt.Sprintf("expected pointer to struct type %v", metaStruct.Type))
	}
	v := p.Elem()
	v.Set(reflect.Zero(metaStruct.Type))

	ref, ok := resource["ref"].(wire.Ref)
	if !ok {
		return fmt.Errorf("document decoding failed: %s: resource has no ref", metaStruct)
	}
	v.FieldByIndex(metaStruct.Identity().Index).SetString(ref.ID)

	data, _ := resource["data"].(wire.Obj)
	for i, field := range metaStruct.Fields {
		if i == metaStruct.identity {
			continue
		}
		raw, ok := data[field.DBName]
		if !ok || raw == nil {
			if field.Required {
				return fmt.Errorf("document decoding failed: required field %s of %s missing", field, metaStruct)
			}
			continue
		}
		if err := assign(v.FieldByIndex(field.Index), raw); err != nil {
			return fmt.Errorf("document decoding failed: field %s of %s: %w", field, metaStruct, err)
		}
	}
	return nil
}

// assign stores a decoded wire value into a structure field, converting
// between the wire representation and the field type where needed
func assign(f reflect.Value, raw wire.Value) error {
	rv := reflect.ValueOf(raw)
	switch {
	case rv.Type().AssignableTo(f.Type()):
		f.Set(rv)
		return nil
	case f.Type() == timeType && rv.Type() == wireTimeType:
		f.Set(rv.Convert(timeType))
		return nil
	}

	switch f.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		// JSON numbers arrive as float64
		if rv.Kind() == reflect.Float64 || rv.Kind() == reflect.Int64 {
			f.Set(rv.Convert(f.Type()))
			return nil
		}
	}

	// structured values: take the JSON round trip
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, f.Addr().Interface())
}
