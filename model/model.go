// Package model maps Go structures to Siltstone documents.
//
// A document structure carries a dummy Meta field whose tag names the
// collection, and field tags control the stored names:
//
//	type User struct {
//	    model.Meta `siltstone:"name=users"`
//
//	    ID    string `siltstone:"identity"`
//	    Email string `siltstone:"name=email,required"`
//	    Admin bool
//	}
//
// Survey examines such a type once; Encode and Decode then translate between
// structure values and wire documents.
package model

import (
	"fmt"
	"reflect"
)

// Meta is a type for dummy fields bearing tags for the containing structure
type Meta struct{}

var metaType = reflect.TypeOf(Meta{})

// Field describes a leaf structure field (not an embedded substructure).
// All fields are read-only.
type Field struct {
	GoName string
	DBName string
	Index  []int
	Type   reflect.Type

	Required bool
}

// String returns the Go and stored field names
func (f Field) String() string {
	if f.DBName != "" && f.DBName != f.GoName {
		return fmt.Sprintf("%s (%s)", f.GoName, f.DBName)
	}
	return f.GoName
}

// Struct describes a document structure.
// All fields are read-only.
type Struct struct {
	Collection string
	Type       reflect.Type
	Fields     []Field
	identity   int // index into Fields
}

const noIdentity = -1

// String returns the Go type and collection names
func (s Struct) String() string {
	return fmt.Sprintf("%s (%s)", s.Type, s.Collection)
}

// Identity returns the structure's identity field
func (s Struct) Identity() Field {
	return s.Fields[s.identity]
}

// Field finds the field with a given Go name (if exists and is unique)
func (s Struct) Field(name string) (Field, bool) {
	f, ok := s.Type.FieldByName(name)
	if !ok {
		return Field{}, false
	}
	for _, field := range s.Fields {
		if field.GoName == name {
			return field, true
		}
	}
	// skipped field: return anyway to let callers reach it by index
	return Field{GoName: name, Index: f.Index, Type: f.Type}, true
}
