// Package query provides builders for query expressions.
//
// A builder produces an expression tree that the wire codec serializes to the
// canonical JSON form. Builders do no network activity and no validation
// beyond their own shape; the server is the authority on semantics.
package query

import (
	"github.com/ridge/siltstone/wire"
)

// Expr is a query expression: a tree of function terms
type Expr struct {
	fn wire.Obj
}

// WireJSON implements wire.Expander
func (e Expr) WireJSON() wire.Value {
	return e.fn
}

func fn1(k1 string, v1 any) Expr {
	return Expr{fn: wire.Obj{k1: v1}}
}

func fn2(k1 string, v1 any, k2 string, v2 any) Expr {
	return Expr{fn: wire.Obj{k1: v1, k2: v2}}
}

// Obj wraps a literal object so that it is not mistaken for a function term
func Obj(fields map[string]any) Expr {
	return fn1("object", wire.Obj(fields))
}

// Ref builds a reference to a document within a collection
func Ref(collection Expr, id string) Expr {
	return fn2("ref", collection, "id", id)
}

// Collection builds a reference to a collection by name
func Collection(name string) Expr {
	return fn1("collection", name)
}

// Database builds a reference to a database by name
func Database(name string) Expr {
	return fn1("database", name)
}

// Index builds a reference to an index by name
func Index(name string) Expr {
	return fn1("index", name)
}

// Get retrieves the document the ref points to
func Get(ref any) Expr {
	return fn1("get", ref)
}

// Create creates a document in the collection with the given params
func Create(collection any, params Expr) Expr {
	return fn2("create", collection, "params", params)
}

// CreateCollection creates a collection with the given params
func CreateCollection(params Expr) Expr {
	return fn1("create_collection", params)
}

// CreateIndex creates an index with the given params
func CreateIndex(params Expr) Expr {
	return fn1("create_index", params)
}

// Update merges the params into the document the ref points to
func Update(ref any, params Expr) Expr {
	return fn2("update", ref, "params", params)
}

// Delete removes the document the ref points to
func Delete(ref any) Expr {
	return fn1("delete", ref)
}

// Documents selects the set of all documents in the collection
func Documents(collection any) Expr {
	return fn1("documents", collection)
}

// Match selects the set of documents matching the index terms
func Match(index any, terms ...any) Expr {
	if len(terms) == 0 {
		return fn1("match", index)
	}
	return fn2("match", index, "terms", wire.Arr(terms))
}

// Paginate materializes a page of the given set
func Paginate(set any) Expr {
	return fn1("paginate", set)
}

// Map applies the lambda to every element of the collection
func Map(collection any, lambda Expr) Expr {
	return fn2("map", lambda, "collection", collection)
}

// Lambda builds an anonymous function of one parameter
func Lambda(param string, body any) Expr {
	return fn2("lambda", param, "expr", body)
}

// Var references a lambda or let binding by name
func Var(name string) Expr {
	return fn1("var", name)
}

// Let introduces bindings visible in the in-expression through Var
func Let(bindings map[string]any, in any) Expr {
	pairs := make(wire.Arr, 0, len(bindings))
	for name, value := range bindings {
		pairs = append(pairs, wire.Obj{name: value})
	}
	return fn2("let", pairs, "in", in)
}

// Select extracts the value at the path from the target value
func Select(path any, from any) Expr {
	return fn2("select", path, "from", from)
}

// Add sums the arguments
func Add(args ...any) Expr {
	return fn1("add", wire.Arr(args))
}

// Now evaluates to the current transaction time
func Now() Expr {
	return fn1("now", nil)
}
