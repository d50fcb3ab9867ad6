package query

import (
	"testing"

	"github.com/ridge/must/v2"
	"github.com/ridge/siltstone/wire"
	"github.com/stretchr/testify/require"
)

func encoded(t *testing.T, expr Expr) string {
	return string(must.OK1(wire.Encode(expr)))
}

func TestRefs(t *testing.T) {
	require.JSONEq(t, `{"collection": "users"}`, encoded(t, Collection("users")))
	require.JSONEq(t, `{"database": "prod"}`, encoded(t, Database("prod")))
	require.JSONEq(t, `{"index": "users_by_email"}`, encoded(t, Index("users_by_email")))
	require.JSONEq(t, `{"ref": {"collection": "users"}, "id": "17"}`,
		encoded(t, Ref(Collection("users"), "17")))
}

func TestDocumentOperations(t *testing.T) {
	require.JSONEq(t, `{"get": {"ref": {"collection": "users"}, "id": "17"}}`,
		encoded(t, Get(Ref(Collection("users"), "17"))))

	require.JSONEq(t,
		`{"create": {"collection": "users"}, "params": {"object": {"data": {"object": {"name": "Alice"}}}}}`,
		encoded(t, Create(Collection("users"), Obj(map[string]any{
			"data": Obj(map[string]any{"name": "Alice"}),
		}))))

	require.JSONEq(t,
		`{"update": {"ref": {"collection": "users"}, "id": "17"}, "params": {"object": {"data": {"object": {"name": "Bob"}}}}}`,
		encoded(t, Update(Ref(Collection("users"), "17"), Obj(map[string]any{
			"data": Obj(map[string]any{"name": "Bob"}),
		}))))

	require.JSONEq(t, `{"delete": {"ref": {"collection": "users"}, "id": "17"}}`,
		encoded(t, Delete(Ref(Collection("users"), "17"))))

	require.JSONEq(t, `{"create_collection": {"object": {"name": "users"}}}`,
		encoded(t, CreateCollection(Obj(map[string]any{"name": "users"}))))
}

func TestSets(t *testing.T) {
	require.JSONEq(t, `{"documents": {"collection": "users"}}`,
		encoded(t, Documents(Collection("users"))))
	require.JSONEq(t, `{"match": {"index": "users_by_email"}}`,
		encoded(t, Match(Index("users_by_email"))))
	require.JSONEq(t, `{"match": {"index": "users_by_email"}, "terms": ["a@b.c"]}`,
		encoded(t, Match(Index("users_by_email"), "a@b.c")))
	require.JSONEq(t, `{"paginate": {"documents": {"collection": "users"}}}`,
		encoded(t, Paginate(Documents(Collection("users")))))
}

func TestFunctional(t *testing.T) {
	require.JSONEq(t,
		`{"map": {"lambda": "x", "expr": {"get": {"var": "x"}}}, "collection": {"paginate": {"documents": {"collection": "users"}}}}`,
		encoded(t, Map(
			Paginate(Documents(Collection("users"))),
			Lambda("x", Get(Var("x"))))))

	require.JSONEq(t,
		`{"let": [{"a": 1}], "in": {"add": [{"var": "a"}, 2]}}`,
		encoded(t, Let(map[string]any{"a": 1}, Add(Var("a"), 2))))

	require.JSONEq(t,
		`{"select": ["data", "name"], "from": {"get": {"ref": {"collection": "users"}, "id": "17"}}}`,
		encoded(t, Select([]any{"data", "name"}, Get(Ref(Collection("users"), "17")))))

	require.JSONEq(t, `{"now": null}`, encoded(t, Now()))
}

func TestExtendedTypesInExpressions(t *testing.T) {
	// decoded values can be fed straight back into expressions
	ref := wire.Ref{ID: "17", Collection: &wire.Ref{ID: "users"}}
	require.JSONEq(t, `{"get": {"@ref": {"id": "17", "collection": {"@ref": {"id": "users"}}}}}`,
		encoded(t, Get(ref)))
}
