package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeExtendedTypes(t *testing.T) {
	data, err := Encode(Ref{ID: "17", Collection: &Ref{ID: "users"}})
	require.NoError(t, err)
	require.JSONEq(t, `{"@ref": {"id": "17", "collection": {"@ref": {"id": "users"}}}}`, string(data))

	data, err = Encode(Time(time.Date(2001, 2, 3, 4, 5, 6, 789000000, time.UTC)))
	require.NoError(t, err)
	require.JSONEq(t, `{"@ts": "2001-02-03T04:05:06.789Z"}`, string(data))

	data, err = Encode(SetRef{Parameters: Obj{"documents": Ref{ID: "users"}}})
	require.NoError(t, err)
	require.JSONEq(t, `{"@set": {"documents": {"@ref": {"id": "users"}}}}`, string(data))

	data, err = Encode(QueryLit{Lambda: Obj{"lambda": "x"}})
	require.NoError(t, err)
	require.JSONEq(t, `{"@query": {"lambda": "x"}}`, string(data))
}

func TestEncodeContainers(t *testing.T) {
	data, err := Encode(Obj{
		"a":   Arr{1, "b", nil},
		"ref": Ref{ID: "17"},
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"a": [1, "b", null], "ref": {"@ref": {"id": "17"}}}`, string(data))

	// typed maps and slices take the reflective path
	data, err = Encode(map[string]Ref{"r": {ID: "17"}})
	require.NoError(t, err)
	require.JSONEq(t, `{"r": {"@ref": {"id": "17"}}}`, string(data))

	data, err = Encode([]string{"a", "b"})
	require.NoError(t, err)
	require.JSONEq(t, `["a", "b"]`, string(data))

	_, err = Encode(map[int]string{1: "a"})
	require.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := Obj{
		"ref":  Ref{ID: "17", Collection: &Ref{ID: "users", Collection: &Ref{ID: "collections"}}},
		"at":   Time(time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)),
		"tags": Arr{"a", "b"},
	}
	data, err := Encode(original)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, original, decoded)
}
