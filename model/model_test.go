package model

import (
	"reflect"
	"testing"
	"time"

	"github.com/ridge/siltstone/wire"
	"github.com/stretchr/testify/require"
)

func TestField(t *testing.T) {
	require.Equal(t, "Foo", Field{GoName: "Foo"}.String())
	require.Equal(t, "Foo (foo)", Field{GoName: "Foo", DBName: "foo"}.String())
}

func TestSurvey(t *testing.T) {
	type UserID string
	type User struct {
		Meta `siltstone:"name=users"`

		ID       UserID `siltstone:"identity"`
		Email    string `siltstone:"name=email,required"`
		Admin    bool
		internal int `siltstone:"-"`
	}
	_ = User{internal: 0}

	s := SurveyDocument(reflect.TypeOf(User{}))
	require.Equal(t, "users", s.Collection)
	require.Len(t, s.Fields, 3)
	require.Equal(t, "ID", s.Identity().GoName)
	require.True(t, s.Identity().Required)

	email, ok := s.Field("Email")
	require.True(t, ok)
	require.Equal(t, "email", email.DBName)
	require.True(t, email.Required)

	admin, ok := s.Field("Admin")
	require.True(t, ok)
	require.Equal(t, "Admin", admin.DBName)
	require.False(t, admin.Required)

	_, ok = s.Field("Missing")
	require.False(t, ok)
}

func TestSurveyEmbedded(t *testing.T) {
	type header struct {
		ID      string `siltstone:"identity"`
		Created time.Time
	}
	type Order struct {
		Meta `siltstone:"name=orders"`
		header

		Total float64
	}

	s := SurveyDocument(reflect.TypeOf(Order{}))
	require.Equal(t, "orders", s.Collection)
	require.Len(t, s.Fields, 3)
	require.Equal(t, "ID", s.Identity().GoName)

	created, ok := s.Field("Created")
	require.True(t, ok)
	require.Equal(t, []int{1, 1}, created.Index)
}

func TestSurveyPanics(t *testing.T) {
	type noCollection struct {
		ID string `siltstone:"identity"`
	}
	require.Panics(t, func() { SurveyDocument(reflect.TypeOf(noCollection{})) })

	type noIdentity struct {
		Meta `siltstone:"name=foo"`
		A    string
	}
	require.Panics(t, func() { SurveyDocument(reflect.TypeOf(noIdentity{})) })

	type badIdentity struct {
		Meta `siltstone:"name=foo"`
		ID   int `siltstone:"identity"`
	}
	require.Panics(t, func() { Survey(reflect.TypeOf(badIdentity{})) })

	type duplicate struct {
		Meta `siltstone:"name=foo"`
		A    string `siltstone:"name=x"`
		B    string `siltstone:"name=x"`
	}
	require.Panics(t, func() { Survey(reflect.TypeOf(duplicate{})) })

	require.Panics(t, func() { Survey(reflect.TypeOf(42)) })
}

func TestEncodeDecode(t *testing.T) {
	type User struct {
		Meta `siltstone:"name=users"`

		ID      string `siltstone:"identity"`
		Email   string `siltstone:"name=email,required"`
		Age     int
		Admin   bool
		Joined  time.Time
		Aliases []string
	}
	s := SurveyDocument(reflect.TypeOf(User{}))

	joined := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)
	user := User{ID: "17", Email: "a@b.c", Age: 42, Joined: joined, Aliases: []string{"x"}}

	require.Equal(t, wire.Ref{ID: "17", Collection: &wire.Ref{ID: "users"}}, Ref(s, user))

	data, err := Encode(s, user)
	require.NoError(t, err)
	require.Equal(t, "a@b.c", data["email"])
	require.Equal(t, wire.Time(joined), data["Joined"])
	_, hasID := data["ID"]
	require.False(t, hasID)

	// the resource a server would answer with
	resource := wire.Obj{
		"ref": wire.Ref{ID: "17", Collection: &wire.Ref{ID: "users"}},
		"ts":  1.0,
		"data": wire.Obj{
			"email":   "a@b.c",
			"Age":     42.0,
			"Admin":   false,
			"Joined":  wire.Time(joined),
			"Aliases": wire.Arr{"x"},
		},
	}
	var decoded User
	require.NoError(t, Decode(s, resource, &decoded))
	require.Equal(t, user, decoded)
}

func TestEncodeRequired(t *testing.T) {
	type User struct {
		Meta `siltstone:"name=users"`

		ID    string `siltstone:"identity"`
		Email string `siltstone:"required"`
	}
	s := SurveyDocument(reflect.TypeOf(User{}))

	_, err := Encode(s, User{ID: "17"})
	require.Error(t, err)
}

func TestDecodeErrors(t *testing.T) {
	type User struct {
		Meta `siltstone:"name=users"`

		ID    string `siltstone:"identity"`
		Email string `siltstone:"name=email,required"`
	}
	s := SurveyDocument(reflect.TypeOf(User{}))

	var decoded User
	require.Error(t, Decode(s, wire.Obj{"data": wire.Obj{"email": "a@b.c"}}, &decoded))

	resource := wire.Obj{
		"ref":  wire.Ref{ID: "17", Collection: &wire.Ref{ID: "users"}},
		"data": wire.Obj{},
	}
	require.Error(t, Decode(s, resource, &decoded))
}
