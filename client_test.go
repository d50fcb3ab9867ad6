package siltstone

import (
	"context"
	"fmt"
	"testing"

	"github.com/ridge/must/v2"
	"github.com/ridge/parallel"
	"github.com/ridge/siltstone/mock"
	"github.com/ridge/siltstone/query"
	"github.com/ridge/siltstone/stream"
	"github.com/ridge/siltstone/test"
	"github.com/ridge/siltstone/thttp"
	"github.com/ridge/siltstone/tnet"
	"github.com/ridge/siltstone/wire"
	"github.com/stretchr/testify/require"
)

func startMock(t *testing.T, group *parallel.Group) *Client {
	s := thttp.NewServer(tnet.ListenOnRandomPort(), mock.NewServer("secret").Router())
	group.Spawn("server", parallel.Fail, s.Run)
	client, err := New(Config{Endpoint: s.ListenAddr().String(), Secret: "secret"})
	require.NoError(t, err)
	return client
}

func TestQueryLifecycle(t *testing.T) {
	group := test.Group(t)
	client := startMock(t, group)
	ctx := group.Context()

	require.NoError(t, client.Ping(ctx))

	_, ok := client.LastTxnTime()
	require.False(t, ok)

	res, err := client.Query(ctx, query.CreateCollection(query.Obj(map[string]any{"name": "users"})))
	require.NoError(t, err)
	require.Equal(t, "users", res.(wire.Obj)["name"])

	afterCreate, ok := client.LastTxnTime()
	require.True(t, ok)

	res, err = client.Query(ctx, query.Create(query.Collection("users"),
		query.Obj(map[string]any{"data": query.Obj(map[string]any{"name": "Alice"})})))
	require.NoError(t, err)
	doc := res.(wire.Obj)
	ref, ok := doc["ref"].(wire.Ref)
	require.True(t, ok)
	require.Equal(t, "users", ref.Collection.ID)
	require.Equal(t, wire.Obj{"name": "Alice"}, doc["data"])

	afterDoc, _ := client.LastTxnTime()
	require.Greater(t, afterDoc, afterCreate)

	// a decoded ref works as an expression
	res, err = client.Query(ctx, query.Get(ref))
	require.NoError(t, err)
	require.Equal(t, wire.Obj{"name": "Alice"}, res.(wire.Obj)["data"])

	res, err = client.Query(ctx, query.Update(ref,
		query.Obj(map[string]any{"data": query.Obj(map[string]any{"admin": true})})))
	require.NoError(t, err)
	require.Equal(t, wire.Obj{"name": "Alice", "admin": true}, res.(wire.Obj)["data"])

	res, err = client.Query(ctx, query.Paginate(query.Documents(query.Collection("users"))))
	require.NoError(t, err)
	page := res.(wire.Obj)["data"].(wire.Arr)
	require.Len(t, page, 1)
	require.True(t, page[0].(wire.Ref).Equal(ref))

	_, err = client.Query(ctx, query.Delete(ref))
	require.NoError(t, err)

	_, err = client.Query(ctx, query.Get(ref))
	var notFound wire.NotFound
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "instance not found", notFound.Code())
}

func TestQueryErrors(t *testing.T) {
	group := test.Group(t)
	client := startMock(t, group)
	ctx := group.Context()

	_, err := client.Query(ctx, query.Now())
	var badRequest wire.BadRequest
	require.ErrorAs(t, err, &badRequest)

	unauthorized, err := New(Config{Endpoint: client.endpoint.Host, Secret: "wrong"})
	require.NoError(t, err)
	_, err = unauthorized.Query(ctx, query.CreateCollection(query.Obj(map[string]any{"name": "users"})))
	var unauthorizedErr wire.Unauthorized
	require.ErrorAs(t, err, &unauthorizedErr)
}

func TestSyncLastTxnTime(t *testing.T) {
	client, err := New(Config{Endpoint: "localhost:1"})
	require.NoError(t, err)

	client.SyncLastTxnTime(100)
	last, ok := client.LastTxnTime()
	require.True(t, ok)
	require.Equal(t, wire.Timestamp(100), last)

	client.SyncLastTxnTime(50)
	last, _ = client.LastTxnTime()
	require.Equal(t, wire.Timestamp(100), last)
}

func TestStreamDocument(t *testing.T) {
	group := test.Group(t)
	client := startMock(t, group)
	ctx := group.Context()

	_, err := client.Query(ctx, query.CreateCollection(query.Obj(map[string]any{"name": "users"})))
	require.NoError(t, err)
	res, err := client.Query(ctx, query.Create(query.Collection("users"),
		query.Obj(map[string]any{"data": query.Obj(map[string]any{"n": 0})})))
	require.NoError(t, err)
	ref := res.(wire.Obj)["ref"].(wire.Ref)

	sub, err := client.Stream(ref, stream.Options{})
	require.NoError(t, err)

	started := make(chan struct{})
	versions := make(chan stream.Version, 1)
	require.NoError(t, sub.On(stream.KindStart, func(stream.Event) {
		close(started)
	}))
	require.NoError(t, sub.On(stream.KindVersion, func(ev stream.Event) {
		versions <- ev.(stream.Version)
	}))
	require.NoError(t, sub.On(stream.KindError, func(ev stream.Event) {
		t.Errorf("stream error: %v", ev.(stream.Error).Cause)
	}))

	done := make(chan struct{})
	group.Spawn("stream", parallel.Continue, func(ctx context.Context) error {
		defer close(done)
		return sub.Start(ctx)
	})

	select {
	case <-started:
	case <-ctx.Done():
		t.Fatal("no start event")
	}

	_, err = client.Query(ctx, query.Update(ref,
		query.Obj(map[string]any{"data": query.Obj(map[string]any{"n": 1})})))
	require.NoError(t, err)

	select {
	case version := <-versions:
		payload := version.Payload.(wire.Obj)
		require.Equal(t, "update", payload["action"])
		document := payload["document"].(wire.Obj)
		require.Equal(t, 1.0, document["data"].(wire.Obj)["n"])

		// by delivery time the client's clock has caught up
		last, ok := client.LastTxnTime()
		require.True(t, ok)
		require.GreaterOrEqual(t, last, version.Txn)
	case <-ctx.Done():
		t.Fatal("no version event")
	}

	require.NoError(t, sub.Close())
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("stream did not finish")
	}
}

func TestStreamRejection(t *testing.T) {
	group := test.Group(t)
	client := startMock(t, group)

	sub, err := client.Stream(query.Now(), stream.Options{})
	require.NoError(t, err)

	rejections := make(chan stream.Error, 1)
	require.NoError(t, sub.On(stream.KindError, func(ev stream.Event) {
		rejections <- ev.(stream.Error)
	}))

	done := make(chan struct{})
	group.Spawn("stream", parallel.Continue, func(ctx context.Context) error {
		defer close(done)
		return sub.Start(ctx)
	})

	select {
	case rejection := <-rejections:
		var badRequest wire.BadRequest
		require.ErrorAs(t, rejection.Cause, &badRequest)
	case <-group.Context().Done():
		t.Fatal("no rejection event")
	}

	select {
	case <-done:
	case <-group.Context().Done():
		t.Fatal("stream did not finish")
	}
}

func TestStreamFanout(t *testing.T) {
	const subscriptions = 101

	group := test.Group(t)
	client := startMock(t, group)
	ctx := group.Context()

	_, err := client.Query(ctx, query.CreateCollection(query.Obj(map[string]any{"name": "cells"})))
	require.NoError(t, err)

	refs := make([]wire.Ref, subscriptions)
	for i := range refs {
		res, err := client.Query(ctx, query.Create(query.Collection("cells"),
			query.Obj(map[string]any{"data": query.Obj(map[string]any{"index": -1})})))
		require.NoError(t, err)
		refs[i] = res.(wire.Obj)["ref"].(wire.Ref)
	}

	received := make(chan int, subscriptions)
	for i := range refs {
		i := i
		sub, err := client.Stream(refs[i], stream.Options{})
		require.NoError(t, err)

		require.NoError(t, sub.On(stream.KindStart, func(stream.Event) {
			// the subscription is live; make the write it should observe
			_, err := client.Query(ctx, query.Update(refs[i],
				query.Obj(map[string]any{"data": query.Obj(map[string]any{"index": i})})))
			if err != nil {
				t.Errorf("update %d: %v", i, err)
			}
		}))
		require.NoError(t, sub.On(stream.KindVersion, func(ev stream.Event) {
			payload := ev.(stream.Version).Payload.(wire.Obj)
			document := payload["document"].(wire.Obj)
			received <- int(document["data"].(wire.Obj)["index"].(float64))
			must.OK(sub.Close())
		}))

		group.Spawn(fmt.Sprintf("stream-%d", i), parallel.Continue, sub.Start)
	}

	indices := map[int]bool{}
	for len(indices) < subscriptions {
		select {
		case index := <-received:
			require.False(t, indices[index], "index %d delivered to two subscriptions", index)
			indices[index] = true
		case <-ctx.Done():
			t.Fatalf("got %d of %d events", len(indices), subscriptions)
		}
	}
}
