package stream

import (
	"testing"

	"github.com/ridge/siltstone/test"
	"github.com/stretchr/testify/require"
)

func TestDispatcher(t *testing.T) {
	ctx := test.Context(t)
	d := NewDispatcher()

	var received []Event
	require.NoError(t, d.On(KindVersion, func(ev Event) {
		received = append(received, ev)
	}))

	d.Dispatch(ctx, Version{Txn: 1})
	d.Dispatch(ctx, Version{Txn: 2})
	require.Len(t, received, 2)
	require.Equal(t, Version{Txn: 1}, received[0])

	// events without a registered callback are dropped
	d.Dispatch(ctx, Start{SubscribedAt: 1})
	require.Len(t, received, 2)

	// replacing and unregistering
	require.NoError(t, d.On(KindVersion, func(ev Event) {
		t.Fatal("stale callback invoked")
	}))
	require.NoError(t, d.On(KindVersion, nil))
	d.Dispatch(ctx, Version{Txn: 3})
	require.Len(t, received, 2)
}

func TestDispatcherInvalidKind(t *testing.T) {
	d := NewDispatcher()
	require.Error(t, d.On(Kind(42), func(Event) {}))
	require.Error(t, d.On(Kind(-1), nil))
}
