package stream

import (
	"context"

	"github.com/ridge/siltstone/wire"
)

// A Subscription binds one stream connection and one event dispatcher to a
// single query expression and options.
//
// Construct subscriptions through the client's Stream method.
type Subscription struct {
	conn       *Connection
	dispatcher *Dispatcher
}

// New creates a subscription for the given expression.
//
// Option problems (an unrecognized field name) are reported here, before any
// network activity.
func New(config Config, expr wire.Value, options Options) (*Subscription, error) {
	conn, err := newConnection(config, expr, options)
	if err != nil {
		return nil, err
	}
	return &Subscription{
		conn:       conn,
		dispatcher: NewDispatcher(),
	}, nil
}

// On registers a callback for one event kind. Call before Start: events
// arriving before a callback is registered are dropped to the debug log, and
// registering while the stream is running is not supported.
func (s *Subscription) On(kind Kind, callback Callback) error {
	return s.dispatcher.On(kind, callback)
}

// Start subscribes and blocks the calling goroutine for the lifetime of the
// stream, dispatching events to the registered callbacks in arrival order.
// Callers needing concurrency run Start on a dedicated goroutine, one per
// subscription.
//
// Start returns an error only for lifecycle misuse (starting twice); runtime
// faults are delivered to the error callback instead.
func (s *Subscription) Start(ctx context.Context) error {
	return s.conn.Subscribe(ctx, s.dispatcher.Dispatch)
}

// Close stops the subscription by aborting the underlying network transport.
// See Connection.Close for the exact semantics.
func (s *Subscription) Close() error {
	return s.conn.Close()
}
