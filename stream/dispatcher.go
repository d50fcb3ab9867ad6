package stream

import (
	"context"
	"fmt"

	"github.com/ridge/siltstone/tlog"
	"go.uber.org/zap"
)

// A Callback receives stream events of one kind
type Callback func(Event)

// A Dispatcher routes stream events to registered callbacks: at most one
// callback per event kind, synchronous in-order delivery.
//
// Register all callbacks before the subscription starts; the dispatcher is
// not safe for concurrent mutation.
type Dispatcher struct {
	callbacks map[Kind]Callback
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{callbacks: map[Kind]Callback{}}
}

// On registers the callback for the given event kind, replacing any previous
// one. A nil callback unregisters the kind. Registering an invalid kind is a
// configuration error reported immediately, not at dispatch time.
func (d *Dispatcher) On(kind Kind, callback Callback) error {
	if !kind.valid() {
		return fmt.Errorf("cannot register callback for invalid event kind %d", int(kind))
	}
	if callback == nil {
		delete(d.callbacks, kind)
		return nil
	}
	d.callbacks[kind] = callback
	return nil
}

// Dispatch delivers the event to the callback registered for its kind.
//
// Events of a kind with no registered callback are logged at debug level and
// otherwise ignored: most subscribers care only about a subset of event
// kinds, so an unhandled event is not a fault.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) {
	callback, ok := d.callbacks[ev.Kind()]
	if !ok {
		tlog.Get(ctx).Debug("Unhandled stream event", zap.Stringer("kind", ev.Kind()))
		return
	}
	callback(ev)
}
