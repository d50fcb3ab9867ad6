// Package stream implements the streaming subscription client: a long-lived
// request whose response is an unbounded sequence of server-pushed events
// describing changes to a selected document or set.
package stream

import (
	"github.com/ridge/siltstone/wire"
)

// Kind identifies the kind of a stream event
type Kind int

// Kind values
const (
	KindStart Kind = iota
	KindVersion
	KindSet
	KindHistoryRewrite
	KindError
	KindUnknown
)

var kindNames = map[Kind]string{
	KindStart:          "start",
	KindVersion:        "version",
	KindSet:            "set",
	KindHistoryRewrite: "history_rewrite",
	KindError:          "error",
	KindUnknown:        "unknown",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "invalid"
}

func (k Kind) valid() bool {
	_, ok := kindNames[k]
	return ok
}

// An Event is one notification delivered on a stream subscription.
//
// The concrete types are Start, Version, Set, HistoryRewrite, Error and
// Unknown. Every event except Error and Unknown carries a transaction time
// that is never earlier than the subscription's start time.
type Event interface {
	Kind() Kind

	// Trace returns the exchange that carried the event; nil for events
	// synthesized from transport failures
	Trace() *wire.RequestResult
}

// Start opens every subscription. Subsequent events are guaranteed to carry
// transaction times at or after SubscribedAt.
type Start struct {
	SubscribedAt wire.Timestamp

	trace *wire.RequestResult
}

// Kind implements Event
func (Start) Kind() Kind { return KindStart }

// Trace implements Event
func (e Start) Trace() *wire.RequestResult { return e.trace }

// Version reports a modification of the current state of the subscribed
// document
type Version struct {
	Payload wire.Value
	Txn     wire.Timestamp

	trace *wire.RequestResult
}

// Kind implements Event
func (Version) Kind() Kind { return KindVersion }

// Trace implements Event
func (e Version) Trace() *wire.RequestResult { return e.trace }

// Set reports a modification of the subscribed set
type Set struct {
	Payload wire.Value
	Txn     wire.Timestamp

	trace *wire.RequestResult
}

// Kind implements Event
func (Set) Kind() Kind { return KindSet }

// Trace implements Event
func (e Set) Trace() *wire.RequestResult { return e.trace }

// HistoryRewrite reports a modification of the history of the subscribed
// document
type HistoryRewrite struct {
	Payload wire.Value
	Txn     wire.Timestamp

	trace *wire.RequestResult
}

// Kind implements Event
func (HistoryRewrite) Kind() Kind { return KindHistoryRewrite }

// Trace implements Event
func (e HistoryRewrite) Trace() *wire.RequestResult { return e.trace }

// Error reports a failure, either server-reported or client-side.
//
// An Error event alone does not imply that the stream is over: the server may
// continue or terminate it, and the connection follows the transport's own
// EOF to decide.
type Error struct {
	// Cause is the underlying failure; never nil
	Cause error

	// Code and Description are set when the server reported them
	Code        string
	Description string

	trace *wire.RequestResult
}

// Kind implements Event
func (Error) Kind() Kind { return KindError }

// Trace implements Event
func (e Error) Trace() *wire.RequestResult { return e.trace }

// Unknown wraps a payload that could not be decoded or classified. Receiving
// one does not terminate the stream.
type Unknown struct {
	// Raw is the original chunk text
	Raw []byte

	trace *wire.RequestResult
}

// Kind implements Event
func (Unknown) Kind() Kind { return KindUnknown }

// Trace implements Event
func (e Unknown) Trace() *wire.RequestResult { return e.trace }

// Classify turns one decoded stream chunk into an event.
//
// Precedence: an undecodable payload is Unknown; "type":"start" is Start; a
// payload without "type" but with "errors" is a server rejection; then the
// "type" field selects the event. A payload carrying both "type" and "errors"
// is not possible by construction, but if encountered, "type" wins.
func Classify(rr *wire.RequestResult) Event {
	if rr.Response == nil {
		return Unknown{Raw: rr.RawResponse, trace: rr}
	}
	payload, ok := rr.Response.(wire.Obj)
	if !ok {
		return Unknown{Raw: rr.RawResponse, trace: rr}
	}

	typ, hasType := payload["type"].(string)
	switch {
	case typ == "start":
		subscribedAt, ok := timestampField(payload, "event")
		if !ok {
			return Unknown{Raw: rr.RawResponse, trace: rr}
		}
		return Start{SubscribedAt: subscribedAt, trace: rr}

	case !hasType:
		if _, ok := payload["errors"]; ok {
			return Error{Cause: wire.ErrorFromResponse(rr), trace: rr}
		}
		return Unknown{Raw: rr.RawResponse, trace: rr}

	case typ == "error":
		return serverError(payload, rr)

	case typ == "version":
		txn, ok := timestampField(payload, "txn")
		if !ok {
			return Unknown{Raw: rr.RawResponse, trace: rr}
		}
		return Version{Payload: payload["event"], Txn: txn, trace: rr}

	case typ == "set":
		txn, ok := timestampField(payload, "txn")
		if !ok {
			return Unknown{Raw: rr.RawResponse, trace: rr}
		}
		return Set{Payload: payload["event"], Txn: txn, trace: rr}

	case typ == "history_rewrite":
		txn, ok := timestampField(payload, "txn")
		if !ok {
			return Unknown{Raw: rr.RawResponse, trace: rr}
		}
		return HistoryRewrite{Payload: payload["event"], Txn: txn, trace: rr}

	default:
		return Unknown{Raw: rr.RawResponse, trace: rr}
	}
}

// serverError builds an Error event from a "type":"error" payload. The code
// and description come from the nested event object when present, then from
// the errors list, and failing both the whole payload stands in as the error
// body.
func serverError(payload wire.Obj, rr *wire.RequestResult) Error {
	streamErr := wire.StreamError{Body: payload}
	if event, ok := payload["event"].(wire.Obj); ok {
		streamErr.Body = event
		streamErr.ErrCode, _ = event["code"].(string)
		streamErr.ErrDescription, _ = event["description"].(string)
	} else if queryErrors := wire.QueryErrorsOf(payload); len(queryErrors) > 0 {
		streamErr.ErrCode = queryErrors[0].Code
		streamErr.ErrDescription = queryErrors[0].Description
	}
	return Error{
		Cause:       streamErr,
		Code:        streamErr.ErrCode,
		Description: streamErr.ErrDescription,
		trace:       rr,
	}
}

// EventTxn returns the transaction time the event carries, if any
func EventTxn(ev Event) (wire.Timestamp, bool) {
	switch event := ev.(type) {
	case Start:
		return event.SubscribedAt, true
	case Version:
		return event.Txn, true
	case Set:
		return event.Txn, true
	case HistoryRewrite:
		return event.Txn, true
	default:
		return 0, false
	}
}

func timestampField(payload wire.Obj, key string) (wire.Timestamp, bool) {
	// decoded JSON numbers arrive as float64; transaction times fit exactly
	f, ok := payload[key].(float64)
	if !ok {
		return 0, false
	}
	return wire.Timestamp(int64(f)), true
}
