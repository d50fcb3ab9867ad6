// Package siltstone is a client driver for the Siltstone document database.
//
// A Client issues one-shot queries over HTTP and opens streaming
// subscriptions that deliver server-pushed events for a live query.
// Expressions for both come from the query package.
//
// # Transaction times
//
// Every server write carries a transaction time, a logical timestamp that
// establishes a total order over writes. The client remembers the latest
// transaction time it has observed, from one-shot responses and from stream
// events alike, and sends it with every subsequent request so that the server
// never answers with older data. The register holding it is shared between
// the one-shot path and all subscriptions of one client.
//
// # Streams
//
// A subscription is a long-lived request whose response is an unbounded
// sequence of chunks, each one event. Events are delivered to registered
// callbacks synchronously, in arrival order, on the goroutine that called
// Start; run one goroutine per subscription. A dropped stream is not
// restarted internally: the caller decides whether to resubscribe.
package siltstone
