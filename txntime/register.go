// Package txntime tracks the last transaction time observed by a client.
//
// The register is the only state shared between the one-shot request path and
// open stream subscriptions. Supplying the last observed transaction time
// with every request gives read-your-writes consistency: the server will not
// answer with data older than the supplied time.
package txntime

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/ridge/siltstone/wire"
)

// Protocol headers carrying transaction times
const (
	// HeaderLastSeen is sent with requests: do not answer with data older
	// than this
	HeaderLastSeen = "X-Last-Seen-Txn"

	// HeaderTxnTime arrives with responses: the transaction time the answer
	// reflects
	HeaderTxnTime = "X-Txn-Time"
)

// A Register is a monotonic cell holding the latest transaction time observed
// by a client.
//
// Safe for concurrent use. The register is owned by the top-level client and
// shared by every stream subscription created from it; it is never a hidden
// global.
type Register struct {
	mu    sync.Mutex
	last  wire.Timestamp
	known bool
}

// New creates an empty register
func New() *Register {
	return &Register{}
}

// Last returns the latest observed transaction time.
// The second return value is false if nothing has been observed yet.
func (r *Register) Last() (wire.Timestamp, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.known
}

// Observe raises the register to the given transaction time.
// The register never decreases; observing an older time is a no-op.
func (r *Register) Observe(t wire.Timestamp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.known || t > r.last {
		r.last = t
		r.known = true
	}
}

// Header returns the headers to attach to the next request: empty if nothing
// has been observed yet, otherwise a single last-seen-transaction-time header.
func (r *Register) Header() http.Header {
	header := http.Header{}
	if last, ok := r.Last(); ok {
		header.Set(HeaderLastSeen, last.String())
	}
	return header
}

// Parse parses the decimal header representation of a transaction time
func Parse(s string) (wire.Timestamp, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return wire.Timestamp(n), nil
}
