package wire

import (
	"net/http"
	"net/url"

	"time"
)

// A RequestResult is an immutable record of one exchange with the server.
//
// One-shot calls produce one RequestResult for the whole exchange. Streamed
// responses produce one RequestResult per chunk; the chunks share the method,
// path and request body of the original request but carry their own raw
// payload and timing, and no final status code.
type RequestResult struct {
	Method string
	Path   string
	Query  url.Values

	// RequestBody is the encoded outgoing expression
	RequestBody []byte

	// RawResponse is the raw response text: the whole body of a one-shot
	// call, or a single chunk of a streamed response
	RawResponse []byte

	// Response is the decoded response body; nil if the raw payload was not
	// decodable
	Response Value

	// StatusCode is 0 for streamed chunks, which never resolve a final status
	StatusCode int

	Headers http.Header

	StartTime time.Time
	EndTime   time.Time
}

// TimeTaken returns the duration of the exchange
func (rr *RequestResult) TimeTaken() time.Duration {
	return rr.EndTime.Sub(rr.StartTime)
}
