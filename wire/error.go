package wire

import (
	"fmt"
	"net/http"
	"strings"
)

// A QueryError is one structured error item from an "errors" response list
type QueryError struct {
	Position    []string
	Code        string
	Description string
}

func (qe QueryError) String() string {
	s := qe.Code
	if qe.Description != "" {
		s += ": " + qe.Description
	}
	if len(qe.Position) > 0 {
		s += " at " + strings.Join(qe.Position, "/")
	}
	return s
}

// An APIError is a server-reported request failure
type APIError struct {
	StatusCode int
	Errors     []QueryError
	Trace      *RequestResult
}

func (e APIError) Error() string {
	items := make([]string, len(e.Errors))
	for i, qe := range e.Errors {
		items[i] = qe.String()
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, strings.Join(items, "; "))
}

// Description returns the description of the first error item, if any
func (e APIError) Description() string {
	for _, qe := range e.Errors {
		if qe.Description != "" {
			return qe.Description
		}
	}
	return ""
}

// Code returns the code of the first error item, if any
func (e APIError) Code() string {
	for _, qe := range e.Errors {
		if qe.Code != "" {
			return qe.Code
		}
	}
	return ""
}

// BadRequest is a malformed or invalid query (HTTP 400, or a bare errors
// payload on a stream)
type BadRequest struct{ APIError }

// Unauthorized is a request with missing or invalid credentials (HTTP 401)
type Unauthorized struct{ APIError }

// PermissionDenied is a request the credentials do not allow (HTTP 403)
type PermissionDenied struct{ APIError }

// NotFound is a request for a missing resource (HTTP 404)
type NotFound struct{ APIError }

// InternalError is an unexpected server-side failure (HTTP 500)
type InternalError struct{ APIError }

// Unavailable means the server cannot serve the request right now (HTTP 503).
// Unlike the other kinds, it is worth retrying.
type Unavailable struct{ APIError }

// UnknownServerError is any other non-success response
type UnknownServerError struct{ APIError }

// A StreamError is an error reported by the server inside an open event
// stream
type StreamError struct {
	ErrCode        string
	ErrDescription string
	Body           Value
}

func (e StreamError) Error() string {
	switch {
	case e.ErrCode != "" && e.ErrDescription != "":
		return fmt.Sprintf("stream error %s: %s", e.ErrCode, e.ErrDescription)
	case e.ErrCode != "":
		return fmt.Sprintf("stream error %s", e.ErrCode)
	default:
		return fmt.Sprintf("stream error: %v", e.Body)
	}
}

// ErrorFromResponse converts a completed exchange with a non-success response
// into a typed error.
//
// A zero status code (streamed chunk) is treated as a bad request, which is
// the only way a server rejects a stream payload without a status.
func ErrorFromResponse(rr *RequestResult) error {
	apiErr := APIError{
		StatusCode: rr.StatusCode,
		Errors:     QueryErrorsOf(rr.Response),
		Trace:      rr,
	}
	switch rr.StatusCode {
	case 0, http.StatusBadRequest:
		return BadRequest{apiErr}
	case http.StatusUnauthorized:
		return Unauthorized{apiErr}
	case http.StatusForbidden:
		return PermissionDenied{apiErr}
	case http.StatusNotFound:
		return NotFound{apiErr}
	case http.StatusInternalServerError:
		return InternalError{apiErr}
	case http.StatusServiceUnavailable:
		return Unavailable{apiErr}
	default:
		return UnknownServerError{apiErr}
	}
}

// QueryErrorsOf extracts the structured error list from a decoded response
// body. Returns nil if the body carries none.
func QueryErrorsOf(body Value) []QueryError {
	obj, ok := body.(Obj)
	if !ok {
		return nil
	}
	list, ok := obj["errors"].(Arr)
	if !ok {
		return nil
	}
	res := make([]QueryError, 0, len(list))
	for _, item := range list {
		errObj, ok := item.(Obj)
		if !ok {
			continue
		}
		var qe QueryError
		qe.Code, _ = errObj["code"].(string)
		qe.Description, _ = errObj["description"].(string)
		if position, ok := errObj["position"].(Arr); ok {
			for _, p := range position {
				qe.Position = append(qe.Position, fmt.Sprint(p))
			}
		}
		res = append(res, qe)
	}
	return res
}
