package thttp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/ridge/must/v2"
	"github.com/ridge/siltstone/tlog"
	"go.uber.org/zap"
)

const maxLogBodyLen = 1024 - 3 // make room for 3 dots

// LoggingTransport is an HTTP transport that logs requests and responses,
// including bodies, at debug level
type LoggingTransport struct {
	Transport http.RoundTripper
}

// WithRequestsLogging returns an HTTP client with request logging
func WithRequestsLogging(client *http.Client) *http.Client {
	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &http.Client{
		Transport:     &LoggingTransport{Transport: transport},
		CheckRedirect: checkRedirect,
	}
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) > 10 {
		return errors.New("request was terminated after 10 redirects")
	}
	// Go's http client removes Authorization from the following request
	// https://github.com/golang/go/issues/35104
	for k, v := range via[0].Header {
		if _, exists := req.Header[k]; !exists {
			req.Header[k] = v
		}
	}
	return nil
}

// RoundTrip implements http.RoundTripper
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !tlog.Get(req.Context()).Core().Enabled(zap.DebugLevel) {
		return t.Transport.RoundTrip(req)
	}

	logger := tlog.Get(req.Context()).With(zap.String("method", req.Method), zap.Stringer("url", req.URL))

	req.Body = captureBody(req.Body, func(p []byte, _ bool) {
		logFields := []zap.Field{zap.String("contentType", contentType(req.Header))}
		if shouldLogBody(req.Header) {
			logFields = append(logFields, zap.ByteString("requestData", p))
		}
		logger.Debug("HTTP request ended", logFields...)
	})

	logger.Debug("HTTP request started")
	resp, err := t.Transport.RoundTrip(req)
	if err != nil {
		logger.Debug("HTTP request failed", zap.Error(err))
		return resp, err
	}

	resp.Body = captureBody(resp.Body, func(p []byte, eof bool) {
		logFields := []zap.Field{
			zap.String("status", resp.Status),
			zap.String("contentType", contentType(resp.Header)),
			zap.Bool("readAllBody", eof),
		}
		if shouldLogBody(resp.Header) {
			logFields = append(logFields, zap.ByteString("responseData", p))
		}
		logger.Debug("HTTP response ended", logFields...)
	})

	return resp, err
}

func contentType(header http.Header) string {
	return strings.TrimSpace(strings.ToLower(header.Get("Content-Type")))
}

func shouldLogBody(header http.Header) bool {
	return contentType(header) != "application/octet-stream"
}

// bodyCapture accumulates a bounded prefix of a request or response body and
// reports it once, either at EOF or when the body is closed
type bodyCapture struct {
	rc   io.ReadCloser
	buff bytes.Buffer
	done func([]byte, bool)
}

func captureBody(rc io.ReadCloser, done func(p []byte, eof bool)) *bodyCapture {
	if rc == nil {
		rc = http.NoBody
	}

	var reported bool
	doneOnce := func(p []byte, eof bool) {
		if reported {
			return
		}
		reported = true
		done(p, eof)
	}

	return &bodyCapture{rc: rc, done: doneOnce}
}

func (bc *bodyCapture) Read(p []byte) (int, error) {
	n, err := bc.rc.Read(p)
	if remaining := maxLogBodyLen - bc.buff.Len(); n > 0 && remaining > 0 {
		if n > remaining {
			must.OK1(bc.buff.Write(p[:remaining])) // bytes.Buffer.Write never fails
			must.OK1(bc.buff.WriteString("..."))
		} else {
			must.OK1(bc.buff.Write(p[:n]))
		}
	}
	if errors.Is(err, io.EOF) {
		bc.done(bc.buff.Bytes(), true)
	}
	return n, err
}

func (bc *bodyCapture) Close() error {
	bc.done(bc.buff.Bytes(), false)
	return bc.rc.Close()
}

// Test processes an http.Request (usually obtained from httptest.NewRequest)
// with the given handler as if it was received on the network. Only useful in
// tests.
//
// Does not require a running HTTP server.
func Test(handler http.Handler, r *http.Request) *http.Response {
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w.Result()
}

// TestCtx is similar to Test, except that the given context is injected into
// the request
func TestCtx(ctx context.Context, handler http.Handler, r *http.Request) *http.Response {
	return Test(handler, r.WithContext(ctx))
}
