package thttp

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/handlers"
	"github.com/ridge/must/v2"
	"github.com/ridge/parallel"
	"github.com/ridge/siltstone/tlog"
	"go.uber.org/zap"
	"time"
)

// CaptureStatus wraps a http.ResponseWriter to record the response status
// code into *status. Implicit 200s from the first Write are recorded too.
func CaptureStatus(w http.ResponseWriter, status *int) http.ResponseWriter {
	cs := captureStatus{ResponseWriter: w, status: status}
	if f, ok := w.(http.Flusher); ok {
		cs.Flusher = f
	}
	return cs
}

type captureStatus struct {
	http.ResponseWriter
	http.Flusher
	status *int
}

func (cs captureStatus) Write(b []byte) (int, error) {
	if *cs.status == 0 {
		*cs.status = http.StatusOK
	}
	return cs.ResponseWriter.Write(b)
}

func (cs captureStatus) WriteHeader(statusCode int) {
	*cs.status = statusCode
	cs.ResponseWriter.WriteHeader(statusCode)
}

// Log is a middleware that logs before and after handling of each request
func Log(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ctx := tlog.With(r.Context(),
			zap.String("method", r.Method),
			zap.String("hostname", r.Host),
			zap.String("url", r.URL.String()),
		)
		logger := tlog.Get(ctx)
		logger.Debug("HTTP request handling started")
		var status int
		next.ServeHTTP(CaptureStatus(w, &status), r.WithContext(ctx))
		logger.Debug("HTTP request handling ended", zap.Int("statusCode", status), zap.Duration("elapsed", time.Since(started)))
	})
}

// Recover is a middleware that catches panics from HTTP handlers, reports a
// 500, and shuts down the server through its panic channel
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := runTask(r.Context(), func(ctx context.Context) error {
			next.ServeHTTP(w, r)
			return nil
		})
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			select {
			case r.Context().Value(panicKey).(chan error) <- err:
			default:
			}
		}
	})
}

// runTask executes the task in the current goroutine, recovering from panics.
// A panic is returned as parallel.ErrPanic.
func runTask(ctx context.Context, task parallel.Task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = parallel.ErrPanic{Value: p, Stack: debug.Stack()}
		}
	}()
	return task(ctx)
}

var (
	allowedMethods = []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodOptions,
		http.MethodDelete,
	}
	allowedHeaders = []string{
		"Authorization",
		"Cache-Control",
		"Content-Type",
		"X-Last-Seen-Txn",
		"X-Query-Timeout",
	}
	exposedHeaders = []string{
		"Content-Length",
		"X-Txn-Time",
	}
)

// CORS is a middleware that allows cross-origin requests
var CORS = handlers.CORS(
	handlers.AllowedMethods(allowedMethods),
	handlers.AllowedHeaders(allowedHeaders),
	handlers.ExposedHeaders(exposedHeaders),
	handlers.AllowedOrigins([]string{"*"}),
)

// StandardMiddleware is a composition of typically used middleware, in the
// recommended order:
//
// 1. Log (log before and after the request)
// 2. Recover (catch and log panic, then shut down the server)
// 3. CORS (allow cross-origin requests)
func StandardMiddleware(next http.Handler) http.Handler {
	return Log(Recover(CORS(next)))
}

// JSONResult writes an HTTP status code and a JSON body
func JSONResult(logger *zap.Logger, writer http.ResponseWriter, res any, code int) {
	body := must.OK1(json.Marshal(res))
	writer.Header().Add("Content-Type", "application/json")
	writer.WriteHeader(code)
	if _, err := writer.Write(body); err != nil {
		logger.Debug("failed to write response to client", zap.Error(err))
	}
}
