package thttp

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/ridge/must/v2"
	"github.com/ridge/parallel"
	"github.com/ridge/siltstone/tcontext"
	"github.com/ridge/siltstone/tlog"
	"go.uber.org/zap"
	"time"
)

const gracefulShutdownTimeout = 5 * time.Second

// Server wraps an HTTP server
type Server struct {
	listener net.Listener
	handler  http.Handler
	locked   sync.WaitGroup
}

// NewServer creates a Server
func NewServer(listener net.Listener, handler http.Handler) *Server {
	return &Server{
		listener: listener,
		handler:  handler,
	}
}

type panicKeyType int

const panicKey panicKeyType = iota

// Run serves requests until the context is closed, then performs graceful
// shutdown for up to gracefulShutdownTimeout
func (s *Server) Run(ctx context.Context) error {
	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		panicChan := make(chan error, 1)
		ctx = context.WithValue(ctx, panicKey, panicChan)
		ctx = tlog.With(ctx, zap.Stringer("httpServer", s.listener.Addr()))
		reqCtx, reqCancel := context.WithCancel(tcontext.Reopen(ctx)) // stays open longer than ctx

		logger := tlog.Get(ctx)

		server := http.Server{
			Handler:     s.handler,
			ErrorLog:    must.OK1(zap.NewStdLogAt(logger, zap.WarnLevel)),
			BaseContext: func(net.Listener) context.Context { return reqCtx },
			ConnContext: s.connContext,
		}
		server.Handler = s.lock(server.Handler) // install as outermost

		spawn("serve", parallel.Fail, func(ctx context.Context) error {
			logger.Info("Serving requests")
			err := server.Serve(s.listener)
			// http.Server predates contexts, so it has its own error meaning
			// "terminated successfully due to an external request". Return
			// the actual error from Context in this case to avoid
			// accidentally treating successful shutdown as an error.
			if errors.Is(err, http.ErrServerClosed) && ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		})

		spawn("panicHandler", parallel.Fail, func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case err := <-panicChan:
				return err
			}
		})

		spawn("shutdownHandler", parallel.Fail, func(ctx context.Context) error {
			<-ctx.Done()
			logger.Info("Shutting down")

			shutdownCtx, cancel := context.WithTimeout(reqCtx, gracefulShutdownTimeout)
			defer cancel()
			defer reqCancel()
			defer server.Close() // always returns nil because the listener is already closed

			// Server.Shutdown may return http.ErrServerClosed if the server
			// is already down. It's not an error in this case.
			err := server.Shutdown(shutdownCtx)
			if err != nil && shutdownCtx.Err() != nil { // timeout shutting down
				logger.Info("Shutdown canceled", zap.Error(err))
				return err
			}

			reqCancel() // ask long-lived streaming responses to terminate
			s.locked.Wait()

			logger.Info("Shutdown complete")
			return ctx.Err()
		})

		return nil
	})
}

// ListenAddr returns the local address of the server's listener
func (s *Server) ListenAddr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) connContext(ctx context.Context, conn net.Conn) context.Context {
	return tlog.With(ctx, zap.Stringer("remoteAddr", conn.RemoteAddr()))
}

// This mandatory middleware ensures that any running handler prevents the
// server from shutting down. The standard library takes care of it for plain
// request/response handlers but not for long-lived streaming responses.
func (s *Server) lock(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.locked.Add(1)
		defer s.locked.Done()
		next.ServeHTTP(w, r)
	})
}
