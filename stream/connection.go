package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/ridge/must/v2"
	"github.com/ridge/siltstone/thttp"
	"github.com/ridge/siltstone/tlog"
	"github.com/ridge/siltstone/tnet"
	"github.com/ridge/siltstone/txntime"
	"github.com/ridge/siltstone/wire"
	"go.uber.org/zap"
	"time"
)

// Lifecycle misuse errors. These are the only errors Subscribe and Close
// report; runtime faults travel through the event sink instead.
var (
	ErrAlreadyStarted = errors.New("stream subscription already started")
	ErrNotActive      = errors.New("no active stream subscription")
)

// Config ties a stream connection to the owning client's shared machinery
type Config struct {
	// Endpoint is the base URL of the server
	Endpoint url.URL

	// Secret is the bearer secret for authentication
	Secret string

	// QueryTimeout is attached as the query-timeout header if positive
	QueryTimeout time.Duration

	// TxnTime is the client-wide last-seen transaction time register,
	// shared with the one-shot request path
	TxnTime *txntime.Register

	// HTTPClient overrides the transport; any timeout policy for an idle
	// stream comes from here. Optional.
	HTTPClient *http.Client

	// Observer, if set, receives the trace of every streamed chunk
	Observer func(*wire.RequestResult)
}

type connState int

const (
	stateIdle connState = iota
	stateConnecting
	stateOpen
	stateClosed
)

// A Connection owns one underlying network transport for one stream
// subscription. Connections are not shared across subscriptions.
type Connection struct {
	config     Config
	httpClient *http.Client
	query      url.Values
	body       []byte

	mu     sync.Mutex
	state  connState
	cancel context.CancelFunc
}

func newConnection(config Config, expr wire.Value, options Options) (*Connection, error) {
	if err := options.validate(); err != nil {
		return nil, err
	}
	body, err := wire.Encode(expr)
	if err != nil {
		return nil, err
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = thttp.WithRequestsLogging(&http.Client{})
	}
	query := url.Values{}
	if len(options.Fields) > 0 {
		query.Set("fields", strings.Join(options.Fields, ","))
	}
	return &Connection{
		config:     config,
		httpClient: httpClient,
		query:      query,
		body:       body,
	}, nil
}

// An EventSink consumes events in strict arrival order
type EventSink func(ctx context.Context, ev Event)

// Subscribe issues the streaming request and runs the read loop, delivering
// events into the sink until the stream ends. It blocks the calling goroutine
// for the lifetime of the stream.
//
// Subscribe is only legal on a connection that has never been started;
// otherwise it fails with ErrAlreadyStarted and the connection state is left
// unchanged. Runtime faults (transport errors, malformed chunks) are
// delivered into the sink as Error events, not returned.
//
// By the time the sink receives an event carrying a transaction time, the
// shared register is already at or past that time.
func (c *Connection) Subscribe(ctx context.Context, sink EventSink) error {
	c.mu.Lock()
	if c.state != stateIdle {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.state = stateConnecting
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	defer cancel()
	defer c.abandon()

	startTime := time.Now()

	u := c.config.Endpoint
	u.Path = "/stream"
	u.RawQuery = c.query.Encode()
	req := must.OK1(http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(c.body)))
	req.Header.Set("Content-Type", "application/json")
	thttp.SetBearerToken(req.Header, c.config.Secret)
	for key, values := range c.config.TxnTime.Header() {
		for _, value := range values {
			req.Header.Set(key, value)
		}
	}
	if c.config.QueryTimeout > 0 {
		req.Header.Set("X-Query-Timeout", strconv.FormatInt(c.config.QueryTimeout.Milliseconds(), 10))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			deliverFault(ctx, sink, err)
		}
		return nil
	}
	defer resp.Body.Close()

	c.mu.Lock()
	if c.state == stateClosed { // closed while connecting
		c.mu.Unlock()
		return nil
	}
	c.state = stateOpen
	c.mu.Unlock()

	// The initial response may carry a transaction time; it must be applied
	// before the first event is dispatched.
	if header := resp.Header.Get(txntime.HeaderTxnTime); header != "" {
		if ts, err := txntime.Parse(header); err == nil {
			c.config.TxnTime.Observe(ts)
		}
	}

	c.readLoop(ctx, resp, sink, startTime)
	return nil
}

// Close aborts the underlying transport. The read loop observes the abort
// and terminates without retry; whether to resubscribe is the caller's call.
//
// Safe to call from any goroutine, including an event callback of the very
// stream being closed. Closing twice is a no-op; closing a connection that
// was never started fails with ErrNotActive, state unchanged.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case stateIdle:
		return ErrNotActive
	case stateClosed:
		return nil
	default:
		c.state = stateClosed
		c.cancel()
		return nil
	}
}

// abandon moves the connection to closed when the read loop is over
func (c *Connection) abandon() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = stateClosed
}

// deliverFault hands a fault to the sink as an Error event. The event carries
// no trace; a callback that panics on it has nowhere left to report, so the
// panic is dropped to the debug log and the stream ends.
func deliverFault(ctx context.Context, sink EventSink, cause error) {
	defer func() {
		if p := recover(); p != nil {
			tlog.Get(ctx).Debug("Error callback failed", zap.Any("panic", p))
		}
	}()
	sink(ctx, Error{Cause: cause})
}

func (c *Connection) readLoop(ctx context.Context, resp *http.Response, sink EventSink, startTime time.Time) {
	defer func() {
		// A fault while processing a single chunk aborts the stream: it is
		// delivered once as an Error event and the connection closes.
		if p := recover(); p != nil {
			deliverFault(ctx, sink, fmt.Errorf("stream processing failure: %v", p))
		}
	}()

	logger := tlog.Get(ctx)
	chunks := newChunkReader(resp.Body)
	for {
		raw, err := chunks.next()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				// server finished the stream
			case ctx.Err() != nil, tnet.IsClosedConnectionError(err):
				// deliberate Close or caller cancellation
			default:
				deliverFault(ctx, sink, err)
			}
			return
		}

		rr := &wire.RequestResult{
			Method:      http.MethodPost,
			Path:        "/stream",
			Query:       c.query,
			RequestBody: c.body,
			RawResponse: raw,
			Headers:     resp.Header,
			StartTime:   startTime,
			EndTime:     time.Now(),
		}
		value, err := wire.Decode(raw)
		if err != nil {
			// no typed payload available; Classify reports it as Unknown
			logger.Debug("Undecodable stream chunk", zap.ByteString("chunk", raw), zap.Error(err))
		} else {
			rr.Response = value
		}

		event := Classify(rr)
		if txn, ok := EventTxn(event); ok {
			c.config.TxnTime.Observe(txn)
		}
		sink(ctx, event)
		if c.config.Observer != nil {
			c.config.Observer(rr)
		}
	}
}
