package siltstone

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ridge/must/v2"
	"github.com/ridge/siltstone/retry"
	"github.com/ridge/siltstone/stream"
	"github.com/ridge/siltstone/thttp"
	"github.com/ridge/siltstone/txntime"
	"github.com/ridge/siltstone/wire"
	"time"
)

// Config configures a Client
type Config struct {
	// Endpoint is the server base URL ("https://host:port"). A bare
	// host:port is accepted and defaults to the http scheme.
	Endpoint string

	// Secret is the bearer secret for authentication
	Secret string

	// QueryTimeout, if positive, asks the server to abort queries running
	// longer than this
	QueryTimeout time.Duration

	// Observer, if set, receives the trace of every exchange, including
	// every streamed chunk. For diagnostics.
	Observer func(*wire.RequestResult)

	// HTTPClient overrides the transport. Optional.
	HTTPClient *http.Client
}

// A Client is a handle to a Siltstone database.
//
// Safe for concurrent use. All subscriptions created from one client share
// its last-seen transaction time register.
type Client struct {
	endpoint     url.URL
	secret       string
	queryTimeout time.Duration
	observer     func(*wire.RequestResult)
	httpClient   *http.Client
	txnTime      *txntime.Register
}

// New creates a Client
func New(config Config) (*Client, error) {
	endpoint := config.Endpoint
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", config.Endpoint, err)
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = thttp.WithRequestsLogging(&http.Client{})
	}
	return &Client{
		endpoint:     *u,
		secret:       config.Secret,
		queryTimeout: config.QueryTimeout,
		observer:     config.Observer,
		httpClient:   httpClient,
		txnTime:      txntime.New(),
	}, nil
}

var transientRetryConfig = retry.FixedConfig{RetryAfter: time.Second, MaxAttempts: 3}

// Query executes a one-shot query expression and returns the decoded
// resource the server answered with.
//
// Transient failures (connection errors, server overload) are retried a few
// times; all other failures are returned as typed errors from the wire
// package.
func (c *Client) Query(ctx context.Context, expr wire.Value) (wire.Value, error) {
	body, err := wire.Encode(expr)
	if err != nil {
		return nil, err
	}
	return retry.Do1(ctx, transientRetryConfig, func() (wire.Value, error) {
		return c.roundTrip(ctx, body)
	})
}

func (c *Client) roundTrip(ctx context.Context, body []byte) (wire.Value, error) {
	u := c.endpoint
	u.Path = "/"
	req := must.OK1(http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body)))
	req.Header.Set("Content-Type", "application/json")
	thttp.SetBearerToken(req.Header, c.secret)
	for key, values := range c.txnTime.Header() {
		for _, value := range values {
			req.Header.Set(key, value)
		}
	}
	if c.queryTimeout > 0 {
		req.Header.Set("X-Query-Timeout", strconv.FormatInt(c.queryTimeout.Milliseconds(), 10))
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, retry.Retriable(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retry.Retriable(err)
	}

	rr := &wire.RequestResult{
		Method:      http.MethodPost,
		Path:        "/",
		RequestBody: body,
		RawResponse: raw,
		StatusCode:  resp.StatusCode,
		Headers:     resp.Header,
		StartTime:   startTime,
		EndTime:     time.Now(),
	}
	if value, err := wire.Decode(raw); err == nil {
		rr.Response = value
	}

	if header := resp.Header.Get(txntime.HeaderTxnTime); header != "" {
		if ts, err := txntime.Parse(header); err == nil {
			c.txnTime.Observe(ts)
		}
	}
	if c.observer != nil {
		c.observer(rr)
	}

	if resp.StatusCode != http.StatusOK {
		err := wire.ErrorFromResponse(rr)
		if _, ok := err.(wire.Unavailable); ok {
			return nil, retry.Retriable(err)
		}
		return nil, err
	}

	obj, ok := rr.Response.(wire.Obj)
	if !ok {
		return nil, fmt.Errorf("malformed server response: %q", raw)
	}
	return obj["resource"], nil
}

// Ping checks connectivity with the server
func (c *Client) Ping(ctx context.Context) error {
	u := c.endpoint
	u.Path = "/ping"
	req := must.OK1(http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil))
	thttp.SetBearerToken(req.Header, c.secret)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping returned status code %d", resp.StatusCode)
	}
	return nil
}

// Stream creates a streaming subscription for a live query expression.
//
// The subscription shares this client's transaction time register: by the
// time an event callback runs, the register is at or past the event's
// transaction time. Register callbacks with On, then call Start on a
// dedicated goroutine.
func (c *Client) Stream(expr wire.Value, options stream.Options) (*stream.Subscription, error) {
	return stream.New(stream.Config{
		Endpoint:     c.endpoint,
		Secret:       c.secret,
		QueryTimeout: c.queryTimeout,
		TxnTime:      c.txnTime,
		HTTPClient:   c.httpClient,
		Observer:     c.observer,
	}, expr, options)
}

// LastTxnTime returns the latest transaction time this client has observed.
// The second return value is false if the client has not talked to the
// server yet.
func (c *Client) LastTxnTime() (wire.Timestamp, bool) {
	return c.txnTime.Last()
}

// SyncLastTxnTime raises the client's last-seen transaction time, e.g. to a
// value relayed from another client. It never decreases.
func (c *Client) SyncLastTxnTime(t wire.Timestamp) {
	c.txnTime.Observe(t)
}
