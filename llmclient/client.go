// Package llmclient provides the HTTP transport for the router API with:
// - Request marshaling/unmarshaling
// - Retries with exponential backoff
// - HTTP status to error type classification
// - Streaming responses handed back unbuffered
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"

	"routerclient/core"
	"routerclient/internal/httpclient"
)

// maxErrorBodySize bounds how much of an error response is read
const maxErrorBodySize = 64 << 10

// Config holds configuration for the router transport
type Config struct {
	// BaseURL is the API base URL
	BaseURL string

	// APIKey is sent as a bearer token
	APIKey string

	// UserAgent is sent on every request when non-empty
	UserAgent string

	// Timeout bounds each attempt. For streams it bounds the wait for response headers only.
	Timeout time.Duration

	// Retry configuration
	MaxRetries     int           // Maximum number of retry attempts (default: 3)
	InitialBackoff time.Duration // Initial backoff duration (default: 1s)
	MaxBackoff     time.Duration // Maximum backoff duration (default: 10s)
	BackoffFactor  float64       // Backoff multiplier (default: 2.0)

	// Compression advertises and decodes brotli for buffered responses
	Compression bool

	Hooks  Hooks
	Logger *slog.Logger
}

// DefaultConfig returns default transport configuration
func DefaultConfig(baseURL, apiKey string) Config {
	return Config{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		APIKey:         apiKey,
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
	}
}

// Client executes router requests
type Client struct {
	httpClient *http.Client
	config     Config
	logger     *slog.Logger
}

// New creates a new client with the given configuration
func New(config Config) *Client {
	return NewWithHTTPClient(httpclient.NewDefaultHTTPClient(), config)
}

// NewWithHTTPClient creates a new client with a custom HTTP client.
// If httpClient is nil, http.DefaultClient is used.
func NewWithHTTPClient(httpClient *http.Client, config Config) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &Client{
		httpClient: httpClient,
		config:     config,
		logger:     logger,
	}
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// HTTPClient returns the underlying HTTP client
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Request represents an HTTP request to be made
type Request struct {
	// Operation names the call for logs and hooks
	Operation string
	Method    string
	Endpoint  string
	Body      any // Will be JSON marshaled if not nil
	Headers   map[string]string
}

// Response represents a buffered HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// preparedRequest is built once per call and replayed on every attempt
type preparedRequest struct {
	Request
	url       string
	body      []byte
	requestID string
}

// Do executes a request with retries, then unmarshals the response into result
func (c *Client) Do(ctx context.Context, req Request, result any) error {
	resp, err := c.DoRaw(ctx, req)
	if err != nil {
		return err
	}

	if result == nil {
		return nil
	}
	return resp.Decode(result)
}

// Decode unmarshals the body into result. A body that does not decode is an api_error.
func (r *Response) Decode(result any) error {
	if err := json.Unmarshal(r.Body, result); err != nil {
		return &core.RouterError{
			Type:       core.ErrorTypeAPI,
			Message:    "failed to unmarshal response: " + err.Error(),
			StatusCode: r.StatusCode,
			Body:       bodyAsJSON(r.Body),
			Err:        err,
		}
	}
	return nil
}

// DoRaw executes a request with retries, returning the buffered response
func (c *Client) DoRaw(ctx context.Context, req Request) (*Response, error) {
	prepared, err := c.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	var resp *Response
	err = c.withRetry(ctx, prepared, false, func(attemptCtx context.Context) (int, error) {
		r, err := c.doRequest(attemptCtx, prepared)
		if err != nil {
			return statusOf(err), err
		}
		resp = r
		return r.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// DoStream executes a streaming request, returning the unread response body.
// Retries only cover establishing the stream; once a body is returned the
// caller owns it and must close it.
func (c *Client) DoStream(ctx context.Context, req Request) (io.ReadCloser, error) {
	prepared, err := c.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	var body io.ReadCloser
	err = c.withRetry(ctx, prepared, true, func(attemptCtx context.Context) (int, error) {
		rc, status, err := c.doStreamRequest(attemptCtx, prepared)
		if err != nil {
			return statusOf(err), err
		}
		body = rc
		return status, nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) prepare(ctx context.Context, req Request) (*preparedRequest, error) {
	p := &preparedRequest{
		Request:   req,
		url:       c.config.BaseURL + req.Endpoint,
		requestID: core.GetRequestID(ctx),
	}
	if p.requestID == "" {
		p.requestID = uuid.NewString()
	}
	if req.Body != nil {
		body, err := json.Marshal(req.Body)
		if err != nil {
			return nil, core.NewSetupError("failed to marshal request", err)
		}
		p.body = body
	}
	return p, nil
}

// withRetry runs attempt until it succeeds, fails with a non-retryable error,
// or the retry budget is spent. Attempts run sequentially.
func (c *Client) withRetry(ctx context.Context, req *preparedRequest, stream bool, attempt func(context.Context) (int, error)) error {
	var lastErr error
	maxAttempts := c.config.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for i := 0; i < maxAttempts; i++ {
		info := RequestInfo{
			Operation: req.Operation,
			Method:    req.Method,
			Endpoint:  req.Endpoint,
			Stream:    stream,
			Attempt:   i + 1,
			RequestID: req.requestID,
		}

		if i > 0 {
			backoff := c.calculateBackoff(i)
			c.config.Hooks.retry(ctx, info, backoff, lastErr)
			c.logger.Warn("retrying router request",
				"operation", req.Operation,
				"attempt", info.Attempt,
				"backoff", backoff,
				"request_id", req.requestID,
				"error", lastErr,
			)
			if err := sleep(ctx, backoff); err != nil {
				return core.NewCanceledError(err)
			}
		}

		attemptCtx := c.config.Hooks.requestStart(ctx, info)
		start := time.Now()
		status, err := attempt(attemptCtx)
		duration := time.Since(start)
		c.config.Hooks.requestEnd(attemptCtx, ResponseInfo{
			RequestInfo: info,
			StatusCode:  status,
			Duration:    duration,
			Err:         err,
		})
		c.logger.Debug("router request attempt",
			"operation", req.Operation,
			"method", req.Method,
			"endpoint", req.Endpoint,
			"attempt", info.Attempt,
			"status", status,
			"duration", duration,
			"request_id", req.requestID,
		)

		if err == nil {
			return nil
		}
		lastErr = err

		re, ok := core.AsRouterError(err)
		if !ok || !re.Retryable() {
			return err
		}
	}

	return lastErr
}

// doRequest executes a single buffered HTTP request without retries
func (c *Client) doRequest(ctx context.Context, req *preparedRequest) (*Response, error) {
	attemptCtx := ctx
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	httpReq, err := c.buildRequest(attemptCtx, req, false)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, networkError(ctx, "failed to send request", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := readBody(resp, -1)
	if err != nil {
		return nil, networkError(ctx, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, core.ParseHTTPError(resp.StatusCode, body)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// doStreamRequest opens a stream. The timeout covers the response headers;
// after that the body lives until ctx is done or the caller closes it.
func (c *Client) doStreamRequest(ctx context.Context, req *preparedRequest) (io.ReadCloser, int, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	httpReq, err := c.buildRequest(streamCtx, req, true)
	if err != nil {
		cancel()
		return nil, 0, err
	}

	var timer *time.Timer
	if c.config.Timeout > 0 {
		timer = time.AfterFunc(c.config.Timeout, cancel)
	}

	resp, err := c.httpClient.Do(httpReq)
	timedOut := timer != nil && !timer.Stop()
	if err != nil {
		cancel()
		if timedOut && ctx.Err() == nil {
			return nil, 0, core.NewTransportError("timed out waiting for stream response", err)
		}
		return nil, 0, networkError(ctx, "failed to send request", err)
	}
	if timedOut {
		_ = resp.Body.Close()
		cancel()
		return nil, 0, core.NewTransportError("timed out waiting for stream response", context.DeadlineExceeded)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := readBody(resp, maxErrorBodySize)
		_ = resp.Body.Close()
		cancel()
		return nil, resp.StatusCode, core.ParseHTTPError(resp.StatusCode, body)
	}

	return &streamBody{ReadCloser: resp.Body, cancel: cancel}, resp.StatusCode, nil
}

// buildRequest creates an HTTP request for one attempt
func (c *Client) buildRequest(ctx context.Context, req *preparedRequest, stream bool) (*http.Request, error) {
	var bodyReader io.Reader
	if req.body != nil {
		bodyReader = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.url, bodyReader)
	if err != nil {
		return nil, core.NewSetupError("failed to create request", err)
	}

	httpReq.Header = BuildHeaders(HeaderOptions{
		APIKey:       c.config.APIKey,
		RequestID:    req.requestID,
		UserAgent:    c.config.UserAgent,
		HasBody:      req.body != nil,
		Stream:       stream,
		AcceptBrotli: c.config.Compression,
	})

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	return httpReq, nil
}

// calculateBackoff calculates the backoff duration before retry number attempt (starting at 1)
func (c *Client) calculateBackoff(attempt int) time.Duration {
	factor := c.config.BackoffFactor
	if factor <= 0 {
		factor = 2.0
	}
	backoff := float64(c.config.InitialBackoff) * math.Pow(factor, float64(attempt-1))
	if c.config.MaxBackoff > 0 && backoff > float64(c.config.MaxBackoff) {
		backoff = float64(c.config.MaxBackoff)
	}
	return time.Duration(backoff)
}

// streamBody cancels the stream context when the body is closed
type streamBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *streamBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// readBody reads the response body, decoding brotli when the server used it.
// limit < 0 means no limit.
func readBody(resp *http.Response, limit int64) ([]byte, error) {
	var r io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "br") {
		r = brotli.NewReader(r)
	}
	if limit >= 0 {
		r = io.LimitReader(r, limit)
	}
	return io.ReadAll(r)
}

// networkError classifies an error that left no usable response.
// Cancellation of the caller's context is never retried.
func networkError(ctx context.Context, message string, err error) *core.RouterError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return core.NewCanceledError(ctxErr)
	}
	return core.NewTransportError(message+": "+err.Error(), err)
}

func statusOf(err error) int {
	var re *core.RouterError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}

func bodyAsJSON(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
