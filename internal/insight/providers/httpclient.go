// Package providers holds one adapter per external data source. Every adapter
// turns its outcome into an insight.Result; no error leaves this package.
package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mohammad-safakhou/brandlens/internal/insight"
	"github.com/mohammad-safakhou/brandlens/internal/insight/decode"
)

// maxBody caps how much of a response is read.
const maxBody = 8 << 20

var (
	errNotConfigured = errors.New("provider not configured")
	errNoAccessToken = errors.New("token response without access_token")
)

// StatusError is a non-2xx response.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return e.Status
	}
	return e.Status + ": " + e.Body
}

// Call describes one outbound request.
type Call struct {
	Method  string
	URL     string
	Header  map[string]string
	Body    []byte
	Timeout time.Duration
}

// HTTPClient is the shared outbound client. Transport failures and 5xx
// responses are retried with exponential backoff; 4xx responses are not.
// Retries never outlive the call's context.
type HTTPClient struct {
	client    *http.Client
	retries   int
	backoff   time.Duration
	userAgent string
}

func NewHTTPClient(retries int, backoff time.Duration, userAgent string) *HTTPClient {
	return NewHTTPClientWith(&http.Client{}, retries, backoff, userAgent)
}

// NewHTTPClientWith wraps an existing *http.Client, e.g. one served by httptest.
func NewHTTPClientWith(c *http.Client, retries int, backoff time.Duration, userAgent string) *HTTPClient {
	if c == nil {
		c = &http.Client{}
	}
	if retries < 0 {
		retries = 0
	}
	if backoff == 0 {
		backoff = 300 * time.Millisecond
	}
	return &HTTPClient{client: c, retries: retries, backoff: backoff, userAgent: userAgent}
}

// Fetch performs call and returns the raw response body of a 2xx answer.
func (c *HTTPClient) Fetch(ctx context.Context, call Call) ([]byte, error) {
	if call.Method == "" {
		call.Method = http.MethodGet
	}
	if call.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, call.Timeout)
		defer cancel()
	}

	var body []byte
	op := func() error {
		b, retry, err := c.once(ctx, call)
		if err != nil {
			if !retry {
				return backoff.Permanent(err)
			}
			return err
		}
		body = b
		return nil
	}
	if err := backoff.Retry(op, c.policy(ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

// policy doubles the wait after every failed attempt, starting at c.backoff.
func (c *HTTPClient) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.backoff
	exp.Multiplier = 2
	exp.MaxInterval = 30 * c.backoff
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.retries)), ctx)
}

func (c *HTTPClient) once(ctx context.Context, call Call) ([]byte, bool, error) {
	var bodyReader io.Reader
	if call.Body != nil {
		bodyReader = bytes.NewReader(call.Body)
	}
	req, err := http.NewRequestWithContext(ctx, call.Method, call.URL, bodyReader)
	if err != nil {
		return nil, false, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range call.Header {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode >= 500, &StatusError{
			Code:   resp.StatusCode,
			Status: resp.Status,
			Body:   decode.Prefix(bytes.TrimSpace(b), 256),
		}
	}
	return b, false, nil
}

// classify maps an adapter error to the reason recorded in its Result.
func classify(err error) insight.Reason {
	if err == nil {
		return insight.ReasonNone
	}
	if f, ok := decode.AsFailure(err); ok {
		return f.Kind
	}
	if errors.Is(err, errNotConfigured) {
		return insight.ReasonNotConfigured
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return insight.ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return insight.ReasonTimeout
	}
	return insight.ReasonTransport
}

// settle converts a (value, error) pair into a Result.
func settle[T any](v T, err error) insight.Result[T] {
	if err != nil {
		return insight.Unavailable[T](classify(err))
	}
	return insight.Ok(v)
}

// fetchJSON fetches call and decodes the body as a T.
func fetchJSON[T any](ctx context.Context, c *HTTPClient, d *decode.Decoder, source string, call Call) (T, error) {
	var zero T
	raw, err := c.Fetch(ctx, call)
	if err != nil {
		return zero, err
	}
	return decode.Into[T](d, raw, source)
}

// fetchRaw is fetchJSON that also returns the body, for adapters that
// validate required fields after the parse.
func fetchRaw[T any](ctx context.Context, c *HTTPClient, d *decode.Decoder, source string, call Call) ([]byte, T, error) {
	var zero T
	raw, err := c.Fetch(ctx, call)
	if err != nil {
		return nil, zero, err
	}
	v, err := decode.Into[T](d, raw, source)
	return raw, v, err
}

func errMissingField(name string) error {
	return fmt.Errorf("missing required field %q", name)
}
