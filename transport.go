package talon

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"time"
)

// Transport executes a built request and returns the raw response. It is the
// single seam between plans and the network: retries, authentication, rate
// limiting, and similar policies belong to Transport implementations or
// their wrappers, not to plans.
type Transport interface {
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

func (f TransportFunc) Execute(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// HTTPTransport adapts net/http to the Transport contract. It converts the
// request envelope, executes it, and reads the response body fully.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport returns a transport backed by a default http.Client:
// 30 second overall timeout, TLS 1.2 minimum, environment proxy settings.
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
		},
	}
}

// WithClient replaces the underlying http.Client and returns the transport.
func (t *HTTPTransport) WithClient(c *http.Client) *HTTPTransport {
	t.client = c
	return t
}

// Execute implements Transport. Deadline expiry surfaces as an error
// wrapping ErrTimeout; other failures are wrapped in TransportError with the
// connection or TLS detail preserved underneath.
func (t *HTTPTransport) Execute(ctx context.Context, req *Request) (*Response, error) {
	op := ""
	if req.Meta != nil {
		op = req.Meta.Operation
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	for _, f := range req.Header.Fields() {
		// Direct assignment keeps the declared spelling; Header.Set would
		// canonicalize it.
		httpReq.Header[f.Name] = []string{f.Value}
	}
	if req.Body != nil {
		httpReq.ContentLength = int64(len(req.Body))
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, timeoutError(op)
		}
		return nil, &TransportError{Op: op, Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, timeoutError(op)
		}
		return nil, &TransportError{Op: op, Err: err}
	}

	return &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   data,
	}, nil
}
