package talon

import (
	"log/slog"
	"net/http"
)

// Client is the owned binding over a plan set. It carries a default HTTP
// transport so the zero configuration works out of the box; every knob is
// a chainable With method, and all of them may be called in any order
// before the first request.
//
//	ps := talon.MustCompile(api)
//	c := talon.NewClient(ps).
//		WithHeader("Authorization", "Bearer "+token).
//		WithLogger(slog.Default())
//	user, err := talon.Invoke[User](ctx, c, "get_user", id)
type Client struct {
	st bindingState
}

// NewClient binds ps to a fresh HTTP transport.
func NewClient(ps *PlanSet) *Client {
	c := &Client{}
	c.st = bindingState{ps: ps, transport: NewHTTPTransport()}
	return c
}

// WithTransport replaces the transport. Use this to install interceptors,
// recorders, or a stub.
func (c *Client) WithTransport(t Transport) *Client {
	c.st.transport = t
	return c
}

// WithHTTPClient replaces the underlying http.Client while keeping the
// standard HTTP transport semantics.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.st.transport = NewHTTPTransport().WithClient(hc)
	return c
}

// WithBaseURL overrides the base URL declared on the API. The raw string
// must be absolute and carry no query or fragment; a malformed URL is
// reported by the first call rather than here, keeping the chain fluent.
func (c *Client) WithBaseURL(raw string) *Client {
	u, err := parseBaseURL(raw)
	if err != nil {
		c.st.baseErr = argErrorf("", "base URL %q: %v", raw, err)
		return c
	}
	c.st.base = u
	return c
}

// WithHeader adds a fixed header sent on every request. It overrides an
// API-declared header with the same name and is itself overridden by a
// per-call header parameter.
func (c *Client) WithHeader(name, value string) *Client {
	c.st.overlay.Set(name, value)
	return c
}

// WithUserAgent overrides the User-Agent header.
func (c *Client) WithUserAgent(ua string) *Client {
	c.st.overlay.Set("User-Agent", ua)
	return c
}

// WithLogger enables debug logging of built requests and received
// responses.
func (c *Client) WithLogger(l *slog.Logger) *Client {
	c.st.logger = l
	return c
}

// WithValidation validates struct arguments with `validate` tags before
// they are encoded. Validation failures surface as EncodeError.
func (c *Client) WithValidation() *Client {
	c.st.validate = true
	return c
}

// Plans returns the bound plan set.
func (c *Client) Plans() *PlanSet { return c.st.ps }

func (c *Client) binding() *bindingState { return &c.st }
