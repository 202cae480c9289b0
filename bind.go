package talon

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"reflect"
	"time"
)

// Binding is anything a plan set has been bound to: an owned Client, a
// Wrapper over a concrete transport, or the transient binding the Exec and
// Fetch functions build. The interface is sealed; all bindings share one
// build-execute-interpret path.
type Binding interface {
	binding() *bindingState
}

// bindingState is the call-time configuration every binding carries.
type bindingState struct {
	ps        *PlanSet
	transport Transport
	base      *url.URL // overrides the declared base URL when non-nil
	baseErr   error    // deferred WithBaseURL parse failure
	overlay   Header   // binding-level fixed headers
	logger    *slog.Logger
	validate  bool
}

// Wrapper binds a plan set to a concrete transport type. Unlike Client it
// does not own a default transport: the caller supplies one, and keeps
// statically typed access to it through the Transport field.
type Wrapper[T Transport] struct {
	// Transport is the wrapped transport, exposed with its concrete type.
	Transport T

	st bindingState
}

// Wrap binds ps to t. Configure with the With methods before first use.
func Wrap[T Transport](ps *PlanSet, t T) *Wrapper[T] {
	w := &Wrapper[T]{Transport: t}
	w.st = bindingState{ps: ps, transport: t}
	return w
}

// WithBaseURL overrides the declared base URL. A malformed URL is reported
// by the first call.
func (w *Wrapper[T]) WithBaseURL(raw string) *Wrapper[T] {
	u, err := parseBaseURL(raw)
	if err != nil {
		w.st.baseErr = argErrorf("", "base URL %q: %v", raw, err)
		return w
	}
	w.st.base = u
	return w
}

// WithHeader adds a fixed header to every request of this binding. It
// layers above the API's declared headers and below per-call parameters.
func (w *Wrapper[T]) WithHeader(name, value string) *Wrapper[T] {
	w.st.overlay.Set(name, value)
	return w
}

// WithUserAgent overrides the User-Agent header for this binding.
func (w *Wrapper[T]) WithUserAgent(ua string) *Wrapper[T] {
	w.st.overlay.Set("User-Agent", ua)
	return w
}

// WithLogger enables debug logging of built requests and received
// responses.
func (w *Wrapper[T]) WithLogger(l *slog.Logger) *Wrapper[T] {
	w.st.logger = l
	return w
}

// WithValidation validates struct arguments with `validate` tags before
// they are encoded.
func (w *Wrapper[T]) WithValidation() *Wrapper[T] {
	w.st.validate = true
	return w
}

// Plans returns the bound plan set.
func (w *Wrapper[T]) Plans() *PlanSet { return w.st.ps }

func (w *Wrapper[T]) binding() *bindingState { return &w.st }

// grant is the transient binding behind the Exec and Fetch free functions.
type grant struct {
	st bindingState
}

func (g *grant) binding() *bindingState { return &g.st }

func newGrant(t Transport, ps *PlanSet) *grant {
	return &grant{st: bindingState{ps: ps, transport: t}}
}

// lookup resolves an operation name against the binding's plan set.
func lookup(st *bindingState, op string) (*Plan, error) {
	if st.ps == nil {
		return nil, argErrorf(op, "binding has no plan set")
	}
	p, ok := st.ps.Plan(op)
	if !ok {
		return nil, argErrorf(op, "unknown operation")
	}
	return p, nil
}

// run executes one call: optional validation, request build, transport
// execution under the endpoint's timeout, then the response policy. The
// returned response is nil for an absent success (404 under NotFoundAsNil).
func run(ctx context.Context, st *bindingState, p *Plan, args []any) (*Response, error) {
	if st.baseErr != nil {
		return nil, st.baseErr
	}
	if st.transport == nil {
		return nil, argErrorf(p.op, "binding has no transport")
	}
	if st.validate {
		if err := p.validateArgs(args); err != nil {
			return nil, err
		}
	}

	base := st.base
	if base == nil {
		base = st.ps.base
	}
	req, err := p.buildRequest(base, st.overlay.Fields(), args)
	if err != nil {
		return nil, err
	}
	if st.logger != nil {
		st.logger.Debug("request built",
			slog.String("operation", p.op),
			slog.String("method", p.method),
			slog.String("url", req.URL.String()))
	}

	execCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	start := time.Now()
	resp, err := st.transport.Execute(execCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, timeoutError(p.op)
		}
		return nil, err
	}
	if st.logger != nil {
		st.logger.Debug("response received",
			slog.String("operation", p.op),
			slog.Int("status", resp.Status),
			slog.Duration("duration", time.Since(start)))
	}

	return p.interpret(resp)
}

// Do executes a unit operation: the response body is discarded and only the
// status outcome is reported. On an operation with NotFoundAsNil set, an
// absent 404 also returns nil; use InvokeOptional[Empty] to observe
// presence.
func Do(ctx context.Context, b Binding, op string, args ...any) error {
	st := b.binding()
	p, err := lookup(st, op)
	if err != nil {
		return err
	}
	if p.shape != ShapeUnit {
		return argErrorf(op, "operation declares a %s result; use Invoke or InvokeRaw", p.shape)
	}
	_, err = run(ctx, st, p, args)
	return err
}

// Invoke executes a JSON operation and decodes the 2xx body into T.
func Invoke[T any](ctx context.Context, b Binding, op string, args ...any) (T, error) {
	var zero T
	st := b.binding()
	p, err := lookup(st, op)
	if err != nil {
		return zero, err
	}
	if p.shape != ShapeJSON {
		return zero, argErrorf(op, "operation declares a %s result; use Do or InvokeRaw", p.shape)
	}
	if p.notFoundAsNil {
		return zero, argErrorf(op, "operation treats 404 as absent; use InvokeOptional")
	}
	resp, err := run(ctx, st, p, args)
	if err != nil {
		return zero, err
	}
	var out T
	if err := decodeJSON(resp.Body, &out, p.op); err != nil {
		return zero, err
	}
	return out, nil
}

// InvokeOptional executes an operation with NotFoundAsNil set. A 404
// returns (nil, nil); a 2xx returns the decoded value. For unit operations
// instantiate with Empty, where a non-nil pointer reports plain presence.
func InvokeOptional[T any](ctx context.Context, b Binding, op string, args ...any) (*T, error) {
	st := b.binding()
	p, err := lookup(st, op)
	if err != nil {
		return nil, err
	}
	if !p.notFoundAsNil {
		return nil, argErrorf(op, "operation does not treat 404 as absent; use Invoke")
	}
	switch p.shape {
	case ShapeRaw:
		return nil, argErrorf(op, "operation declares a raw result; use InvokeRaw")
	case ShapeUnit:
		if reflect.TypeOf((*T)(nil)).Elem() != emptyType {
			return nil, argErrorf(op, "operation has no decoded result; instantiate InvokeOptional with Empty")
		}
	}

	resp, err := run(ctx, st, p, args)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	out := new(T)
	if p.shape == ShapeJSON {
		if err := decodeJSON(resp.Body, out, p.op); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// InvokeRaw executes a raw operation and returns the response envelope
// untouched: no status code is ever turned into an error. When the
// operation sets NotFoundAsNil, a 404 returns (nil, nil).
func InvokeRaw(ctx context.Context, b Binding, op string, args ...any) (*Response, error) {
	st := b.binding()
	p, err := lookup(st, op)
	if err != nil {
		return nil, err
	}
	if p.shape != ShapeRaw {
		return nil, argErrorf(op, "operation declares a %s result; use Do or Invoke", p.shape)
	}
	return run(ctx, st, p, args)
}

// Exec is Do against a bare transport: the capability-grant form for
// callers that already satisfy the Transport contract and want no wrapper
// value. The base URL comes from the plan set's declaration.
func Exec(ctx context.Context, t Transport, ps *PlanSet, op string, args ...any) error {
	return Do(ctx, newGrant(t, ps), op, args...)
}

// Fetch is Invoke against a bare transport.
func Fetch[T any](ctx context.Context, t Transport, ps *PlanSet, op string, args ...any) (T, error) {
	return Invoke[T](ctx, newGrant(t, ps), op, args...)
}

// FetchOptional is InvokeOptional against a bare transport.
func FetchOptional[T any](ctx context.Context, t Transport, ps *PlanSet, op string, args ...any) (*T, error) {
	return InvokeOptional[T](ctx, newGrant(t, ps), op, args...)
}

// FetchRaw is InvokeRaw against a bare transport.
func FetchRaw(ctx context.Context, t Transport, ps *PlanSet, op string, args ...any) (*Response, error) {
	return InvokeRaw(ctx, newGrant(t, ps), op, args...)
}
