package talon

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a machine-readable discriminant for compilation failures.
type ErrorCode string

const (
	CodeEmptyName          ErrorCode = "empty_name"
	CodeDuplicateOperation ErrorCode = "duplicate_operation"
	CodeDuplicateParam     ErrorCode = "duplicate_param"
	CodeInvalidTemplate    ErrorCode = "invalid_template"
	CodeInvalidMethod      ErrorCode = "invalid_method"
	CodeInvalidBaseURL     ErrorCode = "invalid_base_url"
	CodeInvalidRole        ErrorCode = "invalid_role"
	CodeInvalidFormat      ErrorCode = "invalid_format"
	CodeInvalidRename      ErrorCode = "invalid_rename"
	CodeUnboundPlaceholder ErrorCode = "unbound_placeholder"
	CodeDuplicateBinding   ErrorCode = "duplicate_placeholder_binding"
	CodeUnclassifiable     ErrorCode = "unclassifiable_param"
	CodeAmbiguousParams    ErrorCode = "ambiguous_params"
	CodeBodyNotAllowed     ErrorCode = "body_not_allowed"
	CodeMultipleBodies     ErrorCode = "multiple_bodies"
	CodeInvalidRecord      ErrorCode = "invalid_record"
	CodeInvalidBoundary    ErrorCode = "invalid_boundary"
)

// CompileError reports a declaration that cannot be compiled into a plan.
type CompileError struct {
	Op      string // operation name, when known
	Param   string // offending parameter, when any
	Code    ErrorCode
	Message string
}

func (e *CompileError) Error() string {
	var b strings.Builder
	b.WriteString("talon: compile")
	if e.Op != "" {
		b.WriteString(" ")
		b.WriteString(e.Op)
	}
	b.WriteString(": ")
	if e.Param != "" {
		fmt.Fprintf(&b, "parameter %q: ", e.Param)
	}
	b.WriteString(e.Message)
	return b.String()
}

func compileErrorf(op, param string, code ErrorCode, format string, args ...any) *CompileError {
	return &CompileError{
		Op:      op,
		Param:   param,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// PrecedenceError reports parameters that remain unclassified after every
// classification tier has run: they match no placeholder and more than one
// candidate is left for the request body. It unwraps to a CompileError with
// code CodeAmbiguousParams so both types match via errors.As.
type PrecedenceError struct {
	CompileError

	// Params are the offending parameter names, in declaration order.
	Params []string

	// Placeholders are the template's placeholder names, for diagnosis.
	Placeholders []string
}

func (e *PrecedenceError) Error() string {
	avail := "none"
	if len(e.Placeholders) > 0 {
		avail = strings.Join(e.Placeholders, ", ")
	}
	return fmt.Sprintf("talon: compile %s: cannot classify parameters [%s]: no matching placeholders (available: %s) and only one request body is allowed",
		e.Op, strings.Join(e.Params, ", "), avail)
}

func (e *PrecedenceError) Unwrap() error {
	return &e.CompileError
}

// StatusError is a non-success HTTP status surfaced as an error. The raw
// response body is retained so callers can decode structured error payloads.
type StatusError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("talon: HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("talon: HTTP %d", e.Status)
}

// DecodeBody unmarshals the retained error body into v.
func (e *StatusError) DecodeBody(v any) error {
	if len(e.Body) == 0 {
		return &DecodeError{Err: errors.New("empty error body")}
	}
	return decodeJSON(e.Body, v, "")
}

func newStatusError(resp *Response) *StatusError {
	return &StatusError{
		Status:  resp.Status,
		Message: http.StatusText(resp.Status),
		Body:    resp.Body,
	}
}

// IsStatus reports whether err is a StatusError with the given status code.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}

// IsNotFound reports whether err is an HTTP 404 StatusError.
func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

// ErrTimeout reports that an endpoint's transport deadline elapsed. Errors
// wrapping it match via errors.Is.
var ErrTimeout = errors.New("request timed out")

func timeoutError(op string) error {
	if op == "" {
		return fmt.Errorf("talon: %w", ErrTimeout)
	}
	return fmt.Errorf("talon: %s: %w", op, ErrTimeout)
}

// TransportError wraps an opaque transport failure (connection refused, TLS
// handshake, DNS, and similar). The underlying error is preserved via Unwrap.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("talon: %s: transport: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("talon: transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// EncodeError reports a failure to serialize a parameter value into the
// request: an unstringifiable value, a JSON or form marshal failure, a
// multipart write failure, or a failed validation.
type EncodeError struct {
	Op    string
	Param string
	Err   error
}

func (e *EncodeError) Error() string {
	var b strings.Builder
	b.WriteString("talon: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString("encode")
	if e.Param != "" {
		fmt.Fprintf(&b, " parameter %q", e.Param)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

func encodeErrorf(op, param, format string, args ...any) *EncodeError {
	return &EncodeError{Op: op, Param: param, Err: fmt.Errorf(format, args...)}
}

// DecodeError reports a failure to decode a response body. Path names the
// field path that failed, when the decoder can attribute one.
type DecodeError struct {
	Op   string
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	b.WriteString("talon: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString("decode response")
	if e.Path != "" {
		fmt.Fprintf(&b, " at %q", e.Path)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ArgError reports a call-site misuse of a plan: wrong argument count, an
// unknown operation, a missing base URL, or the wrong entry point for the
// operation's result shape.
type ArgError struct {
	Op      string
	Message string
}

func (e *ArgError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("talon: %s: %s", e.Op, e.Message)
	}
	return "talon: " + e.Message
}

func argErrorf(op, format string, args ...any) *ArgError {
	return &ArgError{Op: op, Message: fmt.Sprintf(format, args...)}
}
