// Package testutil provides testing helpers for talon clients: a scriptable
// stub transport, request assertions, and query-string decoding. Import it
// from external test packages only (package foo_test); importing it from an
// internal test file of the talon package would form an import cycle.
package testutil

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"testing"

	"github.com/talonhq/talon"

	"github.com/gorilla/schema"
)

var queryDecoder = schema.NewDecoder()

func init() {
	queryDecoder.IgnoreUnknownKeys(true)
}

// StubTransport is a Transport that replays scripted responses and records
// every request it receives. Responses are consumed in order; the last one
// is sticky so a single scripted response serves any number of calls.
// Safe for concurrent use.
type StubTransport struct {
	mu        sync.Mutex
	responses []*talon.Response
	err       error
	requests  []*talon.Request
}

// NewStub creates a stub transport with no scripted responses. An
// unscripted stub replies 200 with an empty body.
func NewStub() *StubTransport {
	return &StubTransport{}
}

// Respond queues a canned response.
func (s *StubTransport) Respond(resp *talon.Response) *StubTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, resp)
	return s
}

// RespondJSON queues a response with v marshaled as the JSON body.
func (s *StubTransport) RespondJSON(status int, v any) *StubTransport {
	data, _ := json.Marshal(v)
	return s.Respond(&talon.Response{Status: status, Body: data})
}

// RespondText queues a response with a plain string body.
func (s *StubTransport) RespondText(status int, body string) *StubTransport {
	return s.Respond(&talon.Response{Status: status, Body: []byte(body)})
}

// Fail makes every subsequent call return err instead of a response.
func (s *StubTransport) Fail(err error) *StubTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// Execute records the request and replays the next scripted response.
func (s *StubTransport) Execute(ctx context.Context, req *talon.Request) (*talon.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.responses) == 0 {
		return &talon.Response{Status: 200}, nil
	}
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return resp, nil
}

// Requests returns a copy of all recorded requests.
func (s *StubTransport) Requests() []*talon.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*talon.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recently recorded request, or nil.
func (s *StubTransport) LastRequest() *talon.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}

// Reset drops all recorded requests and scripted responses.
func (s *StubTransport) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
	s.responses = nil
	s.err = nil
}

// DecodeQuery parses the request's query string into dst using gorilla
// schema. dst must be a pointer to a struct with `schema` tags matching
// the wire keys.
func DecodeQuery(t *testing.T, req *talon.Request, dst any) {
	t.Helper()
	vals, err := url.ParseQuery(req.URL.RawQuery)
	if err != nil {
		t.Fatalf("failed to parse query %q: %v", req.URL.RawQuery, err)
	}
	if err := queryDecoder.Decode(dst, vals); err != nil {
		t.Fatalf("failed to decode query %q: %v", req.URL.RawQuery, err)
	}
}

// AssertMethod checks the request method.
func AssertMethod(t *testing.T, req *talon.Request, expected string) {
	t.Helper()
	if req.Method != expected {
		t.Errorf("expected method %s, got %s", expected, req.Method)
	}
}

// AssertPath checks the decoded request path.
func AssertPath(t *testing.T, req *talon.Request, expected string) {
	t.Helper()
	if req.URL.Path != expected {
		t.Errorf("expected path %s, got %s", expected, req.URL.Path)
	}
}

// AssertURL checks the full request URL.
func AssertURL(t *testing.T, req *talon.Request, expected string) {
	t.Helper()
	if actual := req.URL.String(); actual != expected {
		t.Errorf("expected URL %s, got %s", expected, actual)
	}
}

// AssertQuery checks a single query parameter. Repeated keys compare
// against the first occurrence.
func AssertQuery(t *testing.T, req *talon.Request, key, expected string) {
	t.Helper()
	vals, err := url.ParseQuery(req.URL.RawQuery)
	if err != nil {
		t.Fatalf("failed to parse query %q: %v", req.URL.RawQuery, err)
	}
	if actual := vals.Get(key); actual != expected {
		t.Errorf("expected query %s=%s, got %s", key, expected, actual)
	}
}

// AssertHeader checks that a request header has the expected value.
func AssertHeader(t *testing.T, req *talon.Request, key, expected string) {
	t.Helper()
	if actual := req.Header.Get(key); actual != expected {
		t.Errorf("expected header %s=%s, got %s", key, expected, actual)
	}
}

// AssertJSONBody unmarshals the request body and compares it with the
// expected value, ignoring formatting differences.
func AssertJSONBody(t *testing.T, req *talon.Request, expected any) {
	t.Helper()

	expectedJSON, _ := json.Marshal(expected)
	var expectedData, actualData any
	json.Unmarshal(expectedJSON, &expectedData)
	if err := json.Unmarshal(req.Body, &actualData); err != nil {
		t.Fatalf("failed to decode request body: %v\nBody: %s", err, req.Body)
	}

	expectedStr, _ := json.MarshalIndent(expectedData, "", "  ")
	actualStr, _ := json.MarshalIndent(actualData, "", "  ")

	if string(expectedStr) != string(actualStr) {
		t.Errorf("body mismatch:\nExpected:\n%s\nActual:\n%s", expectedStr, actualStr)
	}
}
