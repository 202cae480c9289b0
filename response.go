package talon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Response is the transport-neutral response envelope: status code, headers,
// and the fully read body.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// IsSuccess reports whether the status code is in the 2xx range.
func (r *Response) IsSuccess() bool {
	return r.Status >= 200 && r.Status < 300
}

// JSON decodes the body into v. Decode failures return a DecodeError whose
// Path names the failing field when the decoder can attribute one.
func (r *Response) JSON(v any) error {
	return decodeJSON(r.Body, v, "")
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// decodeJSON unmarshals data into v, converting failures into DecodeError
// with a field path where encoding/json provides one.
func decodeJSON(data []byte, v any, op string) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &DecodeError{Op: op, Path: jsonErrorPath(err), Err: err}
	}
	return nil
}

// jsonErrorPath extracts the failing field path from an encoding/json error.
// Type mismatches carry a dotted path; syntax errors report a byte offset.
func jsonErrorPath(err error) string {
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) {
		if ute.Field != "" {
			return ute.Field
		}
		return "offset " + strconv.FormatInt(ute.Offset, 10)
	}
	var se *json.SyntaxError
	if errors.As(err, &se) {
		return fmt.Sprintf("offset %d", se.Offset)
	}
	return ""
}
