package talon

import "reflect"

// Shape classifies how an operation's response is interpreted.
type Shape string

const (
	// ShapeJSON decodes a 2xx body from JSON into the declared result type.
	// Non-2xx statuses become StatusError (404 excepted under NotFoundAsNil).
	ShapeJSON Shape = "json"

	// ShapeRaw hands the response envelope to the caller untouched. Raw
	// operations never synthesize status errors; status inspection is left
	// to the caller.
	ShapeRaw Shape = "raw"

	// ShapeUnit discards the body. Non-2xx statuses become StatusError
	// (404 excepted under NotFoundAsNil).
	ShapeUnit Shape = "unit"
)

var (
	responseType = reflect.TypeOf(Response{})
	emptyType    = reflect.TypeOf(struct{}{})
)

// analyzeShape classifies a declared result prototype. When notFoundAsNil is
// set, one pointer layer is unwrapped first: (*Repo)(nil) declares the
// present value's type Repo. A nil prototype or struct{} is unit; Response
// (by value or pointer) is raw; everything else decodes from JSON.
func analyzeShape(result any, notFoundAsNil bool) (Shape, reflect.Type) {
	if result == nil {
		return ShapeUnit, nil
	}
	t := reflect.TypeOf(result)
	if notFoundAsNil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() == reflect.Pointer && t.Elem() == responseType {
		t = t.Elem()
	}
	switch t {
	case responseType:
		return ShapeRaw, t
	case emptyType:
		return ShapeUnit, nil
	}
	return ShapeJSON, t
}

// interpret applies the operation's response policy. It returns the response
// when the outcome is a present success, nil for an absent success (404
// under NotFoundAsNil), and an error otherwise. Decoding is left to the
// typed entry points.
//
//	shape  NotFoundAsNil  404       other non-2xx  2xx
//	json   false          error     error          present
//	json   true           absent    error          present
//	raw    false          present   present        present
//	raw    true           absent    present        present
//	unit   false          error     error          present
//	unit   true           absent    error          present
func (p *Plan) interpret(resp *Response) (*Response, error) {
	if p.notFoundAsNil && resp.Status == 404 {
		return nil, nil
	}
	if p.shape == ShapeRaw {
		return resp, nil
	}
	if !resp.IsSuccess() {
		return nil, newStatusError(resp)
	}
	return resp, nil
}
