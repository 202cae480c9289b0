package talon

import "net/url"

// Request is the transport-neutral request envelope a plan builds: the verb,
// the fully resolved URL, an ordered header set, and an optional body.
type Request struct {
	Method string
	URL    *url.URL
	Header Header
	Body   []byte // nil means no body

	// Meta carries the operation's resolved metadata. It is a side channel
	// for transports and interceptors (metrics keys, logging, signing) and
	// is never serialized onto the wire.
	Meta *CallMeta
}

// ContentType returns the request's Content-Type header, or "".
func (r *Request) ContentType() string {
	return r.Header.Get("Content-Type")
}

// CallMeta is the compile-time metadata of one operation, shared by every
// request the plan builds. Treat it as read-only.
type CallMeta struct {
	// API is the declared API name.
	API string

	// Operation is the endpoint name.
	Operation string

	// Method is the HTTP verb.
	Method string

	// Template is the unexpanded URL template.
	Template string

	// Params describes the declared parameters in order.
	Params []ParamMeta
}

// ParamMeta describes one declared parameter.
type ParamMeta struct {
	// Name is the declared parameter name.
	Name string

	// Role is the resolved role, never RoleAuto.
	Role Role

	// Required reports whether the parameter must carry a value: false for
	// pointer-typed prototypes, true otherwise. Parameters without a
	// prototype report true.
	Required bool
}
