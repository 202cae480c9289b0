package talon

import "time"

// API declares a family of HTTP endpoints sharing a base URL and a set of
// fixed headers. The declaration is plain data; Compile turns it into an
// immutable PlanSet.
type API struct {
	// Name identifies the API in diagnostics and generated client names.
	Name string

	// BaseURL is the default base URL endpoints are resolved against.
	// It may be left empty when every binding supplies its own; it must not
	// carry a query string or fragment.
	BaseURL string

	// UserAgent overrides the default "talon/<version>" User-Agent header.
	UserAgent string

	// Headers are fixed headers sent with every request of the API.
	// Underscores in keys are rewritten to hyphens, so map keys can be
	// written as identifiers (X_Api_Version becomes X-Api-Version).
	Headers map[string]string

	// Endpoints lists the operations, in declaration order.
	Endpoints []Endpoint
}

// Endpoint declares a single operation: an HTTP method, a URL template with
// {name} placeholders, an ordered parameter list, and a result prototype.
type Endpoint struct {
	// Name is the operation name, unique within the API.
	Name string

	// Method is the HTTP verb. Standard verbs are uppercased; custom verbs
	// are passed through but never carry a request body.
	Method string

	// Path is the URL template. Placeholders use {name} syntax and do not
	// nest. The template is resolved against the base URL, preserving any
	// path prefix the base carries.
	Path string

	// Params are the operation's parameters, in declaration order. Order is
	// significant: it is the call-site argument order and the query
	// serialization order.
	Params []Param

	// Result is a prototype value of the declared result type. nil declares
	// no decoded result (status-only); Response{} or (*Response)(nil)
	// declares raw access to the response envelope; anything else is decoded
	// from JSON. When NotFoundAsNil is set a pointer prototype such as
	// (*Repo)(nil) declares the present value's type.
	Result any

	// NotFoundAsNil turns HTTP 404 into an absent success instead of an
	// error. Callers use InvokeOptional (or FetchOptional) to observe the
	// distinction.
	NotFoundAsNil bool

	// Timeout bounds the transport execution of this endpoint only. Zero
	// means no per-endpoint bound. Expiry surfaces as ErrTimeout, not as a
	// generic transport failure.
	Timeout time.Duration

	// Boundary fixes the multipart boundary instead of generating a random
	// one. Intended for reproducible tests and byte-exact fixtures.
	Boundary string
}

// Param declares one parameter of an endpoint.
type Param struct {
	// Name is the parameter name. It doubles as the wire key unless Alias
	// overrides it, and as the placeholder name for path matching.
	Name string

	// In pins the parameter's role. The zero value lets the classifier
	// infer it: an exact placeholder-name match becomes a path parameter,
	// and a single leftover on a body-bearing verb becomes the JSON body.
	In Role

	// Alias overrides the wire name: the placeholder for path parameters,
	// the key for query parameters, the header name for header parameters,
	// and the field name for multipart parameters.
	Alias string

	// Format selects the query collection format for list values. The zero
	// value is FormatMulti (one key=value pair per element).
	Format Format

	// Rename is the field-name rule applied when this parameter is a
	// structured record. Explicit per-field tags always win over the rule.
	Rename Rename

	// Of is an optional prototype of the parameter's Go type. When given
	// for a record parameter, the field mapping is checked and compiled at
	// Compile time instead of on first use; it also drives typed signatures
	// in generated clients.
	Of any
}

// Role identifies where a parameter's value is placed in the outgoing
// request.
type Role string

const (
	// RoleAuto lets the classifier infer the role.
	RoleAuto Role = ""

	// RolePath substitutes the value into a template placeholder.
	RolePath Role = "path"

	// RoleQuery appends key=value pairs to the query string.
	RoleQuery Role = "query"

	// RoleHeader sends the value as a single header.
	RoleHeader Role = "header"

	// RoleHeaderBag merges a map of headers into the request.
	RoleHeaderBag Role = "header_bag"

	// RoleBody marshals the value as the JSON request body.
	RoleBody Role = "body"

	// RoleForm encodes a record as an application/x-www-form-urlencoded
	// body.
	RoleForm Role = "form"

	// RoleMultipart contributes one or more parts to a multipart/form-data
	// body.
	RoleMultipart Role = "multipart"
)

// Format is the query serialization of list values.
type Format string

const (
	// FormatDefault is FormatMulti.
	FormatDefault Format = ""

	// FormatMulti emits one key=value pair per element. An empty list emits
	// zero pairs.
	FormatMulti Format = "multi"

	// FormatCSV joins elements with commas into a single pair. An empty
	// list emits nothing at all.
	FormatCSV Format = "csv"

	// FormatSSV joins elements with spaces into a single pair.
	FormatSSV Format = "ssv"

	// FormatPipes joins elements with pipes into a single pair.
	FormatPipes Format = "pipes"
)

// Rename is a field-name rule for structured records.
type Rename string

const (
	RenameNone           Rename = ""
	RenameLower          Rename = "lowercase"
	RenameUpper          Rename = "UPPERCASE"
	RenameCamel          Rename = "camelCase"
	RenamePascal         Rename = "PascalCase"
	RenameSnake          Rename = "snake_case"
	RenameScreamingSnake Rename = "SCREAMING_SNAKE_CASE"
	RenameKebab          Rename = "kebab-case"
	RenameScreamingKebab Rename = "SCREAMING-KEBAB-CASE"
)

// Empty is the result prototype for operations with no decoded result. It is
// also the type argument for InvokeOptional on such operations, where a
// non-nil pointer reports plain presence.
type Empty = struct{}
