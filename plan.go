package talon

import (
	"bytes"
	"mime/multipart"
	"net/url"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Plan is the compiled form of one endpoint: classification, path program,
// query order, header layers, body strategy, and response policy are all
// fixed at compile time. Plans are immutable and safe for concurrent use.
type Plan struct {
	api      string
	op       string
	method   string
	template string

	bindings  []binding
	pathIndex map[string]int // placeholder -> argument index
	queryIdx  []int
	headerIdx []int
	bagIdx    []int
	partIdx   []int
	bodyIdx   int // argument index of the JSON or form body, -1 when none
	kind      bodyKind

	baseHeader Header // baseline + API fixed headers, merged at compile

	shape         Shape
	resultType    reflect.Type
	notFoundAsNil bool
	timeout       time.Duration
	boundary      string

	records map[int]recordProgram // pre-compiled record mappings by argument index
	meta    *CallMeta
}

type bodyKind int

const (
	bodyNone bodyKind = iota
	bodyJSON
	bodyForm
	bodyMultipart
)

type recordProgram struct {
	t      reflect.Type
	fields []fieldPlan
}

// Operation returns the endpoint name.
func (p *Plan) Operation() string { return p.op }

// Method returns the HTTP verb.
func (p *Plan) Method() string { return p.method }

// Template returns the unexpanded URL template.
func (p *Plan) Template() string { return p.template }

// Shape returns the response interpretation shape.
func (p *Plan) Shape() Shape { return p.shape }

// NotFoundAsNil reports whether HTTP 404 is an absent success.
func (p *Plan) NotFoundAsNil() bool { return p.notFoundAsNil }

// Timeout returns the per-endpoint transport timeout, zero when unset.
func (p *Plan) Timeout() time.Duration { return p.timeout }

// Meta returns the operation's resolved metadata. Shared and read-only.
func (p *Plan) Meta() *CallMeta { return p.meta }

// ResultType returns the declared result type after shape analysis, nil for
// unit operations.
func (p *Plan) ResultType() reflect.Type { return p.resultType }

// PlanSet is the compiled form of an API declaration: one Plan per endpoint
// plus the declared base URL. Immutable and safe for concurrent use.
type PlanSet struct {
	api   string
	base  *url.URL
	plans map[string]*Plan
	order []*Plan
}

// Name returns the declared API name.
func (ps *PlanSet) Name() string { return ps.api }

// BaseURL returns the declared base URL, nil when the declaration left it
// empty.
func (ps *PlanSet) BaseURL() *url.URL { return ps.base }

// Plan returns the plan of an operation.
func (ps *PlanSet) Plan(op string) (*Plan, bool) {
	p, ok := ps.plans[op]
	return p, ok
}

// Plans returns every plan in declaration order. Treat the slice as
// read-only.
func (ps *PlanSet) Plans() []*Plan { return ps.order }

// Compile checks an API declaration and produces its PlanSet. Compilation is
// all-or-nothing: the first invalid endpoint aborts with a CompileError (or
// PrecedenceError) and no partial set is returned.
func Compile(api API) (*PlanSet, error) {
	var base *url.URL
	if api.BaseURL != "" {
		u, err := parseBaseURL(api.BaseURL)
		if err != nil {
			return nil, compileErrorf("", "", CodeInvalidBaseURL, "base URL %q: %v", api.BaseURL, err)
		}
		base = u
	}

	ua := api.UserAgent
	if ua == "" {
		ua = "talon/" + Version
	}
	var baseHeader Header
	baseHeader.Set("User-Agent", ua)
	baseHeader.Set("Accept", "application/json")

	keys := make([]string, 0, len(api.Headers))
	for k := range api.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		baseHeader.Set(fixedHeaderName(k), api.Headers[k])
	}

	ps := &PlanSet{
		api:   api.Name,
		base:  base,
		plans: make(map[string]*Plan, len(api.Endpoints)),
	}
	for _, ep := range api.Endpoints {
		p, err := compileEndpoint(api.Name, baseHeader, ep)
		if err != nil {
			return nil, err
		}
		if _, dup := ps.plans[p.op]; dup {
			return nil, compileErrorf(p.op, "", CodeDuplicateOperation, "operation declared twice")
		}
		ps.plans[p.op] = p
		ps.order = append(ps.order, p)
	}
	return ps, nil
}

// MustCompile is Compile for package-level declarations; it panics on error.
func MustCompile(api API) *PlanSet {
	ps, err := Compile(api)
	if err != nil {
		panic(err)
	}
	return ps
}

func compileEndpoint(apiName string, baseHeader Header, ep Endpoint) (*Plan, error) {
	if ep.Name == "" {
		return nil, compileErrorf("", "", CodeEmptyName, "endpoint has no name")
	}
	method := strings.ToUpper(ep.Method)
	if !validMethodToken(method) {
		return nil, compileErrorf(ep.Name, "", CodeInvalidMethod, "invalid HTTP method %q", ep.Method)
	}
	if ep.Path == "" {
		return nil, compileErrorf(ep.Name, "", CodeInvalidTemplate, "endpoint has no URL template")
	}
	placeholders, malformed := extractPlaceholders(ep.Path)
	if malformed {
		return nil, compileErrorf(ep.Name, "", CodeInvalidTemplate, "unclosed '{' in template %q", ep.Path)
	}

	bindings, err := classifyParams(ep.Name, method, ep.Params, placeholders)
	if err != nil {
		return nil, err
	}

	if ep.Boundary != "" {
		w := multipart.NewWriter(&bytes.Buffer{})
		if err := w.SetBoundary(ep.Boundary); err != nil {
			return nil, compileErrorf(ep.Name, "", CodeInvalidBoundary, "%v", err)
		}
	}

	shape, resultType := analyzeShape(ep.Result, ep.NotFoundAsNil)

	p := &Plan{
		api:           apiName,
		op:            ep.Name,
		method:        method,
		template:      ep.Path,
		bindings:      bindings,
		pathIndex:     make(map[string]int),
		bodyIdx:       -1,
		baseHeader:    baseHeader.clone(),
		shape:         shape,
		resultType:    resultType,
		notFoundAsNil: ep.NotFoundAsNil,
		timeout:       ep.Timeout,
		boundary:      ep.Boundary,
	}

	for i, b := range bindings {
		switch b.role {
		case RolePath:
			p.pathIndex[b.key] = i
		case RoleQuery:
			p.queryIdx = append(p.queryIdx, i)
		case RoleHeader:
			p.headerIdx = append(p.headerIdx, i)
		case RoleHeaderBag:
			p.bagIdx = append(p.bagIdx, i)
		case RoleBody:
			p.bodyIdx = i
			p.kind = bodyJSON
		case RoleForm:
			p.bodyIdx = i
			p.kind = bodyForm
		case RoleMultipart:
			p.partIdx = append(p.partIdx, i)
			p.kind = bodyMultipart
		}
	}

	if err := p.compileRecords(); err != nil {
		return nil, err
	}
	p.meta = buildMeta(apiName, p)
	return p, nil
}

// compileRecords fixes the field mapping of record parameters that declared
// a prototype, so tag mistakes surface at Compile rather than on first use.
func (p *Plan) compileRecords() error {
	for i, b := range p.bindings {
		if b.param.Of == nil {
			continue
		}
		if b.role != RoleQuery && b.role != RoleForm {
			continue
		}
		t := reflect.TypeOf(b.param.Of)
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct || isScalarType(t) {
			continue
		}
		fields, err := compileRecord(t, b.param.Rename)
		if err != nil {
			return compileErrorf(p.op, b.param.Name, CodeInvalidRecord, "%v", err)
		}
		if p.records == nil {
			p.records = make(map[int]recordProgram)
		}
		p.records[i] = recordProgram{t: t, fields: fields}
	}
	return nil
}

func buildMeta(apiName string, p *Plan) *CallMeta {
	params := make([]ParamMeta, len(p.bindings))
	for i, b := range p.bindings {
		required := true
		if b.param.Of != nil && reflect.TypeOf(b.param.Of).Kind() == reflect.Pointer {
			required = false
		}
		params[i] = ParamMeta{Name: b.param.Name, Role: b.role, Required: required}
	}
	return &CallMeta{
		API:       apiName,
		Operation: p.op,
		Method:    p.method,
		Template:  p.template,
		Params:    params,
	}
}

// Request builds the operation's request against a base URL. The build is
// pure: classification happened at compile time and no I/O occurs. args
// match the declared parameter list in order and count.
func (p *Plan) Request(base *url.URL, args ...any) (*Request, error) {
	return p.buildRequest(base, nil, args)
}

// buildRequest is Request plus a binding-level header overlay, applied
// between the API's fixed headers and the per-call parameter layers.
func (p *Plan) buildRequest(base *url.URL, overlay []HeaderField, args []any) (*Request, error) {
	if base == nil {
		return nil, argErrorf(p.op, "no base URL: declare one on the API or set one on the binding")
	}
	if len(args) != len(p.bindings) {
		return nil, argErrorf(p.op, "got %d arguments, want %d", len(args), len(p.bindings))
	}

	path := p.template
	if len(p.pathIndex) > 0 {
		values := make(map[string]string, len(p.pathIndex))
		for ph, i := range p.pathIndex {
			b := p.bindings[i]
			if args[i] == nil {
				return nil, encodeErrorf(p.op, b.param.Name, "path parameter has no value")
			}
			s, err := Stringify(args[i])
			if err != nil {
				return nil, &EncodeError{Op: p.op, Param: b.param.Name, Err: err}
			}
			values[ph] = escapePathSegment(s)
		}
		path = expandTemplate(p.template, values)
	}

	var pairs []Pair
	for _, i := range p.queryIdx {
		b := p.bindings[i]
		ps, err := p.paramPairs(i, args[i])
		if err != nil {
			return nil, &EncodeError{Op: p.op, Param: b.param.Name, Err: err}
		}
		pairs = append(pairs, ps...)
	}
	ref := path
	if q := encodeQuery(pairs); q != "" {
		ref += "?" + q
	}
	u, err := joinURL(base, ref)
	if err != nil {
		return nil, &EncodeError{Op: p.op, Err: err}
	}

	h := p.baseHeader.clone()
	for _, f := range overlay {
		h.Set(f.Name, f.Value)
	}
	for _, i := range p.headerIdx {
		b := p.bindings[i]
		v, ok := derefValue(args[i])
		if !ok {
			continue
		}
		s, err := Stringify(v)
		if err != nil {
			return nil, &EncodeError{Op: p.op, Param: b.param.Name, Err: err}
		}
		h.Set(b.key, s)
	}
	for _, i := range p.bagIdx {
		b := p.bindings[i]
		v, ok := derefValue(args[i])
		if !ok {
			continue
		}
		if !h.setBag(v) {
			return nil, encodeErrorf(p.op, b.param.Name,
				"header bag must be map[string]string, http.Header, or []HeaderField, got %T", args[i])
		}
	}

	body, contentType, err := p.buildBody(args)
	if err != nil {
		return nil, err
	}
	if body != nil && contentType != "" && !h.Has("Content-Type") {
		h.Set("Content-Type", contentType)
	}

	return &Request{
		Method: p.method,
		URL:    u,
		Header: h,
		Body:   body,
		Meta:   p.meta,
	}, nil
}

// paramPairs produces one parameter's query or form pairs, using the
// pre-compiled record program when the value's type matches the declared
// prototype.
func (p *Plan) paramPairs(idx int, v any) ([]Pair, error) {
	b := p.bindings[idx]
	if prog, ok := p.records[idx]; ok && v != nil {
		rv := reflect.ValueOf(v)
		for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
			if rv.IsNil() {
				return nil, nil
			}
			rv = rv.Elem()
		}
		if rv.Type() == prog.t {
			if enc, ok := v.(PairEncoder); ok {
				return enc.QueryPairs()
			}
			return recordPairs(rv, prog.fields)
		}
	}
	return pairsForValue(b.key, b.param.Format, b.param.Rename, v)
}

// derefValue unwraps pointers and interfaces; ok is false when the value is
// nil at any level (an absent optional).
func derefValue(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	return rv.Interface(), true
}
