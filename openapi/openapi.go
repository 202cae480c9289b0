// Package openapi builds talon API declarations from OpenAPI documents.
//
// The importer reads an OpenAPI 3.x document (Swagger 2.0 is converted on
// the fly) and emits a talon.API whose endpoints mirror the document's
// operations. Arguments of an imported operation follow declaration order:
// path parameters in template order, then query parameters, then headers,
// each group sorted by name, with the request body last.
package openapi

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	openapi2 "github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/invopop/yaml"

	"github.com/talonhq/talon"
	"github.com/talonhq/talon/internal/words"
)

// Option configures the import.
type Option func(*config)

type config struct {
	name        string
	baseURL     string
	includeTags map[string]struct{}
	excludeTags map[string]struct{}
}

// WithName overrides the API name. The default is the document's info
// title.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithBaseURL overrides the base URL. The default is the document's first
// server entry; a document without servers yields an API whose BaseURL
// must be filled in before compiling.
func WithBaseURL(raw string) Option {
	return func(c *config) { c.baseURL = raw }
}

// WithIncludeTags keeps only operations carrying at least one of the given
// tags.
func WithIncludeTags(tags []string) Option {
	return func(c *config) {
		for _, t := range tags {
			if t = strings.TrimSpace(t); t != "" {
				if c.includeTags == nil {
					c.includeTags = make(map[string]struct{})
				}
				c.includeTags[t] = struct{}{}
			}
		}
	}
}

// WithExcludeTags removes operations carrying any of the given tags.
func WithExcludeTags(tags []string) Option {
	return func(c *config) {
		for _, t := range tags {
			if t = strings.TrimSpace(t); t != "" {
				if c.excludeTags == nil {
					c.excludeTags = make(map[string]struct{})
				}
				c.excludeTags[t] = struct{}{}
			}
		}
	}
}

// Load reads an OpenAPI document from a file and imports it. YAML and JSON
// are both accepted; Swagger 2.0 documents are converted to v3 first.
func Load(ctx context.Context, path string, opts ...Option) (talon.API, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return talon.API{}, fmt.Errorf("read %s: %w", path, err)
	}

	version, err := detectVersion(raw)
	if err != nil {
		return talon.API{}, fmt.Errorf("parse %s: %w", path, err)
	}

	var doc *openapi3.T
	switch version {
	case 3:
		loader := openapi3.NewLoader()
		loader.IsExternalRefsAllowed = true
		doc, err = loader.LoadFromFile(path)
		if err != nil {
			return talon.API{}, fmt.Errorf("load %s: %w", path, err)
		}
	case 2:
		doc, err = convertV2(raw)
		if err != nil {
			return talon.API{}, fmt.Errorf("convert %s: %w", path, err)
		}
	}
	if err := doc.Validate(ctx); err != nil {
		return talon.API{}, fmt.Errorf("validate %s: %w", path, err)
	}
	return FromDocument(doc, opts...)
}

// LoadData imports an OpenAPI document from raw bytes.
func LoadData(ctx context.Context, data []byte, opts ...Option) (talon.API, error) {
	version, err := detectVersion(data)
	if err != nil {
		return talon.API{}, fmt.Errorf("parse document: %w", err)
	}

	var doc *openapi3.T
	switch version {
	case 3:
		loader := openapi3.NewLoader()
		doc, err = loader.LoadFromData(data)
		if err != nil {
			return talon.API{}, fmt.Errorf("load document: %w", err)
		}
	case 2:
		doc, err = convertV2(data)
		if err != nil {
			return talon.API{}, fmt.Errorf("convert document: %w", err)
		}
	}
	if err := doc.Validate(ctx); err != nil {
		return talon.API{}, fmt.Errorf("validate document: %w", err)
	}
	return FromDocument(doc, opts...)
}

// detectVersion returns 3 for OpenAPI v3, 2 for Swagger v2, else an error.
func detectVersion(data []byte) (int, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return 0, err
	}
	if v, ok := root["openapi"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "3.") {
			return 3, nil
		}
	}
	if v, ok := root["swagger"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "2.") {
			return 2, nil
		}
	}
	return 0, fmt.Errorf("missing or unknown version (expected 'openapi: 3.x' or 'swagger: 2.0')")
}

func convertV2(data []byte) (*openapi3.T, error) {
	var v2 openapi2.T
	if err := yaml.Unmarshal(data, &v2); err != nil {
		return nil, err
	}
	return openapi2conv.ToV3(&v2)
}

// FromDocument converts a loaded OpenAPI v3 document into a talon API
// declaration. Iteration is deterministic: paths are visited in sorted
// order and methods in a fixed order, so the same document always yields
// the same endpoint list.
func FromDocument(doc *openapi3.T, opts ...Option) (talon.API, error) {
	if doc == nil {
		return talon.API{}, fmt.Errorf("nil document")
	}

	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	api := talon.API{Name: cfg.name, BaseURL: cfg.baseURL}
	if api.Name == "" && doc.Info != nil {
		api.Name = strings.TrimSpace(doc.Info.Title)
	}
	if api.BaseURL == "" && len(doc.Servers) > 0 && doc.Servers[0] != nil {
		api.BaseURL = strings.TrimRight(strings.TrimSpace(doc.Servers[0].URL), "/")
	}

	pathKeys := make([]string, 0, len(doc.Paths))
	for p := range doc.Paths {
		pathKeys = append(pathKeys, p)
	}
	sort.Strings(pathKeys)

	seen := make(map[string]int)
	for _, path := range pathKeys {
		item := doc.Paths[path]
		if item == nil {
			continue
		}
		methods := []struct {
			name string
			op   *openapi3.Operation
		}{
			{"GET", item.Get},
			{"POST", item.Post},
			{"PUT", item.Put},
			{"DELETE", item.Delete},
			{"PATCH", item.Patch},
			{"HEAD", item.Head},
			{"OPTIONS", item.Options},
		}
		for _, m := range methods {
			if m.op == nil {
				continue
			}
			if !tagAllowed(m.op.Tags, cfg) {
				continue
			}
			ep, err := importOperation(m.name, path, item, m.op)
			if err != nil {
				return talon.API{}, fmt.Errorf("%s %s: %w", m.name, path, err)
			}
			ep.Name = dedupe(seen, ep.Name)
			api.Endpoints = append(api.Endpoints, ep)
		}
	}
	return api, nil
}

func tagAllowed(tags []string, cfg *config) bool {
	if len(cfg.includeTags) > 0 {
		ok := false
		for _, t := range tags {
			if _, yes := cfg.includeTags[t]; yes {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, t := range tags {
		if _, blocked := cfg.excludeTags[t]; blocked {
			return false
		}
	}
	return true
}

func dedupe(seen map[string]int, name string) string {
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name
	}
	return name + "_" + strconv.Itoa(n+1)
}

func importOperation(method, path string, item *openapi3.PathItem, op *openapi3.Operation) (talon.Endpoint, error) {
	ep := talon.Endpoint{
		Name:   operationName(method, path, op.OperationID),
		Method: method,
		Path:   path,
	}

	// Path-level parameters apply unless the operation redeclares them.
	merged := make(map[string]*openapi3.Parameter)
	var order []string
	add := func(refs openapi3.Parameters) {
		for _, pref := range refs {
			if pref == nil || pref.Value == nil {
				continue
			}
			key := pref.Value.In + ":" + pref.Value.Name
			if _, exists := merged[key]; !exists {
				order = append(order, key)
			}
			merged[key] = pref.Value
		}
	}
	add(item.Parameters)
	add(op.Parameters)

	var pathParams, queryParams, headerParams []talon.Param
	for _, key := range order {
		p := merged[key]
		switch p.In {
		case openapi3.ParameterInPath:
			pathParams = append(pathParams, talon.Param{
				Name: p.Name,
				In:   talon.RolePath,
				Of:   prototypeFor(p.Schema, true),
			})
		case openapi3.ParameterInQuery:
			format, err := queryFormat(p)
			if err != nil {
				return talon.Endpoint{}, err
			}
			queryParams = append(queryParams, talon.Param{
				Name:   p.Name,
				In:     talon.RoleQuery,
				Format: format,
				Of:     prototypeFor(p.Schema, p.Required),
			})
		case openapi3.ParameterInHeader:
			headerParams = append(headerParams, talon.Param{
				Name: p.Name,
				In:   talon.RoleHeader,
				Of:   prototypeFor(p.Schema, p.Required),
			})
		default:
			// Cookie parameters have no talon equivalent.
		}
	}

	// Path parameters bind in template order regardless of where the
	// document declares them.
	sortByTemplate(pathParams, path)
	sortByName(queryParams)
	sortByName(headerParams)

	ep.Params = append(ep.Params, pathParams...)
	ep.Params = append(ep.Params, queryParams...)
	ep.Params = append(ep.Params, headerParams...)

	bodyParams, err := importRequestBody(op)
	if err != nil {
		return talon.Endpoint{}, err
	}
	ep.Params = append(ep.Params, bodyParams...)

	ep.Result = importResult(op)
	return ep, nil
}

// operationName derives the endpoint name: the operationId when present,
// otherwise the method plus the path's literal segments, all rendered as
// lower snake case.
func operationName(method, path, id string) string {
	if id != "" {
		return words.Join(words.Split(id), "_", false)
	}
	ws := words.Split(method)
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || strings.HasPrefix(seg, "{") {
			continue
		}
		ws = append(ws, words.Split(seg)...)
	}
	return words.Join(ws, "_", false)
}

// queryFormat maps the parameter's style and explode to a list format.
func queryFormat(p *openapi3.Parameter) (talon.Format, error) {
	explode := true
	if p.Explode != nil {
		explode = *p.Explode
	}
	switch p.Style {
	case "", "form":
		if explode {
			return talon.FormatDefault, nil
		}
		return talon.FormatCSV, nil
	case "spaceDelimited":
		return talon.FormatSSV, nil
	case "pipeDelimited":
		return talon.FormatPipes, nil
	default:
		return talon.FormatDefault, fmt.Errorf("parameter %s: unsupported style %q", p.Name, p.Style)
	}
}

// importRequestBody maps the operation's request body to talon parameters.
// JSON bodies become one body parameter, form bodies one form parameter,
// and multipart bodies one parameter per schema property.
func importRequestBody(op *openapi3.Operation) ([]talon.Param, error) {
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil, nil
	}
	rb := op.RequestBody.Value

	if _, ok := rb.Content["application/json"]; ok {
		var of any = map[string]any(nil)
		if !rb.Required {
			of = (*map[string]any)(nil)
		}
		return []talon.Param{{Name: "body", In: talon.RoleBody, Of: of}}, nil
	}
	if _, ok := rb.Content["application/x-www-form-urlencoded"]; ok {
		var of any = map[string]string(nil)
		if !rb.Required {
			of = (*map[string]string)(nil)
		}
		return []talon.Param{{Name: "form", In: talon.RoleForm, Of: of}}, nil
	}
	if mt, ok := rb.Content["multipart/form-data"]; ok {
		return multipartParams(mt, rb.Required), nil
	}
	if len(rb.Content) == 0 {
		return nil, nil
	}

	// Any other single media type rides as an opaque body.
	var of any = []byte(nil)
	if !rb.Required {
		of = (*[]byte)(nil)
	}
	return []talon.Param{{Name: "body", In: talon.RoleBody, Of: of}}, nil
}

func multipartParams(mt *openapi3.MediaType, required bool) []talon.Param {
	if mt.Schema == nil || mt.Schema.Value == nil || len(mt.Schema.Value.Properties) == 0 {
		var of any = talon.Part{}
		if !required {
			of = (*talon.Part)(nil)
		}
		return []talon.Param{{Name: "file", In: talon.RoleMultipart, Of: of}}
	}

	schema := mt.Schema.Value
	requiredProps := make(map[string]struct{}, len(schema.Required))
	for _, r := range schema.Required {
		requiredProps[r] = struct{}{}
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]talon.Param, 0, len(names))
	for _, name := range names {
		var of any = talon.Part{}
		if _, req := requiredProps[name]; !req {
			of = (*talon.Part)(nil)
		}
		if prop := schema.Properties[name]; prop != nil && prop.Value != nil && prop.Value.Type == "array" {
			of = []talon.Part(nil)
		}
		params = append(params, talon.Param{Name: name, In: talon.RoleMultipart, Of: of})
	}
	return params
}

// importResult inspects the success responses: JSON content yields a raw
// JSON result, non-JSON content the full response envelope, and no content
// a unit result.
func importResult(op *openapi3.Operation) any {
	if op.Responses == nil {
		return nil
	}
	codes := make([]string, 0, len(op.Responses))
	for code := range op.Responses {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		n, err := strconv.Atoi(code)
		if err != nil || n < 200 || n > 299 {
			continue
		}
		rref := op.Responses[code]
		if rref == nil || rref.Value == nil {
			continue
		}
		if len(rref.Value.Content) == 0 {
			return nil
		}
		for mime := range rref.Value.Content {
			if mime == "application/json" || strings.HasSuffix(mime, "+json") {
				return map[string]any{}
			}
		}
		return talon.Response{}
	}
	return nil
}

func prototypeFor(ref *openapi3.SchemaRef, required bool) any {
	typ, itemType := "", ""
	if ref != nil && ref.Value != nil {
		typ = ref.Value.Type
		if ref.Value.Items != nil && ref.Value.Items.Value != nil {
			itemType = ref.Value.Items.Value.Type
		}
	}

	switch typ {
	case "integer":
		if required {
			return int(0)
		}
		return (*int)(nil)
	case "number":
		if required {
			return float64(0)
		}
		return (*float64)(nil)
	case "boolean":
		if required {
			return false
		}
		return (*bool)(nil)
	case "array":
		switch itemType {
		case "integer":
			return []int(nil)
		case "number":
			return []float64(nil)
		case "boolean":
			return []bool(nil)
		default:
			return []string(nil)
		}
	default:
		if required {
			return ""
		}
		return (*string)(nil)
	}
}

func sortByName(params []talon.Param) {
	sort.Slice(params, func(i, j int) bool { return params[i].Name < params[j].Name })
}

// sortByTemplate orders path parameters by first appearance in the path
// template.
func sortByTemplate(params []talon.Param, path string) {
	pos := make(map[string]int)
	idx := 0
	for i := 0; i < len(path); i++ {
		if path[i] != '{' {
			continue
		}
		end := strings.IndexByte(path[i:], '}')
		if end < 0 {
			break
		}
		name := path[i+1 : i+end]
		if _, ok := pos[name]; !ok {
			pos[name] = idx
			idx++
		}
		i += end
	}
	sort.SliceStable(params, func(i, j int) bool {
		pi, iok := pos[params[i].Name]
		pj, jok := pos[params[j].Name]
		if iok && jok {
			return pi < pj
		}
		return iok && !jok
	})
}
