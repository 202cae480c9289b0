// Package gen emits typed Go clients from talon API declarations.
//
// The generator compiles the declaration first, so any classification or
// template error surfaces before a line of code is written. The emitted
// file is self-contained: it carries the declaration, a compiled plan set,
// and one method per operation delegating to the talon call functions.
//
//	src, err := gen.FromAPI(api).
//	    WithPackage("petstore").
//	    Generate()
package gen

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/tools/imports"

	"github.com/talonhq/talon"
	"github.com/talonhq/talon/internal/words"
)

const talonPath = "github.com/talonhq/talon"

// Generator provides a fluent API for client generation. Create with
// FromAPI and configure with method chaining.
type Generator struct {
	api  talon.API
	pkg  string
	name string
}

// FromAPI creates a Generator for the given declaration.
func FromAPI(api talon.API) *Generator {
	return &Generator{api: api}
}

// WithPackage sets the package name of the generated file. The default is
// "client".
func (g *Generator) WithPackage(pkg string) *Generator {
	g.pkg = pkg
	return g
}

// WithClientName sets the name of the generated client type. The default
// is "Client".
func (g *Generator) WithClientName(name string) *Generator {
	g.name = name
	return g
}

// Generate returns the formatted source of the client file.
func (g *Generator) Generate() ([]byte, error) {
	ps, err := talon.Compile(g.api)
	if err != nil {
		return nil, fmt.Errorf("compile declaration: %w", err)
	}

	e := &emitter{
		api:     g.api,
		ps:      ps,
		pkg:     g.pkg,
		name:    g.name,
		imports: map[string]string{},
		aliases: map[string]bool{},
	}
	if e.pkg == "" {
		e.pkg = "client"
	}
	if e.name == "" {
		e.name = "Client"
	}

	raw, err := e.emit()
	if err != nil {
		return nil, err
	}
	src, err := imports.Process(e.pkg+".go", raw, nil)
	if err != nil {
		return nil, fmt.Errorf("format generated source: %w", err)
	}
	return src, nil
}

// ToFile generates the client and writes it to path. This is a terminal
// operation.
func (g *Generator) ToFile(path string) error {
	src, err := g.Generate()
	if err != nil {
		return err
	}
	return os.WriteFile(path, src, 0o644)
}

type emitter struct {
	api  talon.API
	ps   *talon.PlanSet
	pkg  string
	name string

	imports map[string]string // path -> alias
	aliases map[string]bool
}

func (e *emitter) emit() ([]byte, error) {
	var body strings.Builder

	if err := e.writeDeclaration(&body); err != nil {
		return nil, err
	}
	e.writeClient(&body)
	for _, ep := range e.api.Endpoints {
		p, ok := e.ps.Plan(ep.Name)
		if !ok {
			return nil, fmt.Errorf("operation %s missing from compiled plans", ep.Name)
		}
		if err := e.writeMethod(&body, ep, p); err != nil {
			return nil, err
		}
	}

	var out strings.Builder
	out.WriteString("// Code generated by talon. DO NOT EDIT.\n\n")
	fmt.Fprintf(&out, "package %s\n\n", e.pkg)
	out.WriteString("import (\n")
	for _, path := range e.sortedImports() {
		alias := e.imports[path]
		if alias == lastSegment(path) {
			fmt.Fprintf(&out, "\t%q\n", path)
		} else {
			fmt.Fprintf(&out, "\t%s %q\n", alias, path)
		}
	}
	out.WriteString(")\n\n")
	out.WriteString(body.String())
	return []byte(out.String()), nil
}

func (e *emitter) sortedImports() []string {
	paths := make([]string, 0, len(e.imports))
	for p := range e.imports {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// importAlias registers an import and returns the name to qualify with.
func (e *emitter) importAlias(path string) string {
	if alias, ok := e.imports[path]; ok {
		return alias
	}
	base := lastSegment(path)
	// Version suffixes and dashes do not survive as identifiers.
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	base = strings.ReplaceAll(base, "-", "_")
	alias := base
	for n := 2; e.aliases[alias]; n++ {
		alias = base + strconv.Itoa(n)
	}
	e.imports[path] = alias
	e.aliases[alias] = true
	return alias
}

func lastSegment(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// writeDeclaration emits the API declaration and its compiled plan set.
func (e *emitter) writeDeclaration(w *strings.Builder) error {
	talonPkg := e.importAlias(talonPath)

	fmt.Fprintf(w, "func apiSpec() %s.API {\n", talonPkg)
	fmt.Fprintf(w, "\treturn %s.API{\n", talonPkg)
	fmt.Fprintf(w, "\t\tName: %q,\n", e.api.Name)
	if e.api.BaseURL != "" {
		fmt.Fprintf(w, "\t\tBaseURL: %q,\n", e.api.BaseURL)
	}
	if e.api.UserAgent != "" {
		fmt.Fprintf(w, "\t\tUserAgent: %q,\n", e.api.UserAgent)
	}
	if len(e.api.Headers) > 0 {
		keys := make([]string, 0, len(e.api.Headers))
		for k := range e.api.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		w.WriteString("\t\tHeaders: map[string]string{\n")
		for _, k := range keys {
			fmt.Fprintf(w, "\t\t\t%q: %q,\n", k, e.api.Headers[k])
		}
		w.WriteString("\t\t},\n")
	}
	fmt.Fprintf(w, "\t\tEndpoints: []%s.Endpoint{\n", talonPkg)
	for _, ep := range e.api.Endpoints {
		if err := e.writeEndpoint(w, ep); err != nil {
			return err
		}
	}
	w.WriteString("\t\t},\n\t}\n}\n\n")

	fmt.Fprintf(w, "var plans = %s.MustCompile(apiSpec())\n\n", talonPkg)
	fmt.Fprintf(w, "// Plans exposes the compiled plan set for callers that bind their\n// own transport.\nfunc Plans() *%s.PlanSet { return plans }\n\n", talonPkg)
	return nil
}

func (e *emitter) writeEndpoint(w *strings.Builder, ep talon.Endpoint) error {
	talonPkg := e.imports[talonPath]
	w.WriteString("\t\t\t{\n")
	fmt.Fprintf(w, "\t\t\t\tName: %q,\n", ep.Name)
	fmt.Fprintf(w, "\t\t\t\tMethod: %q,\n", ep.Method)
	fmt.Fprintf(w, "\t\t\t\tPath: %q,\n", ep.Path)
	if len(ep.Params) > 0 {
		fmt.Fprintf(w, "\t\t\t\tParams: []%s.Param{\n", talonPkg)
		for _, p := range ep.Params {
			lit, err := e.paramLiteral(p)
			if err != nil {
				return fmt.Errorf("operation %s, parameter %s: %w", ep.Name, p.Name, err)
			}
			fmt.Fprintf(w, "\t\t\t\t\t%s,\n", lit)
		}
		w.WriteString("\t\t\t\t},\n")
	}
	if ep.Result != nil {
		lit, err := e.valueLiteral(reflect.ValueOf(ep.Result))
		if err != nil {
			return fmt.Errorf("operation %s result: %w", ep.Name, err)
		}
		fmt.Fprintf(w, "\t\t\t\tResult: %s,\n", lit)
	}
	if ep.NotFoundAsNil {
		w.WriteString("\t\t\t\tNotFoundAsNil: true,\n")
	}
	if ep.Timeout != 0 {
		fmt.Fprintf(w, "\t\t\t\tTimeout: %s,\n", e.durationLiteral(ep.Timeout))
	}
	if ep.Boundary != "" {
		fmt.Fprintf(w, "\t\t\t\tBoundary: %q,\n", ep.Boundary)
	}
	w.WriteString("\t\t\t},\n")
	return nil
}

func (e *emitter) paramLiteral(p talon.Param) (string, error) {
	talonPkg := e.imports[talonPath]
	var b strings.Builder
	fmt.Fprintf(&b, "{Name: %q", p.Name)
	if p.In != talon.RoleAuto {
		fmt.Fprintf(&b, ", In: %s", roleExpr(talonPkg, p.In))
	}
	if p.Alias != "" {
		fmt.Fprintf(&b, ", Alias: %q", p.Alias)
	}
	if p.Format != talon.FormatDefault {
		fmt.Fprintf(&b, ", Format: %s", formatExpr(talonPkg, p.Format))
	}
	if p.Rename != talon.RenameNone {
		fmt.Fprintf(&b, ", Rename: %s", renameExpr(talonPkg, p.Rename))
	}
	if p.Of != nil {
		lit, err := e.valueLiteral(reflect.ValueOf(p.Of))
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, ", Of: %s", lit)
	}
	b.WriteString("}")
	return b.String(), nil
}

func roleExpr(pkg string, r talon.Role) string {
	switch r {
	case talon.RolePath:
		return pkg + ".RolePath"
	case talon.RoleQuery:
		return pkg + ".RoleQuery"
	case talon.RoleHeader:
		return pkg + ".RoleHeader"
	case talon.RoleHeaderBag:
		return pkg + ".RoleHeaderBag"
	case talon.RoleBody:
		return pkg + ".RoleBody"
	case talon.RoleForm:
		return pkg + ".RoleForm"
	case talon.RoleMultipart:
		return pkg + ".RoleMultipart"
	default:
		return fmt.Sprintf("%s.Role(%q)", pkg, string(r))
	}
}

func formatExpr(pkg string, f talon.Format) string {
	switch f {
	case talon.FormatMulti:
		return pkg + ".FormatMulti"
	case talon.FormatCSV:
		return pkg + ".FormatCSV"
	case talon.FormatSSV:
		return pkg + ".FormatSSV"
	case talon.FormatPipes:
		return pkg + ".FormatPipes"
	default:
		return fmt.Sprintf("%s.Format(%q)", pkg, string(f))
	}
}

func renameExpr(pkg string, r talon.Rename) string {
	switch r {
	case talon.RenameLower:
		return pkg + ".RenameLower"
	case talon.RenameUpper:
		return pkg + ".RenameUpper"
	case talon.RenameSnake:
		return pkg + ".RenameSnake"
	case talon.RenameScreamingSnake:
		return pkg + ".RenameScreamingSnake"
	case talon.RenameKebab:
		return pkg + ".RenameKebab"
	case talon.RenameScreamingKebab:
		return pkg + ".RenameScreamingKebab"
	case talon.RenameCamel:
		return pkg + ".RenameCamel"
	case talon.RenamePascal:
		return pkg + ".RenamePascal"
	default:
		return fmt.Sprintf("%s.Rename(%q)", pkg, string(r))
	}
}

func (e *emitter) durationLiteral(d time.Duration) string {
	timePkg := e.importAlias("time")
	switch {
	case d%time.Second == 0:
		return fmt.Sprintf("%d * %s.Second", d/time.Second, timePkg)
	case d%time.Millisecond == 0:
		return fmt.Sprintf("%d * %s.Millisecond", d/time.Millisecond, timePkg)
	default:
		return fmt.Sprintf("%s.Duration(%d)", timePkg, int64(d))
	}
}

// valueLiteral renders a prototype value as a Go expression. Prototypes
// are zero values in practice; anything with non-zero composite content is
// rejected rather than guessed at.
func (e *emitter) valueLiteral(v reflect.Value) (string, error) {
	t := v.Type()
	switch t.Kind() {
	case reflect.String:
		if t.PkgPath() != "" {
			return fmt.Sprintf("%s(%q)", e.typeExpr(t), v.String()), nil
		}
		return strconv.Quote(v.String()), nil
	case reflect.Bool:
		return strconv.FormatBool(v.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if t.Kind() == reflect.Int && t.PkgPath() == "" {
			return strconv.FormatInt(v.Int(), 10), nil
		}
		return fmt.Sprintf("%s(%d)", e.typeExpr(t), v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fmt.Sprintf("%s(%d)", e.typeExpr(t), v.Uint()), nil
	case reflect.Float32, reflect.Float64:
		if t.Kind() == reflect.Float64 && t.PkgPath() == "" {
			return strconv.FormatFloat(v.Float(), 'g', -1, 64), nil
		}
		return fmt.Sprintf("%s(%g)", e.typeExpr(t), v.Float()), nil
	case reflect.Pointer, reflect.Slice, reflect.Map:
		if v.IsNil() {
			return fmt.Sprintf("(%s)(nil)", e.typeExpr(t)), nil
		}
		if v.Len() == 0 && t.Kind() != reflect.Pointer {
			return e.typeExpr(t) + "{}", nil
		}
		return "", fmt.Errorf("cannot render non-empty %s prototype", t)
	case reflect.Struct:
		if !v.IsZero() {
			return "", fmt.Errorf("cannot render non-zero %s prototype", t)
		}
		return e.typeExpr(t) + "{}", nil
	default:
		return "", fmt.Errorf("cannot render %s prototype", t)
	}
}

var anyType = reflect.TypeOf((*any)(nil)).Elem()

// typeExpr renders a reflect.Type as a Go type expression, registering
// imports for named types along the way.
func (e *emitter) typeExpr(t reflect.Type) string {
	if t == anyType {
		return "any"
	}
	switch t.Kind() {
	case reflect.Pointer:
		return "*" + e.typeExpr(t.Elem())
	case reflect.Slice:
		return "[]" + e.typeExpr(t.Elem())
	case reflect.Array:
		return fmt.Sprintf("[%d]%s", t.Len(), e.typeExpr(t.Elem()))
	case reflect.Map:
		return "map[" + e.typeExpr(t.Key()) + "]" + e.typeExpr(t.Elem())
	}
	if t.Name() != "" {
		if t.PkgPath() == "" {
			return t.Name()
		}
		return e.importAlias(t.PkgPath()) + "." + t.Name()
	}
	if t.Kind() == reflect.Struct && t.NumField() == 0 {
		return "struct{}"
	}
	return t.String()
}

func (e *emitter) writeClient(w *strings.Builder) {
	talonPkg := e.imports[talonPath]
	apiName := e.api.Name
	if apiName == "" {
		apiName = "the declared"
	}
	fmt.Fprintf(w, "// %s is a typed client for the %s API.\ntype %s struct {\n\tb %s.Binding\n}\n\n", e.name, apiName, e.name, talonPkg)
	fmt.Fprintf(w, "// New%s wraps an existing binding.\nfunc New%s(b %s.Binding) *%s { return &%s{b: b} }\n\n", e.name, e.name, talonPkg, e.name, e.name)
	fmt.Fprintf(w, "// Default%s binds the declaration to a fresh HTTP transport.\nfunc Default%s() *%s { return New%s(%s.NewClient(plans)) }\n\n", e.name, e.name, e.name, e.name, talonPkg)
}

func (e *emitter) writeMethod(w *strings.Builder, ep talon.Endpoint, p *talon.Plan) error {
	talonPkg := e.imports[talonPath]
	ctxPkg := e.importAlias("context")
	method := words.Pascal(words.Split(ep.Name))
	meta := p.Meta()

	args := make([]string, 0, len(ep.Params)+1)
	callArgs := make([]string, 0, len(ep.Params))
	args = append(args, "ctx "+ctxPkg+".Context")
	used := map[string]bool{"ctx": true, "c": true}
	for i, param := range ep.Params {
		name := argName(param.Name, used)
		role := param.In
		if i < len(meta.Params) {
			role = meta.Params[i].Role
		}
		args = append(args, name+" "+e.argType(param, role))
		callArgs = append(callArgs, name)
	}

	argList := strings.Join(args, ", ")
	call := fmt.Sprintf("ctx, c.b, %q", ep.Name)
	if len(callArgs) > 0 {
		call += ", " + strings.Join(callArgs, ", ")
	}

	fmt.Fprintf(w, "// %s calls %s %s.\n", method, ep.Method, ep.Path)
	switch {
	case p.Shape() == talon.ShapeUnit && p.NotFoundAsNil():
		fmt.Fprintf(w, "func (c *%s) %s(%s) (bool, error) {\n", e.name, method, argList)
		fmt.Fprintf(w, "\tv, err := %s.InvokeOptional[%s.Empty](%s)\n", talonPkg, talonPkg, call)
		w.WriteString("\treturn v != nil, err\n}\n\n")
	case p.Shape() == talon.ShapeUnit:
		fmt.Fprintf(w, "func (c *%s) %s(%s) error {\n", e.name, method, argList)
		fmt.Fprintf(w, "\treturn %s.Do(%s)\n}\n\n", talonPkg, call)
	case p.Shape() == talon.ShapeRaw:
		fmt.Fprintf(w, "func (c *%s) %s(%s) (*%s.Response, error) {\n", e.name, method, argList, talonPkg)
		fmt.Fprintf(w, "\treturn %s.InvokeRaw(%s)\n}\n\n", talonPkg, call)
	case p.NotFoundAsNil():
		resType := e.typeExpr(p.ResultType())
		fmt.Fprintf(w, "func (c *%s) %s(%s) (*%s, error) {\n", e.name, method, argList, resType)
		fmt.Fprintf(w, "\treturn %s.InvokeOptional[%s](%s)\n}\n\n", talonPkg, resType, call)
	default:
		resType := e.typeExpr(p.ResultType())
		fmt.Fprintf(w, "func (c *%s) %s(%s) (%s, error) {\n", e.name, method, argList, resType)
		fmt.Fprintf(w, "\treturn %s.Invoke[%s](%s)\n}\n\n", talonPkg, resType, call)
	}
	return nil
}

// argType picks the Go type for a method argument: the prototype's type
// when declared, otherwise a default for the role.
func (e *emitter) argType(param talon.Param, role talon.Role) string {
	if param.Of != nil {
		return e.typeExpr(reflect.TypeOf(param.Of))
	}
	talonPkg := e.imports[talonPath]
	switch role {
	case talon.RolePath, talon.RoleHeader:
		return "string"
	case talon.RoleHeaderBag:
		return "map[string]string"
	case talon.RoleMultipart:
		return talonPkg + ".Part"
	default:
		return "any"
	}
}

var goKeywords = map[string]bool{
	"break": true, "case": true, "chan": true, "const": true,
	"continue": true, "default": true, "defer": true, "else": true,
	"fallthrough": true, "for": true, "func": true, "go": true,
	"goto": true, "if": true, "import": true, "interface": true,
	"map": true, "package": true, "range": true, "return": true,
	"select": true, "struct": true, "switch": true, "type": true,
	"var": true,
}

func argName(name string, used map[string]bool) string {
	n := words.Camel(words.Split(name))
	if n == "" {
		n = "arg"
	}
	if goKeywords[n] {
		n += "Arg"
	}
	for used[n] {
		n += "_"
	}
	used[n] = true
	return n
}
