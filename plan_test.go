package talon

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

type issueOpts struct {
	Page    int
	PerPage int
	Sort    string `query:",omitempty"`
}

func githubAPI() API {
	return API{
		Name:    "GitHub",
		BaseURL: "https://api.github.com",
		Headers: map[string]string{"X_Api_Version": "2022-11-28"},
		Endpoints: []Endpoint{
			{
				Name:   "GetRepo",
				Method: "GET",
				Path:   "/repos/{owner}/{repo}",
				Params: []Param{{Name: "owner"}, {Name: "repo"}},
				Result: repo{},
			},
			{
				Name:   "ListIssues",
				Method: "GET",
				Path:   "/repos/{owner}/{repo}/issues",
				Params: []Param{
					{Name: "owner"},
					{Name: "repo"},
					{Name: "state", In: RoleQuery},
					{Name: "labels", In: RoleQuery, Format: FormatCSV},
					{Name: "opts", In: RoleQuery, Rename: RenameSnake, Of: issueOpts{}},
				},
				Result: []repo{},
			},
			{
				Name:   "CreateIssue",
				Method: "POST",
				Path:   "/repos/{owner}/{repo}/issues",
				Params: []Param{{Name: "owner"}, {Name: "repo"}, {Name: "issue"}},
				Result: repo{},
			},
		},
	}
}

func TestCompile_PlanSetMetadata(t *testing.T) {
	ps, err := Compile(githubAPI())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if ps.Name() != "GitHub" {
		t.Errorf("expected name %q, got %q", "GitHub", ps.Name())
	}
	if ps.BaseURL() == nil || ps.BaseURL().String() != "https://api.github.com" {
		t.Errorf("expected base URL, got %v", ps.BaseURL())
	}

	if _, ok := ps.Plan("GetRepo"); !ok {
		t.Errorf("expected GetRepo plan")
	}
	if _, ok := ps.Plan("Nope"); ok {
		t.Errorf("expected missing plan to report false")
	}

	plans := ps.Plans()
	if len(plans) != 3 {
		t.Fatalf("expected 3 plans, got %d", len(plans))
	}
	wantOrder := []string{"GetRepo", "ListIssues", "CreateIssue"}
	for i, p := range plans {
		if p.Operation() != wantOrder[i] {
			t.Errorf("plan %d: expected %q, got %q", i, wantOrder[i], p.Operation())
		}
	}
}

func TestCompile_PlanAccessors(t *testing.T) {
	ps, err := Compile(API{
		Name: "Things",
		Endpoints: []Endpoint{{
			Name:          "GetThing",
			Method:        "get",
			Path:          "/things/{id}",
			Params:        []Param{{Name: "id"}},
			Result:        (*repo)(nil),
			NotFoundAsNil: true,
			Timeout:       2 * time.Second,
		}},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	p, _ := ps.Plan("GetThing")
	if p.Method() != "GET" {
		t.Errorf("expected method uppercased, got %q", p.Method())
	}
	if p.Template() != "/things/{id}" {
		t.Errorf("expected template preserved, got %q", p.Template())
	}
	if p.Shape() != ShapeJSON {
		t.Errorf("expected json shape, got %q", p.Shape())
	}
	if !p.NotFoundAsNil() {
		t.Errorf("expected NotFoundAsNil")
	}
	if p.Timeout() != 2*time.Second {
		t.Errorf("expected 2s timeout, got %v", p.Timeout())
	}
	if p.ResultType() != reflect.TypeOf(repo{}) {
		t.Errorf("expected result type repo, got %v", p.ResultType())
	}
}

func TestCompile_Meta(t *testing.T) {
	ps, err := Compile(API{
		Name: "Things",
		Endpoints: []Endpoint{{
			Name:   "CreateThing",
			Method: "POST",
			Path:   "/things/{id}",
			Params: []Param{
				{Name: "id"},
				{Name: "opts", In: RoleQuery, Of: (*issueOpts)(nil)},
				{Name: "payload"},
			},
			Result: repo{},
		}},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	p, _ := ps.Plan("CreateThing")
	meta := p.Meta()
	if meta.API != "Things" || meta.Operation != "CreateThing" {
		t.Errorf("expected identity metadata, got %+v", meta)
	}
	if meta.Method != "POST" || meta.Template != "/things/{id}" {
		t.Errorf("expected call metadata, got %+v", meta)
	}

	want := []ParamMeta{
		{Name: "id", Role: RolePath, Required: true},
		{Name: "opts", Role: RoleQuery, Required: false},
		{Name: "payload", Role: RoleBody, Required: true},
	}
	if !reflect.DeepEqual(meta.Params, want) {
		t.Errorf("expected params %+v, got %+v", want, meta.Params)
	}
}

func TestCompile_Errors(t *testing.T) {
	valid := Endpoint{Name: "Op", Method: "GET", Path: "/x"}

	tests := []struct {
		name     string
		api      API
		wantCode ErrorCode
	}{
		{
			name:     "invalid base URL",
			api:      API{BaseURL: "/relative", Endpoints: []Endpoint{valid}},
			wantCode: CodeInvalidBaseURL,
		},
		{
			name:     "empty endpoint name",
			api:      API{Endpoints: []Endpoint{{Method: "GET", Path: "/x"}}},
			wantCode: CodeEmptyName,
		},
		{
			name:     "invalid method",
			api:      API{Endpoints: []Endpoint{{Name: "Op", Method: "GE T", Path: "/x"}}},
			wantCode: CodeInvalidMethod,
		},
		{
			name:     "missing template",
			api:      API{Endpoints: []Endpoint{{Name: "Op", Method: "GET"}}},
			wantCode: CodeInvalidTemplate,
		},
		{
			name:     "unclosed placeholder",
			api:      API{Endpoints: []Endpoint{{Name: "Op", Method: "GET", Path: "/x/{id"}}},
			wantCode: CodeInvalidTemplate,
		},
		{
			name: "duplicate operation",
			api: API{Endpoints: []Endpoint{
				{Name: "Op", Method: "GET", Path: "/x"},
				{Name: "Op", Method: "GET", Path: "/y"},
			}},
			wantCode: CodeDuplicateOperation,
		},
		{
			name: "invalid boundary",
			api: API{Endpoints: []Endpoint{{
				Name: "Op", Method: "POST", Path: "/x",
				Params:   []Param{{Name: "file", In: RoleMultipart}},
				Boundary: "bad\nboundary",
			}}},
			wantCode: CodeInvalidBoundary,
		},
		{
			name: "invalid record prototype",
			api: API{Endpoints: []Endpoint{{
				Name: "Op", Method: "GET", Path: "/x",
				Params: []Param{{
					Name: "q", In: RoleQuery,
					Of: struct {
						A string `query:"a,wat"`
					}{},
				}},
			}}},
			wantCode: CodeInvalidRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.api)
			var ce *CompileError
			if !errors.As(err, &ce) {
				t.Fatalf("expected CompileError, got %v", err)
			}
			if ce.Code != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, ce.Code)
			}
		})
	}
}

func TestMustCompile_PanicsOnError(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic")
		}
	}()
	MustCompile(API{Endpoints: []Endpoint{{Method: "GET", Path: "/x"}}})
}

func TestCompile_HeaderBaseline(t *testing.T) {
	ps, err := Compile(githubAPI())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	p, _ := ps.Plan("GetRepo")

	req, err := p.Request(ps.BaseURL(), "golang", "go")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	want := []HeaderField{
		{Name: "User-Agent", Value: "talon/" + Version},
		{Name: "Accept", Value: "application/json"},
		{Name: "X-Api-Version", Value: "2022-11-28"},
	}
	if !reflect.DeepEqual(req.Header.Fields(), want) {
		t.Errorf("expected %v, got %v", want, req.Header.Fields())
	}
}

func TestCompile_FixedHeaderOverridesBaseline(t *testing.T) {
	ps, err := Compile(API{
		UserAgent: "custom/1",
		Headers:   map[string]string{"accept": "application/vnd.github+json"},
		Endpoints: []Endpoint{{Name: "Op", Method: "GET", Path: "/x"}},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	p, _ := ps.Plan("Op")

	base, _ := parseBaseURL("https://example.com")
	req, err := p.Request(base)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	want := []HeaderField{
		{Name: "User-Agent", Value: "custom/1"},
		{Name: "accept", Value: "application/vnd.github+json"},
	}
	if !reflect.DeepEqual(req.Header.Fields(), want) {
		t.Errorf("expected override in place with new spelling, got %v", req.Header.Fields())
	}
}

func TestPlan_Request_PathSubstitution(t *testing.T) {
	ps, _ := Compile(githubAPI())
	p, _ := ps.Plan("GetRepo")

	req, err := p.Request(ps.BaseURL(), "golang", "go")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if req.Method != "GET" {
		t.Errorf("expected GET, got %q", req.Method)
	}
	if got := req.URL.String(); got != "https://api.github.com/repos/golang/go" {
		t.Errorf("expected %q, got %q", "https://api.github.com/repos/golang/go", got)
	}
	if req.Body != nil {
		t.Errorf("expected no body, got %q", req.Body)
	}
}

func TestPlan_Request_PathEscaping(t *testing.T) {
	ps, _ := Compile(githubAPI())
	p, _ := ps.Plan("GetRepo")

	req, err := p.Request(ps.BaseURL(), "a b", "x/y")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if got := req.URL.String(); got != "https://api.github.com/repos/a%20b/x%2Fy" {
		t.Errorf("expected escaped path, got %q", got)
	}
}

func TestPlan_Request_IntegerPathValue(t *testing.T) {
	ps, err := Compile(API{
		BaseURL: "https://example.com",
		Endpoints: []Endpoint{{
			Name: "GetByID", Method: "GET", Path: "/items/{id}",
			Params: []Param{{Name: "id"}},
		}},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	p, _ := ps.Plan("GetByID")

	req, err := p.Request(ps.BaseURL(), 42)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if got := req.URL.String(); got != "https://example.com/items/42" {
		t.Errorf("expected %q, got %q", "https://example.com/items/42", got)
	}
}

func TestPlan_Request_QuerySerialization(t *testing.T) {
	ps, _ := Compile(githubAPI())
	p, _ := ps.Plan("ListIssues")

	req, err := p.Request(ps.BaseURL(),
		"golang", "go",
		"open",
		[]string{"bug", "p1"},
		issueOpts{Page: 2, PerPage: 50},
	)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	want := "https://api.github.com/repos/golang/go/issues?state=open&labels=bug,p1&page=2&per_page=50"
	if got := req.URL.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestPlan_Request_QueryOmissions(t *testing.T) {
	ps, _ := Compile(githubAPI())
	p, _ := ps.Plan("ListIssues")

	// Absent scalar, empty joined list, and a zero omitempty field all
	// disappear from the query.
	req, err := p.Request(ps.BaseURL(),
		"golang", "go",
		nil,
		[]string{},
		issueOpts{Page: 1, PerPage: 30},
	)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	want := "https://api.github.com/repos/golang/go/issues?page=1&per_page=30"
	if got := req.URL.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestPlan_Request_RecordProgramMatchesReflection(t *testing.T) {
	ps, _ := Compile(githubAPI())
	p, _ := ps.Plan("ListIssues")

	// Same record through the compiled program (declared type) and through
	// plain reflection (undeclared map) must agree on keys.
	byStruct, err := p.Request(ps.BaseURL(), "o", "r", nil, nil, issueOpts{Page: 3, PerPage: 10})
	if err != nil {
		t.Fatalf("Request struct: %v", err)
	}
	byPointer, err := p.Request(ps.BaseURL(), "o", "r", nil, nil, &issueOpts{Page: 3, PerPage: 10})
	if err != nil {
		t.Fatalf("Request pointer: %v", err)
	}
	if byStruct.URL.String() != byPointer.URL.String() {
		t.Errorf("expected identical URLs, got %q and %q", byStruct.URL, byPointer.URL)
	}

	byMap, err := p.Request(ps.BaseURL(), "o", "r", nil, nil, map[string]string{"page": "3", "per_page": "10"})
	if err != nil {
		t.Fatalf("Request map: %v", err)
	}
	if byStruct.URL.String() != byMap.URL.String() {
		t.Errorf("expected map fallback to agree, got %q and %q", byStruct.URL, byMap.URL)
	}
}

func TestPlan_Request_JSONBody(t *testing.T) {
	ps, _ := Compile(githubAPI())
	p, _ := ps.Plan("CreateIssue")

	req, err := p.Request(ps.BaseURL(), "golang", "go", map[string]any{"title": "bug"})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if string(req.Body) != `{"title":"bug"}` {
		t.Errorf("expected JSON body, got %q", req.Body)
	}
	if got := req.ContentType(); got != "application/json" {
		t.Errorf("expected %q, got %q", "application/json", got)
	}
}

func TestPlan_Request_ContentTypeNotOverridden(t *testing.T) {
	ps, err := Compile(API{
		BaseURL: "https://example.com",
		Endpoints: []Endpoint{{
			Name: "Create", Method: "POST", Path: "/things",
			Params: []Param{
				{Name: "ct", In: RoleHeader, Alias: "Content-Type"},
				{Name: "payload", In: RoleBody},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	p, _ := ps.Plan("Create")

	req, err := p.Request(ps.BaseURL(), "application/vnd.custom+json", map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if got := req.ContentType(); got != "application/vnd.custom+json" {
		t.Errorf("expected declared content type to win, got %q", got)
	}
}

func TestPlan_Request_HeaderParams(t *testing.T) {
	ps, err := Compile(API{
		BaseURL: "https://example.com",
		Endpoints: []Endpoint{{
			Name: "GetThing", Method: "GET", Path: "/things/{id}",
			Params: []Param{
				{Name: "id"},
				{Name: "auth", In: RoleHeader, Alias: "Authorization"},
				{Name: "extra", In: RoleHeaderBag},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	p, _ := ps.Plan("GetThing")

	req, err := p.Request(ps.BaseURL(), "1", "Bearer tok", map[string]string{"X-B": "2", "X-A": "1"})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer tok" {
		t.Errorf("expected auth header, got %q", got)
	}
	fields := req.Header.Fields()
	n := len(fields)
	if n < 2 || fields[n-2].Name != "X-A" || fields[n-1].Name != "X-B" {
		t.Errorf("expected bag merged in sorted order, got %v", fields)
	}
}

func TestPlan_Request_HeaderParamNilSkipped(t *testing.T) {
	ps, err := Compile(API{
		BaseURL: "https://example.com",
		Endpoints: []Endpoint{{
			Name: "GetThing", Method: "GET", Path: "/things",
			Params: []Param{
				{Name: "auth", In: RoleHeader, Alias: "Authorization"},
				{Name: "extra", In: RoleHeaderBag},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	p, _ := ps.Plan("GetThing")

	req, err := p.Request(ps.BaseURL(), nil, nil)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if req.Header.Has("Authorization") {
		t.Errorf("expected nil header param to be skipped")
	}
}

func TestPlan_Request_HeaderBagTypes(t *testing.T) {
	ps, err := Compile(API{
		BaseURL: "https://example.com",
		Endpoints: []Endpoint{{
			Name: "Op", Method: "GET", Path: "/x",
			Params: []Param{{Name: "extra", In: RoleHeaderBag}},
		}},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	p, _ := ps.Plan("Op")

	req, err := p.Request(ps.BaseURL(), http.Header{"X-Multi": {"a", "b"}})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if got := req.Header.Get("X-Multi"); got != "a, b" {
		t.Errorf("expected joined header values, got %q", got)
	}

	_, err = p.Request(ps.BaseURL(), 42)
	var ee *EncodeError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EncodeError, got %v", err)
	}
	if !strings.Contains(err.Error(), "header bag must be") {
		t.Errorf("expected bag type message, got %q", err.Error())
	}
}

func TestPlan_Request_ArgumentErrors(t *testing.T) {
	ps, _ := Compile(githubAPI())
	p, _ := ps.Plan("GetRepo")

	_, err := p.Request(ps.BaseURL(), "only")
	var ae *ArgError
	if !errors.As(err, &ae) {
		t.Fatalf("expected ArgError, got %v", err)
	}
	if ae.Message != "got 1 arguments, want 2" {
		t.Errorf("expected arity message, got %q", ae.Message)
	}

	_, err = p.Request(nil, "golang", "go")
	if !errors.As(err, &ae) {
		t.Fatalf("expected ArgError, got %v", err)
	}
	if ae.Message != "no base URL: declare one on the API or set one on the binding" {
		t.Errorf("expected base URL message, got %q", ae.Message)
	}

	_, err = p.Request(ps.BaseURL(), nil, "go")
	var ee *EncodeError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EncodeError, got %v", err)
	}
	if !strings.Contains(err.Error(), "path parameter has no value") {
		t.Errorf("expected nil path message, got %q", err.Error())
	}
}

func TestPlan_Request_MetaAttached(t *testing.T) {
	ps, _ := Compile(githubAPI())
	p, _ := ps.Plan("GetRepo")

	req, err := p.Request(ps.BaseURL(), "golang", "go")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if req.Meta == nil || req.Meta.Operation != "GetRepo" {
		t.Errorf("expected call metadata on request, got %+v", req.Meta)
	}
	if req.Meta != p.Meta() {
		t.Errorf("expected shared metadata instance")
	}
}

func TestPlanSet_ConcurrentReuse(t *testing.T) {
	ps, err := Compile(githubAPI())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	p, _ := ps.Plan("ListIssues")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			owner := "org" + strconv.Itoa(i)
			want := "https://api.github.com/repos/" + owner +
				"/go/issues?state=open&labels=bug,help&page=" +
				strconv.Itoa(i) + "&per_page=30"
			for j := 0; j < 50; j++ {
				req, err := p.Request(ps.BaseURL(),
					owner, "go", "open",
					[]string{"bug", "help"},
					issueOpts{Page: i, PerPage: 30},
				)
				if err != nil {
					t.Errorf("Request: %v", err)
					return
				}
				if got := req.URL.String(); got != want {
					t.Errorf("expected %q, got %q", want, got)
					return
				}
			}
		}()
	}
	wg.Wait()
}
