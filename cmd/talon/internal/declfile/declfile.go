// Package declfile loads API declarations from files: OpenAPI documents
// (v3 or Swagger 2.0) and talon's own YAML manifest format. The two are
// told apart by content, not extension.
package declfile

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talonhq/talon"
	"github.com/talonhq/talon/openapi"
)

// Options narrows what an OpenAPI document contributes. Manifests ignore
// them.
type Options struct {
	IncludeTags []string
	ExcludeTags []string
}

// Load reads a declaration from path. A document with an openapi or
// swagger version key is imported as OpenAPI; anything else is parsed as a
// talon manifest.
func Load(ctx context.Context, path string, opts Options) (talon.API, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return talon.API{}, fmt.Errorf("read %s: %w", path, err)
	}

	var probe struct {
		OpenAPI string `yaml:"openapi"`
		Swagger string `yaml:"swagger"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return talon.API{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if probe.OpenAPI != "" || probe.Swagger != "" {
		return openapi.LoadData(ctx, data,
			openapi.WithIncludeTags(opts.IncludeTags),
			openapi.WithExcludeTags(opts.ExcludeTags))
	}

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return talon.API{}, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	api, err := f.API()
	if err != nil {
		return talon.API{}, fmt.Errorf("manifest %s: %w", path, err)
	}
	return api, nil
}

// File is the root of a talon manifest.
type File struct {
	Name      string            `yaml:"name"`
	BaseURL   string            `yaml:"base_url"`
	UserAgent string            `yaml:"user_agent,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
	Endpoints []EndpointDecl    `yaml:"endpoints"`
}

// EndpointDecl declares one operation.
type EndpointDecl struct {
	Name          string      `yaml:"name"`
	Method        string      `yaml:"method"`
	Path          string      `yaml:"path"`
	Params        []ParamDecl `yaml:"params,omitempty"`
	Result        string      `yaml:"result,omitempty"` // json (default), raw, none
	NotFoundAsNil bool        `yaml:"not_found_as_nil,omitempty"`
	Timeout       string      `yaml:"timeout,omitempty"`
	Boundary      string      `yaml:"boundary,omitempty"`
}

// ParamDecl declares one parameter. An empty role lets the classifier
// infer it.
type ParamDecl struct {
	Name     string `yaml:"name"`
	In       string `yaml:"in,omitempty"`
	Alias    string `yaml:"alias,omitempty"`
	Format   string `yaml:"format,omitempty"`
	Rename   string `yaml:"rename,omitempty"`
	Type     string `yaml:"type,omitempty"` // string (default), int, number, bool, part, or []T
	Optional bool   `yaml:"optional,omitempty"`
}

// API converts the manifest into a talon declaration. Role, format, and
// rename strings pass through as-is; the compiler validates them.
func (f *File) API() (talon.API, error) {
	api := talon.API{
		Name:      f.Name,
		BaseURL:   f.BaseURL,
		UserAgent: f.UserAgent,
		Headers:   f.Headers,
	}
	for _, ed := range f.Endpoints {
		ep := talon.Endpoint{
			Name:          ed.Name,
			Method:        ed.Method,
			Path:          ed.Path,
			NotFoundAsNil: ed.NotFoundAsNil,
			Boundary:      ed.Boundary,
		}
		switch ed.Result {
		case "", "none":
		case "json":
			ep.Result = map[string]any{}
		case "raw":
			ep.Result = talon.Response{}
		default:
			return talon.API{}, fmt.Errorf("endpoint %s: unknown result %q (expected json, raw, or none)", ed.Name, ed.Result)
		}
		if ed.Timeout != "" {
			d, err := time.ParseDuration(ed.Timeout)
			if err != nil {
				return talon.API{}, fmt.Errorf("endpoint %s: timeout: %w", ed.Name, err)
			}
			ep.Timeout = d
		}
		for _, pd := range ed.Params {
			of, err := prototype(pd.Type, pd.Optional)
			if err != nil {
				return talon.API{}, fmt.Errorf("endpoint %s, param %s: %w", ed.Name, pd.Name, err)
			}
			ep.Params = append(ep.Params, talon.Param{
				Name:   pd.Name,
				In:     talon.Role(pd.In),
				Alias:  pd.Alias,
				Format: talon.Format(pd.Format),
				Rename: talon.Rename(pd.Rename),
				Of:     of,
			})
		}
		api.Endpoints = append(api.Endpoints, ep)
	}
	return api, nil
}

func prototype(typ string, optional bool) (any, error) {
	switch typ {
	case "", "string":
		if optional {
			return (*string)(nil), nil
		}
		return "", nil
	case "int":
		if optional {
			return (*int)(nil), nil
		}
		return 0, nil
	case "number":
		if optional {
			return (*float64)(nil), nil
		}
		return float64(0), nil
	case "bool":
		if optional {
			return (*bool)(nil), nil
		}
		return false, nil
	case "part":
		if optional {
			return (*talon.Part)(nil), nil
		}
		return talon.Part{}, nil
	case "[]string":
		return []string(nil), nil
	case "[]int":
		return []int(nil), nil
	case "[]number":
		return []float64(nil), nil
	case "[]bool":
		return []bool(nil), nil
	case "[]part":
		return []talon.Part(nil), nil
	default:
		return nil, fmt.Errorf("unknown type %q", typ)
	}
}
