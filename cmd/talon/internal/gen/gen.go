package gen

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/talonhq/talon/cmd/talon/internal/declfile"
	talongen "github.com/talonhq/talon/gen"
)

type Cmd struct {
	Spec        string   `arg:"" help:"OpenAPI document or talon manifest."`
	Out         string   `help:"Output file for the generated client." short:"o" default:"client.gen.go"`
	Package     string   `help:"Package name of the generated file." short:"p" default:"client"`
	Client      string   `help:"Name of the generated client type." default:"Client"`
	IncludeTags []string `help:"Keep only OpenAPI operations with one of these tags." name:"include-tags"`
	ExcludeTags []string `help:"Drop OpenAPI operations with any of these tags." name:"exclude-tags"`
	BaseURL     string   `help:"Override the declared base URL." name:"base-url"`
}

func (c *Cmd) Run() error {
	api, err := declfile.Load(context.Background(), c.Spec, declfile.Options{
		IncludeTags: c.IncludeTags,
		ExcludeTags: c.ExcludeTags,
	})
	if err != nil {
		return err
	}
	if c.BaseURL != "" {
		api.BaseURL = c.BaseURL
	}

	out, err := filepath.Abs(c.Out)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	err = talongen.FromAPI(api).
		WithPackage(c.Package).
		WithClientName(c.Client).
		ToFile(out)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d operations)\n", out, len(api.Endpoints))
	return nil
}
