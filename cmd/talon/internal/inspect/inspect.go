package inspect

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/talonhq/talon"
	"github.com/talonhq/talon/cmd/talon/internal/declfile"
)

type Cmd struct {
	Spec    string `arg:"" help:"OpenAPI document or talon manifest."`
	Params  bool   `help:"List parameters for each operation." short:"p"`
	BaseURL string `help:"Override the declared base URL." name:"base-url"`
}

// Run compiles the declaration and prints the operation table. Compiling
// first means inspect reports the same classification and validation
// errors a client would hit at startup.
func (c *Cmd) Run() error {
	api, err := declfile.Load(context.Background(), c.Spec, declfile.Options{})
	if err != nil {
		return err
	}
	if c.BaseURL != "" {
		api.BaseURL = c.BaseURL
	}

	ps, err := talon.Compile(api)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s)\n\n", ps.Name(), ps.BaseURL())
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, p := range ps.Plans() {
		meta := p.Meta()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", meta.Operation, meta.Method, meta.Template, shapeLabel(p))
		if !c.Params {
			continue
		}
		for _, pm := range meta.Params {
			req := "required"
			if !pm.Required {
				req = "optional"
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\t\n", pm.Name, pm.Role, req)
		}
	}
	return w.Flush()
}

func shapeLabel(p *talon.Plan) string {
	label := string(p.Shape())
	if p.NotFoundAsNil() {
		label += ", optional"
	}
	if d := p.Timeout(); d > 0 {
		label += ", timeout " + d.String()
	}
	return label
}
