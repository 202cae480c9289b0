package main

import (
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/talonhq/talon/cmd/talon/internal/gen"
	"github.com/talonhq/talon/cmd/talon/internal/inspect"
)

type CLI struct {
	Version VersionCmd  `cmd:"" help:"Print version information."`
	Gen     gen.Cmd     `cmd:"" help:"Generate a typed Go client from an OpenAPI document or manifest."`
	Inspect inspect.Cmd `cmd:"" help:"Compile a declaration and print its operation table."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(Version())
	return nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("talon"),
		kong.Description("Talon CLI for API client generation and inspection."),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
