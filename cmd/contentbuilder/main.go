package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/contentbuilder/cmd/contentbuilder/commands"
	"git.home.luguber.info/inful/contentbuilder/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("contentbuilder"),
		kong.Description("Build a typed JSON content collection from Markdown and MDX files."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	global, err := commands.NewGlobal(cli)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(7)
	}
	global.HandleError(cli, parser.Run(global, cli))
	_ = global.Close()
}
