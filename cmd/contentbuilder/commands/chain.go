package commands

import (
	"encoding/json"
	"fmt"

	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuilder/internal/markdown"
)

// ChainCmd implements the 'chain' command.
type ChainCmd struct {
	Format string `short:"f" help:"Output format: text, json" default:"text" enum:"text,json"`
}

type chainListing struct {
	Steps     []string `json:"steps"`
	Signature string   `json:"signature"`
}

func (c *ChainCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfigOrDefault(g, root)
	if err != nil {
		return err
	}
	chain, err := markdown.New(markdown.Options{
		Steps:            cfg.Markdown.Steps,
		Theme:            cfg.Markdown.Theme,
		LineClass:        cfg.Markdown.LineClass,
		HighlightClass:   cfg.Markdown.HighlightClass,
		HeadingLinkClass: cfg.Markdown.HeadingLinkClass,
	})
	if err != nil {
		return err
	}

	if c.Format == "json" {
		data, err := json.MarshalIndent(chainListing{Steps: chain.Steps(), Signature: chain.Signature()}, "", "  ")
		if err != nil {
			return errors.WrapError(err, errors.CategoryInternal, "encode chain").Build()
		}
		_, _ = fmt.Fprintln(g.Stdout, string(data))
		return nil
	}
	for i, step := range chain.Steps() {
		_, _ = fmt.Fprintf(g.Stdout, "%d. %s\n", i+1, step)
	}
	return nil
}
