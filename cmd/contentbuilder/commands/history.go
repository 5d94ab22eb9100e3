package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuilder/internal/store"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit  int    `short:"n" help:"Number of builds to show" default:"20"`
	Format string `short:"f" help:"Output format: text, json" default:"text" enum:"text,json"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	path := cfg.Hooks.History.Path
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return errors.ConfigError("no build history recorded (enable hooks.history)").WithPath(path).Build()
	}
	s, err := store.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	builds, err := s.ListBuilds(context.Background(), h.Limit)
	if err != nil {
		return err
	}
	if h.Format == "json" {
		enc := json.NewEncoder(g.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(builds); err != nil {
			return errors.WrapError(err, errors.CategoryInternal, "encode history").Build()
		}
		return nil
	}
	return printHistory(g, builds)
}

func printHistory(g *Global, builds []store.BuildRecord) error {
	tw := tabwriter.NewWriter(g.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STARTED\tSTATUS\tDOCS\tFAILED\tCACHED\tDURATION\tID")
	for _, b := range builds {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			b.StartedAt.Local().Format(time.DateTime), b.Status, b.Documents, b.Failures, b.CacheHits,
			b.Duration.Round(time.Millisecond), b.ID)
	}
	if err := tw.Flush(); err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "write history").Build()
	}
	return nil
}
