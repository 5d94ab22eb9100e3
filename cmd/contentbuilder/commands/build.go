package commands

import (
	"context"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/contentbuilder/internal/config"
	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Output        string `short:"o" help:"Override output.dir"`
	FailurePolicy string `name:"failure-policy" help:"Override build.failurePolicy (fail-fast|skip-invalid)"`
	Workers       int    `short:"w" help:"Override build.workers"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	if err := applyBuildOverrides(cfg, b.Output, b.FailurePolicy, b.Workers); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return RunBuild(ctx, g, cfg)
}

// RunBuild performs one build with cfg and prints its summary.
func RunBuild(ctx context.Context, g *Global, cfg *config.Config) error {
	rt, err := newRuntime(cfg, g.Logger, runtimeBuild)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	result, err := rt.build(ctx)
	printResult(g.Stdout, "Built", result)
	return err
}

func applyBuildOverrides(cfg *config.Config, output, policy string, workers int) error {
	if output != "" {
		cfg.Output.Dir = output
	}
	if policy != "" {
		p := config.NormalizeFailurePolicy(policy)
		if p == "" {
			return errors.ConfigError("unknown failure policy").
				WithContext(errors.ContextField, "--failure-policy").
				WithContext("value", policy).
				Build()
		}
		cfg.Build.FailurePolicy = p
	}
	if workers > 0 {
		cfg.Build.Workers = workers
	}
	return nil
}
