package commands

import (
	"context"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/contentbuilder/internal/config"
	"git.home.luguber.info/inful/contentbuilder/internal/logfields"
	"git.home.luguber.info/inful/contentbuilder/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Output        string `short:"o" help:"Override output.dir"`
	FailurePolicy string `name:"failure-policy" help:"Override build.failurePolicy (fail-fast|skip-invalid)"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := w.load(g, root)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(cfg, g.Logger, runtimeBuild)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	build := func(ctx context.Context, req watch.Request) error {
		if req.Trigger == watch.TriggerConfig {
			next, err := w.reload(g, root)
			if err != nil {
				g.Logger.Error("Configuration reload failed, keeping previous configuration",
					logfields.ConfigPath(root.Config), logfields.Error(err))
			} else {
				_ = rt.Close()
				rt = next
				g.Logger.Info("Configuration reloaded", logfields.ConfigPath(root.Config))
			}
		}
		result, err := rt.build(ctx)
		printResult(g.Stdout, "Built", result)
		return err
	}

	opts := watch.OptionsFromConfig(cfg, root.Config)
	opts.Logger = g.Logger
	watcher, err := watch.New(opts, build)
	if err != nil {
		return err
	}
	return watcher.Run(ctx)
}

func (w *WatchCmd) load(g *Global, root *CLI) (*config.Config, error) {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return nil, err
	}
	if err := applyBuildOverrides(cfg, w.Output, w.FailurePolicy, 0); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (w *WatchCmd) reload(g *Global, root *CLI) (*runtime, error) {
	cfg, err := w.load(g, root)
	if err != nil {
		return nil, err
	}
	return newRuntime(cfg, g.Logger, runtimeBuild)
}
