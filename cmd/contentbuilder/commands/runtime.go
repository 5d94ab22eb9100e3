package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/contentbuilder/internal/config"
	"git.home.luguber.info/inful/contentbuilder/internal/hooks"
	"git.home.luguber.info/inful/contentbuilder/internal/logfields"
	"git.home.luguber.info/inful/contentbuilder/internal/metrics"
	"git.home.luguber.info/inful/contentbuilder/internal/pipeline"
	"git.home.luguber.info/inful/contentbuilder/internal/store"
)

// cacheRetention is how long an unused render cache entry survives.
const cacheRetention = 30 * 24 * time.Hour

// runtime wires a Builder to its stores, hooks and metrics for one
// configuration.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	builder  *pipeline.Builder
	hooks    *hooks.Set
	cache    *store.SQLiteStore
	history  *store.SQLiteStore
	registry *prom.Registry
}

type runtimeMode int

const (
	runtimeBuild runtimeMode = iota
	runtimeValidate
)

func newRuntime(cfg *config.Config, logger *slog.Logger, mode runtimeMode) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: logger}
	if err := rt.init(mode); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) init(mode runtimeMode) (err error) {
	cfg := rt.cfg

	opts := []pipeline.Option{pipeline.WithLogger(rt.logger)}
	if mode == runtimeBuild {
		if cfg.Metrics.Textfile != "" {
			rt.registry = prom.NewRegistry()
			opts = append(opts, pipeline.WithRecorder(metrics.NewPrometheusRecorder(rt.registry)))
		}
		if cfg.Build.CachePath != "" {
			if rt.cache, err = store.Open(cfg.Build.CachePath); err != nil {
				return err
			}
			opts = append(opts, pipeline.WithRenderCache(rt.cache))
		}
		if cfg.Hooks.History.Enabled {
			if rt.cache != nil && samePath(cfg.Build.CachePath, cfg.Hooks.History.Path) {
				rt.history = rt.cache
			} else if rt.history, err = store.Open(cfg.Hooks.History.Path); err != nil {
				return err
			}
		}
		var hookOpts []hooks.Option
		if rt.history != nil {
			hookOpts = append(hookOpts, hooks.WithHistoryStore(rt.history))
		}
		if rt.hooks, err = hooks.FromConfig(cfg, hookOpts...); err != nil {
			return err
		}
		opts = append(opts, pipeline.WithHooks(rt.hooks.Hooks...))
	}

	rt.builder, err = pipeline.NewBuilder(cfg, opts...)
	return err
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

// build runs one build. Failed builds are recorded in the history store here
// because the history hook only sees completed builds.
func (rt *runtime) build(ctx context.Context) (*pipeline.Result, error) {
	result, err := rt.builder.Build(ctx)
	if err != nil && result != nil && rt.history != nil {
		if recErr := rt.history.RecordBuild(context.WithoutCancel(ctx), hooks.Record(result, err)); recErr != nil {
			rt.logger.Warn("Failed to record failed build", logfields.Error(recErr))
		}
	}
	if rt.cache != nil && err == nil {
		if n, pruneErr := rt.cache.PruneRendered(ctx, time.Now().Add(-cacheRetention)); pruneErr != nil {
			rt.logger.Warn("Failed to prune render cache", logfields.Error(pruneErr))
		} else if n > 0 {
			rt.logger.Debug("Pruned render cache", logfields.Count(int(n)))
		}
	}
	if rt.registry != nil {
		if mErr := metrics.WriteTextfile(rt.cfg.Metrics.Textfile, rt.registry); mErr != nil {
			rt.logger.Warn("Failed to write metrics textfile", logfields.Path(rt.cfg.Metrics.Textfile), logfields.Error(mErr))
		}
	}
	return result, err
}

// Close releases hooks and stores.
func (rt *runtime) Close() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if rt.hooks != nil {
		keep(rt.hooks.Close())
	}
	if rt.history != nil && rt.history != rt.cache {
		keep(rt.history.Close())
	}
	if rt.cache != nil {
		keep(rt.cache.Close())
	}
	return first
}

// printResult writes the human summary of a build or validation pass.
func printResult(w io.Writer, verb string, result *pipeline.Result) {
	if result == nil {
		return
	}
	_, _ = fmt.Fprintf(w, "%s %d documents (%s) in %s\n", verb, len(result.Documents), result.Status,
		result.Duration.Round(time.Millisecond))
	names := make([]string, 0, len(result.Counts))
	for name := range result.Counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = fmt.Fprintf(w, "  %-12s %d\n", name, result.Counts[name])
	}
	for _, f := range result.Failures {
		_, _ = fmt.Fprintf(w, "  invalid: %s: %s\n", f.Path, f.Message)
	}
	if n := len(result.Skipped); n > 0 {
		_, _ = fmt.Fprintf(w, "  skipped: %d (unpublished)\n", n)
	}
}
