package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/contentbuilder/internal/config"
	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuilder/internal/git"
	"git.home.luguber.info/inful/contentbuilder/internal/logfields"
	"git.home.luguber.info/inful/contentbuilder/internal/markdown"
	"git.home.luguber.info/inful/contentbuilder/internal/metrics"
	"git.home.luguber.info/inful/contentbuilder/internal/observability"
	"git.home.luguber.info/inful/contentbuilder/internal/output"
	"git.home.luguber.info/inful/contentbuilder/internal/schema"
	"git.home.luguber.info/inful/contentbuilder/internal/slug"
	"git.home.luguber.info/inful/contentbuilder/internal/source"
)

// Stage names used for logging and metrics.
const (
	StageLocate    = "locate"
	StageTransform = "transform"
	StageUnique    = "unique"
	StageWrite     = "write"
	StageHooks     = "hooks"
)

// Hook runs once after a build has written its output.
type Hook interface {
	Name() string
	OnBuildComplete(ctx context.Context, result *Result) error
}

// RenderCache stores rendered bodies by key.
type RenderCache interface {
	GetRendered(ctx context.Context, key string) ([]byte, bool, error)
	PutRendered(ctx context.Context, key string, payload []byte) error
}

// Builder runs builds for one configuration. Builds on the same Builder are
// serialized.
type Builder struct {
	cfg      *config.Config
	types    []*schema.DocumentType
	locator  *source.Locator
	chain    *markdown.Chain
	tagger   *slug.Tagger
	writer   *output.Writer
	hooks    []Hook
	cache    RenderCache
	recorder metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time

	run   sync.Mutex
	mu    sync.Mutex
	state State
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(b *Builder) { b.recorder = r }
}

// WithHooks appends build-completion hooks, run in the given order.
func WithHooks(hooks ...Hook) Option {
	return func(b *Builder) { b.hooks = append(b.hooks, hooks...) }
}

// WithRenderCache enables the render cache.
func WithRenderCache(c RenderCache) Option {
	return func(b *Builder) { b.cache = c }
}

// WithClock replaces time.Now, used for build timestamps and the future filter.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithTagger replaces the tag slugifier.
func WithTagger(t *slug.Tagger) Option {
	return func(b *Builder) { b.tagger = t }
}

// NewBuilder prepares document types, the locator, the transform chain and
// the output writer for cfg.
func NewBuilder(cfg *config.Config, opts ...Option) (*Builder, error) {
	if cfg == nil {
		return nil, errors.ConfigError("configuration is required").Build()
	}
	b := &Builder{
		cfg:      cfg,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
		now:      time.Now,
		state:    StateNotStarted,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.tagger == nil {
		b.tagger = slug.NewTagger(nil)
	}

	types, err := schema.FromConfig(cfg.DocumentTypes)
	if err != nil {
		return nil, err
	}
	b.types = types

	b.locator, err = source.NewLocator(cfg.Content.Dir, types, cfg.Content.Extensions)
	if err != nil {
		return nil, err
	}

	b.chain, err = markdown.New(markdown.Options{
		Steps:            cfg.Markdown.Steps,
		Theme:            cfg.Markdown.Theme,
		LineClass:        cfg.Markdown.LineClass,
		HighlightClass:   cfg.Markdown.HighlightClass,
		HeadingLinkClass: cfg.Markdown.HeadingLinkClass,
		StepObserver:     b.recorder.ObserveStepDuration,
	})
	if err != nil {
		return nil, err
	}

	writerOpts := []output.Option{output.WithClean(cfg.Output.ShouldClean())}
	if si := cfg.Hooks.SearchIndex; si.Enabled && !filepath.IsAbs(si.Path) {
		writerOpts = append(writerOpts, output.WithKeep(si.Path))
	}
	b.writer = output.NewWriter(cfg.Output.Dir, writerOpts...)
	return b, nil
}

// Types returns the document types the builder validates against.
func (b *Builder) Types() []*schema.DocumentType { return b.types }

// Chain returns the transform chain.
func (b *Builder) Chain() *markdown.Chain { return b.chain }

// State reports the lifecycle position of the current or last build.
func (b *Builder) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Builder) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

type mode int

const (
	modeBuild mode = iota
	modeValidate
)

// Build runs a full build: it writes the collection and invokes every hook
// exactly once. A failed build returns its Result together with the error.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	return b.execute(ctx, modeBuild)
}

// Validate locates and validates every document without rendering bodies,
// writing output or running hooks.
func (b *Builder) Validate(ctx context.Context) (*Result, error) {
	return b.execute(ctx, modeValidate)
}

func (b *Builder) execute(ctx context.Context, m mode) (*Result, error) {
	b.run.Lock()
	defer b.run.Unlock()

	start := b.now()
	result := &Result{
		BuildID:   uuid.NewString(),
		Policy:    b.cfg.Build.FailurePolicy,
		StartedAt: start.UTC(),
		Counts:    make(map[string]int, len(b.types)),
		OutputDir: b.writer.Dir(),
	}
	for _, t := range b.types {
		result.Counts[t.Name] = 0
	}
	ctx = observability.WithBuildID(ctx, result.BuildID)
	log := b.logger.With(logfields.BuildID(result.BuildID))

	b.setState(StateTransforming)
	log.InfoContext(ctx, "Build started",
		logfields.ContentRoot(b.locator.Root()),
		logfields.Policy(string(result.Policy)))

	err := b.pass(ctx, log, m, result)
	result.Duration = time.Since(start)
	if m == modeBuild {
		b.recorder.ObserveBuildDuration(result.Duration)
	}

	if err != nil {
		result.Status = StatusFailed
		b.setState(StateFailed)
		outcome := metrics.BuildOutcomeFailed
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			outcome = metrics.BuildOutcomeCanceled
		}
		b.recorder.IncBuildOutcome(outcome)
		log.ErrorContext(ctx, "Build failed",
			logfields.Status(string(result.Status)),
			logfields.Failures(len(result.Failures)),
			logfields.Error(err))
		return result, err
	}

	b.setState(StateComplete)
	if result.Status == StatusPartial {
		b.recorder.IncBuildOutcome(metrics.BuildOutcomePartial)
	} else {
		b.recorder.IncBuildOutcome(metrics.BuildOutcomeSuccess)
	}
	log.InfoContext(ctx, "Build complete",
		logfields.Status(string(result.Status)),
		logfields.Count(len(result.Documents)),
		logfields.Failures(len(result.Failures)),
		logfields.DurationMS(float64(result.Duration.Microseconds())/1000))
	return result, nil
}

// pass runs the stages in order, filling result.
func (b *Builder) pass(ctx context.Context, log *slog.Logger, m mode, result *Result) error {
	var files []source.File
	if err := b.stage(ctx, StageLocate, func(ctx context.Context) error {
		var err error
		files, err = b.locator.Locate(ctx)
		return err
	}); err != nil {
		return err
	}
	log.DebugContext(ctx, "Located content files", logfields.Count(len(files)))

	history := b.openHistory(ctx, log)
	if history != nil {
		result.Commit = history.Head()
	}

	var docs []*Document
	if err := b.stage(ctx, StageTransform, func(ctx context.Context) error {
		var err error
		docs, err = b.processAll(ctx, files, history, m, result)
		return err
	}); err != nil {
		return err
	}

	if err := b.stage(ctx, StageUnique, func(context.Context) error {
		var err error
		docs, err = b.unique(docs, result)
		return err
	}); err != nil {
		return err
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Slug < docs[j].Slug })
	result.Documents = docs
	for _, d := range docs {
		result.Counts[d.Type]++
	}
	result.Status = StatusSuccess
	if len(result.Failures) > 0 {
		result.Status = StatusPartial
		log.WarnContext(ctx, "Skipped invalid documents", logfields.Failures(len(result.Failures)))
	}

	if m == modeValidate {
		return nil
	}

	if err := b.stage(ctx, StageWrite, func(ctx context.Context) error {
		return b.write(ctx, result)
	}); err != nil {
		return err
	}

	return b.stage(ctx, StageHooks, func(ctx context.Context) error {
		return b.runHooks(ctx, log, result)
	})
}

func (b *Builder) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(observability.WithStage(ctx, name))
	b.recorder.ObserveStageDuration(name, time.Since(start))
	if err == nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
	}
	return err
}

func (b *Builder) openHistory(ctx context.Context, log *slog.Logger) *git.History {
	if !b.cfg.Build.GitLastModified {
		return nil
	}
	h, err := git.OpenHistory(b.locator.Root())
	if err != nil {
		if stderrors.Is(err, git.ErrNotRepository) {
			log.WarnContext(ctx, "Content directory is not in a git repository; lastModified falls back to frontmatter dates",
				logfields.ContentRoot(b.locator.Root()))
		} else {
			log.WarnContext(ctx, "Failed to open git history", logfields.Error(err))
		}
		return nil
	}
	return h
}

// unique drops documents whose slug is already taken. Documents are ordered by
// source path, so the earliest path keeps the slug.
func (b *Builder) unique(docs []*Document, result *Result) ([]*Document, error) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].SourcePath < docs[j].SourcePath })
	owners := make(map[string]*Document, len(docs))
	kept := docs[:0]
	for _, d := range docs {
		first, taken := owners[d.Slug]
		if !taken {
			owners[d.Slug] = d
			kept = append(kept, d)
			continue
		}
		err := errors.ValidationError(fmt.Sprintf("duplicate slug %q: %s and %s", d.Slug, first.SourcePath, d.SourcePath)).
			WithPath(d.SourcePath).
			WithContext("slug", d.Slug).
			WithContext("conflict", first.SourcePath).
			Build()
		if b.cfg.Build.FailurePolicy != config.FailurePolicySkipInvalid {
			return nil, err
		}
		result.Failures = append(result.Failures, newFailure(d.SourcePath, d.Type, err))
		b.recorder.IncDocumentResult(d.Type, metrics.ResultInvalid)
	}
	return kept, nil
}

func (b *Builder) write(ctx context.Context, result *Result) error {
	records := make([]output.Record, 0, len(result.Documents))
	for _, d := range result.Documents {
		records = append(records, output.Record{Type: d.Type, Slug: d.Slug, Data: d, Summary: d.Summary()})
	}
	manifest, err := b.writer.Write(ctx, records, result.Counts)
	if err != nil {
		return err
	}
	result.Written = manifest.Files
	return nil
}

// runHooks invokes every hook once, in order. The first failing hook fails the
// build; hooks after it do not run. Written output is kept.
func (b *Builder) runHooks(ctx context.Context, log *slog.Logger, result *Result) error {
	for _, h := range b.hooks {
		start := time.Now()
		err := h.OnBuildComplete(ctx, result)
		b.recorder.ObserveHookDuration(h.Name(), time.Since(start), err == nil)
		if err != nil {
			return errors.WrapError(err, errors.CategoryHook, "build hook failed").
				WithContext(errors.ContextHook, h.Name()).
				Build()
		}
		log.DebugContext(ctx, "Build hook complete", logfields.Hook(h.Name()), logfields.Elapsed(start))
	}
	return nil
}
