// Package watch rebuilds the content collection when the content tree or the
// configuration changes, and optionally on a schedule.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/contentbuilder/internal/config"
	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuilder/internal/logfields"
)

// Triggers passed to the build function.
const (
	TriggerStartup  = "startup"
	TriggerContent  = "content"
	TriggerConfig   = "config"
	TriggerSchedule = "schedule"
)

// Request describes why a rebuild was requested. Path is the last changed
// file for content and config triggers.
type Request struct {
	Trigger string
	Path    string
}

// BuildFunc runs one build. Calls never overlap.
type BuildFunc func(ctx context.Context, req Request) error

// Options configures a Watcher.
type Options struct {
	ContentDir string
	// ConfigPath is watched for changes when set.
	ConfigPath string
	Extensions []string
	Debounce   time.Duration
	Interval   time.Duration
	Cron       string
	Logger     *slog.Logger
}

// OptionsFromConfig maps the loaded configuration onto watcher options.
func OptionsFromConfig(cfg *config.Config, configPath string) Options {
	return Options{
		ContentDir: cfg.Content.Dir,
		ConfigPath: configPath,
		Extensions: cfg.Content.Extensions,
		Debounce:   cfg.Watch.Debounce,
		Interval:   cfg.Watch.Interval,
		Cron:       cfg.Watch.Cron,
	}
}

// Watcher turns filesystem events and scheduled ticks into serialized builds.
type Watcher struct {
	contentDir string
	configPath string
	exts       map[string]bool
	debounce   time.Duration
	build      BuildFunc
	logger     *slog.Logger

	watcher   *fsnotify.Watcher
	scheduler gocron.Scheduler

	mu      sync.Mutex
	pending *Request
	timer   *time.Timer
	changed *Request
	signal  chan struct{}
}

// New creates a Watcher. Nothing is watched until Run is called.
func New(opts Options, build BuildFunc) (*Watcher, error) {
	if build == nil {
		return nil, errors.InternalError("watch: build function is required").Build()
	}
	contentDir, err := filepath.Abs(opts.ContentDir)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "resolve content dir").
			WithPath(opts.ContentDir).Build()
	}
	w := &Watcher{
		contentDir: contentDir,
		exts:       make(map[string]bool),
		debounce:   opts.Debounce,
		build:      build,
		logger:     opts.Logger,
		signal:     make(chan struct{}, 1),
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.debounce <= 0 {
		w.debounce = config.DefaultWatchDebounce
	}
	if opts.ConfigPath != "" {
		if w.configPath, err = filepath.Abs(opts.ConfigPath); err != nil {
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "resolve config path").
				WithPath(opts.ConfigPath).Build()
		}
	}
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = config.DefaultExtensions
	}
	for _, ext := range exts {
		w.exts[strings.ToLower(ext)] = true
	}
	if opts.Cron != "" || opts.Interval > 0 {
		if w.scheduler, err = newScheduler(opts, w.requestScheduled); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func newScheduler(opts Options, task func()) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "create scheduler").Build()
	}
	def := gocron.DurationJob(opts.Interval)
	if opts.Cron != "" {
		def = gocron.CronJob(opts.Cron, false)
	}
	if _, err := s.NewJob(def, gocron.NewTask(task), gocron.WithName("scheduled-rebuild")); err != nil {
		_ = s.Shutdown()
		return nil, errors.WrapError(err, errors.CategoryConfig, "invalid watch schedule").
			WithContext("cron", opts.Cron).
			WithContext("interval", opts.Interval.String()).
			Build()
	}
	return s, nil
}

// Run performs a startup build and then rebuilds on every debounced change
// until ctx is canceled. Build errors are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "create file watcher").Build()
	}
	w.watcher = fw
	defer fw.Close()

	if err := w.addTree(w.contentDir); err != nil {
		return err
	}
	if w.configPath != "" && !w.underContent(w.configPath) {
		dir := filepath.Dir(w.configPath)
		if err := fw.Add(dir); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "watch config directory").
				WithPath(dir).Build()
		}
	}
	w.logger.Info("Watching content",
		logfields.ContentRoot(w.contentDir),
		logfields.ConfigPath(w.configPath))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.buildLoop(ctx)
	}()

	if w.scheduler != nil {
		w.scheduler.Start()
		defer func() {
			if err := w.scheduler.Shutdown(); err != nil {
				w.logger.Warn("Scheduler shutdown failed", logfields.Error(err))
			}
		}()
	}

	w.enqueue(Request{Trigger: TriggerStartup})
	w.watchLoop(ctx)

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	wg.Wait()
	return nil
}

func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op.Has(fsnotify.Create) && w.underContent(event.Name) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", logfields.Path(event.Name), logfields.Error(err))
			}
			w.trigger(Request{Trigger: TriggerContent, Path: event.Name})
			return
		}
	}
	trigger := w.classify(event)
	if trigger == "" {
		return
	}
	w.logger.Debug("Change detected", logfields.Trigger(trigger), logfields.Path(event.Name),
		slog.String("op", event.Op.String()))
	w.trigger(Request{Trigger: trigger, Path: event.Name})
}

// classify returns the trigger for a relevant event or "" to ignore it.
func (w *Watcher) classify(event fsnotify.Event) string {
	if event.Op == fsnotify.Chmod {
		return ""
	}
	name := filepath.Base(event.Name)
	if w.configPath != "" && (event.Name == w.configPath ||
		(filepath.Dir(event.Name) == filepath.Dir(w.configPath) && name == ".env")) {
		return TriggerConfig
	}
	if !w.underContent(event.Name) || ignoredName(name) {
		return ""
	}
	if w.exts[strings.ToLower(filepath.Ext(name))] {
		return TriggerContent
	}
	// A removed or renamed directory takes its documents with it.
	if event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
		if filepath.Ext(name) == "" {
			return TriggerContent
		}
	}
	return ""
}

func ignoredName(name string) bool {
	return strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".swp") ||
		strings.HasSuffix(name, ".tmp")
}

func (w *Watcher) underContent(path string) bool {
	rel, err := filepath.Rel(w.contentDir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "walk content tree").WithPath(path).Build()
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "watch directory").WithPath(path).Build()
		}
		return nil
	})
}

// trigger restarts the debounce window. A config change within the window
// wins over content changes.
func (w *Watcher) trigger(req Request) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.changed = merge(w.changed, req)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	req := w.changed
	w.changed = nil
	w.mu.Unlock()
	if req != nil {
		w.enqueue(*req)
	}
}

func (w *Watcher) requestScheduled() {
	w.enqueue(Request{Trigger: TriggerSchedule})
}

// enqueue records req as the next build. Requests arriving while a build is
// pending are coalesced into it.
func (w *Watcher) enqueue(req Request) {
	w.mu.Lock()
	w.pending = merge(w.pending, req)
	w.mu.Unlock()
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *Watcher) buildLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.signal:
		}
		w.mu.Lock()
		req := w.pending
		w.pending = nil
		w.mu.Unlock()
		if req == nil {
			continue
		}
		start := time.Now()
		w.logger.Info("Rebuilding", logfields.Trigger(req.Trigger), logfields.Path(req.Path))
		if err := w.build(ctx, *req); err != nil {
			w.logger.Error("Rebuild failed", logfields.Trigger(req.Trigger), logfields.Elapsed(start),
				logfields.Error(err))
			continue
		}
		w.logger.Debug("Rebuild finished", logfields.Trigger(req.Trigger), logfields.Elapsed(start))
	}
}

func merge(current *Request, next Request) *Request {
	if current != nil && current.Trigger == TriggerConfig && next.Trigger != TriggerConfig {
		return current
	}
	return &next
}
