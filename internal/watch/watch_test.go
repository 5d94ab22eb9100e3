package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
)

type recorder struct {
	mu       sync.Mutex
	requests []Request
}

func (r *recorder) build(_ context.Context, req Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return nil
}

func (r *recorder) snapshot() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Request(nil), r.requests...)
}

func (r *recorder) count(trigger string) int {
	n := 0
	for _, req := range r.snapshot() {
		if req.Trigger == trigger {
			n++
		}
	}
	return n
}

func newTestWatcher(t *testing.T, opts Options, build BuildFunc) *Watcher {
	t.Helper()
	w, err := New(opts, build)
	require.NoError(t, err)
	return w
}

func TestClassify(t *testing.T) {
	root := t.TempDir()
	content := filepath.Join(root, "content")
	configPath := filepath.Join(root, "contentbuilder.yaml")
	w := newTestWatcher(t, Options{ContentDir: content, ConfigPath: configPath}, (&recorder{}).build)

	tests := []struct {
		name  string
		event fsnotify.Event
		want  string
	}{
		{"markdown write", fsnotify.Event{Name: filepath.Join(content, "blog", "a.md"), Op: fsnotify.Write}, TriggerContent},
		{"mdx create", fsnotify.Event{Name: filepath.Join(content, "pages", "about.MDX"), Op: fsnotify.Create}, TriggerContent},
		{"other extension", fsnotify.Event{Name: filepath.Join(content, "blog", "notes.txt"), Op: fsnotify.Write}, ""},
		{"chmod only", fsnotify.Event{Name: filepath.Join(content, "blog", "a.md"), Op: fsnotify.Chmod}, ""},
		{"editor swap", fsnotify.Event{Name: filepath.Join(content, "blog", ".a.md.swp"), Op: fsnotify.Write}, ""},
		{"backup file", fsnotify.Event{Name: filepath.Join(content, "blog", "a.md~"), Op: fsnotify.Write}, ""},
		{"removed directory", fsnotify.Event{Name: filepath.Join(content, "blog", "drafts"), Op: fsnotify.Remove}, TriggerContent},
		{"config write", fsnotify.Event{Name: configPath, Op: fsnotify.Write}, TriggerConfig},
		{"dotenv write", fsnotify.Event{Name: filepath.Join(root, ".env"), Op: fsnotify.Write}, TriggerConfig},
		{"sibling file", fsnotify.Event{Name: filepath.Join(root, "README.md"), Op: fsnotify.Write}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.classify(tt.event))
		})
	}
}

func TestMergeKeepsConfigTrigger(t *testing.T) {
	req := merge(nil, Request{Trigger: TriggerContent, Path: "a.md"})
	assert.Equal(t, TriggerContent, req.Trigger)

	req = merge(req, Request{Trigger: TriggerConfig, Path: "contentbuilder.yaml"})
	assert.Equal(t, TriggerConfig, req.Trigger)

	req = merge(req, Request{Trigger: TriggerContent, Path: "b.md"})
	assert.Equal(t, TriggerConfig, req.Trigger)
	assert.Equal(t, "contentbuilder.yaml", req.Path)
}

func TestNewRejectsInvalidCron(t *testing.T) {
	_, err := New(Options{ContentDir: t.TempDir(), Cron: "not a schedule"}, (&recorder{}).build)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestNewRequiresBuildFunc(t *testing.T) {
	_, err := New(Options{ContentDir: t.TempDir()}, nil)
	require.Error(t, err)
}

func TestRunBuildsOnStartupAndDebouncesChanges(t *testing.T) {
	content := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(content, "blog"), 0o755))

	rec := &recorder{}
	w := newTestWatcher(t, Options{ContentDir: content, Debounce: 100 * time.Millisecond}, rec.build)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return rec.count(TriggerStartup) == 1 }, 2*time.Second, 10*time.Millisecond)

	for _, name := range []string{"a.md", "b.md", "c.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(content, "blog", name), []byte("# x\n"), 0o644))
	}

	require.Eventually(t, func() bool { return rec.count(TriggerContent) >= 1 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, rec.count(TriggerContent))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestRunSchedulesRebuilds(t *testing.T) {
	rec := &recorder{}
	w := newTestWatcher(t, Options{ContentDir: t.TempDir(), Interval: 50 * time.Millisecond}, rec.build)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return rec.count(TriggerSchedule) >= 1 }, 3*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestBuildsDoNotOverlap(t *testing.T) {
	var (
		mu      sync.Mutex
		running int
		overlap bool
		calls   int
	)
	build := func(_ context.Context, _ Request) error {
		mu.Lock()
		running++
		calls++
		if running > 1 {
			overlap = true
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		return nil
	}
	w := newTestWatcher(t, Options{ContentDir: t.TempDir()}, build)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.buildLoop(ctx)
	}()
	for range 10 {
		w.enqueue(Request{Trigger: TriggerSchedule})
		time.Sleep(5 * time.Millisecond)
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls > 0 && running == 0
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, overlap)
	assert.Less(t, calls, 10)
}
