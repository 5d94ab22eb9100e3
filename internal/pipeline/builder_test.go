package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/contentbuilder/internal/config"
	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuilder/internal/markdown"
)

type fixture struct {
	root    string
	content string
	out     string
	cfg     *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Content.Dir = filepath.Join(root, "content")
	cfg.Output.Dir = filepath.Join(root, "out")
	cfg.Build.Workers = 4
	require.NoError(t, os.MkdirAll(cfg.Content.Dir, 0o750))
	return &fixture{root: root, content: cfg.Content.Dir, out: cfg.Output.Dir, cfg: cfg}
}

func (f *fixture) write(t *testing.T, rel, body string) {
	t.Helper()
	p := filepath.Join(f.content, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
}

func (f *fixture) builder(t *testing.T, opts ...Option) *Builder {
	t.Helper()
	b, err := NewBuilder(f.cfg, opts...)
	require.NoError(t, err)
	return b
}

func post(title, date, body string) string {
	return fmt.Sprintf("---\ntitle: %s\npublishedDate: %s\n---\n%s", title, date, body)
}

type recordingHook struct {
	name string
	err  error

	mu      sync.Mutex
	calls   int
	results []*Result
}

func (h *recordingHook) Name() string { return h.name }

func (h *recordingHook) OnBuildComplete(_ context.Context, r *Result) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	h.results = append(h.results, r)
	return h.err
}

func TestBuildProducesSortedCollection(t *testing.T) {
	f := newFixture(t)
	f.write(t, "blog/zeta.md", "---\ntitle: Zeta\npublishedDate: 2024-01-02\ntags: [Go, Static Sites]\n---\n# Zeta\n\nSome words here.\n")
	f.write(t, "blog/alpha/index.mdx", post("Alpha", "2024-02-03", "Alpha body.\n"))
	f.write(t, "pages/about.md", "---\ntitle: About\n---\nAbout me.\n")
	f.write(t, "notes/ignored.md", "not a declared type")

	hook := &recordingHook{name: "record"}
	b := f.builder(t, WithHooks(hook))
	assert.Equal(t, StateNotStarted, b.State())
	result, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.NotEmpty(t, result.BuildID)
	assert.Equal(t, map[string]int{"Post": 2, "Page": 1}, result.Counts)
	require.Len(t, result.Documents, 3)
	assert.Equal(t, []string{"blog/alpha", "blog/zeta", "pages/about"},
		[]string{result.Documents[0].Slug, result.Documents[1].Slug, result.Documents[2].Slug})

	zeta, ok := result.Document("blog/zeta")
	require.True(t, ok)
	assert.Equal(t, "Post", zeta.Type)
	assert.Equal(t, "blog/zeta.md", zeta.SourcePath)
	assert.Equal(t, "blog/zeta", zeta.FlattenedPath)
	assert.Equal(t, "zeta", zeta.Computed.SlugAsParams)
	assert.Equal(t, "/blog/zeta", zeta.Computed.URL)
	assert.Equal(t, []string{"go", "static-sites"}, zeta.Computed.TagSlugs)
	assert.Equal(t, 1, zeta.Computed.ReadingTime)
	assert.Equal(t, 4, zeta.Computed.WordCount)
	assert.Equal(t, "published", zeta.Fields["status"])
	require.NotNil(t, zeta.Computed.LastModified)
	assert.Equal(t, "2024-01-02", zeta.Computed.LastModified.Format(time.DateOnly))
	assert.Contains(t, zeta.Body.HTML, `<a href="#zeta" class="anchor">Zeta</a>`)
	assert.Equal(t, []markdown.Heading{{Depth: 1, ID: "zeta", Text: "Zeta"}}, zeta.Headings)

	about, ok := result.Document("pages/about")
	require.True(t, ok)
	assert.Equal(t, "/about", about.Computed.URL)
	assert.Nil(t, about.Computed.LastModified)

	assert.Equal(t, 1, hook.calls)
	assert.Same(t, result, hook.results[0])
	assert.Equal(t, StateComplete, b.State())

	for _, name := range []string{"index.json", "Post/_index.json", "Post/blog/zeta.json", "Post/blog/alpha.json", "Page/pages/about.json"} {
		assert.FileExists(t, filepath.Join(f.out, filepath.FromSlash(name)))
	}
}

func TestBuildFailFastStopsOnInvalidDocument(t *testing.T) {
	f := newFixture(t)
	f.write(t, "blog/good.md", post("Good", "2024-01-01", "Fine.\n"))
	f.write(t, "blog/missing-title.md", "---\npublishedDate: 2024-01-01\n---\nNo title.\n")

	hook := &recordingHook{name: "record"}
	b := f.builder(t, WithHooks(hook))
	result, err := b.Build(context.Background())
	require.Error(t, err)

	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
	assert.Contains(t, err.Error(), "blog/missing-title.md")
	assert.Contains(t, err.Error(), "title")
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, StateFailed, b.State())
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "blog/missing-title.md", result.Failures[0].Path)
	assert.Zero(t, hook.calls)
	assert.NoDirExists(t, f.out)
}

func TestBuildSkipInvalidKeepsValidDocuments(t *testing.T) {
	f := newFixture(t)
	f.cfg.Build.FailurePolicy = config.FailurePolicySkipInvalid
	f.write(t, "blog/good.md", post("Good", "2024-01-01", "Fine.\n"))
	f.write(t, "blog/missing-title.md", "---\npublishedDate: 2024-01-01\n---\nNo title.\n")
	f.write(t, "blog/bad-date.md", post("Bad", "yesterday", "Nope.\n"))

	hook := &recordingHook{name: "record"}
	result, err := f.builder(t, WithHooks(hook)).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusPartial, result.Status)
	require.Len(t, result.Documents, 1)
	assert.Equal(t, "blog/good", result.Documents[0].Slug)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, "blog/bad-date.md", result.Failures[0].Path)
	assert.Equal(t, "blog/missing-title.md", result.Failures[1].Path)
	for _, failure := range result.Failures {
		assert.Equal(t, errors.CategoryValidation, failure.Category)
		assert.Equal(t, "Post", failure.Type)
	}
	assert.Equal(t, 1, hook.calls)
	assert.FileExists(t, filepath.Join(f.out, "Post", "blog", "good.json"))
	assert.NoFileExists(t, filepath.Join(f.out, "Post", "blog", "missing-title.json"))
}

func TestDuplicateSlugNamesBothFiles(t *testing.T) {
	f := newFixture(t)
	f.write(t, "blog/hello.md", post("One", "2024-01-01", "One.\n"))
	f.write(t, "blog/hello.mdx", post("Two", "2024-01-01", "Two.\n"))

	_, err := f.builder(t).Build(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
	assert.Contains(t, err.Error(), "blog/hello.md")
	assert.Contains(t, err.Error(), "blog/hello.mdx")

	f.cfg.Build.FailurePolicy = config.FailurePolicySkipInvalid
	result, err := f.builder(t).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, result.Status)
	require.Len(t, result.Documents, 1)
	assert.Equal(t, "One", result.Documents[0].Title())
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "blog/hello.mdx", result.Failures[0].Path)
}

func TestSkippedWarningCountsDuplicateSlugs(t *testing.T) {
	f := newFixture(t)
	f.cfg.Build.FailurePolicy = config.FailurePolicySkipInvalid
	f.write(t, "blog/My Post.md", post("One", "2024-01-01", "One.\n"))
	f.write(t, "blog/my-post.md", post("Two", "2024-01-01", "Two.\n"))
	f.write(t, "blog/untitled.md", "---\npublishedDate: 2024-01-01\n---\nNo title.\n")

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	result, err := f.builder(t, WithLogger(logger)).Build(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Failures, 2)

	var warnings []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		if rec["msg"] == "Skipped invalid documents" {
			warnings = append(warnings, rec)
		}
	}
	require.Len(t, warnings, 1)
	assert.InDelta(t, 2, warnings[0]["failures"], 0)
}

func TestTransformErrorNamesStep(t *testing.T) {
	f := newFixture(t)
	f.write(t, "blog/math.md", post("Math", "2024-01-01", "Broken $\\frac{1}$ math.\n"))

	result, err := f.builder(t).Build(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryTransform))
	require.Len(t, result.Failures, 1)
	assert.Equal(t, markdown.StepMathRender, result.Failures[0].Step)
	assert.Equal(t, errors.CategoryTransform, result.Failures[0].Category)
}

func TestHighlightedCodeBlockThroughBuild(t *testing.T) {
	f := newFixture(t)
	f.write(t, "blog/code.md", post("Code", "2024-01-01", "```go {3}\nx := 1\n\nreturn x\n```\n"))

	result, err := f.builder(t).Build(context.Background())
	require.NoError(t, err)
	html := result.Documents[0].Body.HTML
	assert.Contains(t, html, `<span class="line"> </span>`)
	assert.Contains(t, html, `class="line line--highlighted"`)
}

func TestRebuildIsByteIdentical(t *testing.T) {
	f := newFixture(t)
	f.write(t, "blog/a.md", "---\ntitle: A\npublishedDate: 2024-01-01\ntags: [x]\n---\n## Heading\n\n```go\nfmt.Println(1)\n```\n\n$$\nx^2\n$$\n")
	f.write(t, "pages/b.md", "---\ntitle: B\n---\nText.\n")

	read := func() map[string]string {
		files := map[string]string{}
		require.NoError(t, filepath.WalkDir(f.out, func(p string, d os.DirEntry, err error) error {
			require.NoError(t, err)
			if d.IsDir() {
				return nil
			}
			data, err := os.ReadFile(p)
			require.NoError(t, err)
			files[p] = string(data)
			return nil
		}))
		return files
	}

	first, err := f.builder(t).Build(context.Background())
	require.NoError(t, err)
	before := read()

	second, err := f.builder(t).Build(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.BuildID, second.BuildID)
	assert.Equal(t, before, read())
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (c *memoryCache) GetRendered(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memoryCache) PutRendered(_ context.Context, key string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = payload
	return nil
}

func TestRenderCacheServesUnchangedDocuments(t *testing.T) {
	f := newFixture(t)
	f.write(t, "blog/a.md", post("A", "2024-01-01", "# A\n\nBody.\n"))
	f.write(t, "blog/b.md", post("B", "2024-01-01", "Body.\n"))
	cache := &memoryCache{entries: map[string][]byte{}}

	first, err := f.builder(t, WithRenderCache(cache)).Build(context.Background())
	require.NoError(t, err)
	assert.Zero(t, first.CacheHits)
	assert.Len(t, cache.entries, 2)

	f.write(t, "blog/b.md", post("B", "2024-01-01", "Changed body.\n"))
	second, err := f.builder(t, WithRenderCache(cache)).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.CacheHits)

	a1, _ := first.Document("blog/a")
	a2, _ := second.Document("blog/a")
	assert.Equal(t, a1.Body.HTML, a2.Body.HTML)
	assert.Equal(t, a1.Headings, a2.Headings)
	assert.Equal(t, a1.Computed.WordCount, a2.Computed.WordCount)
}

func TestPublishFilters(t *testing.T) {
	f := newFixture(t)
	f.cfg.Publish.ExcludeDrafts = true
	f.cfg.Publish.ExcludeFuture = true
	f.write(t, "blog/live.md", post("Live", "2024-01-01", "Live.\n"))
	f.write(t, "blog/draft.md", "---\ntitle: Draft\npublishedDate: 2024-01-01\nstatus: draft\n---\nDraft.\n")
	f.write(t, "blog/later.md", post("Later", "2030-01-01", "Later.\n"))

	clock := func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	result, err := f.builder(t, WithClock(clock)).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	require.Len(t, result.Documents, 1)
	assert.Equal(t, "blog/live", result.Documents[0].Slug)
	assert.ElementsMatch(t, []Skip{
		{Path: "blog/draft.md", Reason: "draft"},
		{Path: "blog/later.md", Reason: "future"},
	}, result.Skipped)
}

func TestHookFailureFailsBuildButKeepsOutput(t *testing.T) {
	f := newFixture(t)
	f.write(t, "blog/a.md", post("A", "2024-01-01", "A.\n"))

	failing := &recordingHook{name: "broken", err: fmt.Errorf("boom")}
	after := &recordingHook{name: "after"}
	result, err := f.builder(t, WithHooks(failing, after)).Build(context.Background())
	require.Error(t, err)

	assert.True(t, errors.HasCategory(err, errors.CategoryHook))
	classified, ok := errors.AsClassified(err)
	require.True(t, ok)
	hookName, _ := classified.Context().GetString(errors.ContextHook)
	assert.Equal(t, "broken", hookName)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, 1, failing.calls)
	assert.Zero(t, after.calls)
	assert.FileExists(t, filepath.Join(f.out, "Post", "blog", "a.json"))
}

func TestValidateDoesNotRenderOrWrite(t *testing.T) {
	f := newFixture(t)
	f.write(t, "blog/a.md", post("A", "2024-01-01", "# A\n"))

	hook := &recordingHook{name: "record"}
	result, err := f.builder(t, WithHooks(hook)).Validate(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Documents, 1)
	assert.Empty(t, result.Documents[0].Body.HTML)
	assert.Equal(t, "/blog/a", result.Documents[0].Computed.URL)
	assert.Zero(t, hook.calls)
	assert.NoDirExists(t, f.out)
}

func TestCanceledBuild(t *testing.T) {
	f := newFixture(t)
	f.write(t, "blog/a.md", post("A", "2024-01-01", "A.\n"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := f.builder(t).Build(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusFailed, result.Status)
}

func TestLastModifiedFromGit(t *testing.T) {
	f := newFixture(t)
	f.cfg.Build.GitLastModified = true
	repo, err := gogit.PlainInit(f.root, false)
	require.NoError(t, err)

	f.write(t, "blog/a.md", post("A", "2024-01-01", "A.\n"))
	f.write(t, "blog/b.md", post("B", "2024-01-01", "B.\n"))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("content/blog/a.md")
	require.NoError(t, err)
	committed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	_, err = wt.Commit("add a", &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: committed},
	})
	require.NoError(t, err)

	result, err := f.builder(t).Build(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Commit, 40)

	a, _ := result.Document("blog/a")
	require.NotNil(t, a.Computed.LastModified)
	assert.True(t, committed.Equal(*a.Computed.LastModified))

	// Uncommitted files fall back to their frontmatter date.
	b, _ := result.Document("blog/b")
	require.NotNil(t, b.Computed.LastModified)
	assert.Equal(t, "2024-01-01", b.Computed.LastModified.Format(time.DateOnly))
}

func TestDocumentURL(t *testing.T) {
	tests := []struct {
		prefix, params, slug, want string
	}{
		{"/blog", "post", "blog/post", "/blog/post"},
		{"/blog/", "a/b", "blog/a/b", "/blog/a/b"},
		{"", "about", "pages/about", "/about"},
		{"/blog", "", "blog", "/blog"},
		{"", "", "pages", "/pages"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, documentURL(tt.prefix, tt.params, tt.slug))
	}
}

func TestReadingTime(t *testing.T) {
	assert.Equal(t, 0, readingTime(0, 200))
	assert.Equal(t, 1, readingTime(1, 200))
	assert.Equal(t, 1, readingTime(200, 200))
	assert.Equal(t, 2, readingTime(201, 200))
	assert.Equal(t, 1, readingTime(150, 0))
}
