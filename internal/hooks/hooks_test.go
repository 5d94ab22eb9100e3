package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/contentbuilder/internal/config"
	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuilder/internal/markdown"
	"git.home.luguber.info/inful/contentbuilder/internal/pipeline"
	"git.home.luguber.info/inful/contentbuilder/internal/store"
)

func sampleResult() *pipeline.Result {
	return &pipeline.Result{
		BuildID:   "build-1",
		Status:    pipeline.StatusSuccess,
		Policy:    config.FailurePolicyFailFast,
		StartedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:  1200 * time.Millisecond,
		Counts:    map[string]int{"Post": 1, "Page": 0},
		Commit:    "abc",
		Documents: []*pipeline.Document{{
			Type:   "Post",
			Slug:   "blog/hello",
			Fields: map[string]any{"title": "Hello", "description": "Greeting"},
			Body: pipeline.Body{HTML: `<h2 id="intro"><a href="#intro" class="anchor">Intro</a></h2>
<p>Hello <em>wide</em> world.</p>
<p>Inline <span class="math math-inline"><math><semantics><mrow><mi>x</mi></mrow><annotation encoding="application/x-tex">x</annotation></semantics></math></span> math.</p>
<script>ignored()</script>`},
			Computed: pipeline.Computed{URL: "/blog/hello", TagSlugs: []string{"go"}},
			Headings: []markdown.Heading{{Depth: 2, ID: "intro", Text: "Intro"}},
		}},
	}
}

func TestLogCountLogsEveryType(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	require.NoError(t, NewLogCount(logger).OnBuildComplete(context.Background(), sampleResult()))
	out := buf.String()
	assert.Contains(t, out, "doc_type=Page count=0")
	assert.Contains(t, out, "doc_type=Post count=1")
}

func TestPlainText(t *testing.T) {
	text, err := PlainText(sampleResult().Documents[0].Body.HTML)
	require.NoError(t, err)
	assert.Equal(t, "Intro Hello wide world. Inline x math.", text)

	empty, err := PlainText("  ")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", snippet("short", 10))
	assert.Equal(t, "one two…", snippet("one two three", 9))
}

func TestSearchIndexWritesEntries(t *testing.T) {
	out := t.TempDir()
	hook := NewSearchIndex(out, config.SearchIndexConfig{Enabled: true, Path: "search/index.json", SnippetLen: 11})
	require.NoError(t, hook.OnBuildComplete(context.Background(), sampleResult()))

	data, err := os.ReadFile(filepath.Join(out, "search", "index.json"))
	require.NoError(t, err)
	var entries []SearchEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, SearchEntry{
		Slug:        "blog/hello",
		Type:        "Post",
		URL:         "/blog/hello",
		Title:       "Hello",
		Description: "Greeting",
		Tags:        []string{"go"},
		Headings:    []string{"Intro"},
		Snippet:     "Intro Hello…",
		Text:        "Intro Hello wide world. Inline x math.",
	}, entries[0])
}

type fakePublisher struct {
	msgs    []*nats.Msg
	err     error
	flushed int
	closed  bool
}

func (p *fakePublisher) PublishMsg(m *nats.Msg) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, m)
	return nil
}

func (p *fakePublisher) FlushTimeout(time.Duration) error {
	p.flushed++
	return nil
}

func (p *fakePublisher) Close() { p.closed = true }

func TestNATSPublishesBuildEvent(t *testing.T) {
	pub := &fakePublisher{}
	hook := NewNATS(pub, config.NATSConfig{Subject: "blog.builds"})
	require.NoError(t, hook.OnBuildComplete(context.Background(), sampleResult()))

	require.Len(t, pub.msgs, 1)
	msg := pub.msgs[0]
	assert.Equal(t, "blog.builds", msg.Subject)
	assert.Equal(t, "build-1", msg.Header.Get(nats.MsgIdHdr))
	assert.Equal(t, 1, pub.flushed)

	var event BuildEvent
	require.NoError(t, json.Unmarshal(msg.Data, &event))
	assert.Equal(t, "success", event.Status)
	assert.Equal(t, 1, event.Documents)
	assert.Equal(t, int64(1200), event.DurationMS)
	assert.Equal(t, map[string]int{"Post": 1, "Page": 0}, event.Counts)

	require.NoError(t, hook.Close())
	assert.True(t, pub.closed)
}

func TestNATSPublishFailureIsNetworkError(t *testing.T) {
	hook := NewNATS(&fakePublisher{err: stderrors.New("no responders")}, config.NATSConfig{})
	err := hook.OnBuildComplete(context.Background(), sampleResult())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNetwork))
}

func TestHistoryRecordsBuild(t *testing.T) {
	s, err := store.Open(store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, NewHistory(s).OnBuildComplete(context.Background(), sampleResult()))

	rec, err := s.GetBuild(context.Background(), "build-1")
	require.NoError(t, err)
	assert.Equal(t, "success", rec.Status)
	assert.Equal(t, 1, rec.Documents)
	assert.Equal(t, "abc", rec.Commit)
	assert.Equal(t, 1200*time.Millisecond, rec.Duration)
}

func TestRecordKeepsFailureReason(t *testing.T) {
	rec := Record(&pipeline.Result{BuildID: "x", Status: pipeline.StatusFailed}, stderrors.New("boom"))
	assert.Equal(t, "boom", rec.Error)
	assert.Equal(t, "failed", rec.Status)
}

func TestFromConfigOrder(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Dir = t.TempDir()
	cfg.Hooks.SearchIndex.Enabled = true
	cfg.Hooks.NATS.Enabled = true
	cfg.Hooks.History.Enabled = true
	cfg.Hooks.Order = []string{NameHistory, NameSearchIndex}

	s, err := store.Open(store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	set, err := FromConfig(cfg, WithHistoryStore(s), WithPublisher(&fakePublisher{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = set.Close() })

	assert.Equal(t, []string{NameHistory, NameSearchIndex, NameLogCount, NameNATS}, set.Names())
}

func TestFromConfigDefaultsToLogCount(t *testing.T) {
	set, err := FromConfig(config.Default())
	require.NoError(t, err)
	assert.Equal(t, []string{NameLogCount}, set.Names())
	assert.NoError(t, set.Close())
}

func TestFromConfigOpensHistoryStore(t *testing.T) {
	cfg := config.Default()
	cfg.Hooks.History.Enabled = true
	cfg.Hooks.History.Path = filepath.Join(t.TempDir(), "history.db")

	set, err := FromConfig(cfg)
	require.NoError(t, err)
	require.NoError(t, set.Hooks[1].OnBuildComplete(context.Background(), sampleResult()))
	require.NoError(t, set.Close())
	assert.FileExists(t, cfg.Hooks.History.Path)
}
