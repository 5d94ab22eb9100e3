package output

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
	HTML  string `json:"html"`
}

func sampleRecords() []Record {
	return []Record{
		{Type: "Post", Slug: "blog/b", Data: doc{Slug: "blog/b", Title: "B", HTML: "<p>b</p>"}, Summary: map[string]string{"slug": "blog/b"}},
		{Type: "Post", Slug: "blog/a", Data: doc{Slug: "blog/a", Title: "A", HTML: "<p>a & b</p>"}, Summary: map[string]string{"slug": "blog/a"}},
		{Type: "Page", Slug: "pages/about", Data: doc{Slug: "pages/about", Title: "About"}, Summary: map[string]string{"slug": "pages/about"}},
	}
}

func readFile(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	return string(data)
}

func TestWriteLayout(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	manifest, err := w.Write(context.Background(), sampleRecords(), map[string]int{"Post": 2, "Page": 1})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Page/_index.json",
		"Page/pages/about.json",
		"Post/_index.json",
		"Post/blog/a.json",
		"Post/blog/b.json",
		"index.json",
	}, manifest.Files)
	assert.Equal(t, 6, manifest.Changed)

	assert.JSONEq(t, `{"Page":1,"Post":2}`, readFile(t, filepath.Join(dir, "index.json")))
	assert.JSONEq(t, `[{"slug":"blog/a"},{"slug":"blog/b"}]`, readFile(t, filepath.Join(dir, "Post", "_index.json")))

	a := readFile(t, filepath.Join(dir, "Post", "blog", "a.json"))
	assert.Contains(t, a, `"html": "<p>a & b</p>"`)
	assert.Equal(t, byte('\n'), a[len(a)-1])
}

func TestWriteIsByteIdenticalAndSkipsUnchanged(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	ctx := context.Background()
	counts := map[string]int{"Post": 2, "Page": 1}

	_, err := w.Write(ctx, sampleRecords(), counts)
	require.NoError(t, err)
	first := readFile(t, filepath.Join(dir, "Post", "_index.json"))

	manifest, err := w.Write(ctx, sampleRecords(), counts)
	require.NoError(t, err)
	assert.Zero(t, manifest.Changed)
	assert.Equal(t, first, readFile(t, filepath.Join(dir, "Post", "_index.json")))
}

func TestWriteEmptyTypeGetsIndex(t *testing.T) {
	dir := t.TempDir()
	_, err := NewWriter(dir).Write(context.Background(), nil, map[string]int{"Post": 0})
	require.NoError(t, err)
	assert.Equal(t, "[]\n", readFile(t, filepath.Join(dir, "Post", "_index.json")))
}

func TestWriteRemovesStaleFiles(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	w := NewWriter(dir, WithKeep("search-index.json"))

	_, err := w.Write(ctx, sampleRecords(), map[string]int{"Post": 2, "Page": 1})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "search-index.json"), []byte("[]"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o600))

	manifest, err := w.Write(ctx, sampleRecords()[:1], map[string]int{"Post": 1})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Post/blog/a.json", "Page/_index.json", "Page/pages/about.json"}, manifest.Removed)

	assert.NoDirExists(t, filepath.Join(dir, "Page"))
	assert.FileExists(t, filepath.Join(dir, "search-index.json"))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
}

func TestWriteWithoutCleanKeepsStaleFiles(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	_, err := NewWriter(dir).Write(ctx, sampleRecords(), map[string]int{"Post": 2, "Page": 1})
	require.NoError(t, err)

	manifest, err := NewWriter(dir, WithClean(false)).Write(ctx, nil, map[string]int{})
	require.NoError(t, err)
	assert.Empty(t, manifest.Removed)
	assert.FileExists(t, filepath.Join(dir, "Post", "blog", "a.json"))
}

func TestDocumentPath(t *testing.T) {
	tests := []struct {
		name    string
		docType string
		slug    string
		want    string
		wantErr bool
	}{
		{name: "nested", docType: "Post", slug: "blog/a", want: "Post/blog/a.json"},
		{name: "flat", docType: "Page", slug: "about", want: "Page/about.json"},
		{name: "escape", docType: "Post", slug: "../x", wantErr: true},
		{name: "absolute", docType: "Post", slug: "/x", wantErr: true},
		{name: "empty slug", docType: "Post", slug: "", wantErr: true},
		{name: "type with slash", docType: "a/b", slug: "x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DocumentPath(tt.docType, tt.slug)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDuplicateOutputFileIsRejected(t *testing.T) {
	recs := []Record{
		{Type: "Post", Slug: "a", Data: 1},
		{Type: "Post", Slug: "a", Data: 2},
	}
	_, err := NewWriter(t.TempDir()).Write(context.Background(), recs, nil)
	require.Error(t, err)
}
