package frontmatter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYAML(t *testing.T) {
	src := "---\ntitle: Hello\npublishedDate: 2024-03-01\ntags: [go, blog]\ncount: 3\nseries:\n  title: Intro\n  order: 1\n---\n# Body\n"
	doc, err := Parse([]byte(src))
	require.NoError(t, err)

	assert.Equal(t, FormatYAML, doc.Format)
	assert.Equal(t, "Hello", doc.Fields["title"])
	assert.Equal(t, "2024-03-01", doc.Fields["publishedDate"])
	assert.Equal(t, []any{"go", "blog"}, doc.Fields["tags"])
	assert.Equal(t, int64(3), doc.Fields["count"])
	assert.Equal(t, map[string]any{"title": "Intro", "order": int64(1)}, doc.Fields["series"])
	assert.Equal(t, "# Body\n", string(doc.Body))
}

func TestParseTOML(t *testing.T) {
	src := "+++\ntitle = \"Hello\"\npublishedDate = 2024-03-01T10:30:00Z\n+++\nbody\n"
	doc, err := Parse([]byte(src))
	require.NoError(t, err)

	assert.Equal(t, FormatTOML, doc.Format)
	assert.Equal(t, "Hello", doc.Fields["title"])
	assert.Equal(t, "2024-03-01T10:30:00Z", doc.Fields["publishedDate"])
	assert.Equal(t, "body\n", string(doc.Body))
}

func TestParseJSON(t *testing.T) {
	src := ";;;\n{\"title\": \"Hello\", \"draft\": true}\n;;;\nbody\n"
	doc, err := Parse([]byte(src))
	require.NoError(t, err)

	assert.Equal(t, FormatJSON, doc.Format)
	assert.Equal(t, true, doc.Fields["draft"])
	assert.Equal(t, "body\n", string(doc.Body))
}

func TestParseWithoutFrontmatter(t *testing.T) {
	doc, err := Parse([]byte("# Just markdown\n"))
	require.NoError(t, err)
	assert.Equal(t, FormatNone, doc.Format)
	assert.Empty(t, doc.Fields)
	assert.Equal(t, "# Just markdown\n", string(doc.Body))
}

func TestParseEmptyFrontmatter(t *testing.T) {
	doc, err := Parse([]byte("---\n---\nbody\n"))
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, doc.Format)
	assert.Empty(t, doc.Fields)
	assert.Equal(t, "body\n", string(doc.Body))
}

func TestParseMissingClosingDelimiter(t *testing.T) {
	_, err := Parse([]byte("---\ntitle: Hello\n# no close\n"))
	require.ErrorIs(t, err, ErrMissingClosingDelimiter)
}

func TestParseMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("---\ntitle: [unclosed\n---\nbody\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode yaml frontmatter")
}

func TestRenderRoundTrip(t *testing.T) {
	fields := map[string]any{
		"title":         "Hello: world",
		"tags":          []string{"go"},
		"publishedDate": "2024-03-01",
		"draft":         false,
	}
	out, err := Render(fields, []byte("Body\n"))
	require.NoError(t, err)
	assert.Equal(t, "---\ndraft: false\npublishedDate: \"2024-03-01\"\ntags: [go]\ntitle: 'Hello: world'\n---\n\nBody\n", string(out))

	doc, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, "Hello: world", doc.Fields["title"])
	assert.Equal(t, "2024-03-01", doc.Fields["publishedDate"])
	assert.Equal(t, "\nBody\n", string(doc.Body))
}

func TestSerializeYAMLRejectsUnknownTypes(t *testing.T) {
	_, err := SerializeYAML(map[string]any{"ch": make(chan int)})
	require.Error(t, err)
}
