package markdown

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func extractLinks(t *testing.T, body string) []Link {
	t.Helper()
	chain, err := New(Options{})
	require.NoError(t, err)
	out, err := chain.Render("links.md", []byte(body))
	require.NoError(t, err)
	return out.Links
}

func TestLinks_InlineLink(t *testing.T) {
	links := extractLinks(t, "See [API](api.md) for details.")
	require.Len(t, links, 1)
	require.Equal(t, LinkKindInline, links[0].Kind)
	require.Equal(t, "api.md", links[0].Destination)
}

func TestLinks_ImageLink(t *testing.T) {
	links := extractLinks(t, "![Diagram](diagram.png)")
	require.Len(t, links, 1)
	require.Equal(t, LinkKindImage, links[0].Kind)
	require.Equal(t, "diagram.png", links[0].Destination)
}

func TestLinks_AutoLink(t *testing.T) {
	links := extractLinks(t, "<https://example.com/path>")
	require.Len(t, links, 1)
	require.Equal(t, "https://example.com/path", links[0].Destination)
}

func TestLinks_ReferenceLinkResolved(t *testing.T) {
	links := extractLinks(t, "See [API][ref].\n\n[ref]: api.md\n")
	require.Len(t, links, 1)
	require.Equal(t, "api.md", links[0].Destination)
}

func TestLinks_SkipsCodeAndHeadingAnchors(t *testing.T) {
	src := "" +
		"# Title\n" +
		"\n" +
		"Inline code: `[Link](./ignored-inline.md)`\n" +
		"\n" +
		"```\n" +
		"[Link](./ignored-fence.md)\n" +
		"```\n" +
		"\n" +
		"Real: [OK](./real.md)\n"

	links := extractLinks(t, src)
	require.Len(t, links, 1)
	require.Equal(t, "./real.md", links[0].Destination)
}
