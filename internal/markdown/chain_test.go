package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
)

func render(t *testing.T, opts Options, body string) *Output {
	t.Helper()
	chain, err := New(opts)
	require.NoError(t, err)
	out, err := chain.Render("blog/post.md", []byte(body))
	require.NoError(t, err)
	return out
}

func parseHTML(t *testing.T, fragment string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(fragment))
	require.NoError(t, err)
	return doc
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func classes(n *html.Node) []string {
	return strings.Fields(attr(n, "class"))
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range classes(n) {
		if c == class {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func TestDefaultChainOrder(t *testing.T) {
	chain, err := New(Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"gfm", "math-syntax", "math-render", "heading-ids", "heading-links", "highlight"}, chain.Steps())
}

func TestHighlightLines(t *testing.T) {
	body := "```go {3}\nx := 1\n\nreturn x\n```\n"
	out := render(t, Options{}, body)

	doc := parseHTML(t, out.HTML)
	lines := findAll(doc, func(n *html.Node) bool { return n.Data == "span" && hasClass(n, "line") })
	require.Len(t, lines, 3)

	assert.Equal(t, []string{"line"}, classes(lines[0]))
	assert.Equal(t, "x := 1", textOf(lines[0]))

	require.NotNil(t, lines[1].FirstChild)
	assert.Equal(t, html.TextNode, lines[1].FirstChild.Type)
	assert.Equal(t, " ", lines[1].FirstChild.Data)
	assert.Nil(t, lines[1].FirstChild.NextSibling)

	assert.Equal(t, []string{"line", "line--highlighted"}, classes(lines[2]))
	assert.Equal(t, "return x", textOf(lines[2]))
}

func TestHighlightEveryLineNonEmpty(t *testing.T) {
	body := "```python\n\ndef f():\n\n    return 1\n\n```\n"
	out := render(t, Options{}, body)

	lines := findAll(parseHTML(t, out.HTML), func(n *html.Node) bool { return hasClass(n, "line") })
	require.Len(t, lines, 5)
	for _, line := range lines {
		assert.NotEmpty(t, textOf(line))
		assert.Contains(t, classes(line), "line")
	}
}

func TestHighlightCustomClassesAndTitle(t *testing.T) {
	opts := Options{LineClass: "ln", HighlightClass: "ln-hl"}
	body := "```js title=\"app.js\" {1} showLineNumbers\nconst a = 1\n```\n"
	out := render(t, opts, body)

	doc := parseHTML(t, out.HTML)
	captions := findAll(doc, func(n *html.Node) bool { return n.Data == "figcaption" })
	require.Len(t, captions, 1)
	assert.Equal(t, "app.js", textOf(captions[0]))

	lines := findAll(doc, func(n *html.Node) bool { return hasClass(n, "ln") })
	require.Len(t, lines, 1)
	assert.Equal(t, []string{"ln", "ln-hl"}, classes(lines[0]))

	codes := findAll(doc, func(n *html.Node) bool { return n.Data == "code" })
	require.Len(t, codes, 1)
	assert.Equal(t, "js", attr(codes[0], "data-language"))
	assert.Equal(t, "github-dark", attr(codes[0], "data-theme"))
}

func TestHighlightUnknownLanguageFallsBack(t *testing.T) {
	out := render(t, Options{}, "```nosuchlanguage\nplain <text>\n```\n")

	lines := findAll(parseHTML(t, out.HTML), func(n *html.Node) bool { return hasClass(n, "line") })
	require.Len(t, lines, 1)
	assert.Equal(t, "plain <text>", textOf(lines[0]))
}

func TestHighlightColoursTokens(t *testing.T) {
	out := render(t, Options{}, "```go\nfunc main() {}\n```\n")
	assert.Contains(t, out.HTML, `style="color:#ff7b72"`)
	assert.Contains(t, out.HTML, `background-color:#0d1117`)
}

func TestHighlightInvalidMeta(t *testing.T) {
	chain, err := New(Options{})
	require.NoError(t, err)

	_, err = chain.Render("blog/post.md", []byte("```go {3-1}\nx\n```\n"))
	require.Error(t, err)
	classified, ok := errors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryTransform, classified.Category())
	step, _ := classified.Context().GetString(errors.ContextStep)
	assert.Equal(t, StepHighlight, step)
}

func TestUnknownThemeIsConfigError(t *testing.T) {
	_, err := New(Options{Theme: "no-such-theme"})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestHeadingIDsAndLinks(t *testing.T) {
	body := "# Hello World\n\n## Hello World\n\n## Custom {#my-id}\n\n### Hello World\n"
	out := render(t, Options{}, body)

	doc := parseHTML(t, out.HTML)
	headings := findAll(doc, func(n *html.Node) bool { return len(n.Data) == 2 && n.Data[0] == 'h' && n.Data[1] >= '1' && n.Data[1] <= '6' })
	require.Len(t, headings, 4)

	wantIDs := []string{"hello-world", "hello-world-1", "my-id", "hello-world-2"}
	seen := map[string]bool{}
	for i, h := range headings {
		id := attr(h, "id")
		assert.Equal(t, wantIDs[i], id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true

		anchors := findAll(h, func(n *html.Node) bool { return n.Data == "a" })
		require.Len(t, anchors, 1)
		assert.Equal(t, "#"+id, attr(anchors[0], "href"))
		assert.Equal(t, []string{"anchor"}, classes(anchors[0]))
	}
	assert.Equal(t, "Custom", textOf(headings[2]))

	require.Len(t, out.Headings, 4)
	assert.Equal(t, Heading{Depth: 2, ID: "my-id", Text: "Custom"}, out.Headings[2])
}

func TestExplicitIDWinsOverGenerated(t *testing.T) {
	body := "## Setup\n\n## Other {#setup}\n"
	out := render(t, Options{}, body)

	require.Len(t, out.Headings, 2)
	assert.Equal(t, "setup-1", out.Headings[0].ID)
	assert.Equal(t, "setup", out.Headings[1].ID)
}

func TestHeadingTextIgnoresMathSource(t *testing.T) {
	out := render(t, Options{}, "## Energy $E=mc^2$\n")

	require.Len(t, out.Headings, 1)
	h := out.Headings[0]
	assert.True(t, strings.HasPrefix(h.Text, "Energy E"))
	assert.NotContains(t, h.Text, "^")
	assert.NotContains(t, h.Text, "E=mc2E")
	assert.True(t, strings.HasPrefix(h.ID, "energy-"))
	assert.Equal(t, 1, strings.Count(h.ID, "emc"))
}

func TestMathRendering(t *testing.T) {
	body := "Euler: $e^{i\\pi}+1=0$ costs $5 and $10.\n\n$$\n\\frac{a}{b}\n$$\n"
	out := render(t, Options{}, body)

	doc := parseHTML(t, out.HTML)
	maths := findAll(doc, func(n *html.Node) bool { return n.Data == "math" })
	require.Len(t, maths, 2)
	assert.Equal(t, "inline", attr(maths[0], "display"))
	assert.Equal(t, "block", attr(maths[1], "display"))
	assert.Contains(t, out.HTML, "costs $5 and $10.")
}

func TestMathSyntaxWithoutRender(t *testing.T) {
	out := render(t, Options{Steps: []string{StepGFM, StepMathSyntax}}, "Inline $a_1$ math.\n")
	assert.Contains(t, out.HTML, `<span class="math math-inline">a_1</span>`)
}

func TestMathErrorIsTransformError(t *testing.T) {
	chain, err := New(Options{})
	require.NoError(t, err)

	_, err = chain.Render("blog/broken.md", []byte("Broken $\\frac{1}$ here.\n"))
	require.Error(t, err)

	classified, ok := errors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryTransform, classified.Category())
	path, _ := classified.Context().GetString(errors.ContextPath)
	step, _ := classified.Context().GetString(errors.ContextStep)
	assert.Equal(t, "blog/broken.md", path)
	assert.Equal(t, StepMathRender, step)
	assert.Contains(t, err.Error(), `\frac`)
}

func TestGFMExtensions(t *testing.T) {
	body := "| a | b |\n|:--|--:|\n| 1 | 2 |\n\n~~gone~~\n\n- [x] done\n- [ ] todo\n\nhttps://example.com\n"
	out := render(t, Options{}, body)

	doc := parseHTML(t, out.HTML)
	assert.Len(t, findAll(doc, func(n *html.Node) bool { return n.Data == "table" }), 1)
	assert.Len(t, findAll(doc, func(n *html.Node) bool { return n.Data == "del" }), 1)
	boxes := findAll(doc, func(n *html.Node) bool { return n.Data == "input" && attr(n, "type") == "checkbox" })
	assert.Len(t, boxes, 2)
	links := findAll(doc, func(n *html.Node) bool { return n.Data == "a" && attr(n, "href") == "https://example.com" })
	assert.Len(t, links, 1)
	cells := findAll(doc, func(n *html.Node) bool { return n.Data == "th" })
	require.Len(t, cells, 2)
	assert.Equal(t, "left", attr(cells[0], "align"))
}

func TestWithoutGFMTablesStayText(t *testing.T) {
	out := render(t, Options{Steps: []string{}}, "| a |\n|---|\n| 1 |\n")
	assert.NotContains(t, out.HTML, "<table")
}

func TestRawHTMLPassesThrough(t *testing.T) {
	body := "<Callout type=\"info\">\n\nHello *there*\n\n</Callout>\n"
	out := render(t, Options{}, body)
	assert.Contains(t, out.HTML, `<Callout type="info">`)
	assert.Contains(t, out.HTML, `<em>there</em>`)
}

func TestRenderIsDeterministic(t *testing.T) {
	body := "# T\n\nText with $x$.\n\n```go {1}\npackage main\n\n```\n"
	first := render(t, Options{}, body)
	second := render(t, Options{}, body)
	assert.Equal(t, first.HTML, second.HTML)
}

func TestSignatureTracksOptions(t *testing.T) {
	a, err := New(Options{})
	require.NoError(t, err)
	b, err := New(Options{})
	require.NoError(t, err)
	c, err := New(Options{HighlightClass: "hl"})
	require.NoError(t, err)

	assert.Equal(t, a.Signature(), b.Signature())
	assert.NotEqual(t, a.Signature(), c.Signature())
}

func TestValidateSteps(t *testing.T) {
	tests := []struct {
		name  string
		steps []string
		want  string
	}{
		{"unknown", []string{"gfm", "emoji"}, "unknown transform step"},
		{"duplicate", []string{"gfm", "gfm"}, "listed twice"},
		{"order", []string{"highlight", "gfm"}, "must come before"},
		{"dependency", []string{"math-render"}, `requires "math-syntax"`},
		{"links need ids", []string{"heading-links"}, `requires "heading-ids"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSteps(tt.steps)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
		})
	}

	require.NoError(t, ValidateSteps(DefaultSteps()))
	require.NoError(t, ValidateSteps([]string{StepGFM, StepHighlight}))
}

func TestParseFenceMeta(t *testing.T) {
	meta, err := parseFenceMeta(`{1,3-4} title="main.go" showLineNumbers`)
	require.NoError(t, err)
	assert.Equal(t, "main.go", meta.title)
	assert.True(t, meta.lineNumbers)
	for n, want := range map[int]bool{1: true, 2: false, 3: true, 4: true, 5: false} {
		assert.Equal(t, want, meta.highlighted(n), "line %d", n)
	}

	for _, bad := range []string{"{1", "{a}", "{0}", `title=main`, `title="x`} {
		_, err := parseFenceMeta(bad)
		assert.Error(t, err, bad)
	}
}
