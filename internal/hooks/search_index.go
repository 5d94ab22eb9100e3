package hooks

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"git.home.luguber.info/inful/contentbuilder/internal/config"
	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuilder/internal/output"
	"git.home.luguber.info/inful/contentbuilder/internal/pipeline"
)

// SearchEntry is one document in the search index.
type SearchEntry struct {
	Slug        string   `json:"slug"`
	Type        string   `json:"type"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags"`
	Headings    []string `json:"headings"`
	Snippet     string   `json:"snippet"`
	Text        string   `json:"text"`
}

// SearchIndex writes a JSON search index with the plain text of every document.
type SearchIndex struct {
	path       string
	snippetLen int
}

// NewSearchIndex returns the search-index hook. A relative cfg.Path is
// resolved against outputDir.
func NewSearchIndex(outputDir string, cfg config.SearchIndexConfig) *SearchIndex {
	p := cfg.Path
	if p == "" {
		p = config.DefaultSearchIndexPath
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(outputDir, p)
	}
	n := cfg.SnippetLen
	if n <= 0 {
		n = config.DefaultSnippetLength
	}
	return &SearchIndex{path: p, snippetLen: n}
}

func (h *SearchIndex) Name() string { return NameSearchIndex }

// Path returns where the index is written.
func (h *SearchIndex) Path() string { return h.path }

func (h *SearchIndex) OnBuildComplete(_ context.Context, result *pipeline.Result) error {
	entries := make([]SearchEntry, 0, len(result.Documents))
	for _, d := range result.Documents {
		text, err := PlainText(d.Body.HTML)
		if err != nil {
			return errors.WrapError(err, errors.CategoryHook, "extract text").WithPath(d.SourcePath).Build()
		}
		headings := make([]string, 0, len(d.Headings))
		for _, hd := range d.Headings {
			headings = append(headings, hd.Text)
		}
		entries = append(entries, SearchEntry{
			Slug:        d.Slug,
			Type:        d.Type,
			URL:         d.Computed.URL,
			Title:       d.Title(),
			Description: d.String("description"),
			Tags:        d.Computed.TagSlugs,
			Headings:    headings,
			Snippet:     snippet(text, h.snippetLen),
			Text:        text,
		})
	}

	data, err := output.Encode(entries)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "encode search index").Build()
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0o750); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "create search index directory").WithPath(h.path).Build()
	}
	tmp := h.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "write search index").WithPath(tmp).Build()
	}
	if err := os.Rename(tmp, h.path); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "atomic rename search index").WithPath(h.path).Build()
	}
	return nil
}

// skipped elements contribute no searchable text.
var skipped = map[atom.Atom]bool{
	atom.Script:     true,
	atom.Style:      true,
	atom.Annotation: true,
	atom.Svg:        true,
	atom.Template:   true,
}

// blocks end a run of words.
var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Blockquote: true, atom.Pre: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Table: true, atom.Tr: true, atom.Td: true, atom.Th: true, atom.Br: true, atom.Hr: true,
	atom.Figure: true, atom.Figcaption: true, atom.Dd: true, atom.Dt: true, atom.Section: true, atom.Math: true,
}

// PlainText extracts the visible text of an HTML fragment with whitespace collapsed.
func PlainText(fragment string) (string, error) {
	if strings.TrimSpace(fragment) == "" {
		return "", nil
	}
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if skipped[n.DataAtom] {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blocks[n.DataAtom] {
			b.WriteByte(' ')
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return strings.Join(strings.Fields(b.String()), " "), nil
}

// snippet cuts text to at most n runes on a word boundary.
func snippet(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:n])
	if runes[n] != ' ' {
		if i := strings.LastIndexByte(cut, ' '); i > 0 {
			cut = cut[:i]
		}
	}
	return cut + "…"
}
