package markdown

import (
	"strconv"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"

	"git.home.luguber.info/inful/contentbuilder/internal/hast"
)

var headingTags = []string{"h1", "h2", "h3", "h4", "h5", "h6"}

// Heading is an entry of the table of contents.
type Heading struct {
	Depth int    `json:"depth"`
	ID    string `json:"id,omitempty"`
	Text  string `json:"text"`
}

// Headings lists the headings of a rendered tree in document order.
func Headings(tree *hast.Root) []Heading {
	var out []Heading
	for _, h := range headingElements(tree) {
		id, _ := h.Get("id")
		depth, _ := strconv.Atoi(h.Tag[1:])
		out = append(out, Heading{Depth: depth, ID: id, Text: hast.TextContent(h)})
	}
	return out
}

func headingElements(tree *hast.Root) []*hast.Element {
	return hast.Elements(tree, func(e *hast.Element) bool {
		return hast.IsElement(e, headingTags...)
	})
}

// headingIDs gives every heading a unique id. Ids written as {#id} are kept;
// the rest come from goldmark's generator, which suffixes repeats with -1, -2.
type headingIDs struct{}

func (headingIDs) Name() string { return StepHeadingIDs }

func (headingIDs) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithAttribute())
}

func (headingIDs) Transform(tree *hast.Root, doc *Document) error {
	headings := headingElements(tree)
	ids := doc.IDs()
	explicit := make(map[*hast.Element]bool)
	taken := make(map[string]bool)
	for _, h := range headings {
		id, ok := h.Get("id")
		if !ok || id == "" || taken[id] {
			continue
		}
		taken[id] = true
		explicit[h] = true
		ids.Put([]byte(id))
	}
	for _, h := range headings {
		if explicit[h] {
			continue
		}
		text := hast.TextContent(h)
		if id, ok := h.Get("id"); ok && id != "" {
			text = id
		}
		h.Set("id", string(ids.Generate([]byte(text), gmast.KindHeading)))
	}
	return nil
}

// headingLinks wraps the content of each heading in a link to itself.
type headingLinks struct {
	class string
}

func (headingLinks) Name() string { return StepHeadingLinks }

func (s headingLinks) Transform(tree *hast.Root, _ *Document) error {
	for _, h := range headingElements(tree) {
		id, ok := h.Get("id")
		if !ok || id == "" || s.wrapped(h, id) {
			continue
		}
		a := hast.NewElement("a", hast.Properties{{Name: "href", Value: "#" + id}}, h.Children...)
		a.AddClass(s.class)
		h.Children = []hast.Node{a}
	}
	return nil
}

func (s headingLinks) wrapped(h *hast.Element, id string) bool {
	if len(h.Children) != 1 {
		return false
	}
	a, ok := h.Children[0].(*hast.Element)
	if !ok || a.Tag != "a" {
		return false
	}
	href, _ := a.Get("href")
	return href == "#"+id
}
