package markdown

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	gmast "github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"

	"git.home.luguber.info/inful/contentbuilder/internal/hast"
)

// Class names on the elements the converter emits for math and code.
const (
	ClassMathInline  = "math-inline"
	ClassMathDisplay = "math-display"
	languagePrefix   = "language-"
	propMeta         = "data-meta"
)

// converter turns a goldmark document into a hast tree. It only maps syntax;
// every rewrite happens in tree steps.
type converter struct {
	source []byte
}

func toHAST(doc gmast.Node, source []byte) *hast.Root {
	c := &converter{source: source}
	root := &hast.Root{}
	root.Children = c.blocks(doc)
	return root
}

// blocks converts block children, separating them with newlines.
func (c *converter) blocks(n gmast.Node) []hast.Node {
	var out []hast.Node
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		converted := c.node(child)
		if len(converted) == 0 {
			continue
		}
		if len(out) > 0 {
			out = append(out, hast.NewText("\n"))
		}
		out = append(out, converted...)
	}
	return out
}

func (c *converter) inlines(n gmast.Node) []hast.Node {
	var out []hast.Node
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		out = append(out, c.node(child)...)
	}
	return out
}

func (c *converter) node(n gmast.Node) []hast.Node {
	switch node := n.(type) {
	case *gmast.Paragraph:
		return one(c.element("p", n, c.inlines(n)...))
	case *gmast.TextBlock:
		return c.inlines(n)
	case *gmast.Heading:
		return one(c.element("h"+strconv.Itoa(node.Level), n, c.inlines(n)...))
	case *gmast.ThematicBreak:
		return one(c.element("hr", n))
	case *gmast.Blockquote:
		return one(c.element("blockquote", n, c.wrapBlocks(n)...))
	case *gmast.List:
		return one(c.list(node))
	case *gmast.ListItem:
		return one(c.listItem(node))
	case *gmast.FencedCodeBlock:
		var info string
		if node.Info != nil {
			info = string(node.Info.Segment.Value(c.source))
		}
		return one(c.codeBlock(node, info))
	case *gmast.CodeBlock:
		return one(c.codeBlock(node, ""))
	case *gmast.HTMLBlock:
		var buf bytes.Buffer
		c.writeLines(&buf, node)
		if node.HasClosure() {
			buf.Write(node.ClosureLine.Value(c.source))
		}
		return one(&hast.Raw{Value: strings.TrimRight(buf.String(), "\n")})
	case *MathBlock:
		div := hast.NewElement("div", nil, hast.NewText(node.Value(c.source)))
		div.AddClass("math", ClassMathDisplay)
		return one(div)
	case *MathInline:
		span := hast.NewElement("span", nil, hast.NewText(node.Value))
		span.AddClass("math", ClassMathInline)
		return one(span)
	case *gmast.Text:
		return c.text(node)
	case *gmast.String:
		if node.IsCode() || node.IsRaw() {
			return one(hast.NewText(string(node.Value)))
		}
		return one(hast.NewText(unescape(node.Value)))
	case *gmast.CodeSpan:
		var buf bytes.Buffer
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			switch t := child.(type) {
			case *gmast.Text:
				buf.Write(t.Segment.Value(c.source))
			case *gmast.String:
				buf.Write(t.Value)
			}
		}
		return one(c.element("code", n, hast.NewText(buf.String())))
	case *gmast.Emphasis:
		tag := "em"
		if node.Level == 2 {
			tag = "strong"
		}
		return one(c.element(tag, n, c.inlines(n)...))
	case *gmast.Link:
		a := c.element("a", n, c.inlines(n)...)
		a.Set("href", destination(node.Destination))
		if len(node.Title) > 0 {
			a.Set("title", unescape(node.Title))
		}
		return one(a)
	case *gmast.Image:
		img := c.element("img", n)
		img.Set("src", destination(node.Destination))
		img.Set("alt", hast.TextContent(&hast.Root{Children: c.inlines(n)}))
		if len(node.Title) > 0 {
			img.Set("title", unescape(node.Title))
		}
		return one(img)
	case *gmast.AutoLink:
		url := node.URL(c.source)
		href := string(util.URLEscape(url, false))
		if node.AutoLinkType == gmast.AutoLinkEmail && !bytes.HasPrefix(bytes.ToLower(url), []byte("mailto:")) {
			href = "mailto:" + href
		}
		a := c.element("a", n, hast.NewText(string(node.Label(c.source))))
		a.Set("href", href)
		return one(a)
	case *gmast.RawHTML:
		var buf bytes.Buffer
		for i := 0; i < node.Segments.Len(); i++ {
			seg := node.Segments.At(i)
			buf.Write(seg.Value(c.source))
		}
		return one(&hast.Raw{Value: buf.String()})
	case *east.Strikethrough:
		return one(c.element("del", n, c.inlines(n)...))
	case *east.TaskCheckBox:
		input := hast.NewElement("input", hast.Properties{
			{Name: "type", Value: "checkbox"},
			{Name: "disabled", Value: ""},
		})
		if node.IsChecked {
			input.Set("checked", "")
		}
		return []hast.Node{input, hast.NewText(" ")}
	case *east.Table:
		return one(c.table(node))
	default:
		if n.Type() == gmast.TypeBlock {
			return c.blocks(n)
		}
		return c.inlines(n)
	}
}

func (c *converter) text(node *gmast.Text) []hast.Node {
	var value string
	if node.IsRaw() {
		value = string(node.Segment.Value(c.source))
	} else {
		value = unescape(node.Segment.Value(c.source))
	}
	switch {
	case node.HardLineBreak():
		return []hast.Node{hast.NewText(value), hast.NewElement("br", nil), hast.NewText("\n")}
	case node.SoftLineBreak():
		return one(hast.NewText(value + "\n"))
	default:
		return one(hast.NewText(value))
	}
}

// wrapBlocks converts block children with a leading and trailing newline.
func (c *converter) wrapBlocks(n gmast.Node) []hast.Node {
	children := c.blocks(n)
	if len(children) == 0 {
		return nil
	}
	out := append([]hast.Node{hast.NewText("\n")}, children...)
	return append(out, hast.NewText("\n"))
}

func (c *converter) list(n *gmast.List) *hast.Element {
	tag := "ul"
	if n.IsOrdered() {
		tag = "ol"
	}
	list := c.element(tag, n, c.wrapBlocks(n)...)
	if n.IsOrdered() && n.Start != 1 {
		list.Set("start", strconv.Itoa(n.Start))
	}
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if child.FirstChild() != nil {
			if _, ok := child.FirstChild().FirstChild().(*east.TaskCheckBox); ok {
				list.AddClass("contains-task-list")
				break
			}
		}
	}
	return list
}

func (c *converter) listItem(n *gmast.ListItem) *hast.Element {
	li := c.element("li", n)
	first := n.FirstChild()
	tight := first != nil && first.Kind() == gmast.KindTextBlock
	if tight {
		li.Children = c.blocks(n)
	} else {
		li.Children = c.wrapBlocks(n)
	}
	if first != nil {
		if _, ok := first.FirstChild().(*east.TaskCheckBox); ok {
			li.AddClass("task-list-item")
		}
	}
	return li
}

// codeBlock emits pre > code. The language becomes a language-* class and the
// rest of the info string is kept in data-meta for the highlight step.
func (c *converter) codeBlock(n gmast.Node, info string) *hast.Element {
	var buf bytes.Buffer
	c.writeLines(&buf, n)
	code := hast.NewElement("code", nil, hast.NewText(buf.String()))
	lang, meta := splitInfo(info)
	if lang != "" {
		code.AddClass(languagePrefix + lang)
	}
	if meta != "" {
		code.Set(propMeta, meta)
	}
	return hast.NewElement("pre", nil, code)
}

func splitInfo(info string) (lang, meta string) {
	info = strings.TrimSpace(info)
	end := strings.IndexAny(info, " \t{")
	if end < 0 {
		return info, ""
	}
	return info[:end], strings.TrimSpace(info[end:])
}

func (c *converter) table(n *east.Table) *hast.Element {
	table := c.element("table", n)
	var body []hast.Node
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch row := child.(type) {
		case *east.TableHeader:
			tr := hast.NewElement("tr", nil, c.cells(row, "th")...)
			table.Append(hast.NewText("\n"), hast.NewElement("thead", nil, hast.NewText("\n"), tr, hast.NewText("\n")))
		case *east.TableRow:
			body = append(body, hast.NewText("\n"), hast.NewElement("tr", nil, c.cells(row, "td")...))
		}
	}
	if len(body) > 0 {
		body = append(body, hast.NewText("\n"))
		table.Append(hast.NewText("\n"), hast.NewElement("tbody", nil, body...))
	}
	table.Append(hast.NewText("\n"))
	return table
}

func (c *converter) cells(row gmast.Node, tag string) []hast.Node {
	var out []hast.Node
	for child := row.FirstChild(); child != nil; child = child.NextSibling() {
		cell := c.element(tag, child, c.inlines(child)...)
		if tc, ok := child.(*east.TableCell); ok && tc.Alignment != east.AlignNone {
			cell.Set("align", tc.Alignment.String())
		}
		out = append(out, hast.NewText("\n"), cell)
	}
	return append(out, hast.NewText("\n"))
}

func (c *converter) writeLines(buf *bytes.Buffer, n gmast.Node) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(c.source))
	}
}

// element creates tag carrying the node's parsed attributes ({#id .class}).
func (c *converter) element(tag string, n gmast.Node, children ...hast.Node) *hast.Element {
	e := hast.NewElement(tag, nil, children...)
	for _, attr := range n.Attributes() {
		name := string(attr.Name)
		var value string
		switch v := attr.Value.(type) {
		case []byte:
			value = string(v)
		case string:
			value = v
		default:
			value = fmt.Sprint(v)
		}
		if name == "class" {
			e.AddClass(strings.Fields(value)...)
			continue
		}
		e.Set(name, value)
	}
	return e
}

func destination(dest []byte) string {
	if html.IsDangerousURL(dest) {
		return ""
	}
	return string(util.URLEscape(dest, true))
}

func unescape(v []byte) string {
	v = util.UnescapePunctuations(v)
	v = util.ResolveNumericReferences(v)
	v = util.ResolveEntityNames(v)
	return string(v)
}

func one(n hast.Node) []hast.Node {
	return []hast.Node{n}
}
