package hast

import (
	"bytes"
	"io"

	"golang.org/x/net/html"
)

// Render writes n as HTML.
func Render(w io.Writer, n Node) error {
	doc := &html.Node{Type: html.DocumentNode}
	switch node := n.(type) {
	case *Root:
		for _, c := range node.Children {
			doc.AppendChild(toHTML(c))
		}
	default:
		doc.AppendChild(toHTML(n))
	}
	return html.Render(w, doc)
}

// String renders n as HTML.
func String(n Node) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func toHTML(n Node) *html.Node {
	switch node := n.(type) {
	case *Text:
		return &html.Node{Type: html.TextNode, Data: node.Value}
	case *Raw:
		return &html.Node{Type: html.RawNode, Data: node.Value}
	case *Root:
		out := &html.Node{Type: html.DocumentNode}
		for _, c := range node.Children {
			out.AppendChild(toHTML(c))
		}
		return out
	case *Element:
		out := &html.Node{Type: html.ElementNode, Data: node.Tag, Namespace: node.Namespace}
		for _, p := range node.Properties {
			out.Attr = append(out.Attr, html.Attribute{Key: p.Name, Val: p.Value})
		}
		for _, c := range node.Children {
			out.AppendChild(toHTML(c))
		}
		return out
	default:
		return &html.Node{Type: html.RawNode}
	}
}
