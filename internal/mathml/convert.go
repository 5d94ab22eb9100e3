package mathml

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/wyatt915/treeblood"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"git.home.luguber.info/inful/contentbuilder/internal/hast"
)

// Namespace is the MathML namespace URI.
const Namespace = "http://www.w3.org/1998/Math/MathML"

// environments treeblood lays out as tables. Starred forms are accepted too.
var environments = map[string]bool{
	"matrix": true, "pmatrix": true, "bmatrix": true, "Bmatrix": true,
	"vmatrix": true, "Vmatrix": true, "array": true, "subarray": true,
	"align": true, "aligned": true, "cases": true,
}

var beginEnv = regexp.MustCompile(`\\begin\s*\{([^}]*)\}`)

// Convert renders tex and returns a <math> element. display selects block
// layout.
func Convert(tex string, display bool) (*hast.Element, error) {
	for _, m := range beginEnv.FindAllStringSubmatch(tex, -1) {
		name := strings.TrimSpace(m[1])
		if !environments[strings.TrimSuffix(name, "*")] {
			return nil, &Error{TeX: tex, Message: fmt.Sprintf("unknown environment %q", name)}
		}
	}

	markup, err := treeblood.TexToMML(tex, nil, display, false)
	if err != nil {
		return nil, &Error{TeX: tex, Message: summary(err)}
	}
	math, err := parse(markup)
	if err != nil {
		return nil, &Error{TeX: tex, Message: err.Error()}
	}
	if bad := hast.Elements(math, func(e *hast.Element) bool { return e.Tag == "merror" }); len(bad) > 0 {
		return nil, &Error{TeX: tex, Message: describe(bad[0])}
	}

	layout := "inline"
	if display {
		layout = "block"
	}
	math.Properties = hast.Properties{{Name: "xmlns", Value: Namespace}, {Name: "display", Value: layout}}
	return math, nil
}

// summary keeps the first line of a converter error; the rest is an HTML
// excerpt meant for a browser.
func summary(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, "<pre>"); i >= 0 {
		msg = msg[:i]
	}
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return strings.TrimSpace(msg)
}

func describe(e *hast.Element) string {
	what := strings.TrimSpace(hast.TextContent(e))
	command := isCommandName(what)
	if command {
		what = `\` + what
	}
	if title, _ := e.Get("title"); strings.TrimSpace(title) != "" {
		return what + ": " + strings.TrimSpace(title)
	}
	if command {
		return "unsupported command " + what
	}
	return "invalid math: " + what
}

func isCommandName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

func parse(markup string) (*hast.Element, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return nil, fmt.Errorf("parse MathML: %w", err)
	}
	for _, n := range nodes {
		if n.Type == html.ElementNode && n.Data == "math" {
			return element(n), nil
		}
	}
	return nil, fmt.Errorf("converter produced no <math> element")
}

// element copies n into hast. The converter writes attributes in map order,
// so they are sorted here to keep rendered output byte-identical across runs.
func element(n *html.Node) *hast.Element {
	e := &hast.Element{Tag: n.Data, Namespace: Namespace}

	values := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		if prev, ok := values[a.Key]; ok && a.Key == "style" {
			values[a.Key] = prev + ";" + a.Val
			continue
		}
		values[a.Key] = a.Val
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := values[name]
		if name == "style" {
			v = sortDeclarations(v)
		}
		e.Properties = append(e.Properties, hast.Property{Name: name, Value: v})
	}

	hasElements := false
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			hasElements = true
			break
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			e.Children = append(e.Children, element(c))
		case html.TextNode:
			// Indentation between elements.
			if hasElements && strings.TrimSpace(c.Data) == "" {
				continue
			}
			e.Children = append(e.Children, hast.NewText(c.Data))
		}
	}
	return e
}

func sortDeclarations(style string) string {
	var decls []string
	for _, d := range strings.Split(style, ";") {
		if d = strings.TrimSpace(d); d != "" {
			decls = append(decls, d)
		}
	}
	sort.Strings(decls)
	if len(decls) == 0 {
		return ""
	}
	return strings.Join(decls, ";") + ";"
}
