// Package hast is a typed HTML syntax tree. The markdown chain converts the
// parsed document into a hast tree, rewrites it step by step and renders the
// final tree to HTML.
//
// A Node is one of *Root, *Element, *Text or *Raw; the set is closed.
package hast

import (
	"slices"
	"strings"
)

// Node is a member of the tree. Implementations are limited to this package.
type Node interface {
	hastNode()
}

// Parent is a node that holds children.
type Parent interface {
	Node
	ChildNodes() []Node
	SetChildNodes(children []Node)
}

// Root is the top of a document tree.
type Root struct {
	Children []Node
}

// Element is an HTML (or MathML) element. Namespace is empty for HTML.
type Element struct {
	Tag        string
	Namespace  string
	Properties Properties
	Children   []Node
}

// Text is character data. Value is unescaped.
type Text struct {
	Value string
}

// Raw is markup copied verbatim from the source (inline HTML, JSX).
type Raw struct {
	Value string
}

func (*Root) hastNode()    {}
func (*Element) hastNode() {}
func (*Text) hastNode()    {}
func (*Raw) hastNode()     {}

// ChildNodes returns the root's children.
func (r *Root) ChildNodes() []Node { return r.Children }

// SetChildNodes replaces the root's children.
func (r *Root) SetChildNodes(c []Node) { r.Children = c }

// ChildNodes returns the element's children.
func (e *Element) ChildNodes() []Node { return e.Children }

// SetChildNodes replaces the element's children.
func (e *Element) SetChildNodes(c []Node) { e.Children = c }

// NewElement builds an element with the given children.
func NewElement(tag string, props Properties, children ...Node) *Element {
	return &Element{Tag: tag, Properties: props, Children: children}
}

// NewText builds a text node.
func NewText(value string) *Text {
	return &Text{Value: value}
}

// Append adds children to the element and returns it.
func (e *Element) Append(children ...Node) *Element {
	e.Children = append(e.Children, children...)
	return e
}

// Property is a single attribute. Order is preserved when rendering.
type Property struct {
	Name  string
	Value string
}

// Properties is the ordered attribute list of an element.
type Properties []Property

// Get returns the value of the named property.
func (p Properties) Get(name string) (string, bool) {
	for _, prop := range p {
		if prop.Name == name {
			return prop.Value, true
		}
	}
	return "", false
}

// Has reports whether the named property is present.
func (p Properties) Has(name string) bool {
	_, ok := p.Get(name)
	return ok
}

// Get returns the value of the named property.
func (e *Element) Get(name string) (string, bool) {
	return e.Properties.Get(name)
}

// Set replaces the named property or appends it.
func (e *Element) Set(name, value string) {
	for i := range e.Properties {
		if e.Properties[i].Name == name {
			e.Properties[i].Value = value
			return
		}
	}
	e.Properties = append(e.Properties, Property{Name: name, Value: value})
}

// Delete removes the named property.
func (e *Element) Delete(name string) {
	out := e.Properties[:0]
	for _, prop := range e.Properties {
		if prop.Name != name {
			out = append(out, prop)
		}
	}
	e.Properties = out
}

// Classes returns the element's class list.
func (e *Element) Classes() []string {
	v, _ := e.Get("class")
	return strings.Fields(v)
}

// HasClass reports whether class is in the class list.
func (e *Element) HasClass(class string) bool {
	return slices.Contains(e.Classes(), class)
}

// AddClass appends classes not already present, after the existing ones.
func (e *Element) AddClass(classes ...string) {
	list := e.Classes()
	for _, c := range classes {
		if c == "" || slices.Contains(list, c) {
			continue
		}
		list = append(list, c)
	}
	if len(list) > 0 {
		e.Set("class", strings.Join(list, " "))
	}
}
