package hast

// WalkStatus steers a traversal.
type WalkStatus int

const (
	// WalkContinue descends into children.
	WalkContinue WalkStatus = iota
	// WalkSkipChildren continues with the next sibling.
	WalkSkipChildren
	// WalkStop ends the traversal.
	WalkStop
)

// Visitor receives each node of a tree in document order. parent is nil for
// the starting node.
type Visitor interface {
	VisitElement(e *Element, parent Parent, index int) WalkStatus
	VisitText(t *Text, parent Parent, index int) WalkStatus
	VisitRaw(r *Raw, parent Parent, index int) WalkStatus
}

// Visit adapts optional callbacks to a Visitor. Nil callbacks continue.
type Visit struct {
	Element func(e *Element, parent Parent, index int) WalkStatus
	Text    func(t *Text, parent Parent, index int) WalkStatus
	Raw     func(r *Raw, parent Parent, index int) WalkStatus
}

func (v Visit) VisitElement(e *Element, parent Parent, index int) WalkStatus {
	if v.Element == nil {
		return WalkContinue
	}
	return v.Element(e, parent, index)
}

func (v Visit) VisitText(t *Text, parent Parent, index int) WalkStatus {
	if v.Text == nil {
		return WalkContinue
	}
	return v.Text(t, parent, index)
}

func (v Visit) VisitRaw(r *Raw, parent Parent, index int) WalkStatus {
	if v.Raw == nil {
		return WalkContinue
	}
	return v.Raw(r, parent, index)
}

// Walk traverses n depth-first. A visitor may replace the children of the
// node it is given; siblings are read after the visit returns.
func Walk(n Node, v Visitor) {
	walk(n, nil, 0, v)
}

func walk(n Node, parent Parent, index int, v Visitor) WalkStatus {
	status := WalkContinue
	switch node := n.(type) {
	case *Element:
		status = v.VisitElement(node, parent, index)
	case *Text:
		return v.VisitText(node, parent, index)
	case *Raw:
		return v.VisitRaw(node, parent, index)
	}
	if status != WalkContinue {
		if status == WalkSkipChildren {
			return WalkContinue
		}
		return status
	}
	p, ok := n.(Parent)
	if !ok {
		return WalkContinue
	}
	for i := 0; i < len(p.ChildNodes()); i++ {
		if walk(p.ChildNodes()[i], p, i, v) == WalkStop {
			return WalkStop
		}
	}
	return WalkContinue
}

// Elements returns every element below n for which match returns true, in
// document order.
func Elements(n Node, match func(*Element) bool) []*Element {
	var out []*Element
	Walk(n, Visit{Element: func(e *Element, _ Parent, _ int) WalkStatus {
		if match(e) {
			out = append(out, e)
		}
		return WalkContinue
	}})
	return out
}

// IsElement reports whether n is an element with one of the given tags.
func IsElement(n Node, tags ...string) bool {
	e, ok := n.(*Element)
	if !ok {
		return false
	}
	for _, t := range tags {
		if e.Tag == t {
			return true
		}
	}
	return len(tags) == 0
}
