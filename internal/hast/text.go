package hast

import "strings"

// TextContent concatenates the visible text below n. Raw nodes and MathML
// annotations (the TeX source kept next to rendered math) are skipped.
func TextContent(n Node) string {
	var b strings.Builder
	Walk(n, Visit{
		Element: func(e *Element, _ Parent, _ int) WalkStatus {
			if e.Tag == "annotation" || e.Tag == "annotation-xml" {
				return WalkSkipChildren
			}
			return WalkContinue
		},
		Text: func(t *Text, _ Parent, _ int) WalkStatus {
			b.WriteString(t.Value)
			return WalkContinue
		},
	})
	return b.String()
}
