package markdown

import (
	"git.home.luguber.info/inful/contentbuilder/internal/hast"
	"git.home.luguber.info/inful/contentbuilder/internal/mathml"
)

// mathRender replaces the TeX inside math spans and divs with MathML.
type mathRender struct{}

func (mathRender) Name() string { return StepMathRender }

func (mathRender) Transform(tree *hast.Root, _ *Document) error {
	var failure error
	hast.Walk(tree, hast.Visit{Element: func(e *hast.Element, _ hast.Parent, _ int) hast.WalkStatus {
		display := e.HasClass(ClassMathDisplay)
		if !display && !e.HasClass(ClassMathInline) {
			return hast.WalkContinue
		}
		math, err := mathml.Convert(hast.TextContent(e), display)
		if err != nil {
			failure = err
			return hast.WalkStop
		}
		e.Children = []hast.Node{math}
		return hast.WalkSkipChildren
	}})
	return failure
}
