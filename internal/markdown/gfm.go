package markdown

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// gfm adds tables, strikethrough, task lists and autolinks.
type gfm struct{}

func (gfm) Name() string { return StepGFM }

func (gfm) Extend(m goldmark.Markdown) {
	extension.GFM.Extend(m)
}
