// Package markdown renders document bodies through an ordered chain of
// transform steps. Syntax steps extend the goldmark grammar; tree steps
// rewrite the hast tree the parsed document is converted into. Every body
// goes through the same steps in the same order.
package markdown

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuilder/internal/hast"
)

// Options configures a Chain. Empty strings take the defaults; a nil Steps
// selects the full chain.
type Options struct {
	Steps            []string
	Theme            string
	LineClass        string
	HighlightClass   string
	HeadingLinkClass string
	// StepObserver, when set, receives the duration of every tree step run.
	StepObserver func(step string, elapsed time.Duration)
}

// Defaults for Options.
const (
	DefaultTheme            = "github-dark"
	DefaultLineClass        = "line"
	DefaultHighlightClass   = "line--highlighted"
	DefaultHeadingLinkClass = "anchor"
)

func (o Options) withDefaults() Options {
	if o.Steps == nil {
		o.Steps = DefaultSteps()
	}
	if o.Theme == "" {
		o.Theme = DefaultTheme
	}
	if o.LineClass == "" {
		o.LineClass = DefaultLineClass
	}
	if o.HighlightClass == "" {
		o.HighlightClass = DefaultHighlightClass
	}
	if o.HeadingLinkClass == "" {
		o.HeadingLinkClass = DefaultHeadingLinkClass
	}
	return o
}

// Step is one named stage of the chain.
type Step interface {
	Name() string
}

// SyntaxExtender is a step that extends the Markdown grammar.
type SyntaxExtender interface {
	Step
	goldmark.Extender
}

// TreeTransformer is a step that rewrites a document tree in place.
type TreeTransformer interface {
	Step
	Transform(tree *hast.Root, doc *Document) error
}

// Document is the state of one chain run. Steps must not keep it.
type Document struct {
	Path string
	ids  parser.IDs
}

// IDs returns the id registry shared by the steps of this run.
func (d *Document) IDs() parser.IDs {
	if d.ids == nil {
		d.ids = parser.NewContext().IDs()
	}
	return d.ids
}

// Output is a rendered body.
type Output struct {
	HTML     string
	Tree     *hast.Root
	Headings []Heading
	Links    []Link
}

// Chain is an immutable, ordered list of steps. It is safe for concurrent use.
type Chain struct {
	steps     []Step
	md        goldmark.Markdown
	signature string
	observe   func(string, time.Duration)
}

// New builds the chain described by opts.
func New(opts Options) (*Chain, error) {
	opts = opts.withDefaults()
	if err := ValidateSteps(opts.Steps); err != nil {
		return nil, err
	}

	steps := make([]Step, 0, len(opts.Steps))
	for _, name := range opts.Steps {
		step, err := newStep(name, opts)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	md := goldmark.New()
	for _, step := range steps {
		if ext, ok := step.(SyntaxExtender); ok {
			ext.Extend(md)
		}
	}

	return &Chain{
		steps:     steps,
		md:        md,
		signature: signature(opts),
		observe:   opts.StepObserver,
	}, nil
}

func newStep(name string, opts Options) (Step, error) {
	switch name {
	case StepGFM:
		return gfm{}, nil
	case StepMathSyntax:
		return mathSyntax{}, nil
	case StepMathRender:
		return mathRender{}, nil
	case StepHeadingIDs:
		return headingIDs{}, nil
	case StepHeadingLinks:
		return headingLinks{class: opts.HeadingLinkClass}, nil
	case StepHighlight:
		return newHighlighter(opts.Theme, opts.LineClass, opts.HighlightClass)
	default:
		return nil, stepError(fmt.Sprintf("unknown transform step %q", name))
	}
}

// signature identifies everything that influences rendered output.
func signature(opts Options) string {
	h := sha256.New()
	fmt.Fprintf(h, "steps=%s\ntheme=%s\nline=%s\nhighlight=%s\nanchor=%s\n",
		strings.Join(opts.Steps, ","), opts.Theme, opts.LineClass, opts.HighlightClass, opts.HeadingLinkClass)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Steps returns the step names in execution order.
func (c *Chain) Steps() []string {
	names := make([]string, len(c.steps))
	for i, s := range c.steps {
		names[i] = s.Name()
	}
	return names
}

// Signature changes whenever the chain would render a body differently.
func (c *Chain) Signature() string {
	return c.signature
}

// Render runs body through the chain. A failing step aborts the run with a
// transform error naming path and step.
func (c *Chain) Render(path string, body []byte) (*Output, error) {
	root := c.md.Parser().Parse(text.NewReader(body))
	tree := toHAST(root, body)

	doc := &Document{Path: path}
	for _, step := range c.steps {
		t, ok := step.(TreeTransformer)
		if !ok {
			continue
		}
		start := time.Now()
		err := t.Transform(tree, doc)
		if c.observe != nil {
			c.observe(step.Name(), time.Since(start))
		}
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryTransform, step.Name()+" failed").
				WithPath(path).
				WithStep(step.Name()).
				Build()
		}
	}

	html, err := hast.String(tree)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryTransform, "render html failed").
			WithPath(path).
			Build()
	}
	return &Output{
		HTML:     html,
		Tree:     tree,
		Headings: Headings(tree),
		Links:    Links(tree),
	}, nil
}
