package markdown

import (
	"fmt"
	"slices"
	"strings"

	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
)

// Step names in canonical order.
const (
	StepGFM          = "gfm"
	StepMathSyntax   = "math-syntax"
	StepMathRender   = "math-render"
	StepHeadingIDs   = "heading-ids"
	StepHeadingLinks = "heading-links"
	StepHighlight    = "highlight"
)

var canonicalOrder = []string{
	StepGFM,
	StepMathSyntax,
	StepMathRender,
	StepHeadingIDs,
	StepHeadingLinks,
	StepHighlight,
}

// requires lists the step each step depends on.
var requires = map[string]string{
	StepMathRender:   StepMathSyntax,
	StepHeadingLinks: StepHeadingIDs,
}

// DefaultSteps returns the full chain in canonical order.
func DefaultSteps() []string {
	return slices.Clone(canonicalOrder)
}

// ValidateSteps checks a configured step list: names must be known, unique,
// in canonical order, and every dependency must be present.
func ValidateSteps(names []string) error {
	last := -1
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		idx := slices.Index(canonicalOrder, name)
		if idx < 0 {
			return stepError(fmt.Sprintf("unknown transform step %q (known: %s)", name, strings.Join(canonicalOrder, ", ")))
		}
		if seen[name] {
			return stepError(fmt.Sprintf("transform step %q listed twice", name))
		}
		if idx < last {
			return stepError(fmt.Sprintf("transform step %q must come before %q", name, canonicalOrder[last]))
		}
		seen[name] = true
		last = idx
	}
	for _, name := range names {
		if dep, ok := requires[name]; ok && !seen[dep] {
			return stepError(fmt.Sprintf("transform step %q requires %q", name, dep))
		}
	}
	return nil
}

func stepError(msg string) error {
	return errors.ConfigError(msg).WithContext(errors.ContextField, "markdown.steps").Build()
}
