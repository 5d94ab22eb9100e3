package markdown

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuilder/internal/hast"
)

// highlighter renders code blocks as pre > code > span.line with inline
// colours from a fixed chroma style.
//
// Every line is a span with the line class. An empty line holds a single
// space so it keeps its height in grid layouts and stays selectable. Lines
// named in the fence meta ({1,3-4}) get the highlight class appended after
// the line class.
type highlighter struct {
	theme          string
	lineClass      string
	highlightClass string
	preStyle       string
	css            map[chroma.TokenType]string
}

func newHighlighter(theme, lineClass, highlightClass string) (*highlighter, error) {
	style, ok := styles.Registry[theme]
	if !ok {
		return nil, errors.ConfigError(fmt.Sprintf("unknown highlight theme %q", theme)).
			WithContext(errors.ContextField, "markdown.theme").
			Build()
	}

	bg := style.Get(chroma.Background)
	css := make(map[chroma.TokenType]string, len(chroma.StandardTypes))
	for t := range chroma.StandardTypes {
		if t == chroma.Background {
			continue
		}
		if s := compactCSS(chromahtml.StyleEntryToCSS(style.Get(t).Sub(bg))); s != "" {
			css[t] = s
		}
	}

	return &highlighter{
		theme:          theme,
		lineClass:      lineClass,
		highlightClass: highlightClass,
		preStyle:       compactCSS(chromahtml.StyleEntryToCSS(bg)),
		css:            css,
	}, nil
}

func (h *highlighter) Name() string { return StepHighlight }

func (h *highlighter) Transform(tree *hast.Root, _ *Document) error {
	var failure error
	hast.Walk(tree, hast.Visit{Element: func(pre *hast.Element, parent hast.Parent, index int) hast.WalkStatus {
		if pre.Tag != "pre" || len(pre.Children) != 1 || parent == nil {
			return hast.WalkContinue
		}
		code, ok := pre.Children[0].(*hast.Element)
		if !ok || code.Tag != "code" {
			return hast.WalkContinue
		}
		figure, err := h.highlight(code)
		if err != nil {
			failure = err
			return hast.WalkStop
		}
		parent.ChildNodes()[index] = figure
		return hast.WalkSkipChildren
	}})
	return failure
}

func (h *highlighter) highlight(code *hast.Element) (*hast.Element, error) {
	lang := codeLanguage(code)
	raw, _ := code.Get(propMeta)
	meta, err := parseFenceMeta(raw)
	if err != nil {
		return nil, err
	}

	source := strings.TrimSuffix(hast.TextContent(code), "\n")
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	label := lexer.Config().Name
	if lang == "" {
		label = "plaintext"
	}
	it, err := chroma.Coalesce(lexer).Tokenise(nil, source)
	if err != nil {
		return nil, fmt.Errorf("tokenise %s code block: %w", label, err)
	}
	tokenLines := chroma.SplitTokensIntoLines(it.Tokens())

	out := hast.NewElement("code", hast.Properties{
		{Name: "data-language", Value: lang},
		{Name: "data-theme", Value: h.theme},
	})
	if meta.lineNumbers {
		out.Set("data-line-numbers", "")
	}
	for i := range strings.Split(source, "\n") {
		line := hast.NewElement("span", nil)
		line.AddClass(h.lineClass)
		if i < len(tokenLines) {
			line.Children = h.tokens(tokenLines[i])
		}
		if len(line.Children) == 0 {
			line.Children = []hast.Node{hast.NewText(" ")}
		}
		if meta.highlighted(i + 1) {
			line.AddClass(h.highlightClass)
			line.Set("data-highlighted-line", "")
		}
		if i > 0 {
			out.Append(hast.NewText("\n"))
		}
		out.Append(line)
	}

	pre := hast.NewElement("pre", hast.Properties{
		{Name: "class", Value: "chroma"},
		{Name: "style", Value: h.preStyle},
		{Name: "tabindex", Value: "0"},
		{Name: "data-language", Value: lang},
		{Name: "data-theme", Value: h.theme},
	}, out)

	figure := hast.NewElement("figure", hast.Properties{{Name: "data-code-block", Value: ""}})
	if meta.title != "" {
		figure.Append(hast.NewElement("figcaption", hast.Properties{
			{Name: "data-code-title", Value: ""},
			{Name: "data-language", Value: lang},
		}, hast.NewText(meta.title)))
	}
	return figure.Append(pre), nil
}

func (h *highlighter) tokens(tokens []chroma.Token) []hast.Node {
	var out []hast.Node
	for _, tok := range tokens {
		value := strings.TrimSuffix(tok.Value, "\n")
		if value == "" {
			continue
		}
		css := h.cssFor(tok.Type)
		if css == "" {
			out = append(out, hast.NewText(value))
			continue
		}
		out = append(out, hast.NewElement("span", hast.Properties{{Name: "style", Value: css}}, hast.NewText(value)))
	}
	return out
}

func (h *highlighter) cssFor(t chroma.TokenType) string {
	for _, candidate := range []chroma.TokenType{t, t.SubCategory(), t.Category()} {
		if css, ok := h.css[candidate]; ok {
			return css
		}
	}
	return ""
}

func codeLanguage(code *hast.Element) string {
	for _, class := range code.Classes() {
		if lang, ok := strings.CutPrefix(class, languagePrefix); ok {
			return lang
		}
	}
	return ""
}

func compactCSS(css string) string {
	return strings.ReplaceAll(css, ": ", ":")
}

type fenceMeta struct {
	ranges      [][2]int
	title       string
	lineNumbers bool
}

// highlighted reports whether the 1-based line n is marked.
func (m fenceMeta) highlighted(n int) bool {
	for _, r := range m.ranges {
		if n >= r[0] && n <= r[1] {
			return true
		}
	}
	return false
}

// parseFenceMeta reads the part of a fence info string after the language:
// {1,3-4} line ranges, title="..." and showLineNumbers.
func parseFenceMeta(meta string) (fenceMeta, error) {
	var out fenceMeta
	for i := 0; i < len(meta); {
		switch {
		case meta[i] == ' ' || meta[i] == '\t':
			i++
		case meta[i] == '{':
			end := strings.IndexByte(meta[i:], '}')
			if end < 0 {
				return out, fmt.Errorf("code fence meta %q: unterminated line range", meta)
			}
			ranges, err := parseLineRanges(meta[i+1 : i+end])
			if err != nil {
				return out, fmt.Errorf("code fence meta %q: %w", meta, err)
			}
			out.ranges = append(out.ranges, ranges...)
			i += end + 1
		case strings.HasPrefix(meta[i:], "title="):
			i += len("title=")
			if i >= len(meta) || (meta[i] != '"' && meta[i] != '\'') {
				return out, fmt.Errorf("code fence meta %q: title must be quoted", meta)
			}
			quote := meta[i]
			end := strings.IndexByte(meta[i+1:], quote)
			if end < 0 {
				return out, fmt.Errorf("code fence meta %q: unterminated title", meta)
			}
			out.title = meta[i+1 : i+1+end]
			i += end + 2
		default:
			end := strings.IndexAny(meta[i:], " \t")
			if end < 0 {
				end = len(meta) - i
			}
			if meta[i:i+end] == "showLineNumbers" {
				out.lineNumbers = true
			}
			i += end
		}
	}
	return out, nil
}

func parseLineRanges(spec string) ([][2]int, error) {
	var out [][2]int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		from, to, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(strings.TrimSpace(from))
		if err != nil || start < 1 {
			return nil, fmt.Errorf("invalid line number %q", part)
		}
		end := start
		if isRange {
			end, err = strconv.Atoi(strings.TrimSpace(to))
			if err != nil || end < start {
				return nil, fmt.Errorf("invalid line range %q", part)
			}
		}
		out = append(out, [2]int{start, end})
	}
	return out, nil
}
