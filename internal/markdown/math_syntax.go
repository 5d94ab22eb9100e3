package markdown

import (
	"bytes"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// KindMathInline is the node kind of $...$ spans.
var KindMathInline = gmast.NewNodeKind("MathInline")

// KindMathBlock is the node kind of $$ blocks.
var KindMathBlock = gmast.NewNodeKind("MathBlock")

// MathInline holds the TeX source of an inline formula.
type MathInline struct {
	gmast.BaseInline
	Value string
}

// Kind implements ast.Node.
func (n *MathInline) Kind() gmast.NodeKind { return KindMathInline }

// Dump implements ast.Node.
func (n *MathInline) Dump(source []byte, level int) {
	gmast.DumpHelper(n, source, level, map[string]string{"Value": n.Value}, nil)
}

// MathBlock holds a display formula. Its lines are the TeX source.
type MathBlock struct {
	gmast.BaseBlock
}

// Kind implements ast.Node.
func (n *MathBlock) Kind() gmast.NodeKind { return KindMathBlock }

// IsRaw implements ast.Node.
func (n *MathBlock) IsRaw() bool { return true }

// Dump implements ast.Node.
func (n *MathBlock) Dump(source []byte, level int) {
	gmast.DumpHelper(n, source, level, nil, nil)
}

// Value returns the TeX source of the block.
func (n *MathBlock) Value(source []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(source))
	}
	return string(bytes.TrimSpace(buf.Bytes()))
}

type mathSyntax struct{}

func (mathSyntax) Name() string { return StepMathSyntax }

func (mathSyntax) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithBlockParsers(util.Prioritized(&mathBlockParser{}, 750)),
		parser.WithInlineParsers(util.Prioritized(&mathInlineParser{}, 150)),
	)
}

type mathInlineParser struct{}

func (p *mathInlineParser) Trigger() []byte {
	return []byte{'$'}
}

// Parse recognises $tex$ and $$tex$$ on a single line. The opener must not be
// followed by a space, the closer must not follow a space, and a single $
// closer must not be followed by a digit, so prices stay plain text.
func (p *mathInlineParser) Parse(_ gmast.Node, block text.Reader, _ parser.Context) gmast.Node {
	line, _ := block.PeekLine()
	opener := 0
	for opener < len(line) && line[opener] == '$' {
		opener++
	}
	if opener > 2 || opener >= len(line) || util.IsSpace(line[opener]) {
		return nil
	}
	for i := opener; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
			continue
		case '$':
		default:
			continue
		}
		run := 0
		for i+run < len(line) && line[i+run] == '$' {
			run++
		}
		if run != opener || util.IsSpace(line[i-1]) {
			i += run - 1
			continue
		}
		if opener == 1 && i+1 < len(line) && line[i+1] >= '0' && line[i+1] <= '9' {
			continue
		}
		node := &MathInline{Value: string(line[opener:i])}
		block.Advance(i + run)
		return node
	}
	return nil
}

var mathBlockInfoKey = parser.NewContextKey()

type mathBlockData struct {
	node   gmast.Node
	closed bool
}

type mathBlockParser struct{}

func (b *mathBlockParser) Trigger() []byte {
	return []byte{'$'}
}

func (b *mathBlockParser) Open(_ gmast.Node, reader text.Reader, pc parser.Context) (gmast.Node, parser.State) {
	line, segment := reader.PeekLine()
	pos := pc.BlockOffset()
	if pos < 0 || pos+1 >= len(line) || line[pos] != '$' || line[pos+1] != '$' {
		return nil, parser.NoChildren
	}
	node := &MathBlock{}
	data := &mathBlockData{node: node}
	start := segment.Start - segment.Padding + pos + 2
	rest := line[pos+2:]
	if i := bytes.Index(rest, []byte("$$")); i >= 0 {
		if !util.IsBlank(rest[i+2:]) {
			return nil, parser.NoChildren
		}
		node.Lines().Append(text.NewSegment(start, start+i))
		data.closed = true
	} else if !util.IsBlank(rest) {
		node.Lines().Append(text.NewSegment(start, segment.Stop))
	}
	pc.Set(mathBlockInfoKey, data)
	reader.AdvanceToEOL()
	return node, parser.NoChildren
}

func (b *mathBlockParser) Continue(node gmast.Node, reader text.Reader, pc parser.Context) parser.State {
	data := pc.Get(mathBlockInfoKey).(*mathBlockData)
	if data.closed {
		return parser.Close
	}
	line, segment := reader.PeekLine()
	if line == nil {
		return parser.Close
	}
	trimmed := util.TrimRightSpace(line)
	if bytes.HasSuffix(trimmed, []byte("$$")) {
		idx := len(trimmed) - 2
		if !util.IsBlank(line[:idx]) {
			node.Lines().Append(text.NewSegment(segment.Start, segment.Start+idx))
		}
		reader.AdvanceToEOL()
		return parser.Close
	}
	node.Lines().Append(segment)
	reader.AdvanceToEOL()
	return parser.Continue | parser.NoChildren
}

func (b *mathBlockParser) Close(node gmast.Node, _ text.Reader, pc parser.Context) {
	if data, ok := pc.Get(mathBlockInfoKey).(*mathBlockData); ok && data.node == node {
		pc.Set(mathBlockInfoKey, nil)
	}
}

func (b *mathBlockParser) CanInterruptParagraph() bool {
	return true
}

func (b *mathBlockParser) CanAcceptIndentedLine() bool {
	return false
}
