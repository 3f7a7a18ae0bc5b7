package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/parsemed/internal/doctree"
)

// MarkdownParser handles Markdown, including the markdown produced by
// browser-side PDF converters.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseMarkdown(src, baseTitle(filename)), nil
}

// ParseMarkdown builds a heading-nested tree from markdown source.
func ParseMarkdown(src []byte, title string) *doctree.DocTree {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	o := newOutline()
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			o.heading(h.Level, blockText(h, src))
			continue
		}
		o.paragraph(blockText(n, src))
	}
	return o.tree(title)
}

// blockText gets the text content of a goldmark AST node, one source line per line.
func blockText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && n.ChildCount() == 0 {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		return strings.TrimSpace(buf.String())
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Text:
			buf.Write(c.Value(src))
			if c.HardLineBreak() || c.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		default:
			if c.Type() == ast.TypeBlock && buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(blockText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
