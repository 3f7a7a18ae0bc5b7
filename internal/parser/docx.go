package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/parsemed/internal/doctree"
)

// DOCXParser handles .docx manuscripts.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	o := newOutline()
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if text == "" {
			continue
		}
		if level := docxHeadingLevel(para); level > 0 {
			o.heading(level, text)
		} else {
			o.paragraph(text)
		}
	}
	return o.tree(baseTitle(filename)), nil
}

// docxHeadingLevel reads "Heading1" / "heading 1" style names.
func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if len(style) == len("heading1") && strings.HasPrefix(style, "heading") {
		if d := style[len(style)-1]; d >= '1' && d <= '6' {
			return int(d - '0')
		}
	}
	if style == "title" {
		return 1
	}
	return 0
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
