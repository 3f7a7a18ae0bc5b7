package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/parsemed/internal/doctree"
)

// TextParser handles plain text, typically text already pulled out of a PDF.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	tree := &doctree.DocTree{Title: baseTitle(filename)}
	var current []string
	flush := func() {
		if len(current) > 0 {
			tree.Children = append(tree.Children, &doctree.DocNode{Text: strings.Join(current, "\n")})
			current = nil
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return tree, nil
}
