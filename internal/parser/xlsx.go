package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/parsemed/internal/doctree"
	"github.com/xuri/excelize/v2"
)

// XLSXParser reads spreadsheet supplements. Each sheet becomes one node
// titled with the sheet name, rows tab separated like CSVParser output.
type XLSXParser struct{}

func (p *XLSXParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	tree := &doctree.DocTree{Title: baseTitle(filename)}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		var lines []string
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t ")
			if line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) == 0 {
			continue
		}
		tree.Children = append(tree.Children, &doctree.DocNode{
			Title: name,
			Text:  strings.Join(lines, "\n"),
		})
	}
	return tree, nil
}
