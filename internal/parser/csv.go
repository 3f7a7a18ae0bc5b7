package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/parsemed/internal/doctree"
)

// CSVParser handles CSV exports of study tables. The header row is kept and
// the output is tab separated so the table locator and prompts see a grid.
type CSVParser struct{}

const csvBatchRows = 20

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	tree := &doctree.DocTree{Title: baseTitle(filename)}
	if len(records) == 0 {
		return tree, nil
	}

	header := strings.Join(records[0], "\t")
	rows := records[1:]
	for i := 0; i < len(rows); i += csvBatchRows {
		end := min(i+csvBatchRows, len(rows))
		lines := []string{header}
		for _, row := range rows[i:end] {
			lines = append(lines, strings.Join(row, "\t"))
		}
		tree.Children = append(tree.Children, &doctree.DocNode{
			Title: fmt.Sprintf("Rows %d-%d", i+2, end+1),
			Text:  strings.Join(lines, "\n"),
		})
	}
	return tree, nil
}
