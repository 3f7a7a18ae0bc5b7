package pipeline

import (
	"bytes"
	"fmt"

	"github.com/dgallion1/parsemed/internal/doctree"
	"github.com/dgallion1/parsemed/internal/parser"
	"github.com/dgallion1/parsemed/internal/sections"
	"github.com/dgallion1/parsemed/internal/tables"
)

// Document is an uploaded file reduced to text, sections and table blocks.
type Document struct {
	Filename  string
	Tree      *doctree.DocTree
	Text      string
	PageCount int
	Sections  sections.SectionMap
	Tables    []string
}

// ParseDocument extracts the text of data. PageCount is set for PDFs and is
// otherwise the number of top-level nodes.
func ParseDocument(data []byte, filename string, opts parser.Options) (*Document, error) {
	p, err := parser.ForFile(filename, opts)
	if err != nil {
		return nil, err
	}
	tree, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	doc := &Document{
		Filename:  filename,
		Tree:      tree,
		Text:      tree.Text(),
		PageCount: len(tree.Children),
	}
	if parser.IsPDF(filename) {
		if n, err := parser.PageCount(data); err == nil {
			doc.PageCount = n
		}
	}
	return doc, nil
}

// Segment fills Sections and Tables from the document text.
func (d *Document) Segment(seg *sections.Segmenter) {
	d.Sections = seg.Segment(d.Text)
	d.Tables = tables.Locate(d.Text)
}

// AnalyzeDocument parses and segments in one step.
func AnalyzeDocument(data []byte, filename string, opts parser.Options, seg *sections.Segmenter) (*Document, error) {
	doc, err := ParseDocument(data, filename, opts)
	if err != nil {
		return nil, err
	}
	doc.Segment(seg)
	return doc, nil
}
