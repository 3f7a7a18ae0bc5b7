package parser

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/dgallion1/parsemed/internal/doctree"
)

// PDFParser extracts per-page plain text. It tries the Go library first,
// then falls back to pdftotext if enabled.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	pages, err := extractPDFPages(data)
	if err != nil && p.FallbackPdftotext {
		pages, err = extractPdftotext(data)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	tree := &doctree.DocTree{Title: baseTitle(filename)}
	for i, page := range pages {
		tree.Children = append(tree.Children, &doctree.DocNode{
			Text: strings.TrimSpace(page),
			Page: i + 1,
		})
	}
	return tree, nil
}

// PageCount validates the PDF structure and returns its page count.
func PageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("pdf page count: %w", err)
	}
	return n, nil
}

func extractPDFPages(data []byte) ([]string, error) {
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func extractPdftotext(data []byte) ([]string, error) {
	cmd := exec.Command("pdftotext", "-layout", "-", "-")
	cmd.Stdin = bytes.NewReader(data)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	// pdftotext separates pages with form feeds and ends with one.
	return strings.Split(strings.TrimSuffix(string(out), "\f"), "\f"), nil
}
