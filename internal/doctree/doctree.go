package doctree

import "strings"

// DocTree is the root of a parsed document.
type DocTree struct {
	Title    string     // Document title (from metadata or filename)
	Children []*DocNode // Top-level sections, or one node per page for PDFs
}

// DocNode is a recursive section in the document tree.
type DocNode struct {
	Title    string     // Section heading (empty for leaf text and PDF pages)
	Text     string     // Text content of this node (may be empty for container nodes)
	Page     int        // Source page (0 if N/A)
	Children []*DocNode // Subsections
}

// Chunk is a sized text segment with structural context, ready for extraction.
type Chunk struct {
	Text       string   // Chunk text content
	Index      int      // Sequence number within document
	Breadcrumb []string // Heading hierarchy, e.g. ["Results", "Table 2"]
	PageStart  int
	PageEnd    int
}

// Text flattens the tree into raw document text. Headings are written on
// their own line ahead of their content and blocks are joined with "\n",
// so page-per-node PDF trees come out as their pages in order.
func (t *DocTree) Text() string {
	var parts []string
	var walk func(nodes []*DocNode)
	walk = func(nodes []*DocNode) {
		for _, n := range nodes {
			if n.Title != "" {
				parts = append(parts, n.Title)
			}
			if n.Text != "" {
				parts = append(parts, n.Text)
			}
			walk(n.Children)
		}
	}
	walk(t.Children)
	return strings.Join(parts, "\n")
}

// Pages returns per-page text in page order. Documents without page
// information come back as a single page.
func (t *DocTree) Pages() []string {
	var pages []string
	for _, n := range t.Children {
		if n.Page > 0 {
			pages = append(pages, n.Text)
		}
	}
	if len(pages) == 0 {
		if text := t.Text(); text != "" {
			pages = []string{text}
		}
	}
	return pages
}
