package parser

import (
	"strings"

	"github.com/dgallion1/parsemed/internal/doctree"
)

// outline nests text blocks under headings by level while a structured
// document (markdown, html, docx) is walked in reading order.
type outline struct {
	root  *doctree.DocNode
	stack []outlineEntry
	text  strings.Builder
}

type outlineEntry struct {
	node  *doctree.DocNode
	level int
}

func newOutline() *outline {
	root := &doctree.DocNode{}
	return &outline{root: root, stack: []outlineEntry{{node: root}}}
}

// heading closes any open sections at the same or deeper level and opens a new one.
func (o *outline) heading(level int, title string) {
	o.flush()
	node := &doctree.DocNode{Title: title}
	for len(o.stack) > 1 && o.stack[len(o.stack)-1].level >= level {
		o.stack = o.stack[:len(o.stack)-1]
	}
	parent := o.stack[len(o.stack)-1].node
	parent.Children = append(parent.Children, node)
	o.stack = append(o.stack, outlineEntry{node: node, level: level})
}

func (o *outline) paragraph(text string) {
	if text == "" {
		return
	}
	if o.text.Len() > 0 {
		o.text.WriteString("\n\n")
	}
	o.text.WriteString(text)
}

func (o *outline) flush() {
	t := strings.TrimSpace(o.text.String())
	o.text.Reset()
	if t == "" {
		return
	}
	top := o.stack[len(o.stack)-1].node
	if top.Text != "" {
		top.Text += "\n\n" + t
	} else {
		top.Text = t
	}
}

// tree finishes the walk. Text that appeared before the first heading
// becomes a leading untitled node.
func (o *outline) tree(title string) *doctree.DocTree {
	o.flush()
	tree := &doctree.DocTree{Title: title}
	if o.root.Text != "" {
		tree.Children = append(tree.Children, &doctree.DocNode{Text: o.root.Text})
	}
	tree.Children = append(tree.Children, o.root.Children...)
	return tree
}
