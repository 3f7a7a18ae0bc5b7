package doctree

import (
	"reflect"
	"testing"
)

func TestDocTree_TextJoinsPagesWithNewline(t *testing.T) {
	tree := &DocTree{Children: []*DocNode{
		{Text: "page one", Page: 1},
		{Text: "page two", Page: 2},
	}}
	if got, want := tree.Text(), "page one\npage two"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestDocTree_TextEmitsHeadings(t *testing.T) {
	tree := &DocTree{Children: []*DocNode{
		{Title: "Methods", Text: "We did X.", Children: []*DocNode{
			{Title: "Subjects", Text: "32 patients."},
		}},
		{Title: "Results", Text: "It worked."},
	}}
	want := "Methods\nWe did X.\nSubjects\n32 patients.\nResults\nIt worked."
	if got := tree.Text(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestDocTree_Pages(t *testing.T) {
	tree := &DocTree{Children: []*DocNode{
		{Text: "a", Page: 1},
		{Text: "b", Page: 2},
	}}
	if got, want := tree.Pages(), []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDocTree_PagesWithoutPageNumbers(t *testing.T) {
	tree := &DocTree{Children: []*DocNode{{Title: "Intro", Text: "hello"}}}
	if got, want := tree.Pages(), []string{"Intro\nhello"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got := (&DocTree{}).Pages(); len(got) != 0 {
		t.Errorf("expected no pages for empty tree, got %v", got)
	}
}
