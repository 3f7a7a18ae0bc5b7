package parser

import (
	"strings"
	"testing"
)

func TestHTMLParser_HeadingsAndParagraphs(t *testing.T) {
	input := `<html><head><title>Trial Report</title><style>p{}</style></head>
<body>
<nav>skip me</nav>
<h1>Introduction</h1>
<p>Why we   did it.</p>
<h2>Methods</h2>
<p>How.</p>
<table><tr><th>Group</th><th>n</th></tr><tr><td>SOA</td><td>32</td></tr></table>
</body></html>`
	tree, err := (&HTMLParser{}).Parse(strings.NewReader(input), "report.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Title != "Trial Report" {
		t.Errorf("expected title %q, got %q", "Trial Report", tree.Title)
	}
	want := "Introduction\nWhy we did it.\nMethods\nHow.\n\nGroup\tn\n\nSOA\t32"
	if got := tree.Text(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if strings.Contains(tree.Text(), "skip me") {
		t.Error("expected nav content to be skipped")
	}
}

func TestHeadingLevel(t *testing.T) {
	tests := map[string]int{"h1": 1, "h6": 6, "h7": 0, "p": 0, "hr": 0, "": 0}
	for tag, want := range tests {
		if got := headingLevel(tag); got != want {
			t.Errorf("headingLevel(%q): expected %d, got %d", tag, want, got)
		}
	}
}
