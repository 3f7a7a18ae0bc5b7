// Package tables finds the "TABLE n." blocks in text pulled out of a paper
// so that only the tabular part is sent for JSON conversion.
package tables

import (
	"regexp"
	"strings"
)

var (
	tableStart = regexp.MustCompile(`(?i)^TABLE\s*\d+\.`)

	// Lines that end a table: running prose, footnotes, abbreviation keys
	// and cross references.
	prose        = regexp.MustCompile(`^[A-Z][^.]*\.$`)
	footnote     = regexp.MustCompile(`^[*†‡]`)
	abbreviation = regexp.MustCompile(`^[A-Z]{2,}\s*=`)
	abbrevLabel  = regexp.MustCompile(`(?i)^Abbreviations:?`)
	seeTable     = regexp.MustCompile(`(?i)^See.*Table`)
)

const minProseLen = 20

// Locate returns each table block found in text, in document order. A
// block is the "TABLE n." caption line plus the non-empty lines that
// follow it, up to the next caption or the first line that reads like
// prose or table notes.
func Locate(text string) []string {
	var blocks []string
	var current []string
	inTable := false

	closeTable := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
		}
		current = nil
		inTable = false
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if tableStart.MatchString(line) {
			closeTable()
			current = []string{line}
			inTable = true
			continue
		}
		if !inTable {
			continue
		}
		if endsTable(line) {
			closeTable()
			continue
		}
		if line != "" {
			current = append(current, line)
		}
	}
	closeTable()
	return blocks
}

func endsTable(line string) bool {
	if len(line) > minProseLen && prose.MatchString(line) {
		return true
	}
	return footnote.MatchString(line) ||
		abbreviation.MatchString(line) ||
		abbrevLabel.MatchString(line) ||
		seeTable.MatchString(line)
}

// Join renders blocks as one prompt section separated by blank lines.
func Join(blocks []string) string {
	return strings.Join(blocks, "\n\n")
}
