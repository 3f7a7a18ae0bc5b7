// Package sections splits raw document text into labeled sections
// ("methods", "results", ...) by locating heading words at whitespace
// boundaries.
package sections

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SectionMap maps a canonical heading to its content blocks in document order.
type SectionMap map[string][]string

// Keys returns the section names in sorted order.
func (m SectionMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Match is one heading occurrence found by Scan.
type Match struct {
	Start     int    // byte offset of the heading token
	End       int    // byte offset just past the token
	Token     string // text as it appears in the document
	Canonical string
}

// Segmenter locates headings from a fixed vocabulary. It holds no mutable
// state and may be shared between goroutines.
type Segmenter struct {
	vocab   Vocabulary
	aliases []string // longest first
}

// New builds a Segmenter for the given vocabulary.
func New(v Vocabulary) (*Segmenter, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	s := &Segmenter{vocab: make(Vocabulary, len(v))}
	for alias, canonical := range v {
		s.vocab[alias] = canonical
		s.aliases = append(s.aliases, alias)
	}
	sort.Slice(s.aliases, func(i, j int) bool {
		if len(s.aliases[i]) != len(s.aliases[j]) {
			return len(s.aliases[i]) > len(s.aliases[j])
		}
		return s.aliases[i] < s.aliases[j]
	})
	return s, nil
}

var defaultSegmenter, _ = New(DefaultVocabulary())

// Default returns the Segmenter for DefaultVocabulary.
func Default() *Segmenter {
	return defaultSegmenter
}

// FromFile builds a Segmenter from a YAML vocabulary file. An empty path
// returns Default.
func FromFile(path string) (*Segmenter, error) {
	if path == "" {
		return Default(), nil
	}
	v, err := LoadVocabulary(path)
	if err != nil {
		return nil, err
	}
	return New(v)
}

// Segment splits text using the default vocabulary.
func Segment(text string) SectionMap {
	return defaultSegmenter.Segment(text)
}

// Vocabulary returns a copy of the segmenter's alias table.
func (s *Segmenter) Vocabulary() Vocabulary {
	v := make(Vocabulary, len(s.vocab))
	for a, c := range s.vocab {
		v[a] = c
	}
	return v
}

// Scan finds heading tokens in a single left-to-right pass. A token matches
// when it sits at the start of the text or right after a whitespace rune,
// and is followed by whitespace, a colon, or the end of the text. Matching
// is case-insensitive and matches never overlap.
func (s *Segmenter) Scan(text string) []Match {
	var matches []Match
	atBoundary := true
	for i := 0; i < len(text); {
		if atBoundary {
			if m, ok := s.matchAt(text, i); ok {
				matches = append(matches, m)
				i = m.End
				atBoundary = false
				continue
			}
		}
		r, size := utf8.DecodeRuneInString(text[i:])
		atBoundary = unicode.IsSpace(r)
		i += size
	}
	return matches
}

func (s *Segmenter) matchAt(text string, i int) (Match, bool) {
	for _, alias := range s.aliases {
		end := i + len(alias)
		if end > len(text) || !strings.EqualFold(text[i:end], alias) {
			continue
		}
		if !closesHeading(text, end) {
			continue
		}
		return Match{Start: i, End: end, Token: text[i:end], Canonical: s.vocab[alias]}, true
	}
	return Match{}, false
}

func closesHeading(text string, end int) bool {
	if end == len(text) {
		return true
	}
	if text[end] == ':' {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[end:])
	return unicode.IsSpace(r)
}

// Segment groups the text following each heading under its canonical name.
// Text before the first heading is dropped. A heading immediately followed
// by another heading contributes an empty block.
func (s *Segmenter) Segment(text string) SectionMap {
	sections := SectionMap{}
	matches := s.Scan(text)
	for k, m := range matches {
		end := len(text)
		if k+1 < len(matches) {
			end = matches[k+1].Start
		}
		sections[m.Canonical] = append(sections[m.Canonical], cleanBlock(text[m.End:end]))
	}
	return sections
}

// cleanBlock trims whitespace and the colon that may follow a heading.
func cleanBlock(block string) string {
	block = strings.TrimSpace(block)
	block = strings.TrimPrefix(block, ":")
	return strings.TrimSpace(block)
}
