package sections

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Vocabulary maps a heading alias (lower-case) to its canonical section name.
type Vocabulary map[string]string

// DefaultVocabulary returns the headings recognized in biomedical papers.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		"objective":    "objective",
		"introduction": "introduction",
		"background":   "background",
		"method":       "methods",
		"methods":      "methods",
		"result":       "results",
		"results":      "results",
		"conclusion":   "conclusions",
		"conclusions":  "conclusions",
		"keywords":     "keywords",
	}
}

// Validate checks that every alias and canonical name is usable by the scanner.
func (v Vocabulary) Validate() error {
	if len(v) == 0 {
		return fmt.Errorf("vocabulary is empty")
	}
	for alias, canonical := range v {
		if alias == "" || strings.TrimSpace(alias) != alias {
			return fmt.Errorf("invalid heading alias %q", alias)
		}
		if alias != strings.ToLower(alias) {
			return fmt.Errorf("heading alias %q must be lower-case", alias)
		}
		if strings.TrimSpace(canonical) == "" {
			return fmt.Errorf("heading alias %q has no canonical name", alias)
		}
	}
	return nil
}

// Canonicals returns the sorted set of canonical section names.
func (v Vocabulary) Canonicals() []string {
	seen := make(map[string]bool, len(v))
	var out []string
	for _, c := range v {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

type vocabularyFile struct {
	Headings map[string][]string `yaml:"headings"`
}

// LoadVocabulary reads a YAML heading vocabulary of the form
//
//	headings:
//	  methods: [method, methods, "materials and methods"]
//	  results: [result, results]
//
// Every canonical name is also registered as an alias of itself.
func LoadVocabulary(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return ParseVocabulary(data)
}

// ParseVocabulary decodes the YAML form accepted by LoadVocabulary.
func ParseVocabulary(data []byte) (Vocabulary, error) {
	var f vocabularyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}

	v := Vocabulary{}
	for canonical, aliases := range f.Headings {
		canonical = strings.ToLower(strings.TrimSpace(canonical))
		if canonical == "" {
			return nil, fmt.Errorf("parse vocabulary: empty canonical heading")
		}
		v[canonical] = canonical
		for _, a := range aliases {
			a = strings.ToLower(strings.TrimSpace(a))
			if a == "" {
				continue
			}
			if prev, ok := v[a]; ok && prev != canonical {
				return nil, fmt.Errorf("parse vocabulary: alias %q maps to both %q and %q", a, prev, canonical)
			}
			v[a] = canonical
		}
	}
	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	return v, nil
}
