package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Attribute is one named query of an extraction template.
type Attribute struct {
	Name  string `json:"name"`
	Query string `json:"query"`
}

// Template is the stored template_json of a configuration.
type Template struct {
	Attributes []Attribute `json:"attributes"`
}

var (
	ErrEmptyTemplate = errors.New("template has no attribute with both name and query")
	ErrUnsafeQuery   = errors.New("attribute query contains instruction text")
)

var injectionPattern = regexp.MustCompile(
	`(?i)\b(ignore\s+(all\s+)?(previous|above|prior)\s+instructions|system\s*prompt|` +
		`you\s+are\s+now|forget\s+(everything|all\s+previous)|new\s+instructions)`,
)

const (
	maxNameLen  = 100
	maxQueryLen = 500
)

// ValidateTemplate trims every attribute, drops rows missing a name or
// query, and rejects duplicate names, over-long fields and queries that
// try to steer the model.
func ValidateTemplate(t Template) (Template, error) {
	out := Template{Attributes: make([]Attribute, 0, len(t.Attributes))}
	seen := make(map[string]bool, len(t.Attributes))
	for _, a := range t.Attributes {
		a.Name = strings.TrimSpace(a.Name)
		a.Query = strings.TrimSpace(a.Query)
		if a.Name == "" || a.Query == "" {
			continue
		}
		if len(a.Name) > maxNameLen || len(a.Query) > maxQueryLen {
			return Template{}, fmt.Errorf("attribute %q exceeds length limits", truncate(a.Name, 40))
		}
		if seen[a.Name] {
			return Template{}, fmt.Errorf("duplicate attribute %q", a.Name)
		}
		if injectionPattern.MatchString(a.Query) {
			return Template{}, fmt.Errorf("attribute %q: %w", a.Name, ErrUnsafeQuery)
		}
		seen[a.Name] = true
		out.Attributes = append(out.Attributes, a)
	}
	if len(out.Attributes) == 0 {
		return Template{}, ErrEmptyTemplate
	}
	return out, nil
}

// ParseTemplate decodes template_json as stored (object or JSON text).
func ParseTemplate(v any) (Template, error) {
	var raw []byte
	switch x := v.(type) {
	case string:
		raw = []byte(x)
	case []byte:
		raw = x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return Template{}, fmt.Errorf("encode template: %w", err)
		}
		raw = b
	}
	var t Template
	if err := json.Unmarshal(raw, &t); err != nil {
		return Template{}, fmt.Errorf("decode template: %w", err)
	}
	return t, nil
}

// MergeAttributes folds per-chunk answers into one object. For each key the
// first non-empty value wins; keys only ever answered empty keep nil.
func MergeAttributes(results []any) map[string]any {
	merged := make(map[string]any)
	for _, r := range results {
		obj, ok := r.(map[string]any)
		if !ok {
			continue
		}
		for k, v := range obj {
			cur, exists := merged[k]
			if !exists || (isEmptyValue(cur) && !isEmptyValue(v)) {
				if isEmptyValue(v) {
					v = nil
				}
				merged[k] = v
			}
		}
	}
	return merged
}

func isEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(x)
		return s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") || strings.EqualFold(s, "not found")
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}
