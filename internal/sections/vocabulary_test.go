package sections

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultVocabulary_Canonicals(t *testing.T) {
	want := []string{"background", "conclusions", "introduction", "keywords", "methods", "objective", "results"}
	if got := DefaultVocabulary().Canonicals(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestVocabulary_Validate(t *testing.T) {
	tests := []struct {
		name    string
		vocab   Vocabulary
		wantErr bool
	}{
		{"default", DefaultVocabulary(), false},
		{"empty", Vocabulary{}, true},
		{"empty alias", Vocabulary{"": "methods"}, true},
		{"padded alias", Vocabulary{" methods": "methods"}, true},
		{"upper alias", Vocabulary{"Methods": "methods"}, true},
		{"blank canonical", Vocabulary{"methods": " "}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.vocab.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("expected error=%v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestParseVocabulary(t *testing.T) {
	data := []byte(`
headings:
  methods: [method, "Materials and Methods"]
  results: [result]
`)
	v, err := ParseVocabulary(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Vocabulary{
		"methods":               "methods",
		"method":                "methods",
		"materials and methods": "methods",
		"results":               "results",
		"result":                "results",
	}
	if !reflect.DeepEqual(v, want) {
		t.Errorf("expected %v, got %v", want, v)
	}
}

func TestParseVocabulary_ConflictingAlias(t *testing.T) {
	data := []byte(`
headings:
  methods: [approach]
  results: [approach]
`)
	if _, err := ParseVocabulary(data); err == nil {
		t.Error("expected error for alias mapped to two headings")
	}
}

func TestParseVocabulary_Empty(t *testing.T) {
	if _, err := ParseVocabulary([]byte("headings: {}\n")); err == nil {
		t.Error("expected error for empty vocabulary")
	}
}

func TestLoadVocabulary_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "headings.yaml")
	if err := os.WriteFile(path, []byte("headings:\n  keywords: [key words]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	v, err := LoadVocabulary(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v["key words"] != "keywords" {
		t.Errorf("expected alias to fold to keywords, got %q", v["key words"])
	}
}

func TestLoadVocabulary_MissingFile(t *testing.T) {
	if _, err := LoadVocabulary(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFromFile(t *testing.T) {
	s, err := FromFile("")
	if err != nil || s != Default() {
		t.Fatalf("empty path should return Default, got %v, %v", s, err)
	}

	path := filepath.Join(t.TempDir(), "headings.yaml")
	if err := os.WriteFile(path, []byte("headings:\n  discussion: [discussion, comment]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err = FromFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := s.Segment("Comment: agreed.")
	if len(got["discussion"]) != 1 || got["discussion"][0] != "agreed." {
		t.Errorf("sections = %v", got)
	}
}
