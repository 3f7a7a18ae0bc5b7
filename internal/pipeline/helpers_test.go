package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dgallion1/parsemed/internal/blob"
	"github.com/dgallion1/parsemed/internal/extract"
	"github.com/dgallion1/parsemed/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLLM answers by prompt kind.
type fakeLLM struct {
	mu         sync.Mutex
	tableReply string
	tableErr   error
	attrReply  func(prompt string) (string, error)
	prompts    []string
}

func (f *fakeLLM) Complete(_ context.Context, system, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if system != extract.SystemInstruction {
		return "", errors.New("unexpected system instruction")
	}
	switch {
	case strings.HasPrefix(prompt, extract.TablePrompt):
		return f.tableReply, f.tableErr
	case strings.HasPrefix(prompt, extract.AnalyzePrompt):
		return "```json\n{\"table_1\": {\"title\": \"TABLE 1. Demographics\"}}\n```", nil
	case strings.HasPrefix(prompt, extract.AttributePrompt):
		if f.attrReply != nil {
			return f.attrReply(prompt)
		}
		return "{}", nil
	}
	return "", errors.New("unexpected prompt")
}

func (f *fakeLLM) Model() string { return "fake" }

func (f *fakeLLM) promptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// failingBlobs rejects writes whose key has the given prefix.
type failingBlobs struct {
	blob.Store
	prefix string
}

func (f failingBlobs) Put(ctx context.Context, key string, data []byte, ct string) error {
	if strings.HasPrefix(key, f.prefix) {
		return errors.New("bucket unavailable")
	}
	return f.Store.Put(ctx, key, data, ct)
}

func newTestStores(t *testing.T) (*blob.DirStore, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	blobs, err := blob.NewDirStore(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatal(err)
	}
	records, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { records.Close() })
	return blobs, records
}

const samplePaper = `Clinical study of aortic valve repair

Objective: assess outcomes.
Methods: 57 patients aged 58 were enrolled.
TABLE 1. Patient demographics
SOA (n = 32)  TTA (n = 25)  p Value
Age  58.16  0.87
Abbreviations: SOA, surgical approach.

Results: survival improved.
Conclusion: valve repair works.
`
