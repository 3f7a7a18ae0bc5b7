package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/parsemed/internal/blob"
	"github.com/dgallion1/parsemed/internal/chunker"
	"github.com/dgallion1/parsemed/internal/config"
	"github.com/dgallion1/parsemed/internal/extract"
	"github.com/dgallion1/parsemed/internal/pipeline"
	"github.com/dgallion1/parsemed/internal/sections"
	"github.com/dgallion1/parsemed/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLLM answers by prompt kind.
type fakeLLM struct {
	mu        sync.Mutex
	reply     string
	err       error
	attrReply string
	prompts   []string
}

func (f *fakeLLM) Complete(_ context.Context, _, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if strings.HasPrefix(prompt, extract.AttributePrompt) && f.attrReply != "" {
		return f.attrReply, nil
	}
	return f.reply, nil
}

func (f *fakeLLM) Model() string { return "fake" }

func (f *fakeLLM) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

type testEnv struct {
	srv     *Server
	llm     *fakeLLM
	blobs   *blob.DirStore
	records *store.Store
	orch    *pipeline.Orchestrator
}

func testConfig() config.Config {
	return config.Config{
		MaxUploadBytes: 1 << 20,
		WorkerCount:    1,
		MaxQueueSize:   4,
		JobTTL:         time.Hour,
	}
}

func newTestEnv(t *testing.T, llm *fakeLLM) *testEnv {
	t.Helper()
	if llm == nil {
		llm = &fakeLLM{reply: "{}"}
	}
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

	cfg := testConfig()
	ex := pipeline.NewExtractor(llm, chunker.DefaultConfig(), 2, quietLogger())
	saver := pipeline.NewSaver(blobs, records, quietLogger())
	orch := pipeline.NewOrchestrator(cfg, ex, saver, records, sections.Default(), quietLogger())
	stats := extract.NewLLMStats(time.Hour)
	stats.SetModel(llm.Model())

	srv := NewServer(Deps{
		Orchestrator: orch,
		Extractor:    ex,
		Saver:        saver,
		Records:      records,
		Stats:        stats,
	}, quietLogger(), cfg)
	return &testEnv{srv: srv, llm: llm, blobs: blobs, records: records, orch: orch}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) postJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return e.do(t, req)
}

type formFile struct {
	field, name string
	data        []byte
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(f.data)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d, body = %s", rec.Code, want, rec.Body.String())
	}
}

var errUpstream = errors.New("upstream unavailable")

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
