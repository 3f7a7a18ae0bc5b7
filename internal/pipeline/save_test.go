package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/parsemed/internal/store"
)

func TestSaver_SavesDataAndPDF(t *testing.T) {
	ctx := context.Background()
	blobs, records := newTestStores(t)
	s := NewSaver(blobs, records, quietLogger())
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	rec, err := s.Save(ctx, SaveRequest{
		Table:    store.ExtractedTables,
		Filename: "trial one.pdf",
		Data:     map[string]any{"table_1": []any{}},
		PDF:      []byte("%PDF-1.4"),
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	dataKey, _ := rec["data_key"].(string)
	if !strings.HasPrefix(dataKey, "extracted_data/20240501T120000Z_") || !strings.HasSuffix(dataKey, "_data.json") {
		t.Errorf("data_key = %v", rec["data_key"])
	}
	pdfKey, _ := rec["pdf_key"].(string)
	if !strings.HasPrefix(pdfKey, "pdfs/20240501T120000Z_") || !strings.HasSuffix(pdfKey, "_trial_one.pdf") {
		t.Errorf("pdf_key = %v", rec["pdf_key"])
	}
	if rec["filename"] != "trial one.pdf" {
		t.Errorf("filename = %v", rec["filename"])
	}

	raw, err := blobs.Get(ctx, rec["data_key"].(string))
	if err != nil {
		t.Fatalf("data blob: %v", err)
	}
	var stored map[string]any
	if err := json.Unmarshal(raw, &stored); err != nil || stored["table_1"] == nil {
		t.Errorf("data blob = %s (%v)", raw, err)
	}
	if pdf, err := blobs.Get(ctx, rec["pdf_key"].(string)); err != nil || string(pdf) != "%PDF-1.4" {
		t.Errorf("pdf blob = %q, %v", pdf, err)
	}
}

func TestSaver_SameSecondSavesKeepOwnBlobs(t *testing.T) {
	ctx := context.Background()
	blobs, records := newTestStores(t)
	s := NewSaver(blobs, records, quietLogger())

	docs := []string{"A", "B"}
	recs := make([]store.Record, len(docs))
	for i, doc := range docs {
		rec, err := s.Save(ctx, SaveRequest{
			Table:    store.ExtractedTables,
			Filename: "trial.pdf",
			Data:     map[string]any{"doc": doc},
			PDF:      []byte("%PDF-" + doc),
		})
		if err != nil {
			t.Fatalf("Save %s: %v", doc, err)
		}
		recs[i] = rec
	}

	if recs[0]["data_key"] == recs[1]["data_key"] {
		t.Fatalf("data_key reused: %v", recs[0]["data_key"])
	}
	if recs[0]["pdf_key"] == recs[1]["pdf_key"] {
		t.Fatalf("pdf_key reused: %v", recs[0]["pdf_key"])
	}
	for i, doc := range docs {
		raw, err := blobs.Get(ctx, recs[i]["data_key"].(string))
		if err != nil {
			t.Fatalf("data blob %s: %v", doc, err)
		}
		var stored map[string]any
		if err := json.Unmarshal(raw, &stored); err != nil || stored["doc"] != doc {
			t.Errorf("data blob for %s = %s (%v)", doc, raw, err)
		}
		pdf, err := blobs.Get(ctx, recs[i]["pdf_key"].(string))
		if err != nil || string(pdf) != "%PDF-"+doc {
			t.Errorf("pdf blob for %s = %q, %v", doc, pdf, err)
		}
	}
}

func TestSaver_PrimaryBlobFailureAborts(t *testing.T) {
	ctx := context.Background()
	blobs, records := newTestStores(t)
	s := NewSaver(failingBlobs{Store: blobs, prefix: "extracted_data/"}, records, quietLogger())

	_, err := s.Save(ctx, SaveRequest{Table: store.ExtractedTables, Filename: "a.pdf", Data: map[string]any{}})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("err = %v, want ErrStorage", err)
	}
	recs, _ := records.Select(ctx, store.ExtractedTables, nil)
	if len(recs) != 0 {
		t.Errorf("record inserted despite failed data blob")
	}
}

func TestSaver_PDFFailureIsBestEffort(t *testing.T) {
	ctx := context.Background()
	blobs, records := newTestStores(t)
	s := NewSaver(failingBlobs{Store: blobs, prefix: "pdfs/"}, records, quietLogger())

	rec, err := s.Save(ctx, SaveRequest{
		Table:    store.ExtractedDetails,
		Filename: "a.pdf",
		Data:     map[string]any{"age": "58"},
		PDF:      []byte("%PDF"),
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rec["pdf_key"] != nil {
		t.Errorf("pdf_key = %v, want nil", rec["pdf_key"])
	}
	if !strings.HasPrefix(rec["data_key"].(string), "extracted_data/") {
		t.Errorf("data_key = %v", rec["data_key"])
	}
}

func TestSaver_RecordFailure(t *testing.T) {
	blobs, records := newTestStores(t)
	s := NewSaver(blobs, records, quietLogger())

	_, err := s.Save(context.Background(), SaveRequest{Table: "missing_table", Filename: "a", Data: 1})
	if !errors.Is(err, ErrStorage) || !errors.Is(err, store.ErrUnknownTable) {
		t.Fatalf("err = %v", err)
	}
}

func TestSaver_UnencodableData(t *testing.T) {
	blobs, records := newTestStores(t)
	s := NewSaver(blobs, records, quietLogger())

	_, err := s.Save(context.Background(), SaveRequest{Table: store.ExtractedTables, Data: make(chan int)})
	if err == nil || errors.Is(err, ErrStorage) {
		t.Fatalf("err = %v, want encode error", err)
	}
}

func TestSaver_KeepsExistingPDFKey(t *testing.T) {
	blobs, records := newTestStores(t)
	s := NewSaver(blobs, records, quietLogger())

	rec, err := s.Save(context.Background(), SaveRequest{
		Table:    store.ExtractedDetails,
		Filename: "edited",
		Data:     map[string]any{"age": "58"},
		PDFKey:   "pdfs/20240101T000000Z_a.pdf",
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rec["pdf_key"] != "pdfs/20240101T000000Z_a.pdf" {
		t.Errorf("pdf_key = %v", rec["pdf_key"])
	}
}
