package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/parsemed/internal/blob"
	"github.com/dgallion1/parsemed/internal/store"
)

// ErrStorage marks a failed blob or record write.
var ErrStorage = errors.New("storage failure")

// Records is the part of the record store the pipeline writes through.
type Records interface {
	Insert(ctx context.Context, table string, rec map[string]any) (store.Record, error)
	Get(ctx context.Context, table, id string) (store.Record, error)
}

// SaveRequest is one extraction result to persist.
type SaveRequest struct {
	Table    string
	Filename string
	Data     any
	PDF      []byte // optional source file, stored best-effort
	PDFKey   string // key of a source file stored earlier; ignored when PDF is set
}

// Saver writes an extraction result as a blob plus a record pointing at it.
type Saver struct {
	blobs   blob.Store
	records Records
	log     *slog.Logger
	now     func() time.Time
}

func NewSaver(blobs blob.Store, records Records, log *slog.Logger) *Saver {
	return &Saver{blobs: blobs, records: records, log: log, now: time.Now}
}

// Save stores the data blob first and aborts if that fails. The PDF blob
// is best-effort: a failure is logged and the record carries no pdf_key.
func (s *Saver) Save(ctx context.Context, req SaveRequest) (store.Record, error) {
	payload, err := json.Marshal(req.Data)
	if err != nil {
		return nil, fmt.Errorf("encode extracted data: %w", err)
	}

	stem := blob.KeyStem(s.now())
	dataKey := blob.ExtractedDataKey(stem)
	if err := s.blobs.Put(ctx, dataKey, payload, "application/json"); err != nil {
		return nil, fmt.Errorf("%w: put %s: %w", ErrStorage, dataKey, err)
	}

	var pdfKey any
	if req.PDFKey != "" {
		pdfKey = req.PDFKey
	}
	if len(req.PDF) > 0 {
		pdfKey = nil
		key := blob.PDFKey(stem, req.Filename)
		if err := s.blobs.Put(ctx, key, req.PDF, "application/pdf"); err != nil {
			s.log.Warn("pdf upload failed, continuing without it", "key", key, "error", err)
		} else {
			pdfKey = key
		}
	}

	rec, err := s.records.Insert(ctx, req.Table, map[string]any{
		"filename":       req.Filename,
		"data_key":       dataKey,
		"pdf_key":        pdfKey,
		"extracted_json": req.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: insert %s: %w", ErrStorage, req.Table, err)
	}
	s.log.Info("extraction saved", "table", req.Table, "id", rec.ID(), "data_key", dataKey, "pdf_key", pdfKey)
	return rec, nil
}
