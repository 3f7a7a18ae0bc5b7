package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/parsemed/internal/chunker"
	"github.com/dgallion1/parsemed/internal/extract"
	"github.com/dgallion1/parsemed/internal/parser"
	"github.com/dgallion1/parsemed/internal/sections"
	"github.com/dgallion1/parsemed/internal/store"
	"github.com/dgallion1/parsemed/internal/tables"
)

// Worker processes a single document job.
type Worker struct {
	extractor  *Extractor
	saver      *Saver
	records    Records
	segmenter  *sections.Segmenter
	parserOpts parser.Options
	log        *slog.Logger
}

func NewWorker(ex *Extractor, saver *Saver, records Records, seg *sections.Segmenter, opts parser.Options, log *slog.Logger) *Worker {
	return &Worker{
		extractor:  ex,
		saver:      saver,
		records:    records,
		segmenter:  seg,
		parserOpts: opts,
		log:        log,
	}
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	defer job.releaseFile()
	data := job.FileData()

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	doc, err := ParseDocument(data, job.Filename, w.parserOpts)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	job.SetContentHash(ContentHashHex([]byte(doc.Text)))

	// Phase 2: Segment
	job.SetStatus(StatusSegmenting, "segmenting")
	doc.Segment(w.segmenter)
	job.SetDocument(doc.PageCount, doc.Sections.Keys(), len(doc.Tables))
	log.Info("segmented document", "pages", doc.PageCount, "sections", len(doc.Sections), "tables", len(doc.Tables))

	// Phase 3: Extract
	job.SetStatus(StatusExtracting, "extracting")
	hadErrors := false
	payload := map[string]any{
		"filename":     job.Filename,
		"content_hash": job.Snapshot().ContentHash,
		"page_count":   doc.PageCount,
		"sections":     doc.Sections,
		"table_blocks": doc.Tables,
	}

	if len(doc.Tables) > 0 {
		res, err := w.extractor.Tables(ctx, tables.Join(doc.Tables))
		if err != nil {
			log.Error("table extraction failed", "error", err)
			job.AddError(fmt.Sprintf("tables: %s", err))
			hadErrors = true
		} else {
			payload["tables"] = res.JSON
		}
	}

	table := store.ExtractedTables
	if job.ConfigurationID != "" {
		table = store.ExtractedDetails
		attrs, err := w.extractAttributes(ctx, job, doc)
		if err != nil {
			log.Error("attribute extraction failed", "error", err)
			job.AddError(fmt.Sprintf("attributes: %s", err))
			hadErrors = true
		}
		if attrs != nil {
			payload["attributes"] = attrs
		}
	}

	if ctx.Err() != nil {
		job.AddError(ctx.Err().Error())
		job.SetStatus(StatusFailed, "extracting")
		return
	}

	// Phase 4: Store
	job.SetStatus(StatusStoring, "storing")
	var pdf []byte
	if parser.IsPDF(job.Filename) {
		pdf = data
	}
	rec, err := w.saver.Save(ctx, SaveRequest{
		Table:    table,
		Filename: job.Filename,
		Data:     payload,
		PDF:      pdf,
	})
	if err != nil {
		log.Error("save failed", "error", err)
		job.AddError(fmt.Sprintf("save: %s", err))
		job.SetStatus(StatusFailed, "storing")
		return
	}
	pdfKey, _ := rec["pdf_key"].(string)
	dataKey, _ := rec["data_key"].(string)
	job.SetResult(JobResult{Table: table, RecordID: rec.ID(), DataKey: dataKey, PDFKey: pdfKey})

	if hadErrors {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
}

// extractAttributes answers the job's configuration over the document.
// Segmented sections are preferred; a document with no recognized
// headings is chunked from its parsed structure instead.
func (w *Worker) extractAttributes(ctx context.Context, job *Job, doc *Document) (map[string]any, error) {
	cfgRec, err := w.records.Get(ctx, store.Configurations, job.ConfigurationID)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	tmpl, err := extract.ParseTemplate(cfgRec["template_json"])
	if err != nil {
		return nil, err
	}
	if tmpl, err = extract.ValidateTemplate(tmpl); err != nil {
		return nil, err
	}

	chunks := chunker.ChunkSections(doc.Sections, w.extractor.ChunkConfig())
	if len(chunks) == 0 {
		chunks = chunker.ChunkTree(doc.Tree, w.extractor.ChunkConfig())
	}
	job.SetTotalChunks(len(chunks))
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no extractable content")
	}

	attrs, errs := w.extractor.Attributes(ctx, tmpl, chunks, job.IncrChunksProcessed)
	for _, e := range errs {
		job.AddError(e.Error())
	}
	if len(errs) == len(chunks) {
		return nil, ErrNoAnswers
	}
	if len(errs) > 0 {
		return attrs, fmt.Errorf("%d of %d windows failed", len(errs), len(chunks))
	}
	return attrs, nil
}
