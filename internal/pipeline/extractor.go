package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/parsemed/internal/chunker"
	"github.com/dgallion1/parsemed/internal/doctree"
	"github.com/dgallion1/parsemed/internal/extract"
)

var (
	// ErrNoAnswers is returned when every attribute window failed.
	ErrNoAnswers = errors.New("no attribute window produced an answer")
	// ErrCompletion wraps a failed language-model call.
	ErrCompletion = errors.New("completion failed")
)

// Extractor runs the language-model steps shared by the HTTP handlers and
// the ingest workers.
type Extractor struct {
	llm           extract.Completer
	log           *slog.Logger
	chunkCfg      chunker.Config
	maxConcurrent int
}

func NewExtractor(llm extract.Completer, chunkCfg chunker.Config, maxConcurrent int, log *slog.Logger) *Extractor {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Extractor{
		llm:           llm,
		log:           log,
		chunkCfg:      chunkCfg,
		maxConcurrent: maxConcurrent,
	}
}

// Model names the model behind the extractor.
func (e *Extractor) Model() string {
	return e.llm.Model()
}

// ChunkConfig returns the window sizing used for attribute extraction.
func (e *Extractor) ChunkConfig() chunker.Config {
	return e.chunkCfg
}

// Tables converts table text into {"table_1": [...]} JSON. A reply that is
// not JSON comes back as its cleaned text.
func (e *Extractor) Tables(ctx context.Context, markdown string) (extract.Result, error) {
	return e.complete(ctx, extract.BuildTablePrompt(markdown))
}

// AnalyzeTables summarizes located table blocks.
func (e *Extractor) AnalyzeTables(ctx context.Context, blocks []string) (extract.Result, error) {
	return e.complete(ctx, extract.BuildAnalyzeTablesPrompt(blocks))
}

func (e *Extractor) complete(ctx context.Context, prompt string) (extract.Result, error) {
	reply, err := e.llm.Complete(ctx, extract.SystemInstruction, prompt)
	if err != nil {
		return extract.Result{}, fmt.Errorf("%w: %w", ErrCompletion, err)
	}
	res := extract.DecodeJSON(reply)
	if !res.Parsed {
		e.log.Warn("model reply is not JSON, returning text", "model", e.llm.Model(), "length", len(res.Raw))
	}
	return res, nil
}

// Attributes answers the template over each chunk with bounded concurrency
// and merges the answers. Every template attribute appears in the result,
// nil when unanswered. onChunk, if set, is called once per finished chunk.
// Per-chunk failures are returned alongside the merged answers.
func (e *Extractor) Attributes(ctx context.Context, tmpl extract.Template, chunks []doctree.Chunk, onChunk func()) (map[string]any, []error) {
	type chunkResult struct {
		value any
		err   error
		idx   int
	}
	results := make(chan chunkResult, len(chunks))
	sem := make(chan struct{}, e.maxConcurrent)

	for i, chunk := range chunks {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results <- chunkResult{err: ctx.Err(), idx: i}
			continue
		}
		go func(i int, chunk doctree.Chunk) {
			defer func() { <-sem }()
			prompt, err := extract.BuildAttributePrompt(tmpl.Attributes, chunk.Breadcrumb, chunk.Text)
			if err != nil {
				results <- chunkResult{err: err, idx: i}
				return
			}
			reply, err := e.llm.Complete(ctx, extract.SystemInstruction, prompt)
			if err != nil {
				results <- chunkResult{err: err, idx: i}
				return
			}
			res := extract.DecodeJSON(reply)
			if _, ok := res.JSON.(map[string]any); !res.Parsed || !ok {
				results <- chunkResult{err: fmt.Errorf("reply is not a JSON object: %s", truncate(res.Raw, 80)), idx: i}
				return
			}
			results <- chunkResult{value: res.JSON, idx: i}
		}(i, chunk)
	}

	ordered := make([]any, len(chunks))
	var errs []error
	for range chunks {
		r := <-results
		if onChunk != nil {
			onChunk()
		}
		if r.err != nil {
			e.log.Error("attribute extraction failed", "chunk", r.idx, "error", r.err)
			errs = append(errs, fmt.Errorf("chunk %d: %w", r.idx, r.err))
			continue
		}
		ordered[r.idx] = r.value
	}

	merged := extract.MergeAttributes(ordered)
	out := make(map[string]any, len(tmpl.Attributes))
	for _, a := range tmpl.Attributes {
		out[a.Name] = merged[a.Name]
	}
	return out, errs
}

// AttributesFromText chunks free text and answers the template over it.
func (e *Extractor) AttributesFromText(ctx context.Context, tmpl extract.Template, text string) (map[string]any, error) {
	tree := &doctree.DocTree{Children: []*doctree.DocNode{{Text: text}}}
	chunks := chunker.ChunkTree(tree, e.chunkCfg)
	if len(chunks) == 0 {
		return nil, errors.New("no text to extract from")
	}
	out, errs := e.Attributes(ctx, tmpl, chunks, nil)
	if len(errs) == len(chunks) {
		return nil, fmt.Errorf("%w: %w", ErrNoAnswers, errs[0])
	}
	return out, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
