// Package chunker packs document text into token-bounded windows for
// language-model extraction calls.
package chunker

import (
	"strings"

	"github.com/dgallion1/parsemed/internal/doctree"
	"github.com/dgallion1/parsemed/internal/sections"
)

// Config controls chunking behavior.
type Config struct {
	ChunkSize    int // Target chunk size in tokens.
	ChunkOverlap int // Overlap between split pieces of one oversized block.
	MinChunk     int // A trailing window smaller than this folds into the previous one.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    1500,
		ChunkOverlap: 200,
		MinChunk:     100,
	}
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1500
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = c.ChunkSize / 8
	}
	if c.MinChunk <= 0 {
		c.MinChunk = 100
	}
	return c
}

// piece is one block of text with the structure it came from.
type piece struct {
	text       string
	tokens     int
	breadcrumb []string
	page       int
}

// ChunkTree walks a DocTree and packs its text into windows. Consecutive
// small blocks share a window; blocks over ChunkSize are split on paragraph
// and sentence boundaries. No text is dropped.
func ChunkTree(tree *doctree.DocTree, cfg Config) []doctree.Chunk {
	cfg = cfg.withDefaults()

	var pieces []piece
	for _, child := range tree.Children {
		pieces = collect(child, nil, cfg, pieces)
	}
	return pack(pieces, cfg)
}

// ChunkSections packs segmented sections, one labeled block per section
// in key order, so each window carries its section names as breadcrumb.
func ChunkSections(sm sections.SectionMap, cfg Config) []doctree.Chunk {
	tree := &doctree.DocTree{}
	for _, key := range sm.Keys() {
		var blocks []string
		for _, b := range sm[key] {
			if b != "" {
				blocks = append(blocks, b)
			}
		}
		if len(blocks) == 0 {
			continue
		}
		tree.Children = append(tree.Children, &doctree.DocNode{
			Title: key,
			Text:  strings.Join(blocks, "\n\n"),
		})
	}
	return ChunkTree(tree, cfg)
}

func collect(node *doctree.DocNode, breadcrumb []string, cfg Config, out []piece) []piece {
	bc := copyBreadcrumb(breadcrumb)
	if node.Title != "" {
		bc = append(bc, node.Title)
	}

	if text := strings.TrimSpace(node.Text); text != "" {
		parts := []string{text}
		if EstimateTokens(text) > cfg.ChunkSize {
			parts = splitText(text, cfg.ChunkSize, cfg.ChunkOverlap)
		}
		for _, p := range parts {
			out = append(out, piece{text: p, tokens: EstimateTokens(p), breadcrumb: bc, page: node.Page})
		}
	}

	for _, child := range node.Children {
		out = collect(child, bc, cfg, out)
	}
	return out
}

func pack(pieces []piece, cfg Config) []doctree.Chunk {
	var chunks []doctree.Chunk
	var cur *doctree.Chunk
	curTokens := 0

	emit := func() {
		if cur == nil {
			return
		}
		cur.Index = len(chunks)
		chunks = append(chunks, *cur)
		cur = nil
		curTokens = 0
	}

	for _, p := range pieces {
		if cur != nil && curTokens+p.tokens > cfg.ChunkSize {
			emit()
		}
		if cur == nil {
			cur = &doctree.Chunk{
				Text:       p.text,
				Breadcrumb: copyBreadcrumb(p.breadcrumb),
				PageStart:  p.page,
				PageEnd:    p.page,
			}
			curTokens = p.tokens
			continue
		}
		cur.Text += "\n\n" + p.text
		curTokens += p.tokens
		if p.page > cur.PageEnd {
			cur.PageEnd = p.page
		}
	}

	if cur != nil && curTokens < cfg.MinChunk && len(chunks) > 0 {
		last := &chunks[len(chunks)-1]
		last.Text += "\n\n" + cur.Text
		if cur.PageEnd > last.PageEnd {
			last.PageEnd = cur.PageEnd
		}
		return chunks
	}
	emit()
	return chunks
}

// splitText breaks text into chunks of approximately targetTokens, with overlap.
func splitText(text string, targetTokens, overlapTokens int) []string {
	paragraphs := splitByParagraphs(text)

	var result []string
	var current strings.Builder
	currentTokens := 0

	for _, para := range paragraphs {
		paraTokens := EstimateTokens(para)

		if paraTokens > targetTokens {
			if currentTokens > 0 {
				result = append(result, current.String())
				current.Reset()
				currentTokens = 0
			}
			result = append(result, splitBySentences(para, targetTokens, overlapTokens)...)
			continue
		}

		if currentTokens+paraTokens > targetTokens && currentTokens > 0 {
			result = append(result, current.String())
			overlap := getOverlapText(current.String(), overlapTokens)
			current.Reset()
			currentTokens = 0
			if overlap != "" {
				current.WriteString(overlap)
				currentTokens = EstimateTokens(overlap)
			}
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
		currentTokens += paraTokens
	}

	if currentTokens > 0 {
		result = append(result, current.String())
	}
	return result
}

// splitByParagraphs splits on blank lines. PDF pages rarely carry them, so
// text with none falls back to single newlines.
func splitByParagraphs(text string) []string {
	sep := "\n\n"
	if !strings.Contains(text, sep) {
		sep = "\n"
	}
	var result []string
	for _, p := range strings.Split(text, sep) {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func splitBySentences(text string, targetTokens, overlapTokens int) []string {
	var result []string
	var current strings.Builder
	currentTokens := 0

	for _, sent := range splitSentences(text) {
		sentTokens := EstimateTokens(sent)

		if currentTokens+sentTokens > targetTokens && currentTokens > 0 {
			result = append(result, current.String())
			overlap := getOverlapText(current.String(), overlapTokens)
			current.Reset()
			currentTokens = 0
			if overlap != "" {
				current.WriteString(overlap)
				currentTokens = EstimateTokens(overlap)
			}
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
		currentTokens += sentTokens
	}

	if currentTokens > 0 {
		result = append(result, current.String())
	}
	return result
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && text[i+1] == ' ' {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// getOverlapText returns the last targetTokens worth of words.
func getOverlapText(text string, targetTokens int) string {
	words := strings.Fields(text)
	targetWords := int(float64(targetTokens) / 1.33)
	if targetWords <= 0 || len(words) <= targetWords {
		return ""
	}
	return strings.Join(words[len(words)-targetWords:], " ")
}

func copyBreadcrumb(bc []string) []string {
	if len(bc) == 0 {
		return nil
	}
	out := make([]string, len(bc))
	copy(out, bc)
	return out
}
