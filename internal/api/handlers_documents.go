package api

import (
	"net/http"
	"strings"

	"github.com/dgallion1/parsemed/internal/parser"
	"github.com/dgallion1/parsemed/internal/pipeline"
	"github.com/dgallion1/parsemed/internal/tables"
)

func (s *Server) parserOptions() parser.Options {
	return parser.Options{PDFFallbackPdftotext: s.cfg.PDFFallbackPdftotext}
}

// handleSegment accepts either {"text": "..."} or an uploaded file.
func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request) {
	var text string
	if isMultipart(r) {
		if !s.parseMultipart(w, r) {
			return
		}
		defer r.MultipartForm.RemoveAll()
		up, code, err := s.readUpload(r, "file")
		if err != nil {
			jsonError(w, err.Error(), code)
			return
		}
		doc, err := pipeline.ParseDocument(up.Data, up.Filename, s.parserOptions())
		if err != nil {
			s.log.Warn("segment: parse failed", "filename", up.Filename, "error", err)
			jsonError(w, "could not read document: "+err.Error(), http.StatusBadRequest)
			return
		}
		text = doc.Text
	} else {
		var req struct {
			Text string `json:"text"`
		}
		if err := decodeBody(w, r, s.cfg.MaxUploadBytes, &req); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		text = req.Text
	}
	if strings.TrimSpace(text) == "" {
		jsonError(w, "No text provided.", http.StatusBadRequest)
		return
	}

	secs := s.segmenter.Segment(text)
	writeJSON(w, http.StatusOK, map[string]any{
		"sections": secs,
		"order":    secs.Keys(),
	})
}

func (s *Server) handleExtractTables(w http.ResponseWriter, r *http.Request) {
	if !s.parseMultipart(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	up, code, err := s.readUpload(r, "file")
	if err != nil {
		jsonError(w, err.Error(), code)
		return
	}
	doc, err := pipeline.AnalyzeDocument(up.Data, up.Filename, s.parserOptions(), s.segmenter)
	if err != nil {
		s.log.Warn("extract-tables: parse failed", "filename", up.Filename, "error", err)
		jsonError(w, "could not read document: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.log.Info("tables located", "filename", up.Filename, "pages", doc.PageCount, "tables", len(doc.Tables))

	writeJSON(w, http.StatusOK, map[string]any{
		"filename":   up.Filename,
		"page_count": doc.PageCount,
		"sections":   doc.Sections,
		"tables":     doc.Tables,
		"tables_raw": tables.Join(doc.Tables),
	})
}
