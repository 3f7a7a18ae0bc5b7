package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dgallion1/parsemed/internal/extract"
	"github.com/dgallion1/parsemed/internal/store"
)

const maxJSONBody = 4 << 20

func (s *Server) requireExtractor(w http.ResponseWriter) bool {
	if s.extractor == nil {
		jsonError(w, "language model is not configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (s *Server) handleAnalyzeTables(w http.ResponseWriter, r *http.Request) {
	if !s.requireExtractor(w) {
		return
	}
	var req struct {
		Tables []string `json:"tables"`
	}
	if err := decodeBody(w, r, maxJSONBody, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Tables) == 0 {
		jsonError(w, "No tables provided.", http.StatusBadRequest)
		return
	}

	res, err := s.extractor.AnalyzeTables(r.Context(), req.Tables)
	if err != nil {
		s.log.Error("analyze-tables failed", "error", err)
		jsonError(w, "Failed to analyze tables: "+err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": res.JSON})
}

func (s *Server) handleMarkdownToJSON(w http.ResponseWriter, r *http.Request) {
	if !s.requireExtractor(w) {
		return
	}
	var req struct {
		Markdown string `json:"markdown"`
	}
	if err := decodeBody(w, r, maxJSONBody, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Markdown == "" {
		jsonError(w, "No markdown provided.", http.StatusBadRequest)
		return
	}

	res, err := s.extractor.Tables(r.Context(), req.Markdown)
	if err != nil {
		s.log.Error("markdown-to-json failed", "error", err, "markdown_len", len(req.Markdown))
		jsonError(w, "Failed to extract JSON from markdown: "+err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"json": res.JSON})
}

type extractAttributesRequest struct {
	Markdown        string              `json:"markdown"`
	Text            string              `json:"text"`
	Attributes      []extract.Attribute `json:"attributes"`
	ConfigurationID string              `json:"configuration_id"`
}

// handleExtractAttributes answers a template over posted text. The template
// comes inline or from a saved configuration.
func (s *Server) handleExtractAttributes(w http.ResponseWriter, r *http.Request) {
	if !s.requireExtractor(w) {
		return
	}
	var req extractAttributesRequest
	if err := decodeBody(w, r, maxJSONBody, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	text := req.Markdown
	if strings.TrimSpace(text) == "" {
		text = req.Text
	}
	if strings.TrimSpace(text) == "" {
		jsonError(w, "No markdown provided.", http.StatusBadRequest)
		return
	}

	tmpl := extract.Template{Attributes: req.Attributes}
	if len(tmpl.Attributes) == 0 && req.ConfigurationID != "" {
		rec, err := s.records.Get(r.Context(), store.Configurations, req.ConfigurationID)
		if err != nil {
			jsonError(w, "configuration not found", statusFor(err))
			return
		}
		if tmpl, err = extract.ParseTemplate(rec["template_json"]); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	tmpl, err := extract.ValidateTemplate(tmpl)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	attrs, err := s.extractor.AttributesFromText(r.Context(), tmpl, text)
	if err != nil {
		s.log.Error("extract-attributes failed", "error", err)
		jsonError(w, "Failed to extract attributes: "+err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"json": attrs})
}

// decodeJSONField reads a form value holding JSON.
func decodeJSONField(raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	return v, nil
}
