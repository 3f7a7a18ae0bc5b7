package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dgallion1/parsemed/internal/export"
	"github.com/dgallion1/parsemed/internal/extract"
	"github.com/dgallion1/parsemed/internal/parser"
	"github.com/dgallion1/parsemed/internal/pipeline"
	"github.com/dgallion1/parsemed/internal/store"
	"github.com/go-chi/chi/v5"
)

// handleSaveExtractedData stores reviewed table JSON, optionally with the
// source PDF, as an extracted_tables record.
func (s *Server) handleSaveExtractedData(w http.ResponseWriter, r *http.Request) {
	if !s.parseMultipart(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	raw := r.FormValue("data")
	if strings.TrimSpace(raw) == "" {
		jsonError(w, "data is required", http.StatusBadRequest)
		return
	}
	data, err := decodeJSONField(raw)
	if err != nil {
		jsonError(w, "data is not valid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	filename := strings.TrimSpace(r.FormValue("filename"))
	req := pipeline.SaveRequest{Table: store.ExtractedTables, Data: data}
	if file, header, err := r.FormFile("file"); err == nil {
		up, code, err := s.readPart(file, header)
		file.Close()
		if err != nil {
			jsonError(w, err.Error(), code)
			return
		}
		if filename == "" {
			filename = up.Filename
		}
		if parser.IsPDF(up.Filename) {
			req.PDF = up.Data
		} else {
			s.log.Warn("save-extracted-data: ignoring non-PDF source file", "filename", up.Filename)
		}
	}
	if filename == "" {
		jsonError(w, "filename is required", http.StatusBadRequest)
		return
	}
	req.Filename = sanitizeFilename(filename)

	rec, err := s.saver.Save(r.Context(), req)
	if err != nil {
		s.log.Error("save-extracted-data failed", "filename", req.Filename, "error", err)
		jsonError(w, "Failed to save extracted data: "+err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "record": rec})
}

func (s *Server) handleGetSavedTables(w http.ResponseWriter, r *http.Request) {
	recs, err := s.records.Select(r.Context(), store.ExtractedTables, nil)
	if err != nil {
		s.log.Error("list saved tables failed", "error", err)
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "tables": recs})
}

func (s *Server) handleExportTable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.records.Get(r.Context(), store.ExtractedTables, id)
	if err != nil {
		jsonError(w, "table not found", statusFor(err))
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, rec["extracted_json"]); err != nil {
		if errors.Is(err, export.ErrNoData) {
			jsonError(w, "record has no extracted data", http.StatusNotFound)
			return
		}
		s.log.Error("xlsx export failed", "id", id, "error", err)
		jsonError(w, "export failed", http.StatusInternalServerError)
		return
	}

	name := strings.TrimSuffix(fmt.Sprint(rec["filename"]), ".pdf")
	if name == "" || name == "<nil>" {
		name = id
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type finalizeRequest struct {
	Filename      string `json:"filename"`
	PDFKey        string `json:"pdf_key"`
	ExtractedJSON any    `json:"extracted_json"`
}

// handleFinalizeDetails saves reviewed attribute answers against a source
// PDF stored earlier.
func (s *Server) handleFinalizeDetails(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if err := decodeBody(w, r, maxJSONBody, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ExtractedJSON == nil {
		jsonError(w, "extracted_json is required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Filename) == "" {
		jsonError(w, "filename is required", http.StatusBadRequest)
		return
	}

	rec, err := s.saver.Save(r.Context(), pipeline.SaveRequest{
		Table:    store.ExtractedDetails,
		Filename: sanitizeFilename(req.Filename),
		Data:     req.ExtractedJSON,
		PDFKey:   req.PDFKey,
	})
	if err != nil {
		s.log.Error("finalize-extracted-details failed", "filename", req.Filename, "error", err)
		jsonError(w, "Failed to save details: "+err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "record": rec})
}

type configurationRequest struct {
	Name         string           `json:"name"`
	TemplateJSON extract.Template `json:"template_json"`
}

func (s *Server) decodeConfiguration(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var req configurationRequest
	if err := decodeBody(w, r, maxJSONBody, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		jsonError(w, "name is required", http.StatusBadRequest)
		return nil, false
	}
	tmpl, err := extract.ValidateTemplate(req.TemplateJSON)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return map[string]any{"name": name, "template_json": tmpl}, true
}

func (s *Server) handleSaveConfiguration(w http.ResponseWriter, r *http.Request) {
	fields, ok := s.decodeConfiguration(w, r)
	if !ok {
		return
	}
	rec, err := s.records.Insert(r.Context(), store.Configurations, fields)
	if err != nil {
		s.log.Error("save configuration failed", "error", err)
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	s.log.Info("configuration saved", "id", rec.ID(), "name", fields["name"])
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "configuration": rec})
}

func (s *Server) handleUpdateConfiguration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	fields, ok := s.decodeConfiguration(w, r)
	if !ok {
		return
	}
	rec, err := s.records.Update(r.Context(), store.Configurations, id, fields)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Error("update configuration failed", "id", id, "error", err)
		}
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "configuration": rec})
}

func (s *Server) handleGetConfigurations(w http.ResponseWriter, r *http.Request) {
	recs, err := s.records.Select(r.Context(), store.Configurations, nil)
	if err != nil {
		s.log.Error("list configurations failed", "error", err)
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "configurations": recs})
}
