package api

import (
	"fmt"
	"net/http"

	"github.com/dgallion1/parsemed/internal/pipeline"
	"github.com/dgallion1/parsemed/internal/store"
	"github.com/go-chi/chi/v5"
)

func (s *Server) requireOrchestrator(w http.ResponseWriter) bool {
	if s.orchestrator == nil {
		jsonError(w, "ingestion is not enabled", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if !s.requireOrchestrator(w) {
		return
	}
	if !s.parseMultipart(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	up, code, err := s.readUpload(r, "file")
	if err != nil {
		jsonError(w, err.Error(), code)
		return
	}
	configID := r.FormValue("configuration_id")
	if configID != "" {
		if _, err := s.records.Get(r.Context(), store.Configurations, configID); err != nil {
			jsonError(w, "configuration not found", statusFor(err))
			return
		}
	}

	job := pipeline.NewJob(up.Filename, configID, up.Data)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, ingestAccepted(job))
}

func (s *Server) handleBatchIngest(w http.ResponseWriter, r *http.Request) {
	if !s.requireOrchestrator(w) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10<<20)
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	configID := r.FormValue("configuration_id")
	if configID != "" {
		if _, err := s.records.Get(r.Context(), store.Configurations, configID); err != nil {
			jsonError(w, "configuration not found", statusFor(err))
			return
		}
	}

	results := make([]map[string]any, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			results = append(results, map[string]any{"filename": sanitizeFilename(fh.Filename), "error": "failed to open file"})
			continue
		}
		up, _, err := s.readPart(f, fh)
		f.Close()
		if err != nil {
			results = append(results, map[string]any{"filename": sanitizeFilename(fh.Filename), "error": err.Error()})
			continue
		}

		job := pipeline.NewJob(up.Filename, configID, up.Data)
		if err := s.orchestrator.Submit(job); err != nil {
			results = append(results, map[string]any{"filename": up.Filename, "error": err.Error()})
			continue
		}
		results = append(results, ingestAccepted(job))
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": results})
}

func ingestAccepted(job *pipeline.Job) map[string]any {
	snap := job.Snapshot()
	return map[string]any{
		"job_id":   snap.ID,
		"filename": snap.Filename,
		"status":   snap.Status,
		"poll_url": fmt.Sprintf("/api/ingest/%s/status", snap.ID),
	}
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireOrchestrator(w) {
		return
	}
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}
