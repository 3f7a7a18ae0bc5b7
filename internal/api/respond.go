package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/parsemed/internal/extract"
	"github.com/dgallion1/parsemed/internal/parser"
	"github.com/dgallion1/parsemed/internal/pipeline"
	"github.com/dgallion1/parsemed/internal/store"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// statusFor maps collaborator errors onto response codes.
func statusFor(err error) int {
	var re *extract.RetryableError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrUnknownColumn),
		errors.Is(err, store.ErrUnknownTable),
		errors.Is(err, extract.ErrEmptyTemplate),
		errors.Is(err, extract.ErrUnsafeQuery):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrStorage),
		errors.Is(err, pipeline.ErrNoAnswers),
		errors.Is(err, pipeline.ErrCompletion),
		errors.As(err, &re):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// upload is a file read from a multipart form.
type upload struct {
	Filename string
	Data     []byte
}

// readUpload reads the named form file, enforcing the upload limit. The
// returned status is 0 on success.
func (s *Server) readUpload(r *http.Request, field string) (upload, int, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return upload{}, http.StatusBadRequest, fmt.Errorf("%s is required", field)
	}
	defer file.Close()
	return s.readPart(file, header)
}

func (s *Server) readPart(file multipart.File, header *multipart.FileHeader) (upload, int, error) {
	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		return upload{}, http.StatusBadRequest, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}
	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return upload{}, http.StatusInternalServerError, errors.New("failed to read file")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return upload{}, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
	}
	if len(data) == 0 {
		return upload{}, http.StatusBadRequest, errors.New("file is empty")
	}
	return upload{Filename: filename, Data: data}, 0, nil
}

func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
