package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dgallion1/parsemed/internal/config"
	"github.com/dgallion1/parsemed/internal/extract"
	"github.com/dgallion1/parsemed/internal/pipeline"
	"github.com/dgallion1/parsemed/internal/sections"
	"github.com/dgallion1/parsemed/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RecordStore is the record store surface the handlers use.
type RecordStore interface {
	pipeline.Records
	Select(ctx context.Context, table string, filter map[string]any) ([]store.Record, error)
	Update(ctx context.Context, table, id string, rec map[string]any) (store.Record, error)
}

// Deps are the collaborators behind the HTTP surface.
type Deps struct {
	Orchestrator *pipeline.Orchestrator
	Extractor    *pipeline.Extractor
	Saver        *pipeline.Saver
	Records      RecordStore
	Segmenter    *sections.Segmenter
	Stats        *extract.LLMStats
}

// Server is the HTTP API server for parsemed.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	extractor    *pipeline.Extractor
	saver        *pipeline.Saver
	records      RecordStore
	segmenter    *sections.Segmenter
	stats        *extract.LLMStats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(deps Deps, log *slog.Logger, cfg config.Config) *Server {
	seg := deps.Segmenter
	if seg == nil {
		seg = sections.Default()
	}
	s := &Server{
		orchestrator: deps.Orchestrator,
		extractor:    deps.Extractor,
		saver:        deps.Saver,
		records:      deps.Records,
		segmenter:    seg,
		stats:        deps.Stats,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	// Document processing.
	r.Post("/segment", s.handleSegment)
	r.Post("/extract-tables", s.handleExtractTables)
	r.Post("/analyze-tables", s.handleAnalyzeTables)
	r.Post("/markdown-to-json", s.handleMarkdownToJSON)
	r.Post("/extract-attributes", s.handleExtractAttributes)

	// Saved extractions.
	r.Post("/save-extracted-data", s.handleSaveExtractedData)
	r.Get("/get-saved-tables", s.handleGetSavedTables)
	r.Get("/tables/{id}/export.xlsx", s.handleExportTable)
	r.Post("/finalize-extracted-details", s.handleFinalizeDetails)

	// Extraction configurations.
	r.Post("/save-configuration", s.handleSaveConfiguration)
	r.Put("/update-configuration/{id}", s.handleUpdateConfiguration)
	r.Get("/get-configurations", s.handleGetConfigurations)

	// Asynchronous ingestion.
	r.Post("/api/ingest", s.handleIngest)
	r.Post("/api/ingest/batch", s.handleBatchIngest)
	r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
	r.Get("/api/stats/llm", s.handleLLMStats)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.orchestrator != nil {
		resp["queue_depth"] = s.orchestrator.QueueDepth()
	}
	writeJSON(w, http.StatusOK, resp)
}
