package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of an ingestion job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusParsing    JobStatus = "parsing"
	StatusSegmenting JobStatus = "segmenting"
	StatusExtracting JobStatus = "extracting"
	StatusStoring    JobStatus = "storing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial"
)

// Job tracks the state of a single document ingestion.
type Job struct {
	mu sync.Mutex

	ID              string
	Filename        string
	ConfigurationID string

	Status JobStatus
	Phase  string

	Progress Progress
	Result   JobResult

	ContentHash string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	fileData []byte
	errors   []string
}

// Progress tracks processing progress.
type Progress struct {
	PageCount       int      `json:"page_count"`
	Sections        []string `json:"sections"`
	TablesFound     int      `json:"tables_found"`
	TotalChunks     int      `json:"total_chunks"`
	ChunksProcessed int      `json:"chunks_processed"`
	Errors          []string `json:"errors"`
}

// JobResult locates the saved output of a finished job.
type JobResult struct {
	Table    string `json:"table,omitempty"`
	RecordID string `json:"record_id,omitempty"`
	DataKey  string `json:"data_key,omitempty"`
	PDFKey   string `json:"pdf_key,omitempty"`
}

// NewJob creates a queued job for an uploaded file.
func NewJob(filename, configurationID string, data []byte) *Job {
	now := time.Now()
	return &Job{
		ID:              uuid.NewString(),
		Filename:        filename,
		ConfigurationID: configurationID,
		Status:          StatusQueued,
		Phase:           "queued",
		CreatedAt:       now,
		UpdatedAt:       now,
		fileData:        data,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes jobs untouched for longer than the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.lastUpdate()) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

func (j *Job) lastUpdate() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetDocument records what parsing and segmentation found.
func (j *Job) SetDocument(pages int, sections []string, tables int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.PageCount = pages
	j.Progress.Sections = sections
	j.Progress.TablesFound = tables
	j.UpdatedAt = time.Now()
}

// SetContentHash records the hash of the parsed text.
func (j *Job) SetContentHash(h string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = h
}

// SetTotalChunks records total chunk count.
func (j *Job) SetTotalChunks(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalChunks = n
	j.UpdatedAt = time.Now()
}

// IncrChunksProcessed atomically increments chunks processed.
func (j *Job) IncrChunksProcessed() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.ChunksProcessed++
	j.UpdatedAt = time.Now()
}

// SetResult records where the job output was saved.
func (j *Job) SetResult(r JobResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Result = r
	j.UpdatedAt = time.Now()
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// releaseFile drops the upload once the job no longer needs it.
func (j *Job) releaseFile() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID              string    `json:"job_id"`
	Filename        string    `json:"filename"`
	ConfigurationID string    `json:"configuration_id,omitempty"`
	Status          JobStatus `json:"status"`
	Phase           string    `json:"phase"`
	Progress        Progress  `json:"progress"`
	Result          JobResult `json:"result"`
	ContentHash     string    `json:"content_hash,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.Progress.Errors...)
	sections := append([]string{}, j.Progress.Sections...)
	p := j.Progress
	p.Errors = errs
	p.Sections = sections
	return JobSnapshot{
		ID:              j.ID,
		Filename:        j.Filename,
		ConfigurationID: j.ConfigurationID,
		Status:          j.Status,
		Phase:           j.Phase,
		Progress:        p,
		Result:          j.Result,
		ContentHash:     j.ContentHash,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
