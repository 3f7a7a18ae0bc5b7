package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/parsemed/internal/config"
	"github.com/dgallion1/parsemed/internal/parser"
	"github.com/dgallion1/parsemed/internal/sections"
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrStopped   = errors.New("pipeline is stopped")
)

// Orchestrator runs uploaded documents through a fixed pool of workers.
// Each job is processed independently; one failing document never holds up
// the rest of the queue.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	worker  *Worker
	log     *slog.Logger
	workers int
	sweep   time.Duration

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator wires the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, ex *Extractor, saver *Saver, records Records, seg *sections.Segmenter, log *slog.Logger) *Orchestrator {
	if seg == nil {
		seg = sections.Default()
	}
	opts := parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext}
	sweep := min(cfg.JobTTL/2, 5*time.Minute)
	if sweep <= 0 {
		sweep = time.Minute
	}
	return &Orchestrator{
		jobs:    NewJobStore(cfg.JobTTL),
		queue:   make(chan *Job, max(cfg.MaxQueueSize, 1)),
		worker:  NewWorker(ex, saver, records, seg, opts, log),
		log:     log,
		workers: max(cfg.WorkerCount, 1),
		sweep:   sweep,
	}
}

// Start launches the workers and the expired-job sweeper.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()

	for i := range o.workers {
		o.wg.Add(1)
		go o.run(ctx, i)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(o.sweep)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
	o.log.Info("pipeline started", "workers", o.workers, "queue_size", cap(o.queue))
}

func (o *Orchestrator) run(ctx context.Context, id int) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-o.queue:
			if !ok {
				return
			}
			start := time.Now()
			o.worker.Process(ctx, job)
			snap := job.Snapshot()
			o.log.Info("job finished",
				"job_id", snap.ID,
				"worker", id,
				"status", snap.Status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}
	}
}

// Stop cancels in-flight work, waits for the workers, and fails any job
// still waiting in the queue.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.mu.Unlock()

	o.wg.Wait()
	for job := range o.queue {
		job.AddError("pipeline stopped before the job ran")
		job.SetStatus(StatusFailed, "shutdown")
		job.releaseFile()
	}
}

// Submit registers the job and queues it. A full queue fails the job
// immediately rather than blocking the caller.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return ErrStopped
	}
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		o.log.Info("job queued", "job_id", job.ID, "filename", job.Filename, "configuration_id", job.ConfigurationID, "depth", len(o.queue))
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		job.releaseFile()
		return fmt.Errorf("%w (%d)", ErrQueueFull, cap(o.queue))
	}
}

// GetJob returns a job by ID, or nil once it is unknown or expired.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns the number of jobs waiting for a worker.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
