package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cbayrak/tenderdoc/internal/analyzer"
	"github.com/cbayrak/tenderdoc/internal/config"
	"github.com/cbayrak/tenderdoc/internal/ocr"
)

// Orchestrator owns the job queue and worker pool.
type Orchestrator struct {
	jobs   *JobStore
	queue  chan *Job
	runner *Runner
	log    *slog.Logger
	cfg    config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline around a shared LLM client.
func NewOrchestrator(cfg config.Config, client analyzer.Client, ocrProc *ocr.Processor, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:   NewJobStore(cfg.JobTTL),
		queue:  make(chan *Job, cfg.MaxQueueSize),
		runner: NewRunner(cfg, client, ocrProc, log),
		log:    log,
		cfg:    cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i := 0; i < o.cfg.WorkerCount; i++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

func (o *Orchestrator) process(ctx context.Context, job *Job) {
	out, err := o.runner.Run(ctx, job.Filename, job.FileData(), job)
	job.SetResult(out)
	if err != nil {
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "islem basarisiz")
		o.log.Error("job failed", "job_id", job.ID, "file", job.Filename, "error", err)
		return
	}
	job.SetStatus(StatusCompleted, "tamamlandi")
	o.log.Info("job completed",
		"job_id", job.ID,
		"file", job.Filename,
		"valid", out.Validation != nil && out.Validation.Valid,
		"duration_ms", out.Meta.Stats.DurationMs)
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// BatchJobs returns all jobs in a ZIP batch.
func (o *Orchestrator) BatchJobs(batchID string) []*Job {
	return o.jobs.Batch(batchID)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// AnalyzerStats exposes LLM call statistics for the health endpoint.
func (o *Orchestrator) AnalyzerStats() *analyzer.Stats {
	return o.runner.AnalyzerStats()
}
