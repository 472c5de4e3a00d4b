package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"nlpservice/analyzer"
	"nlpservice/config"
	"nlpservice/metrics"
	"nlpservice/models"
	"nlpservice/queue"
	"nlpservice/store"
)

const (
	defaultPopTimeout = 30 * time.Second
	defaultBackoff    = 5 * time.Second
	updateBuffer      = 100
)

// Deps are the collaborators a Processor needs.
type Deps struct {
	Queue    *queue.TaskQueue
	Store    *store.JobStore
	Results  *queue.ResultsPublisher
	Analyzer analyzer.Analyzer
	Metrics  *metrics.Metrics
	Model    string
	Log      *slog.Logger
}

// Options tune the worker loops. Zero values fall back to production
// defaults.
type Options struct {
	Count      int
	PopTimeout time.Duration
	Backoff    time.Duration
}

// Processor runs the worker loops: each one pops jobs from the queue,
// runs the analyzer, persists status transitions, and publishes results
// to the results channel. Stopping is cooperative; an in-flight job is
// always finished before its loop exits.
type Processor struct {
	queue    *queue.TaskQueue
	store    *store.JobStore
	results  *queue.ResultsPublisher
	analyzer analyzer.Analyzer
	metrics  *metrics.Metrics
	model    string
	log      *slog.Logger

	count      int
	popTimeout time.Duration
	backoff    time.Duration

	updates   chan models.JobUpdate
	running   atomic.Bool
	processed atomic.Int64
	stopped   chan struct{}
}

// New creates a Processor; Start launches it. A Processor is single use.
func New(deps Deps, opts Options) *Processor {
	if opts.Count <= 0 {
		opts.Count = 1
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = defaultPopTimeout
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}

	return &Processor{
		queue:      deps.Queue,
		store:      deps.Store,
		results:    deps.Results,
		analyzer:   deps.Analyzer,
		metrics:    deps.Metrics,
		model:      deps.Model,
		log:        deps.Log,
		count:      opts.Count,
		popTimeout: opts.PopTimeout,
		backoff:    opts.Backoff,
		updates:    make(chan models.JobUpdate, updateBuffer),
		stopped:    make(chan struct{}),
	}
}

// Updates exposes the job status notification feed. Updates are dropped
// rather than blocking a loop when nobody is draining the channel.
func (p *Processor) Updates() <-chan models.JobUpdate {
	return p.updates
}

// Start launches the worker goroutines. Each loop handles one job at a
// time, so Count bounds the number of concurrent analyzer calls.
func (p *Processor) Start() {
	if !p.running.CompareAndSwap(false, true) {
		return
	}

	p.log.Info("worker starting", "count", p.count)

	var wg sync.WaitGroup
	for i := 1; i <= p.count; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.run(fmt.Sprintf("worker-%d", id))
		}(i)
	}

	go func() {
		wg.Wait()
		close(p.stopped)
		p.log.Info("worker stopped", "processed", p.processed.Load())
	}()
}

// Stop asks the loops to exit after their current cycle and waits for
// them up to the context deadline. The blocking pop is never interrupted,
// so the deadline should outlast one pop timeout.
func (p *Processor) Stop(ctx context.Context) error {
	if !p.running.CompareAndSwap(true, false) {
		return nil
	}

	select {
	case <-p.stopped:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for worker shutdown: %w", ctx.Err())
	}
}

// Running reports whether the loops are accepting jobs.
func (p *Processor) Running() bool {
	return p.running.Load()
}

// ProcessedCount returns the number of jobs processed and published since
// startup.
func (p *Processor) ProcessedCount() int64 {
	return p.processed.Load()
}

// run is one worker loop. An empty pop is the normal idle path; any other
// loop-level error backs off before retrying so one bad cycle never kills
// the loop.
func (p *Processor) run(id string) {
	log := p.log.With("worker", id)
	ctx := context.Background()

	for p.running.Load() {
		job, err := p.queue.Pop(ctx, p.popTimeout)
		if err != nil {
			log.Error("queue pop failed", "error", err)
			time.Sleep(p.backoff)
			continue
		}
		if job == nil {
			continue
		}

		p.process(ctx, log, job)
		p.observeQueueDepth(ctx)
	}
}

// process takes one claimed job through to a terminal status. Status
// writes are best effort: a failed write is logged and the job carries
// on, because the result publication is what downstream consumers see.
func (p *Processor) process(ctx context.Context, log *slog.Logger, job *models.ProcessingJob) {
	log = log.With("job_id", job.ID, "document_id", job.DocumentID)
	log.Info("processing job")

	start := time.Now()

	job.StartProcessing()
	p.persistStatus(ctx, log, job.ID, models.StatusProcessing, 0, "")
	p.notify(job.ID, models.StatusProcessing, "")

	doc, err := job.Document()
	if err != nil {
		p.fail(ctx, log, job, err)
		return
	}

	analysis, err := p.analyzer.Analyze(ctx, doc)
	if err != nil {
		p.fail(ctx, log, job, err)
		return
	}

	processed := models.ProcessedDocument{
		Document:          doc,
		Analysis:          analysis,
		ProcessedAt:       time.Now().UTC(),
		ProcessingVersion: config.ServiceVersion,
		ModelUsed:         p.model,
	}

	job.CompleteProcessing()
	p.persistStatus(ctx, log, job.ID, models.StatusCompleted, 100, "")

	result := models.JobResult{
		JobID:             job.ID,
		DocumentID:        doc.ID,
		ProcessedDocument: &processed,
		Status:            models.StatusCompleted,
		ProcessedAt:       processed.ProcessedAt,
	}
	if err := p.results.Publish(ctx, result); err != nil {
		log.Error("publish result failed", "error", err)
	} else {
		p.processed.Add(1)
		log.Info("job completed", "duration_ms", time.Since(start).Milliseconds(), "total_processed", p.processed.Load())
	}

	p.metrics.JobsProcessed.WithLabelValues(string(models.StatusCompleted)).Inc()
	p.metrics.ProcessingSeconds.Observe(time.Since(start).Seconds())
	p.notify(job.ID, models.StatusCompleted, "")
}

// fail marks the job failed, records why, and publishes a failure result
// so downstream consumers see the terminal state too.
func (p *Processor) fail(ctx context.Context, log *slog.Logger, job *models.ProcessingJob, cause error) {
	msg := fmt.Sprintf("failed to process document: %v", cause)
	log.Error("job failed", "error", cause)

	job.FailProcessing(msg)
	p.persistStatus(ctx, log, job.ID, models.StatusFailed, 0, msg)

	result := models.JobResult{
		JobID:       job.ID,
		DocumentID:  job.DocumentID,
		Status:      models.StatusFailed,
		Error:       msg,
		ProcessedAt: time.Now().UTC(),
	}
	if err := p.results.Publish(ctx, result); err != nil {
		log.Error("publish result failed", "error", err)
	}

	p.metrics.JobsProcessed.WithLabelValues(string(models.StatusFailed)).Inc()
	p.notify(job.ID, models.StatusFailed, msg)
}

func (p *Processor) persistStatus(ctx context.Context, log *slog.Logger, jobID string, status models.JobStatus, progress float64, errMsg string) {
	if err := p.store.UpdateStatus(ctx, jobID, status, progress, errMsg); err != nil {
		log.Warn("persist status failed", "status", status, "error", err)
	}
}

func (p *Processor) notify(jobID string, status models.JobStatus, errMsg string) {
	update := models.JobUpdate{
		JobID:     jobID,
		Status:    status,
		Error:     errMsg,
		Timestamp: time.Now().UTC(),
	}

	select {
	case p.updates <- update:
	default:
	}
}

func (p *Processor) observeQueueDepth(ctx context.Context) {
	if n, err := p.queue.Length(ctx); err == nil {
		p.metrics.QueueDepth.Set(float64(n))
	}
}
