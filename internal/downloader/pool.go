package downloader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dscraper/pkg/logger"
)

// Job is a single attachment to fetch into Store
type Job struct {
	URL    string
	Store  Store
	Target string
}

// WorkerPool manages concurrent download workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	downloader  *Downloader
	logger      logger.Logger

	stopOnce sync.Once
}

// NewWorkerPool creates a new download worker pool
func NewWorkerPool(numWorkers int, d *Downloader, log logger.Logger) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		downloader:  d,
		logger:      log.WithField("component", "worker_pool"),
	}
}

// Start launches the workers. Cancelling ctx aborts in-flight downloads;
// jobs still queued are then reported as failed without any request.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.ctx, wp.cancel = context.WithCancel(ctx)

	wp.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for queued and in-flight jobs to finish and
// closes the result channel. Results must be consumed for Stop to return.
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		wp.logger.Info("Stopping worker pool...")
		close(wp.jobQueue)
		wp.wg.Wait()
		close(wp.resultQueue)
		wp.cancel()
		wp.logger.Info("Worker pool stopped")
	})
}

// Submit adds a job to the queue, blocking while it is full. It must be
// called between Start and Stop.
func (wp *WorkerPool) Submit(ctx context.Context, job Job) error {
	select {
	case wp.jobQueue <- job:
		wp.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"url":    job.URL,
			"target": job.Target,
		})
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results returns the result channel. It is closed by Stop.
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	wp.logger.DebugWithFields("Worker started", map[string]interface{}{
		"worker_id": id,
	})

	for job := range wp.jobQueue {
		wp.resultQueue <- wp.processJob(job)
	}

	wp.logger.DebugWithFields("Worker stopping - job queue closed", map[string]interface{}{
		"worker_id": id,
	})
}

func (wp *WorkerPool) processJob(job Job) Result {
	if err := wp.ctx.Err(); err != nil {
		return Result{
			Job:      job,
			Filename: FilenameFromURL(job.URL),
			Status:   StatusFailed,
			Error:    err,
		}
	}

	start := time.Now()
	result := wp.downloader.Download(wp.ctx, job.Store, job.URL)
	result.Job = job
	result.Duration = time.Since(start)
	return result
}

// QueueSize returns the number of jobs waiting for a worker
func (wp *WorkerPool) QueueSize() int {
	return len(wp.jobQueue)
}

// Workers returns the number of workers
func (wp *WorkerPool) Workers() int {
	return wp.numWorkers
}
