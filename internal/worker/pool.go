package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/snigdhasv/email-delivery-service/internal/queue"
)

// Pool manages a fixed number of worker goroutines that process email jobs.
// The pool size is the concurrency cap: at most numWorkers dispatches are
// in flight at once.
type Pool struct {
	numWorkers int
	jobs       chan queue.EmailJob
	processor  *Processor
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// NewPool creates a worker pool with the given number of workers.
func NewPool(numWorkers int, processor *Processor, logger *slog.Logger) *Pool {
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan queue.EmailJob, numWorkers*2),
		processor:  processor,
		logger:     logger,
	}
}

// Start launches all worker goroutines. They read from the jobs channel
// until it is closed. The context is passed through to job processing but
// does not interrupt a dispatch in flight.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.logger.Info("worker pool started", "num_workers", p.numWorkers)
}

// Submit sends a job to the worker pool via the jobs channel.
func (p *Pool) Submit(job queue.EmailJob) {
	p.jobs <- job
}

// Stop closes the jobs channel and waits for all workers to drain. Active
// dispatches finish or fail naturally before Stop returns.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for job := range p.jobs {
		p.processor.Process(ctx, job)
	}
}
