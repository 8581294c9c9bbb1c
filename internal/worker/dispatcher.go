package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/snigdhasv/email-delivery-service/internal/queue"
)

// dispatchRateKey is the limiter key for the global outbound rate cap. The
// cap is provider-wide, not per-worker, so all dispatcher instances share it.
const dispatchRateKey = "dispatch:global"

// JobSource is the slice of the queue the dispatcher needs.
type JobSource interface {
	Claim(ctx context.Context, max int64) ([]queue.EmailJob, error)
	EnqueueIn(ctx context.Context, job queue.EmailJob, delay time.Duration) error
}

// Dispatcher continuously polls the job queue and feeds ready jobs to the
// worker pool. It enforces the global dispatch rate cap independently of the
// pool's concurrency cap: a job claimed while the rate window is full is
// pushed back without consuming an attempt.
type Dispatcher struct {
	queue         JobSource
	limiter       *queue.RateLimiter
	pool          *Pool
	logger        *slog.Logger
	ratePerSecond int
	pollInterval  time.Duration
	pushbackDelay time.Duration
	batchSize     int64
	done          chan struct{}
}

// NewDispatcher creates a dispatcher with the given global rate cap in
// dispatches per second.
func NewDispatcher(q JobSource, limiter *queue.RateLimiter, pool *Pool, ratePerSecond int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		queue:         q,
		limiter:       limiter,
		pool:          pool,
		logger:        logger,
		ratePerSecond: ratePerSecond,
		pollInterval:  100 * time.Millisecond,
		pushbackDelay: 100 * time.Millisecond,
		batchSize:     10,
		done:          make(chan struct{}),
	}
}

// Start begins the polling loop. It runs until the context is cancelled and
// any in-flight poll has finished handing its jobs to the pool.
func (d *Dispatcher) Start(ctx context.Context) {
	defer close(d.done)

	d.logger.Info("dispatcher started", "rate_per_second", d.ratePerSecond)

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping")
			return
		case <-ticker.C:
			d.poll(ctx)
		}
	}
}

// Wait blocks until Start has returned. Shutdown must wait for the
// dispatcher before closing the pool: a poll blocked in Submit would
// otherwise send on a closed channel.
func (d *Dispatcher) Wait() {
	<-d.done
}

func (d *Dispatcher) poll(ctx context.Context) {
	jobs, err := d.queue.Claim(ctx, d.batchSize)
	if err != nil {
		// Claim can fail partway through a batch. The jobs it already
		// removed from Redis must still be dispatched or they are lost.
		d.logger.Error("failed to claim jobs", "error", err, "claimed", len(jobs))
	}

	for _, job := range jobs {
		if !d.limiter.Allow(ctx, dispatchRateKey, d.ratePerSecond, time.Second) {
			// Rate window is full: reschedule shortly, attempt unchanged.
			if err := d.queue.EnqueueIn(ctx, job, d.pushbackDelay); err != nil {
				d.logger.Error("failed to push back rate-limited job",
					"error", err,
					"record_id", job.RecordID,
				)
			}
			continue
		}

		d.pool.Submit(job)
	}
}
