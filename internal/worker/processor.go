package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/snigdhasv/email-delivery-service/internal/mail"
	"github.com/snigdhasv/email-delivery-service/internal/queue"
)

// DeliveryStore is the slice of the record store the processor needs.
type DeliveryStore interface {
	MarkDeliverySent(ctx context.Context, id, providerMessageID string, attempt int) error
	RecordDeliveryFailure(ctx context.Context, id, errMsg string, attempt int) error
	MarkDeliveryDead(ctx context.Context, id, errMsg string, attempt int) error
}

// Processor handles one dispatch attempt: render the message, send it
// through the transport, and move the delivery record's state machine.
// Failures here never propagate to any caller; they are recorded on the
// record and drive the retry/dead-letter transition only.
type Processor struct {
	store          DeliveryStore
	sender         mail.Sender
	queue          *queue.Queue
	logger         *slog.Logger
	retryBaseDelay time.Duration
}

func NewProcessor(store DeliveryStore, sender mail.Sender, q *queue.Queue, logger *slog.Logger, retryBaseDelay time.Duration) *Processor {
	return &Processor{
		store:          store,
		sender:         sender,
		queue:          q,
		logger:         logger,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process executes one dispatch attempt for a job.
func (p *Processor) Process(ctx context.Context, job queue.EmailJob) {
	subject, html, err := mail.Render(mail.Message{
		Type:       job.Type,
		Subject:    job.Subject,
		Token:      job.Token,
		Name:       job.Name,
		CustomHTML: job.CustomHTML,
		FromName:   job.FromName,
	})
	if err != nil {
		// Unrenderable jobs should be unreachable past admission validation,
		// but they follow the same retry/dead-letter path as transport errors.
		p.fail(ctx, job, err)
		return
	}

	from := mail.FromAddress(job.FromName, job.FromEmail)

	providerID, err := p.sender.Send(ctx, from, []string{job.To}, subject, html)
	if err != nil {
		p.fail(ctx, job, err)
		return
	}

	if err := p.store.MarkDeliverySent(ctx, job.RecordID, providerID, job.Attempt); err != nil {
		p.logger.Error("failed to mark delivery sent",
			"error", err,
			"record_id", job.RecordID,
		)
		return
	}

	p.logger.Info("delivery sent",
		"record_id", job.RecordID,
		"to", job.To,
		"type", job.Type,
		"attempt", job.Attempt,
		"provider_message_id", providerID,
	)
}

// fail records a failed attempt. If attempts remain the record stays queued
// and the job is rescheduled with exponential backoff; otherwise the record
// moves to the terminal dead status and is never retried.
func (p *Processor) fail(ctx context.Context, job queue.EmailJob, cause error) {
	if job.Attempt >= job.MaxAttempts {
		if err := p.store.MarkDeliveryDead(ctx, job.RecordID, cause.Error(), job.Attempt); err != nil {
			p.logger.Error("failed to mark delivery dead",
				"error", err,
				"record_id", job.RecordID,
			)
			return
		}
		p.logger.Warn("delivery dead-lettered",
			"record_id", job.RecordID,
			"to", job.To,
			"attempts", job.Attempt,
			"error", cause.Error(),
		)
		return
	}

	if err := p.store.RecordDeliveryFailure(ctx, job.RecordID, cause.Error(), job.Attempt); err != nil {
		p.logger.Error("failed to record delivery failure",
			"error", err,
			"record_id", job.RecordID,
		)
	}

	// Base delay doubling each attempt: base, 2*base, 4*base, ...
	delay := p.retryBaseDelay
	if job.Attempt > 1 {
		delay <<= job.Attempt - 1
	}

	retry := job
	retry.Attempt++
	if err := p.queue.EnqueueIn(ctx, retry, delay); err != nil {
		p.logger.Error("failed to schedule retry",
			"error", err,
			"record_id", job.RecordID,
		)
		return
	}

	p.logger.Warn("delivery failed, retry scheduled",
		"record_id", job.RecordID,
		"to", job.To,
		"attempt", job.Attempt,
		"max_attempts", job.MaxAttempts,
		"retry_in", delay.String(),
		"error", cause.Error(),
	)
}
