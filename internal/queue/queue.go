package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// JobsKey is the Redis sorted set holding pending email jobs. The score is
// the time the job becomes ready for dispatch, in microseconds.
const JobsKey = "email_jobs"

// EmailJob is one pending dispatch attempt, carrying everything the worker
// needs to render and send without reading the delivery record back.
type EmailJob struct {
	RecordID    string `json:"record_id"`
	AccountID   string `json:"account_id"`
	To          string `json:"to"`
	Type        string `json:"type"`
	Subject     string `json:"subject,omitempty"`
	Token       string `json:"token,omitempty"`
	Name        string `json:"name,omitempty"`
	CustomHTML  string `json:"custom_html,omitempty"`
	FromEmail   string `json:"from_email"`
	FromName    string `json:"from_name"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
}

// Queue is a Redis-backed delayed job queue. Jobs scheduled in the future
// stay invisible to Claim until their ready time passes, which is how retry
// backoff is implemented.
type Queue struct {
	client *redis.Client
	logger *slog.Logger
}

func New(client *redis.Client, logger *slog.Logger) *Queue {
	return &Queue{client: client, logger: logger}
}

// Enqueue schedules a job for immediate dispatch.
func (q *Queue) Enqueue(ctx context.Context, job EmailJob) error {
	return q.EnqueueIn(ctx, job, 0)
}

// EnqueueIn schedules a job to become ready after the given delay.
func (q *Queue) EnqueueIn(ctx context.Context, job EmailJob, delay time.Duration) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job: %w", err)
	}

	err = q.client.ZAdd(ctx, JobsKey, redis.Z{
		Score:  float64(time.Now().Add(delay).UnixMicro()),
		Member: string(jobBytes),
	}).Err()
	if err != nil {
		return fmt.Errorf("queuing job to redis: %w", err)
	}

	return nil
}

// Claim atomically removes up to max ready jobs from the queue and returns
// them. A job claimed here is owned by the caller; if another consumer
// already removed it, it is skipped. On error the jobs claimed so far are
// returned alongside it, and the caller must still process them: they are
// already gone from Redis.
func (q *Queue) Claim(ctx context.Context, max int64) ([]EmailJob, error) {
	now := float64(time.Now().UnixMicro())

	results, err := q.client.ZRangeByScoreWithScores(ctx, JobsKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatFloat(now, 'f', -1, 64),
		Count: max,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("polling job queue: %w", err)
	}

	var jobs []EmailJob
	for _, z := range results {
		member := z.Member.(string)

		// ZRem returning 0 means another consumer claimed this job first.
		removed, err := q.client.ZRem(ctx, JobsKey, member).Result()
		if err != nil {
			return jobs, fmt.Errorf("removing job from queue: %w", err)
		}
		if removed == 0 {
			continue
		}

		var job EmailJob
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			q.logger.Error("failed to unmarshal job, dropping it", "error", err)
			continue
		}

		jobs = append(jobs, job)
	}

	return jobs, nil
}

// Depth returns the current number of jobs in the queue, ready or scheduled.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, JobsKey).Result()
}
