package queue

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestQueue(t *testing.T) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return New(client, logger)
}

func TestQueue_EnqueueAndClaim(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	job := EmailJob{
		RecordID:    "rec-1",
		AccountID:   "acc-1",
		To:          "user@example.com",
		Type:        "otp",
		Token:       "123456",
		FromEmail:   "noreply@yourdomain.com",
		FromName:    "EmailAPI",
		Attempt:     1,
		MaxAttempts: 3,
	}

	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	depth, err := q.Depth(ctx)
	if err != nil {
		t.Fatalf("depth failed: %v", err)
	}
	if depth != 1 {
		t.Errorf("depth = %d, want 1", depth)
	}

	jobs, err := q.Claim(ctx, 10)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("claimed %d jobs, want 1", len(jobs))
	}
	if jobs[0] != job {
		t.Errorf("claimed job = %+v, want %+v", jobs[0], job)
	}
}

func TestQueue_ClaimRemovesJobs(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, EmailJob{RecordID: "rec-1", Attempt: 1}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if _, err := q.Claim(ctx, 10); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	// Second claim should find nothing
	jobs, err := q.Claim(ctx, 10)
	if err != nil {
		t.Fatalf("second claim failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("second claim returned %d jobs, want 0", len(jobs))
	}

	depth, _ := q.Depth(ctx)
	if depth != 0 {
		t.Errorf("depth = %d, want 0 after claim", depth)
	}
}

func TestQueue_DelayedJobsNotClaimableEarly(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	if err := q.EnqueueIn(ctx, EmailJob{RecordID: "rec-1", Attempt: 2}, time.Hour); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	jobs, err := q.Claim(ctx, 10)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("claimed %d jobs, want 0 before the delay passes", len(jobs))
	}

	// Still counts toward depth
	depth, _ := q.Depth(ctx)
	if depth != 1 {
		t.Errorf("depth = %d, want 1", depth)
	}
}

func TestQueue_ClaimHonorsMax(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		job := EmailJob{RecordID: "rec-" + string(rune('a'+i)), Attempt: 1}
		if err := q.Enqueue(ctx, job); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	jobs, err := q.Claim(ctx, 3)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if len(jobs) != 3 {
		t.Errorf("claimed %d jobs, want 3", len(jobs))
	}

	depth, _ := q.Depth(ctx)
	if depth != 2 {
		t.Errorf("depth = %d, want 2 remaining", depth)
	}
}

func TestQueue_ClaimSkipsMalformedJobs(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	q := New(client, logger)
	ctx := context.Background()

	// Poison member alongside a valid job
	client.ZAdd(ctx, JobsKey, redis.Z{Score: 0, Member: "not json"})
	if err := q.Enqueue(ctx, EmailJob{RecordID: "rec-1", Attempt: 1}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	jobs, err := q.Claim(ctx, 10)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("claimed %d jobs, want 1 (malformed dropped)", len(jobs))
	}
	if jobs[0].RecordID != "rec-1" {
		t.Errorf("record_id = %q, want rec-1", jobs[0].RecordID)
	}
}
