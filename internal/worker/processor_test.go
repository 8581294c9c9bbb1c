package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/snigdhasv/email-delivery-service/internal/queue"
)

type sentCall struct {
	id         string
	providerID string
	attempt    int
}

type failureCall struct {
	id      string
	errMsg  string
	attempt int
}

type fakeDeliveryStore struct {
	mu       sync.Mutex
	sent     []sentCall
	failures []failureCall
	dead     []failureCall
}

func (f *fakeDeliveryStore) MarkDeliverySent(ctx context.Context, id, providerMessageID string, attempt int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentCall{id: id, providerID: providerMessageID, attempt: attempt})
	return nil
}

func (f *fakeDeliveryStore) RecordDeliveryFailure(ctx context.Context, id, errMsg string, attempt int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, failureCall{id: id, errMsg: errMsg, attempt: attempt})
	return nil
}

func (f *fakeDeliveryStore) MarkDeliveryDead(ctx context.Context, id, errMsg string, attempt int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dead = append(f.dead, failureCall{id: id, errMsg: errMsg, attempt: attempt})
	return nil
}

type fakeSender struct {
	mu         sync.Mutex
	calls      int
	lastFrom   string
	lastTo     []string
	providerID string
	err        error
}

func (f *fakeSender) Send(ctx context.Context, from string, to []string, subject, html string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastFrom = from
	f.lastTo = to
	if f.err != nil {
		return "", f.err
	}
	return f.providerID, nil
}

func setupProcessorTest(t *testing.T, sender *fakeSender) (*Processor, *fakeDeliveryStore, *queue.Queue) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	q := queue.New(client, logger)
	store := &fakeDeliveryStore{}
	proc := NewProcessor(store, sender, q, logger, 2*time.Second)
	return proc, store, q
}

func testJob() queue.EmailJob {
	return queue.EmailJob{
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
}

func TestProcess_Success(t *testing.T) {
	sender := &fakeSender{providerID: "re_msg_1"}
	proc, store, q := setupProcessorTest(t, sender)

	proc.Process(context.Background(), testJob())

	if len(store.sent) != 1 {
		t.Fatalf("sent calls = %d, want 1", len(store.sent))
	}
	if store.sent[0].id != "rec-1" || store.sent[0].providerID != "re_msg_1" || store.sent[0].attempt != 1 {
		t.Errorf("sent call = %+v", store.sent[0])
	}
	if sender.lastFrom != "EmailAPI <noreply@yourdomain.com>" {
		t.Errorf("from = %q", sender.lastFrom)
	}
	if len(sender.lastTo) != 1 || sender.lastTo[0] != "user@example.com" {
		t.Errorf("to = %v", sender.lastTo)
	}

	// Nothing rescheduled
	depth, _ := q.Depth(context.Background())
	if depth != 0 {
		t.Errorf("queue depth = %d, want 0", depth)
	}
}

func TestProcess_TransportFailure_SchedulesRetry(t *testing.T) {
	sender := &fakeSender{err: errors.New("resend: 503")}
	proc, store, q := setupProcessorTest(t, sender)

	proc.Process(context.Background(), testJob())

	if len(store.failures) != 1 {
		t.Fatalf("failure calls = %d, want 1", len(store.failures))
	}
	if store.failures[0].attempt != 1 {
		t.Errorf("failure attempt = %d, want 1", store.failures[0].attempt)
	}
	if len(store.dead) != 0 {
		t.Errorf("dead calls = %d, want 0", len(store.dead))
	}

	// A retry with the attempt bumped is waiting in the queue
	depth, _ := q.Depth(context.Background())
	if depth != 1 {
		t.Fatalf("queue depth = %d, want 1", depth)
	}

	// Not claimable yet: the backoff delay is in the future
	jobs, err := q.Claim(context.Background(), 10)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("retry should not be ready before the backoff delay")
	}
}

func TestProcess_FinalFailure_DeadLetters(t *testing.T) {
	sender := &fakeSender{err: errors.New("resend: invalid recipient")}
	proc, store, q := setupProcessorTest(t, sender)

	job := testJob()
	job.Attempt = 3

	proc.Process(context.Background(), job)

	if len(store.dead) != 1 {
		t.Fatalf("dead calls = %d, want 1", len(store.dead))
	}
	if store.dead[0].attempt != 3 {
		t.Errorf("dead attempt = %d, want 3", store.dead[0].attempt)
	}
	if store.dead[0].errMsg != "resend: invalid recipient" {
		t.Errorf("dead errMsg = %q", store.dead[0].errMsg)
	}
	if len(store.failures) != 0 {
		t.Errorf("failure calls = %d, want 0 on terminal attempt", len(store.failures))
	}

	// Dead-lettered jobs are never rescheduled
	depth, _ := q.Depth(context.Background())
	if depth != 0 {
		t.Errorf("queue depth = %d, want 0", depth)
	}
}

func TestProcess_UnrenderableJob_FollowsFailurePath(t *testing.T) {
	sender := &fakeSender{providerID: "re_msg_x"}
	proc, store, _ := setupProcessorTest(t, sender)

	job := testJob()
	job.Type = "carrier_pigeon"

	proc.Process(context.Background(), job)

	if sender.calls != 0 {
		t.Errorf("sender should not be called for an unrenderable job")
	}
	if len(store.failures) != 1 {
		t.Fatalf("failure calls = %d, want 1", len(store.failures))
	}
}

func TestProcess_BackoffDoubles(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	q := queue.New(client, logger)
	sender := &fakeSender{err: errors.New("resend: timeout")}
	proc := NewProcessor(&fakeDeliveryStore{}, sender, q, logger, 2*time.Second)

	ctx := context.Background()

	// First attempt failure schedules at the base delay, second at double
	job := testJob()
	proc.Process(ctx, job)

	job.Attempt = 2
	proc.Process(ctx, job)

	results, err := client.ZRangeByScoreWithScores(ctx, queue.JobsKey, &redis.ZRangeBy{
		Min: "-inf", Max: "+inf",
	}).Result()
	if err != nil {
		t.Fatalf("reading queue: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("queue holds %d jobs, want 2", len(results))
	}

	gap := time.Duration(results[1].Score-results[0].Score) * time.Microsecond
	// Ready times are roughly 2s and 4s out, so the gap should be near 2s
	if gap < 1500*time.Millisecond || gap > 2500*time.Millisecond {
		t.Errorf("backoff gap = %v, want ~2s", gap)
	}
}
