package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/snigdhasv/email-delivery-service/internal/queue"
)

type countingSender struct {
	mu    sync.Mutex
	sent  map[string]bool
	calls int
}

func (c *countingSender) Send(ctx context.Context, from string, to []string, subject, html string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.sent == nil {
		c.sent = map[string]bool{}
	}
	c.sent[to[0]] = true
	return fmt.Sprintf("re_msg_%d", c.calls), nil
}

func setupPoolTest(t *testing.T, sender *countingSender) (*Pool, *fakeDeliveryStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	q := queue.New(client, logger)
	store := &fakeDeliveryStore{}
	proc := NewProcessor(store, sender, q, logger, 2*time.Second)
	return NewPool(3, proc, logger), store
}

func TestPool_ProcessesJobs(t *testing.T) {
	sender := &countingSender{}
	pool, store := setupPoolTest(t, sender)

	pool.Start(context.Background())

	for i := 0; i < 5; i++ {
		job := testJob()
		job.RecordID = fmt.Sprintf("rec-%d", i)
		job.To = fmt.Sprintf("user%d@example.com", i)
		pool.Submit(job)
	}

	pool.Stop()

	if sender.calls != 5 {
		t.Errorf("sender calls = %d, want 5", sender.calls)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.sent) != 5 {
		t.Errorf("sent records = %d, want 5", len(store.sent))
	}
}

func TestPool_StopDrainsPendingJobs(t *testing.T) {
	sender := &countingSender{}
	pool, store := setupPoolTest(t, sender)

	pool.Start(context.Background())

	// Fill the channel buffer before the workers can keep up
	for i := 0; i < 6; i++ {
		job := testJob()
		job.RecordID = fmt.Sprintf("rec-%d", i)
		pool.Submit(job)
	}

	// Stop must not return until every submitted job is processed
	pool.Stop()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.sent) != 6 {
		t.Errorf("sent records = %d, want 6 (Stop should drain)", len(store.sent))
	}
}
