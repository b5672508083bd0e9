package queue

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"interview-orchestrator/internal/config"
)

func newTestQueue(t *testing.T) *RedisQueue {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := config.Config{
		PriorityQueues:    []string{"high", "default", "low"},
		VisibilityTimeout: time.Minute,
	}
	return NewRedisQueueWithClient(client, cfg)
}

func TestEnqueueDequeueAck(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	if err := q.Enqueue(ctx, "evt-1", "default", time.Now()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	id, err := q.DequeueWithLease(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if id != "evt-1" {
		t.Fatalf("expected evt-1, got %q", id)
	}

	// Nothing else is ready while evt-1 holds its lease.
	id, err = q.DequeueWithLease(ctx)
	if err != nil {
		t.Fatalf("dequeue empty: %v", err)
	}
	if id != "" {
		t.Fatalf("expected empty dequeue, got %q", id)
	}

	if err := q.Ack(ctx, "evt-1"); err != nil {
		t.Fatalf("ack: %v", err)
	}
}

func TestPriorityOrdering(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	if err := q.Enqueue(ctx, "low-evt", "low", time.Now()); err != nil {
		t.Fatalf("enqueue low: %v", err)
	}
	if err := q.Enqueue(ctx, "high-evt", "high", time.Now()); err != nil {
		t.Fatalf("enqueue high: %v", err)
	}

	id, err := q.DequeueWithLease(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if id != "high-evt" {
		t.Fatalf("expected high-evt first, got %q", id)
	}
}

func TestScheduledPromotion(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	runAt := time.Now().Add(time.Hour)
	if err := q.Enqueue(ctx, "future-evt", "default", runAt); err != nil {
		t.Fatalf("enqueue future: %v", err)
	}

	id, err := q.DequeueWithLease(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if id != "" {
		t.Fatalf("future event should not be ready, got %q", id)
	}

	n, err := q.PromoteScheduled(ctx, runAt.Add(time.Second), 10)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 promoted, got %d", n)
	}

	id, err = q.DequeueWithLease(ctx)
	if err != nil {
		t.Fatalf("dequeue after promote: %v", err)
	}
	if id != "future-evt" {
		t.Fatalf("expected future-evt, got %q", id)
	}
}

func TestRequeueExpired(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	if err := q.Enqueue(ctx, "evt-1", "default", time.Now()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.DequeueWithLease(ctx); err != nil {
		t.Fatalf("dequeue: %v", err)
	}

	// Before the lease expires nothing is reclaimed.
	ids, err := q.RequeueExpired(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no reclaims, got %v", ids)
	}

	ids, err = q.RequeueExpired(ctx, time.Now().Add(2*time.Minute), 10)
	if err != nil {
		t.Fatalf("requeue expired: %v", err)
	}
	if len(ids) != 1 || ids[0] != "evt-1" {
		t.Fatalf("expected evt-1 reclaimed, got %v", ids)
	}

	id, err := q.DequeueWithLease(ctx)
	if err != nil {
		t.Fatalf("dequeue reclaimed: %v", err)
	}
	if id != "evt-1" {
		t.Fatalf("expected evt-1 redelivered, got %q", id)
	}
}

func TestExtendLeaseDefersReclaim(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	if err := q.Enqueue(ctx, "evt-1", "default", time.Now()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.DequeueWithLease(ctx); err != nil {
		t.Fatalf("dequeue: %v", err)
	}

	// Renewing pushes the deadline past the original one-minute lease.
	if err := q.ExtendLease(ctx, "evt-1", 10*time.Minute); err != nil {
		t.Fatalf("extend lease: %v", err)
	}

	ids, err := q.RequeueExpired(ctx, time.Now().Add(2*time.Minute), 10)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("extended lease must not be reclaimed, got %v", ids)
	}

	ids, err = q.RequeueExpired(ctx, time.Now().Add(15*time.Minute), 10)
	if err != nil {
		t.Fatalf("requeue after extension: %v", err)
	}
	if len(ids) != 1 || ids[0] != "evt-1" {
		t.Fatalf("expected evt-1 reclaimed after extended deadline, got %v", ids)
	}
}

func TestCancelRemovesFromReady(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	if err := q.Enqueue(ctx, "evt-1", "default", time.Now()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Cancel(ctx, "evt-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	id, err := q.DequeueWithLease(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if id != "" {
		t.Fatalf("cancelled event should not be dequeued, got %q", id)
	}
}

func TestDLQ(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	if err := q.DLQPush(ctx, "dead-evt"); err != nil {
		t.Fatalf("dlq push: %v", err)
	}
	items, err := q.DLQPeek(ctx, 10)
	if err != nil {
		t.Fatalf("dlq peek: %v", err)
	}
	if len(items) != 1 || items[0] != "dead-evt" {
		t.Fatalf("unexpected dlq contents: %v", items)
	}
}
