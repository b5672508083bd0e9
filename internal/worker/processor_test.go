package worker

import (
	"context"
	"testing"
	"time"

	"interview-orchestrator/internal/models"
)

type fakeExtender struct {
	calls []string
}

func (f *fakeExtender) ExtendLease(_ context.Context, eventID string, _ time.Duration) error {
	f.calls = append(f.calls, eventID)
	return nil
}

func testEvent(attempts, maxAttempts int) models.JobEvent {
	return models.JobEvent{Attempts: attempts, MaxAttempts: maxAttempts}
}

func TestBackoffWithJitter(t *testing.T) {
	base := time.Second
	max := 8 * time.Second

	b1 := backoffWithJitter(base, max, 1)
	if b1 < base/2 || b1 > max {
		t.Fatalf("backoff out of range: %s", b1)
	}

	b3 := backoffWithJitter(base, max, 3)
	if b3 < base || b3 > max {
		t.Fatalf("backoff out of range for attempt 3: %s", b3)
	}

	b9 := backoffWithJitter(base, max, 9)
	if b9 > max {
		t.Fatalf("backoff exceeded cap: %s", b9)
	}
}

func TestLastAttempt(t *testing.T) {
	event := testEvent(0, 3)
	if lastAttempt(event) {
		t.Fatalf("first attempt of three should not be final")
	}
	event = testEvent(2, 3)
	if !lastAttempt(event) {
		t.Fatalf("third attempt of three should be final")
	}
}

func TestCapAttemptsBoundsRetryBudget(t *testing.T) {
	// An emission asking for more retries than the worker allows is bounded
	// by the worker ceiling; the final-attempt check and the dead-letter
	// decision then fire on the same invocation.
	event := capAttempts(testEvent(4, 10), 5)
	if event.MaxAttempts != 5 {
		t.Fatalf("expected budget capped at 5, got %d", event.MaxAttempts)
	}
	if !lastAttempt(event) {
		t.Fatalf("fifth attempt of a capped budget must be final")
	}
	if event.Attempts+1 < event.MaxAttempts {
		t.Fatalf("capped event must dead-letter on its final attempt")
	}

	event = capAttempts(testEvent(0, 3), 5)
	if event.MaxAttempts != 3 {
		t.Fatalf("budget under the ceiling must be kept, got %d", event.MaxAttempts)
	}

	event = capAttempts(testEvent(0, 0), 5)
	if event.MaxAttempts != 5 {
		t.Fatalf("zero budget defaults to the ceiling, got %d", event.MaxAttempts)
	}
}

func TestLeaseKeeperRenewsAtHalfLease(t *testing.T) {
	ext := &fakeExtender{}
	k := newLeaseKeeper(ext, "evt-1", time.Minute)

	k.touch(context.Background())
	if len(ext.calls) != 0 {
		t.Fatalf("fresh lease must not be renewed, got %d calls", len(ext.calls))
	}

	k.extended = time.Now().Add(-31 * time.Second)
	k.touch(context.Background())
	if len(ext.calls) != 1 || ext.calls[0] != "evt-1" {
		t.Fatalf("expected one renewal for evt-1, got %v", ext.calls)
	}

	// The renewal clock restarts after a successful extension.
	k.touch(context.Background())
	if len(ext.calls) != 1 {
		t.Fatalf("expected no second renewal yet, got %d calls", len(ext.calls))
	}
}

func TestLeaseKeeperWithoutQueueIsNoop(t *testing.T) {
	k := newLeaseKeeper(nil, "evt-1", time.Minute)
	k.extended = time.Now().Add(-time.Hour)
	k.touch(context.Background())
}
