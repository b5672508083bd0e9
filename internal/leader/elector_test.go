package leader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeLockStore hands the lock to exactly one holder at a time, in memory.
type fakeLockStore struct {
	mu       sync.Mutex
	holder   string
	failNext error
	released []string
}

func (f *fakeLockStore) TryAcquireLock(_ context.Context, _, holder string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return false, err
	}
	if f.holder == "" || f.holder == holder {
		f.holder = holder
		return true, nil
	}
	return false, nil
}

func (f *fakeLockStore) ReleaseLock(_ context.Context, _, holder string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.holder == holder {
		f.holder = ""
	}
	f.released = append(f.released, holder)
	return nil
}

func TestSingleLeaderAmongReplicas(t *testing.T) {
	fls := &fakeLockStore{}
	a := NewElector(fls, "bot", "replica-a", time.Minute, time.Minute)
	b := NewElector(fls, "bot", "replica-b", time.Minute, time.Minute)

	ctx := context.Background()
	a.beat(ctx)
	b.beat(ctx)

	if !a.IsLeader() {
		t.Fatalf("first replica should hold the lock")
	}
	if b.IsLeader() {
		t.Fatalf("second replica must not also be leader")
	}
}

func TestStorageErrorDegradesToFollower(t *testing.T) {
	fls := &fakeLockStore{}
	e := NewElector(fls, "bot", "replica-a", time.Minute, time.Minute)

	ctx := context.Background()
	e.beat(ctx)
	if !e.IsLeader() {
		t.Fatalf("expected leadership after clean beat")
	}

	fls.failNext = errors.New("connection refused")
	e.beat(ctx)
	if e.IsLeader() {
		t.Fatalf("storage error must demote to follower")
	}

	e.beat(ctx)
	if !e.IsLeader() {
		t.Fatalf("expected leadership back after storage recovered")
	}
}

func TestStaleBeatIsNotLeadership(t *testing.T) {
	fls := &fakeLockStore{}
	e := NewElector(fls, "bot", "replica-a", time.Minute, 10*time.Millisecond)

	e.beat(context.Background())
	if !e.IsLeader() {
		t.Fatalf("expected leadership after beat")
	}

	time.Sleep(30 * time.Millisecond)
	if e.IsLeader() {
		t.Fatalf("leadership must lapse when beats stop")
	}
}

func TestRunReleasesBeforeReturning(t *testing.T) {
	fls := &fakeLockStore{}
	e := NewElector(fls, "bot", "replica-a", time.Minute, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(15 * time.Millisecond)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// Run must not return until the lock row is gone; callers waiting on it
	// can then exit without orphaning the lock for a full TTL.
	fls.mu.Lock()
	defer fls.mu.Unlock()
	if fls.holder != "" {
		t.Fatalf("lock still held by %q after Run returned", fls.holder)
	}
	if len(fls.released) == 0 {
		t.Fatalf("expected a release call before Run returned")
	}
}

func TestReleaseOnShutdown(t *testing.T) {
	fls := &fakeLockStore{}
	e := NewElector(fls, "bot", "replica-a", time.Minute, time.Minute)

	e.beat(context.Background())
	e.release()

	fls.mu.Lock()
	defer fls.mu.Unlock()
	if fls.holder != "" {
		t.Fatalf("lock should be free after release, held by %q", fls.holder)
	}
	if len(fls.released) != 1 {
		t.Fatalf("expected one release call, got %d", len(fls.released))
	}
}
