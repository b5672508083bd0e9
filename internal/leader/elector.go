package leader

import (
	"context"
	"log"
	"sync"
	"time"

	"interview-orchestrator/internal/telemetry"
)

// LockStore is the storage contract for the shared lock row.
type LockStore interface {
	TryAcquireLock(ctx context.Context, key, holder string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, holder string) error
}

// Elector runs the heartbeat loop for one process replica. Leadership is
// re-derived on every beat and never trusted beyond one heartbeat interval
// (plus half a beat of scheduling slack).
type Elector struct {
	store     LockStore
	key       string
	id        string
	ttl       time.Duration
	heartbeat time.Duration

	mu       sync.Mutex
	leader   bool
	lastBeat time.Time
}

// NewElector builds an elector. A zero heartbeat defaults to ttl/3 so a live
// leader's lock never lapses under normal scheduling jitter.
func NewElector(store LockStore, key, id string, ttl, heartbeat time.Duration) *Elector {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if heartbeat <= 0 {
		heartbeat = ttl / 3
	}
	return &Elector{
		store:     store,
		key:       key,
		id:        id,
		ttl:       ttl,
		heartbeat: heartbeat,
	}
}

// ID returns this replica's opaque process identity.
func (e *Elector) ID() string { return e.id }

// IsLeader reports the result of the most recent heartbeat. A stale beat
// means the answer is no, even if the last acquisition succeeded.
func (e *Elector) IsLeader() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.leader {
		return false
	}
	return time.Since(e.lastBeat) <= e.heartbeat+e.heartbeat/2
}

// Run drives the acquisition loop until context cancellation, then releases
// the lock for fast hand-off. An acquisition attempt is made immediately so
// a fresh replica does not wait a full beat to contend.
func (e *Elector) Run(ctx context.Context) error {
	e.beat(ctx)

	ticker := time.NewTicker(e.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.release()
			return ctx.Err()
		case <-ticker.C:
			e.beat(ctx)
		}
	}
}

// beat performs one acquisition attempt. Any storage error degrades to "not
// leader" for this cycle; it never escapes the loop.
func (e *Elector) beat(ctx context.Context) {
	held, err := e.store.TryAcquireLock(ctx, e.key, e.id, e.ttl)
	if err != nil {
		held = false
		log.Printf("leader: acquisition attempt failed, assuming follower: %v", err)
	}

	e.mu.Lock()
	wasLeader := e.leader
	e.leader = held
	e.lastBeat = time.Now()
	e.mu.Unlock()

	if held && !wasLeader {
		log.Printf("leader: %s acquired lock %q", e.id, e.key)
	}
	if !held && wasLeader {
		log.Printf("leader: %s lost lock %q", e.id, e.key)
	}
	if held {
		telemetry.LeaderGauge.Set(1)
	} else {
		telemetry.LeaderGauge.Set(0)
	}
}

func (e *Elector) release() {
	e.mu.Lock()
	wasLeader := e.leader
	e.leader = false
	e.mu.Unlock()

	if !wasLeader {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.store.ReleaseLock(ctx, e.key, e.id); err != nil {
		log.Printf("leader: release failed, lock will expire by TTL: %v", err)
	}
	telemetry.LeaderGauge.Set(0)
}
