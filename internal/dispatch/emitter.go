package dispatch

import (
	"context"
	"fmt"
	"time"

	"interview-orchestrator/internal/config"
	"interview-orchestrator/internal/events"
	"interview-orchestrator/internal/models"
	"interview-orchestrator/internal/queue"
	"interview-orchestrator/internal/store"
	"interview-orchestrator/internal/telemetry"
)

// Emitter is the single producer-facing entry point of the event bus. Emit
// accepts an event durably before returning; the producer never waits for
// consumer completion.
type Emitter struct {
	cfg   config.Config
	store *store.Store
	queue *queue.RedisQueue
}

// NewEmitter wires the emitter against the durable store and the Redis queue.
func NewEmitter(cfg config.Config, st *store.Store, q *queue.RedisQueue) *Emitter {
	return &Emitter{cfg: cfg, store: st, queue: q}
}

// Options tune a single emission. The zero value is a default-priority,
// immediate, non-idempotent event.
type Options struct {
	Priority       string
	Tenant         string
	IdempotencyKey string
	RunAt          time.Time
	MaxAttempts    int
}

// Emit validates a typed payload and submits it under name.
func (e *Emitter) Emit(ctx context.Context, name string, payload events.Payload) (models.JobEvent, error) {
	return e.EmitWith(ctx, name, payload, Options{})
}

// EmitWith is Emit with per-emission options.
func (e *Emitter) EmitWith(ctx context.Context, name string, payload events.Payload, opts Options) (models.JobEvent, error) {
	data, err := events.Encode(payload)
	if err != nil {
		return models.JobEvent{}, err
	}
	event, _, err := e.EmitRaw(ctx, name, data, opts)
	return event, err
}

// EmitRaw validates a raw payload map against the schema bound to name,
// persists the event, and enqueues it. Validation failures are returned
// synchronously and nothing is enqueued. The bool reports whether an existing
// event was reused via an idempotency key.
func (e *Emitter) EmitRaw(ctx context.Context, name string, data map[string]any, opts Options) (models.JobEvent, bool, error) {
	if data == nil {
		data = map[string]any{}
	}
	if err := events.Validate(name, data); err != nil {
		return models.JobEvent{}, false, err
	}

	runAt := opts.RunAt
	if runAt.IsZero() {
		runAt = time.Now()
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 || maxAttempts > e.cfg.MaxAttempts {
		maxAttempts = e.cfg.MaxAttempts
	}
	tenant := opts.Tenant
	if tenant == "" {
		tenant = "default"
	}

	event, reused, err := e.store.CreateEvent(ctx, store.CreateEventParams{
		Name:           name,
		Priority:       opts.Priority,
		Tenant:         tenant,
		Payload:        data,
		IdempotencyKey: opts.IdempotencyKey,
		RunAt:          runAt,
		MaxAttempts:    maxAttempts,
		IdempotencyTTL: e.cfg.IdempotencyTTL,
	})
	if err != nil {
		return models.JobEvent{}, false, err
	}
	if reused {
		return event, true, nil
	}

	if err := e.queue.Enqueue(ctx, event.ID, event.Priority, event.NextRunAt); err != nil {
		msg := err.Error()
		_ = e.store.UpdateEventStatus(ctx, event.ID, models.StatusFailed, event.Attempts, event.NextRunAt, &msg)
		return models.JobEvent{}, false, fmt.Errorf("enqueue event: %w", err)
	}
	_ = e.store.AppendAudit(ctx, event.ID, "emitted", fmt.Sprintf("name=%s tenant=%s priority=%s", name, tenant, event.Priority))
	telemetry.EmitCounter.Inc()
	return event, false, nil
}
