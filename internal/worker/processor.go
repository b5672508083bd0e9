package worker

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"interview-orchestrator/internal/config"
	"interview-orchestrator/internal/models"
	"interview-orchestrator/internal/queue"
	"interview-orchestrator/internal/store"
	"interview-orchestrator/internal/telemetry"
)

// Processor drives the event-execution loop: dequeue with lease, invoke the
// handler registered for the event name, and retry with backoff on failure up
// to the bounded attempt count. Delivery is at-least-once; handlers must be
// idempotent under redelivery.
type Processor struct {
	cfg      config.Config
	queue    *queue.RedisQueue
	store    *store.Store
	handlers map[string]Handler
	workerID string
}

// Handler executes one event. Returning an error schedules a retry.
type Handler func(ctx context.Context, event models.JobEvent) error

// NewProcessor creates a processor with a worker ID for tracking.
func NewProcessor(cfg config.Config, q *queue.RedisQueue, st *store.Store, workerID string) *Processor {
	return &Processor{
		cfg:      cfg,
		queue:    q,
		store:    st,
		handlers: make(map[string]Handler),
		workerID: workerID,
	}
}

// RegisterHandler binds a handler to an event name.
func (p *Processor) RegisterHandler(name string, handler Handler) {
	if name == "" || handler == nil {
		return
	}
	p.handlers[name] = handler
}

// Run starts the main worker loop until context cancellation.
func (p *Processor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, _ = p.queue.PromoteScheduled(ctx, time.Now(), int64(p.cfg.ScheduledBatchSize))
		if reclaimed, _ := p.queue.RequeueExpired(ctx, time.Now(), 100); len(reclaimed) > 0 {
			telemetry.InFlightGauge.Sub(float64(len(reclaimed)))
			for _, id := range reclaimed {
				if event, err := p.store.GetEvent(ctx, id); err == nil {
					_ = p.store.UpdateEventStatus(ctx, id, models.StatusQueued, event.Attempts, time.Now(), event.LastError)
				}
			}
		}
		if depth, err := p.queue.ReadyDepth(ctx); err == nil {
			telemetry.QueueDepthGauge.Set(float64(depth))
		}
		if visible, err := p.store.VisibleEvents(ctx); err == nil {
			telemetry.BacklogGauge.Set(float64(visible))
		}

		eventID, err := p.queue.DequeueWithLease(ctx)
		if err != nil || eventID == "" {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.cfg.WorkerPollInterval):
			}
			continue
		}

		event, err := p.store.GetEvent(ctx, eventID)
		if err != nil {
			_ = p.queue.Ack(ctx, eventID)
			continue
		}
		if event.Status == models.StatusCancelled {
			_ = p.queue.Ack(ctx, eventID)
			continue
		}
		event = capAttempts(event, p.cfg.MaxAttempts)

		_ = p.store.UpdateEventStatus(ctx, event.ID, models.StatusInProgress, event.Attempts, event.NextRunAt, nil)
		if p.workerID != "" {
			_ = p.store.SetWorkerID(ctx, event.ID, p.workerID)
		}
		telemetry.InFlightGauge.Inc()

		err = p.runEvent(ctx, event)
		if err == nil {
			_ = p.queue.Ack(ctx, event.ID)
			_ = p.store.MarkSuccess(ctx, event.ID)
			_ = p.store.AppendAudit(ctx, event.ID, "succeeded", "handler completed")
			telemetry.WorkerSuccess.Inc()
			telemetry.InFlightGauge.Dec()
			continue
		}

		attempts := event.Attempts + 1
		backoff := backoffWithJitter(p.cfg.BackoffInitial, p.cfg.BackoffMax, attempts)
		nextRun := time.Now().Add(backoff)
		_ = p.store.UpdateAttempts(ctx, event.ID, attempts, nextRun, err.Error())

		if attempts >= event.MaxAttempts {
			_ = p.store.MarkDeadLetter(ctx, event.ID, err.Error())
			_ = p.queue.Ack(ctx, event.ID)
			_ = p.queue.DLQPush(ctx, event.ID)
			_ = p.store.AppendAudit(ctx, event.ID, "dead_letter", err.Error())
			telemetry.WorkerDeadLetter.Inc()
			telemetry.InFlightGauge.Dec()
			continue
		}

		_ = p.queue.Ack(ctx, event.ID)
		_ = p.queue.Schedule(ctx, event.ID, event.Priority, nextRun)
		_ = p.store.AppendAudit(ctx, event.ID, "retry_scheduled", fmt.Sprintf("next_run=%s attempts=%d", nextRun.UTC().Format(time.RFC3339), attempts))
		telemetry.WorkerFailures.Inc()
		telemetry.InFlightGauge.Dec()
	}
}

// capAttempts bounds an event's retry budget by the worker's configured
// ceiling. Handlers checking lastAttempt then agree with the dead-letter
// decision even when the emitter requested a larger budget.
func capAttempts(event models.JobEvent, limit int) models.JobEvent {
	if event.MaxAttempts <= 0 || event.MaxAttempts > limit {
		event.MaxAttempts = limit
	}
	return event
}

// runEvent dispatches to the handler bound to the event name. Events are
// consumed only by the job function registered for their name.
func (p *Processor) runEvent(ctx context.Context, event models.JobEvent) error {
	handler, ok := p.handlers[event.Name]
	if !ok {
		return fmt.Errorf("no handler registered for event %q", event.Name)
	}
	return handler(ctx, event)
}

func backoffWithJitter(base, max time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return base
	}
	exp := float64(base) * math.Pow(2, float64(attempt-1))
	wait := time.Duration(exp)
	if wait > max {
		wait = max
	}
	jitter := time.Duration(rand.Int63n(int64(wait / 2)))
	return wait/2 + jitter
}
