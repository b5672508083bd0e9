package models

import (
	"time"
)

// Event lifecycle states persisted in Postgres.
const (
	StatusQueued     = "queued"
	StatusInProgress = "in_progress"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
	StatusDeadLetter = "dead_lettered"
)

// JobEvent is a durably accepted named event awaiting (or past) handler execution.
type JobEvent struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Priority       string         `json:"priority"`
	Tenant         string         `json:"tenant"`
	Payload        map[string]any `json:"payload"`
	Status         string         `json:"status"`
	Attempts       int            `json:"attempts"`
	MaxAttempts    int            `json:"max_attempts"`
	NextRunAt      time.Time      `json:"next_run_at"`
	LastError      *string        `json:"last_error,omitempty"`
	IdempotencyKey *string        `json:"idempotency_key,omitempty"`
	WorkerID       *string        `json:"worker_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// AuditLog is a simple audit event row.
type AuditLog struct {
	EventID  string    `json:"event_id"`
	Event    string    `json:"event"`
	Detail   string    `json:"detail"`
	Recorded time.Time `json:"recorded_at"`
}
