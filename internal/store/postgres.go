package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"interview-orchestrator/internal/models"
)

// Store wraps pgxpool for Postgres persistence.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a pooled connection to Postgres.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// CreateEventParams collects inputs required to insert a job event.
type CreateEventParams struct {
	Name           string
	Priority       string
	Tenant         string
	Payload        map[string]any
	IdempotencyKey string
	RunAt          time.Time
	MaxAttempts    int
	IdempotencyTTL time.Duration
}

// CreateEvent inserts a job event row, honoring idempotency if provided.
// It returns the event, and a boolean indicating if an existing event was reused.
func (s *Store) CreateEvent(ctx context.Context, p CreateEventParams) (models.JobEvent, bool, error) {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 5
	}
	if p.Priority == "" {
		p.Priority = "default"
	}

	payloadJSON, err := json.Marshal(p.Payload)
	if err != nil {
		return models.JobEvent{}, false, fmt.Errorf("marshal payload: %w", err)
	}

	// If an idempotency key already exists, short-circuit before creating anything.
	if p.IdempotencyKey != "" {
		if existing, found, err := s.FindByIdempotencyKey(ctx, p.IdempotencyKey); err != nil {
			return models.JobEvent{}, false, err
		} else if found {
			return existing, true, nil
		}
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.JobEvent{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // safe no-op on commit

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err = tx.Exec(ctx, `
		INSERT INTO job_events (id, name, priority, tenant, payload, status, attempts, max_attempts, next_run_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, $9)
	`, id, p.Name, p.Priority, p.Tenant, payloadJSON, models.StatusQueued, p.MaxAttempts, p.RunAt, now)
	if err != nil {
		return models.JobEvent{}, false, fmt.Errorf("insert event: %w", err)
	}

	if p.IdempotencyKey != "" {
		expires := now.Add(p.IdempotencyTTL)
		tag, err := tx.Exec(ctx, `
			INSERT INTO idempotency_keys (key, event_id, expires_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (key) DO NOTHING
		`, p.IdempotencyKey, id, expires)
		if err != nil {
			return models.JobEvent{}, false, fmt.Errorf("insert idempotency key: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// Someone else claimed the key after our initial check; return existing event.
			if err := tx.Rollback(ctx); err != nil {
				return models.JobEvent{}, false, fmt.Errorf("rollback after idempotency conflict: %w", err)
			}
			existing, found, err := s.FindByIdempotencyKey(ctx, p.IdempotencyKey)
			if err != nil {
				return models.JobEvent{}, false, err
			}
			if !found {
				return models.JobEvent{}, false, errors.New("idempotency conflict but no existing event found")
			}
			return existing, true, nil
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.JobEvent{}, false, fmt.Errorf("commit: %w", err)
	}

	return models.JobEvent{
		ID:             id,
		Name:           p.Name,
		Priority:       p.Priority,
		Tenant:         p.Tenant,
		Payload:        p.Payload,
		Status:         models.StatusQueued,
		Attempts:       0,
		MaxAttempts:    p.MaxAttempts,
		NextRunAt:      p.RunAt,
		IdempotencyKey: emptyToNil(p.IdempotencyKey),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, false, nil
}

// FindByIdempotencyKey returns the event mapped to the key if present and unexpired.
func (s *Store) FindByIdempotencyKey(ctx context.Context, key string) (models.JobEvent, bool, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		SELECT event_id FROM idempotency_keys WHERE key = $1 AND (expires_at IS NULL OR expires_at > NOW())
	`, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.JobEvent{}, false, nil
	}
	if err != nil {
		return models.JobEvent{}, false, fmt.Errorf("query idempotency key: %w", err)
	}
	event, err := s.GetEvent(ctx, id)
	if err != nil {
		return models.JobEvent{}, false, err
	}
	return event, true, nil
}

// GetEvent fetches a job event by id.
func (s *Store) GetEvent(ctx context.Context, id string) (models.JobEvent, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, priority, tenant, payload, status, attempts, max_attempts, next_run_at, last_error, idempotency_key, worker_id, created_at, updated_at
		FROM job_events WHERE id = $1
	`, id)

	var event models.JobEvent
	var payloadJSON []byte
	var lastErr, idem, worker pgtype.Text

	if err := row.Scan(&event.ID, &event.Name, &event.Priority, &event.Tenant, &payloadJSON, &event.Status, &event.Attempts, &event.MaxAttempts, &event.NextRunAt, &lastErr, &idem, &worker, &event.CreatedAt, &event.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.JobEvent{}, fmt.Errorf("event not found: %w", err)
		}
		return models.JobEvent{}, fmt.Errorf("scan event: %w", err)
	}

	if err := json.Unmarshal(payloadJSON, &event.Payload); err != nil {
		return models.JobEvent{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	event.LastError = textPtr(lastErr)
	event.IdempotencyKey = textPtr(idem)
	event.WorkerID = textPtr(worker)
	return event, nil
}

// UpdateEventStatus sets status, attempts, next_run_at and last_error atomically.
func (s *Store) UpdateEventStatus(ctx context.Context, id string, status string, attempts int, nextRun time.Time, lastError *string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE job_events
		SET status = $2, attempts = $3, next_run_at = $4, last_error = $5, updated_at = NOW()
		WHERE id = $1
	`, id, status, attempts, nextRun, lastError)
	return err
}

// SetWorkerID records which worker picked up the event.
func (s *Store) SetWorkerID(ctx context.Context, id, workerID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE job_events SET worker_id = $2, updated_at = NOW() WHERE id = $1
	`, id, workerID)
	return err
}

// MarkSuccess transitions an event to succeeded.
func (s *Store) MarkSuccess(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE job_events SET status = $2, updated_at = NOW(), last_error = NULL WHERE id = $1
	`, id, models.StatusSucceeded)
	return err
}

// MarkCancelled sets status cancelled and clears any last error.
func (s *Store) MarkCancelled(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE job_events SET status = $2, updated_at = NOW(), last_error = NULL WHERE id = $1
	`, id, models.StatusCancelled)
	return err
}

// MarkDeadLetter flags an event as dead_lettered after retries are exhausted.
func (s *Store) MarkDeadLetter(ctx context.Context, id string, lastError string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE job_events SET status = $2, last_error = $3, updated_at = NOW()
		WHERE id = $1
	`, id, models.StatusDeadLetter, lastError)
	return err
}

// UpdateAttempts updates attempts and next_run_at after a failure.
func (s *Store) UpdateAttempts(ctx context.Context, id string, attempts int, nextRun time.Time, lastErr string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE job_events
		SET status = $2, attempts = $3, next_run_at = $4, last_error = $5, updated_at = NOW()
		WHERE id = $1
	`, id, models.StatusQueued, attempts, nextRun, lastErr)
	return err
}

// AppendAudit adds an audit row.
func (s *Store) AppendAudit(ctx context.Context, eventID, event, detail string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_logs (event_id, event, detail, ts)
		VALUES ($1, $2, $3, NOW())
	`, eventID, event, detail)
	return err
}

// ListAudit returns the audit trail of one event, oldest first.
func (s *Store) ListAudit(ctx context.Context, eventID string) ([]models.AuditLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, event, detail, ts FROM audit_logs WHERE event_id = $1 ORDER BY id
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var out []models.AuditLog
	for rows.Next() {
		var a models.AuditLog
		if err := rows.Scan(&a.EventID, &a.Event, &a.Detail, &a.Recorded); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// VisibleEvents returns the count of events ready to run (next_run_at <= now and queued).
func (s *Store) VisibleEvents(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM job_events WHERE status = $1 AND next_run_at <= NOW()
	`, models.StatusQueued).Scan(&n); err != nil {
		return 0, fmt.Errorf("count visible events: %w", err)
	}
	return n, nil
}

func textPtr(t pgtype.Text) *string {
	if t.Valid {
		return &t.String
	}
	return nil
}

func emptyToNil(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
