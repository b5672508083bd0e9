package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// TryAcquireLock runs the conditional upsert for the leader lock row. It
// returns true when the caller holds the lock after the attempt. The upsert
// only overwrites a row that is expired or already held by the caller, so
// losing a race affects zero rows.
func (s *Store) TryAcquireLock(ctx context.Context, key, holder string, ttl time.Duration) (bool, error) {
	expires := time.Now().UTC().Add(ttl)
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO leader_locks (key, holder, expires_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE
		SET holder = $2, expires_at = $3, updated_at = NOW()
		WHERE leader_locks.expires_at < NOW() OR leader_locks.holder = $2
	`, key, holder, expires)
	if err != nil {
		return false, fmt.Errorf("acquire leader lock: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseLock deletes the lock row only if still held by the caller, allowing
// fast hand-off on graceful shutdown instead of waiting for TTL expiry.
func (s *Store) ReleaseLock(ctx context.Context, key, holder string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM leader_locks WHERE key = $1 AND holder = $2
	`, key, holder)
	if err != nil {
		return fmt.Errorf("release leader lock: %w", err)
	}
	return nil
}

// CurrentLockHolder returns the holder of an unexpired lock, or "" if the
// lock is free or abandoned.
func (s *Store) CurrentLockHolder(ctx context.Context, key string) (string, error) {
	var holder pgtype.Text
	err := s.pool.QueryRow(ctx, `
		SELECT holder FROM leader_locks WHERE key = $1 AND expires_at >= NOW()
	`, key).Scan(&holder)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query leader lock: %w", err)
	}
	return holder.String, nil
}
