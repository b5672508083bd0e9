package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"interview-orchestrator/internal/hr"
	"interview-orchestrator/internal/models"
	"interview-orchestrator/internal/secrets"
	"interview-orchestrator/internal/store"
)

// LeaseExtender renews the visibility deadline of an in-flight event.
type LeaseExtender interface {
	ExtendLease(ctx context.Context, eventID string, extension time.Duration) error
}

// leaseKeeper renews the lease of the event being processed while a batch
// handler grinds through slow per-item calls. Without renewal the reclaim
// pass would hand the event to a second worker mid-run.
type leaseKeeper struct {
	queue    LeaseExtender
	eventID  string
	lease    time.Duration
	extended time.Time
}

func newLeaseKeeper(q LeaseExtender, eventID string, lease time.Duration) *leaseKeeper {
	return &leaseKeeper{queue: q, eventID: eventID, lease: lease, extended: time.Now()}
}

// touch extends the lease once more than half of it has elapsed since the
// last extension. Cheap enough to call on every loop iteration.
func (k *leaseKeeper) touch(ctx context.Context) {
	if k.queue == nil || k.lease <= 0 {
		return
	}
	if time.Since(k.extended) < k.lease/2 {
		return
	}
	if err := k.queue.ExtendLease(ctx, k.eventID, k.lease); err != nil {
		log.Printf("worker: extend lease for event %s: %v", k.eventID, err)
		return
	}
	k.extended = time.Now()
}

// lastAttempt reports whether the current invocation is the event's final
// retry. Handlers use it to publish a terminal error message only once.
func lastAttempt(event models.JobEvent) bool {
	return event.Attempts+1 >= event.MaxAttempts
}

// workspaceCredentials decrypts the HR board credentials configured for a
// workspace. Plaintext lives only on the stack of the calling handler.
func workspaceCredentials(ctx context.Context, st *store.Store, box *secrets.Box, workspaceID string) (hr.Credentials, error) {
	integration, err := st.IntegrationForWorkspace(ctx, workspaceID)
	if err != nil {
		return hr.Credentials{}, err
	}
	return decryptCredentials(box, integration)
}

func emptyToNilStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func decryptCredentials(box *secrets.Box, integration models.Integration) (hr.Credentials, error) {
	plaintext, err := box.Decrypt(integration.Ciphertext)
	if err != nil {
		return hr.Credentials{}, err
	}
	var creds hr.Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return hr.Credentials{}, fmt.Errorf("decode credentials: %w", err)
	}
	return creds, nil
}
