package worker

import (
	"context"
	"errors"
	"log"

	"interview-orchestrator/internal/events"
	"interview-orchestrator/internal/hr"
	"interview-orchestrator/internal/models"
	"interview-orchestrator/internal/secrets"
	"interview-orchestrator/internal/store"
)

// CredentialsHandler verifies stored HR board credentials against the board.
// A definitive rejection is a successful verification with a recorded error;
// only transient failures are retried.
type CredentialsHandler struct {
	store *store.Store
	hr    *hr.Client
	box   *secrets.Box
}

func NewCredentialsHandler(st *store.Store, board *hr.Client, box *secrets.Box) *CredentialsHandler {
	return &CredentialsHandler{store: st, hr: board, box: box}
}

func (h *CredentialsHandler) HandleVerify(ctx context.Context, event models.JobEvent) error {
	payload, err := decodePayload[*events.IntegrationPayload](event)
	if err != nil {
		return err
	}

	integration, err := h.store.GetIntegration(ctx, payload.IntegrationID)
	if err != nil {
		return err
	}
	creds, err := decryptCredentials(h.box, integration)
	if err != nil {
		return err
	}

	if err := h.hr.VerifyCredentials(ctx, creds); err != nil {
		if errors.Is(err, hr.ErrUnauthorized) {
			msg := err.Error()
			log.Printf("credentials: integration %s rejected by board", integration.ID)
			return h.store.MarkIntegrationVerified(ctx, integration.ID, &msg)
		}
		return err
	}
	return h.store.MarkIntegrationVerified(ctx, integration.ID, nil)
}
