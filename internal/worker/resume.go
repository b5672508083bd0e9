package worker

import (
	"context"
	"log"
	"time"

	"interview-orchestrator/internal/ai"
	"interview-orchestrator/internal/events"
	"interview-orchestrator/internal/models"
	"interview-orchestrator/internal/store"
)

// ResumeHandler pulls contact details out of free-form resume text. Both
// variants walk responses whose contacts are missing, so re-running an event
// only touches rows still lacking data.
type ResumeHandler struct {
	store  *store.Store
	ai     *ai.Client
	leases LeaseExtender
	lease  time.Duration
}

func NewResumeHandler(st *store.Store, client *ai.Client, leases LeaseExtender, lease time.Duration) *ResumeHandler {
	return &ResumeHandler{store: st, ai: client, leases: leases, lease: lease}
}

// HandleParseNew extracts contacts for recently synced responses.
func (h *ResumeHandler) HandleParseNew(ctx context.Context, event models.JobEvent) error {
	return h.parseMissing(ctx, event)
}

// HandleParseMissing is the backfill pass over the same set.
func (h *ResumeHandler) HandleParseMissing(ctx context.Context, event models.JobEvent) error {
	return h.parseMissing(ctx, event)
}

func (h *ResumeHandler) parseMissing(ctx context.Context, event models.JobEvent) error {
	payload, err := decodePayload[*events.VacancyScopedPayload](event)
	if err != nil {
		return err
	}

	responses, err := h.store.ListResponsesMissingContacts(ctx, payload.VacancyID)
	if err != nil {
		return err
	}

	keeper := newLeaseKeeper(h.leases, event.ID, h.lease)
	var failures int
	for _, resp := range responses {
		keeper.touch(ctx)
		if resp.ResumeText == "" {
			continue
		}
		contacts, err := h.ai.ExtractContacts(ctx, resp.ResumeText)
		if err != nil {
			log.Printf("resume: response %s: extract contacts: %v", resp.ID, err)
			failures++
			continue
		}
		email := emptyToNilStr(contacts.Email)
		phone := emptyToNilStr(contacts.Phone)
		if email == nil && phone == nil {
			continue
		}
		if err := h.store.SetResponseContacts(ctx, resp.ID, email, phone); err != nil {
			return err
		}
	}
	if failures > 0 {
		log.Printf("resume: vacancy %s: %d of %d responses failed contact extraction", payload.VacancyID, failures, len(responses))
	}
	return nil
}
