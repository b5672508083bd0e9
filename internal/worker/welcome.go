package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"interview-orchestrator/internal/bot"
	"interview-orchestrator/internal/events"
	"interview-orchestrator/internal/hr"
	"interview-orchestrator/internal/models"
	"interview-orchestrator/internal/realtime"
	"interview-orchestrator/internal/secrets"
	"interview-orchestrator/internal/store"
)

// WelcomeHandler greets new candidates through the HR board chat. A response
// with welcomed_at set is never greeted twice.
type WelcomeHandler struct {
	store  *store.Store
	hr     *hr.Client
	box    *secrets.Box
	rt     *realtime.Publisher
	leases LeaseExtender
	lease  time.Duration
}

func NewWelcomeHandler(st *store.Store, board *hr.Client, box *secrets.Box, rt *realtime.Publisher, leases LeaseExtender, lease time.Duration) *WelcomeHandler {
	return &WelcomeHandler{store: st, hr: board, box: box, rt: rt, leases: leases, lease: lease}
}

// HandleSend greets one candidate.
func (h *WelcomeHandler) HandleSend(ctx context.Context, event models.JobEvent) error {
	payload, err := decodePayload[*events.WelcomeSendPayload](event)
	if err != nil {
		return err
	}
	resp, err := h.store.GetResponse(ctx, payload.ResponseID)
	if err != nil {
		return err
	}
	return h.welcomeOne(ctx, resp)
}

// HandleBatch greets every not-yet-welcomed candidate of a vacancy, streaming
// progress on the welcome-batch channel.
func (h *WelcomeHandler) HandleBatch(ctx context.Context, event models.JobEvent) error {
	payload, err := decodePayload[*events.VacancyScopedPayload](event)
	if err != nil {
		return err
	}
	ch := realtime.WelcomeBatch(payload.VacancyID)

	responses, err := h.store.ListResponsesNotWelcomed(ctx, payload.VacancyID)
	if err != nil {
		if lastAttempt(event) {
			h.publish(ctx, ch, realtime.TopicResult, realtime.ResultMessage{Succeeded: false, Detail: err.Error()})
		}
		return err
	}

	total := len(responses)
	h.publish(ctx, ch, realtime.TopicProgress, realtime.ProgressMessage{Total: total, Status: realtime.StatusStarted})

	keeper := newLeaseKeeper(h.leases, event.ID, h.lease)
	processed, failed := 0, 0
	for _, resp := range responses {
		keeper.touch(ctx)
		if err := h.welcomeOne(ctx, resp); err != nil {
			log.Printf("welcome: response %s: %v", resp.ID, err)
			failed++
		} else {
			processed++
		}
		h.publish(ctx, ch, realtime.TopicProgress, realtime.ProgressMessage{
			Processed: processed,
			Failed:    failed,
			Total:     total,
			Status:    realtime.StatusProcessing,
		})
	}

	h.publish(ctx, ch, realtime.TopicResult, realtime.ResultMessage{
		Success:   processed,
		Failed:    failed,
		Total:     total,
		Succeeded: failed == 0,
	})
	return nil
}

func (h *WelcomeHandler) welcomeOne(ctx context.Context, resp models.Response) error {
	if resp.WelcomedAt != nil {
		log.Printf("welcome: response %s already welcomed, skipping", resp.ID)
		return nil
	}
	vacancy, err := h.store.GetVacancy(ctx, resp.VacancyID)
	if err != nil {
		return err
	}
	creds, err := workspaceCredentials(ctx, h.store, h.box, vacancy.WorkspaceID)
	if err != nil {
		return err
	}
	text := bot.WelcomeMessage(resp.CandidateName, vacancy.Title)
	if err := h.hr.SendWelcome(ctx, creds, resp.ExternalID, text); err != nil {
		return fmt.Errorf("send welcome: %w", err)
	}
	return h.store.MarkWelcomed(ctx, resp.ID)
}

func (h *WelcomeHandler) publish(ctx context.Context, ch realtime.Channel, topic string, msg any) {
	if err := h.rt.Publish(ctx, ch, topic, msg); err != nil {
		log.Printf("welcome: publish %s/%s: %v", ch.Key, topic, err)
	}
}
